package answer

import (
	"github.com/cloudwego/eino/schema"
	"github.com/pkoukk/tiktoken-go"

	chatModel "github.com/leduyhoang1994/quivr/internal/model/chat"
)

// defaultTokenBudget bounds the history share of the prompt. Falls back to the
// cl100k_base encoding when the model is unknown to tiktoken.
const defaultTokenBudget = 3500

const fallbackEncoding = "cl100k_base"

// formatHistory converts persisted turns into ordered role-tagged messages.
// Each turn expands into a user message and, when the answer exists, an
// assistant message.
func formatHistory(entries []chatModel.HistoryEntry) []*schema.Message {
	if len(entries) == 0 {
		return nil
	}
	history := make([]*schema.Message, 0, 2*len(entries))
	for _, entry := range entries {
		if entry.UserMessage != "" {
			history = append(history, schema.UserMessage(entry.UserMessage))
		}
		if entry.Assistant != "" {
			history = append(history, schema.AssistantMessage(entry.Assistant, nil))
		}
	}
	return history
}

// windowHistory drops the oldest turns until the transcript fits the token
// budget, so the prompt never outgrows the model context.
func windowHistory(entries []chatModel.HistoryEntry, model string, budget int) []chatModel.HistoryEntry {
	if budget <= 0 || len(entries) == 0 {
		return entries
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return entries
		}
	}

	costs := make([]int, len(entries))
	total := 0
	for i, entry := range entries {
		costs[i] = len(enc.Encode(entry.UserMessage, nil, nil)) + len(enc.Encode(entry.Assistant, nil, nil))
		total += costs[i]
	}

	start := 0
	for start < len(entries) && total > budget {
		total -= costs[start]
		start++
	}
	return entries[start:]
}
