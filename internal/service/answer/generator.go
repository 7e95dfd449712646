// Package answer turns chat questions into persisted, optionally streamed
// assistant answers.
package answer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/leduyhoang1994/quivr/internal/config"
	chatModel "github.com/leduyhoang1994/quivr/internal/model/chat"
	promptService "github.com/leduyhoang1994/quivr/internal/service/prompt"
	"github.com/leduyhoang1994/quivr/internal/storage"
)

// ModelFactory builds a chat model for one generation request.
// config.AIConfig satisfies it; tests substitute fakes.
type ModelFactory interface {
	NewChatModel(ctx context.Context, settings config.ModelSettings) (model.BaseChatModel, error)
}

// Options configures one generator instance for one request.
type Options struct {
	ChatID      uuid.UUID
	UserID      uuid.UUID
	BrainID     *uuid.UUID
	Model       string
	Temperature *float32
	MaxTokens   *int
	Streaming   bool
	PromptID    *uuid.UUID
}

// Generator produces one answer per question and persists exactly one history
// entry for it.
type Generator interface {
	// GenerateAnswer runs the completion synchronously, persists the full turn
	// and returns it. Completion and persistence errors propagate.
	GenerateAnswer(ctx context.Context, chatID uuid.UUID, q chatModel.Question) (chatModel.HistoryEntry, error)

	// GenerateStream persists a placeholder turn, then emits one history
	// snapshot per token; the assistant field of each snapshot carries the
	// latest token. The channel closes when generation finishes, after the
	// persisted entry has been finalized with the concatenated answer.
	GenerateStream(ctx context.Context, chatID uuid.UUID, q chatModel.Question) (<-chan chatModel.HistoryEntry, error)
}

// contextRetriever supplies grounding passages for brain-backed generation.
type contextRetriever func(ctx context.Context, question string) (string, error)

type generator struct {
	store       storage.ChatStore
	prompts     *promptService.Service
	chain       compose.Runnable[map[string]any, *schema.Message]
	opts        Options
	tokenBudget int

	// Brain-backed variant only.
	brainName string
	retriever contextRetriever
}

func newGenerator(ctx context.Context, store storage.ChatStore, prompts *promptService.Service, models ModelFactory, opts Options, brainName string, retriever contextRetriever) (*generator, error) {
	chatModelInstance, err := models.NewChatModel(ctx, config.ModelSettings{
		Model:       opts.Model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	template := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(template)
	chain.AppendChatModel(chatModelInstance)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &generator{
		store:       store,
		prompts:     prompts,
		chain:       runnable,
		opts:        opts,
		tokenBudget: defaultTokenBudget,
		brainName:   brainName,
		retriever:   retriever,
	}, nil
}

// buildChainInput resolves the system prompt and assembles the ordered message
// context: system first, then windowed history, then the new question.
func (g *generator) buildChainInput(ctx context.Context, chatID uuid.UUID, question string, resolved promptService.Resolved) (map[string]any, error) {
	history, err := g.store.GetHistory(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}

	system := resolved.Content
	if g.retriever != nil {
		questionContext, err := g.retriever(ctx, question)
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve question context: %w", err)
		}
		if questionContext != "" {
			system = system + "\n\nUse the following pieces of context to answer the question at the end:\n" + questionContext
		}
	}

	return map[string]any{
		"system":  system,
		"history": formatHistory(windowHistory(history, g.opts.Model, g.tokenBudget)),
		"query":   question,
	}, nil
}

// promptID prefers the question's explicit prompt over the one the generator
// was configured with (e.g. the brain's prompt).
func (g *generator) promptID(q chatModel.Question) *uuid.UUID {
	if q.PromptID != nil {
		return q.PromptID
	}
	return g.opts.PromptID
}

func (g *generator) GenerateAnswer(ctx context.Context, chatID uuid.UUID, q chatModel.Question) (chatModel.HistoryEntry, error) {
	resolved := g.prompts.Resolve(ctx, g.promptID(q))

	input, err := g.buildChainInput(ctx, chatID, q.Question, resolved)
	if err != nil {
		return chatModel.HistoryEntry{}, err
	}

	response, err := g.chain.Invoke(ctx, input)
	if err != nil {
		return chatModel.HistoryEntry{}, fmt.Errorf("failed to run completion: %w", err)
	}

	entry, err := g.store.AddHistory(ctx, chatModel.CreateHistory{
		ChatID:      chatID,
		UserMessage: q.Question,
		Assistant:   response.Content,
		PromptID:    resolved.ID,
		BrainID:     g.opts.BrainID,
	})
	if err != nil {
		return chatModel.HistoryEntry{}, fmt.Errorf("failed to persist answer: %w", err)
	}

	entry.PromptTitle = resolved.Title
	entry.BrainName = g.brainName
	log.Printf("[answer] generated answer for chat=%s message=%s length=%d", chatID, entry.MessageID, len(response.Content))
	return entry, nil
}

func (g *generator) GenerateStream(ctx context.Context, chatID uuid.UUID, q chatModel.Question) (<-chan chatModel.HistoryEntry, error) {
	resolved := g.prompts.Resolve(ctx, g.promptID(q))

	input, err := g.buildChainInput(ctx, chatID, q.Question, resolved)
	if err != nil {
		return nil, err
	}

	// Failures up to here, including stream construction, surface
	// synchronously. Once the placeholder is written the stream always
	// finalizes with whatever tokens were produced.
	stream, err := g.chain.Stream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to start completion stream: %w", err)
	}

	entry, err := g.store.AddHistory(ctx, chatModel.CreateHistory{
		ChatID:      chatID,
		UserMessage: q.Question,
		Assistant:   "",
		PromptID:    resolved.ID,
		BrainID:     g.opts.BrainID,
	})
	if err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to persist placeholder entry: %w", err)
	}
	entry.PromptTitle = resolved.Title
	entry.BrainName = g.brainName

	tokens := make(chan string)
	frames := make(chan chatModel.HistoryEntry)

	// Producer: drive the completion stream to the end, forwarding tokens.
	// Errors end the stream early; they are logged, never propagated.
	wg := conc.NewWaitGroup()
	wg.Go(func() {
		defer close(tokens)
		defer stream.Close()
		for {
			chunk, recvErr := stream.Recv()
			if errors.Is(recvErr, io.EOF) {
				return
			}
			if recvErr != nil {
				log.Printf("[answer] stream recv failed for chat=%s: %v", chatID, recvErr)
				return
			}
			if chunk == nil || chunk.Content == "" {
				continue
			}
			select {
			case tokens <- chunk.Content:
			case <-ctx.Done():
				return
			}
		}
	})

	// Consumer: single writer of the collected token list. Emits one snapshot
	// per token, waits for the producer, then finalizes the persisted entry.
	go func() {
		defer close(frames)

		var collected []string
		for token := range tokens {
			collected = append(collected, token)
			snapshot := entry
			snapshot.Assistant = token
			select {
			case frames <- snapshot:
			case <-ctx.Done():
			}
		}
		wg.Wait()

		assistant := strings.Join(collected, "")
		if _, err := g.store.UpdateMessageByID(context.WithoutCancel(ctx), entry.MessageID, q.Question, assistant); err != nil {
			log.Printf("[answer] failed to finalize message %s: %v", entry.MessageID, err)
			return
		}
		log.Printf("[answer] finalized stream for chat=%s message=%s tokens=%d", chatID, entry.MessageID, len(collected))
	}()

	return frames, nil
}
