package answer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/leduyhoang1994/quivr/internal/config"
	chatModel "github.com/leduyhoang1994/quivr/internal/model/chat"
	brainService "github.com/leduyhoang1994/quivr/internal/service/brain"
	promptService "github.com/leduyhoang1994/quivr/internal/service/prompt"
	memoryStore "github.com/leduyhoang1994/quivr/internal/storage/memory"
)

type fakeChatModel struct {
	content   string
	tokens    []string
	streamErr error
}

func (m *fakeChatModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	return schema.AssistantMessage(m.content, nil), nil
}

func (m *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	sr, sw := schema.Pipe[*schema.Message](len(m.tokens) + 1)
	go func() {
		defer sw.Close()
		for _, token := range m.tokens {
			sw.Send(schema.AssistantMessage(token, nil), nil)
		}
		if m.streamErr != nil {
			sw.Send(nil, m.streamErr)
		}
	}()
	return sr, nil
}

type fakeModelFactory struct {
	chatModel model.BaseChatModel
}

func (f fakeModelFactory) NewChatModel(context.Context, config.ModelSettings) (model.BaseChatModel, error) {
	return f.chatModel, nil
}

func setupFactory(m model.BaseChatModel) (*Factory, *memoryStore.Store) {
	store := memoryStore.NewStore()
	prompts := promptService.NewService(store, config.DefaultSystemMessage)
	brains := brainService.NewService(store, 5)
	return NewFactory(store, prompts, brains, fakeModelFactory{chatModel: m}), store
}

func TestGenerateAnswerPersistsSingleEntry(t *testing.T) {
	ctx := context.Background()
	factory, store := setupFactory(&fakeChatModel{content: "forty-two"})
	chatID := uuid.New()

	gen, err := factory.Select(nil).AnswerGenerator(ctx, Options{ChatID: chatID})
	if err != nil {
		t.Fatalf("AnswerGenerator failed: %v", err)
	}

	entry, err := gen.GenerateAnswer(ctx, chatID, chatModel.Question{Question: "what is the answer?"})
	if err != nil {
		t.Fatalf("GenerateAnswer failed: %v", err)
	}
	if entry.Assistant != "forty-two" {
		t.Fatalf("expected assistant %q, got %q", "forty-two", entry.Assistant)
	}
	if entry.UserMessage != "what is the answer?" {
		t.Fatalf("unexpected user message %q", entry.UserMessage)
	}

	history, err := store.GetHistory(ctx, chatID)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history))
	}
	if history[0].Assistant != "forty-two" {
		t.Fatalf("persisted assistant %q does not match response", history[0].Assistant)
	}
}

func TestGenerateStreamEmitsOneFramePerToken(t *testing.T) {
	ctx := context.Background()
	tokens := []string{"Hel", "lo", " world"}
	factory, store := setupFactory(&fakeChatModel{tokens: tokens})
	chatID := uuid.New()

	gen, err := factory.Select(nil).AnswerGenerator(ctx, Options{ChatID: chatID, Streaming: true})
	if err != nil {
		t.Fatalf("AnswerGenerator failed: %v", err)
	}

	frames, err := gen.GenerateStream(ctx, chatID, chatModel.Question{Question: "greet me"})
	if err != nil {
		t.Fatalf("GenerateStream failed: %v", err)
	}

	var received []chatModel.HistoryEntry
	for frame := range frames {
		received = append(received, frame)
	}
	if len(received) != len(tokens) {
		t.Fatalf("expected %d frames, got %d", len(tokens), len(received))
	}
	for i, frame := range received {
		if frame.Assistant != tokens[i] {
			t.Fatalf("frame %d: expected token %q, got %q", i, tokens[i], frame.Assistant)
		}
		if frame.MessageID != received[0].MessageID {
			t.Fatalf("frame %d carries a different message id", i)
		}
		if frame.UserMessage != "greet me" {
			t.Fatalf("frame %d: unexpected user message %q", i, frame.UserMessage)
		}
	}

	// The channel only closes after finalization, so the persisted entry must
	// hold the full concatenated answer.
	history, err := store.GetHistory(ctx, chatID)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history))
	}
	if want := strings.Join(tokens, ""); history[0].Assistant != want {
		t.Fatalf("expected finalized answer %q, got %q", want, history[0].Assistant)
	}
}

func TestGenerateStreamFinalizesPartialAnswerOnError(t *testing.T) {
	ctx := context.Background()
	tokens := []string{"one", "two", "three"}
	factory, store := setupFactory(&fakeChatModel{tokens: tokens, streamErr: errors.New("upstream hiccup")})
	chatID := uuid.New()

	gen, err := factory.Select(nil).AnswerGenerator(ctx, Options{ChatID: chatID, Streaming: true})
	if err != nil {
		t.Fatalf("AnswerGenerator failed: %v", err)
	}

	frames, err := gen.GenerateStream(ctx, chatID, chatModel.Question{Question: "count"})
	if err != nil {
		t.Fatalf("GenerateStream failed: %v", err)
	}

	count := 0
	for range frames {
		count++
	}
	if count != len(tokens) {
		t.Fatalf("expected %d frames before the error, got %d", len(tokens), count)
	}

	history, err := store.GetHistory(ctx, chatID)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history))
	}
	if want := "onetwothree"; history[0].Assistant != want {
		t.Fatalf("expected partial answer %q, got %q", want, history[0].Assistant)
	}
}

func TestGenerateStreamFinalizesPartialAnswerOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tokens := make([]string, 50)
	for i := range tokens {
		tokens[i] = "tok "
	}
	factory, store := setupFactory(&fakeChatModel{tokens: tokens})
	chatID := uuid.New()

	gen, err := factory.Select(nil).AnswerGenerator(ctx, Options{ChatID: chatID, Streaming: true})
	if err != nil {
		t.Fatalf("AnswerGenerator failed: %v", err)
	}

	frames, err := gen.GenerateStream(ctx, chatID, chatModel.Question{Question: "tell me everything"})
	if err != nil {
		t.Fatalf("GenerateStream failed: %v", err)
	}

	// Disconnect after the first frame, as a client closing the SSE
	// connection mid-answer would.
	first, ok := <-frames
	if !ok {
		t.Fatalf("expected at least one frame before cancelling")
	}
	if first.Assistant == "" {
		t.Fatalf("expected the first frame to carry a token")
	}
	cancel()
	for range frames {
	}

	// Finalization runs on a detached context, so the tokens delivered before
	// the disconnect must still be persisted.
	history, err := store.GetHistory(context.Background(), chatID)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history))
	}
	if history[0].Assistant == "" {
		t.Fatalf("expected a partial answer to be persisted after cancellation")
	}
	if full := strings.Join(tokens, ""); !strings.HasPrefix(full, history[0].Assistant) {
		t.Fatalf("persisted answer %q is not a prefix of the streamed answer", history[0].Assistant)
	}
}

func TestGenerateStreamConcurrentChatsStayIsolated(t *testing.T) {
	ctx := context.Background()
	tokens := []string{"alpha ", "beta ", "gamma"}
	factory, store := setupFactory(&fakeChatModel{tokens: tokens})

	chatIDs := []uuid.UUID{uuid.New(), uuid.New()}
	questions := []string{"first question", "second question"}

	var wg sync.WaitGroup
	for i := range chatIDs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			gen, err := factory.Select(nil).AnswerGenerator(ctx, Options{ChatID: chatIDs[i], Streaming: true})
			if err != nil {
				t.Errorf("chat %d: AnswerGenerator failed: %v", i, err)
				return
			}
			frames, err := gen.GenerateStream(ctx, chatIDs[i], chatModel.Question{Question: questions[i]})
			if err != nil {
				t.Errorf("chat %d: GenerateStream failed: %v", i, err)
				return
			}
			for range frames {
			}
		}(i)
	}
	wg.Wait()

	want := strings.Join(tokens, "")
	for i, chatID := range chatIDs {
		history, err := store.GetHistory(ctx, chatID)
		if err != nil {
			t.Fatalf("chat %d: GetHistory failed: %v", i, err)
		}
		if len(history) != 1 {
			t.Fatalf("chat %d: expected 1 history entry, got %d", i, len(history))
		}
		if history[0].UserMessage != questions[i] {
			t.Fatalf("chat %d: expected question %q, got %q", i, questions[i], history[0].UserMessage)
		}
		if history[0].Assistant != want {
			t.Fatalf("chat %d: expected answer %q, got %q", i, want, history[0].Assistant)
		}
	}
}

func TestGenerateStreamNoTokens(t *testing.T) {
	ctx := context.Background()
	factory, store := setupFactory(&fakeChatModel{})
	chatID := uuid.New()

	gen, err := factory.Select(nil).AnswerGenerator(ctx, Options{ChatID: chatID, Streaming: true})
	if err != nil {
		t.Fatalf("AnswerGenerator failed: %v", err)
	}

	frames, err := gen.GenerateStream(ctx, chatID, chatModel.Question{Question: "silence"})
	if err != nil {
		t.Fatalf("GenerateStream failed: %v", err)
	}
	for frame := range frames {
		t.Fatalf("expected no frames, got %+v", frame)
	}

	history, err := store.GetHistory(ctx, chatID)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected the placeholder entry to remain, got %d entries", len(history))
	}
	if history[0].Assistant != "" {
		t.Fatalf("expected empty answer, got %q", history[0].Assistant)
	}
}

func TestSelectStrategy(t *testing.T) {
	factory, _ := setupFactory(&fakeChatModel{})

	if _, ok := factory.Select(nil).(headlessStrategy); !ok {
		t.Fatalf("expected headless strategy for nil brain id")
	}
	brainID := uuid.New()
	if _, ok := factory.Select(&brainID).(brainStrategy); !ok {
		t.Fatalf("expected brain strategy for explicit brain id")
	}
}

func TestBrainStrategyRejectsUnknownBrain(t *testing.T) {
	ctx := context.Background()
	factory, _ := setupFactory(&fakeChatModel{})
	brainID := uuid.New()

	if err := factory.Select(&brainID).ValidateAuthorization(ctx, uuid.New()); err == nil {
		t.Fatalf("expected authorization to fail for unknown brain")
	}
}
