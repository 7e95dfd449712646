package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/leduyhoang1994/quivr/internal/config"
	middlewarePkg "github.com/leduyhoang1994/quivr/internal/middleware"
	chatModel "github.com/leduyhoang1994/quivr/internal/model/chat"
	"github.com/leduyhoang1994/quivr/internal/service/answer"
	brainService "github.com/leduyhoang1994/quivr/internal/service/brain"
	chatService "github.com/leduyhoang1994/quivr/internal/service/chat"
	promptService "github.com/leduyhoang1994/quivr/internal/service/prompt"
	usageService "github.com/leduyhoang1994/quivr/internal/service/usage"
	memoryStore "github.com/leduyhoang1994/quivr/internal/storage/memory"
)

const (
	testAPIKey = "test-key"
	testEmail  = "tester@example.com"
)

type fakeChatModel struct {
	content string
	tokens  []string
}

func (m *fakeChatModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	return schema.AssistantMessage(m.content, nil), nil
}

func (m *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	sr, sw := schema.Pipe[*schema.Message](len(m.tokens))
	go func() {
		defer sw.Close()
		for _, token := range m.tokens {
			sw.Send(schema.AssistantMessage(token, nil), nil)
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

func setupRouter(m model.BaseChatModel, dailyCredit int) (*chi.Mux, *memoryStore.Store) {
	store := memoryStore.NewStore()
	chatSvc := chatService.NewService(store)
	brainSvc := brainService.NewService(store, 5)
	promptSvc := promptService.NewService(store, config.DefaultSystemMessage)
	usageSvc := usageService.NewService(store, dailyCredit)
	factory := answer.NewFactory(store, promptSvc, brainSvc, fakeModelFactory{chatModel: m})

	ai := config.AIConfig{
		DefaultModel:        "gpt-3.5-turbo",
		SupportedModels:     []string{"gpt-3.5-turbo", "gpt-4"},
		FallbackTemperature: 0.1,
		FallbackMaxTokens:   512,
	}
	handler := New(chatSvc, brainSvc, usageSvc, factory, ai)

	r := chi.NewRouter()
	r.Use(middlewarePkg.Auth(map[string]string{testAPIKey: testEmail}))
	handler.RegisterRoutes(r)
	return r, store
}

func authedRequest(method, target string, body []byte) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	return req
}

func TestEndpointsRequireAuth(t *testing.T) {
	r, _ := setupRouter(&fakeChatModel{}, 100)

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestCreateAndListChats(t *testing.T) {
	r, _ := setupRouter(&fakeChatModel{}, 100)

	payload, _ := json.Marshal(map[string]string{"name": "support"})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, authedRequest(http.MethodPost, "/chat", payload))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var created chatModel.Chat
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode created chat: %v", err)
	}
	if created.Name != "support" {
		t.Fatalf("expected chat name %q, got %q", "support", created.Name)
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, authedRequest(http.MethodGet, "/chat", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var listed struct {
		Chats []chatModel.Chat `json:"chats"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &listed); err != nil {
		t.Fatalf("failed to decode chat list: %v", err)
	}
	if len(listed.Chats) != 1 || listed.Chats[0].ID != created.ID {
		t.Fatalf("expected the created chat in the list, got %+v", listed.Chats)
	}
}

func TestQuestionReturnsPersistedAnswer(t *testing.T) {
	r, store := setupRouter(&fakeChatModel{content: "the answer"}, 100)
	chatID := createChat(t, r)

	payload, _ := json.Marshal(map[string]string{"question": "what now?"})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, authedRequest(http.MethodPost, "/chat/"+chatID.String()+"/question", payload))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var entry chatModel.HistoryEntry
	if err := json.Unmarshal(resp.Body.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode history entry: %v", err)
	}
	if entry.Assistant != "the answer" {
		t.Fatalf("expected assistant %q, got %q", "the answer", entry.Assistant)
	}

	history, err := store.GetHistory(context.Background(), chatID)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(history) != 1 || history[0].Assistant != "the answer" {
		t.Fatalf("expected the answer to be persisted, got %+v", history)
	}
}

func TestQuestionRequiresBody(t *testing.T) {
	r, _ := setupRouter(&fakeChatModel{}, 100)
	chatID := createChat(t, r)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, authedRequest(http.MethodPost, "/chat/"+chatID.String()+"/question", []byte(`{}`)))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing question, got %d", resp.Code)
	}
}

func TestQuestionStreamEmitsSSEFrames(t *testing.T) {
	tokens := []string{"Hel", "lo", "!"}
	r, store := setupRouter(&fakeChatModel{tokens: tokens}, 100)
	chatID := createChat(t, r)

	payload, _ := json.Marshal(map[string]string{"question": "greet"})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, authedRequest(http.MethodPost, "/chat/"+chatID.String()+"/question/stream", payload))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if got := resp.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("expected SSE content type, got %q", got)
	}

	var frames []chatModel.HistoryEntry
	for _, line := range strings.Split(resp.Body.String(), "\n") {
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var entry chatModel.HistoryEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			t.Fatalf("failed to decode frame %q: %v", data, err)
		}
		frames = append(frames, entry)
	}
	if len(frames) != len(tokens) {
		t.Fatalf("expected %d frames, got %d", len(tokens), len(frames))
	}
	for i, frame := range frames {
		if frame.Assistant != tokens[i] {
			t.Fatalf("frame %d: expected token %q, got %q", i, tokens[i], frame.Assistant)
		}
	}

	history, err := store.GetHistory(context.Background(), chatID)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(history) != 1 || history[0].Assistant != "Hello!" {
		t.Fatalf("expected finalized answer, got %+v", history)
	}
}

func TestQuestionDailyLimit(t *testing.T) {
	r, _ := setupRouter(&fakeChatModel{content: "ok"}, 1)
	chatID := createChat(t, r)

	payload, _ := json.Marshal(map[string]string{"question": "first"})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, authedRequest(http.MethodPost, "/chat/"+chatID.String()+"/question", payload))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected first question to pass, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, authedRequest(http.MethodPost, "/chat/"+chatID.String()+"/question", payload))
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once the credit is spent, got %d", resp.Code)
	}
}

func TestAddQuestionAndAnswer(t *testing.T) {
	r, _ := setupRouter(&fakeChatModel{}, 100)
	chatID := createChat(t, r)

	payload, _ := json.Marshal(map[string]string{"question": "q", "answer": "a"})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, authedRequest(http.MethodPost, "/chat/"+chatID.String()+"/question/answer", payload))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, authedRequest(http.MethodGet, "/chat/"+chatID.String()+"/history", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var items []chatModel.ChatItem
	if err := json.Unmarshal(resp.Body.Bytes(), &items); err != nil {
		t.Fatalf("failed to decode history items: %v", err)
	}
	if len(items) != 1 || items[0].ItemType != chatModel.ItemTypeMessage {
		t.Fatalf("expected one message item, got %+v", items)
	}
	if items[0].Message.Assistant != "a" {
		t.Fatalf("expected the stored answer, got %q", items[0].Message.Assistant)
	}
}

func TestUpdateMetadataRejectsOtherUsersChat(t *testing.T) {
	r, store := setupRouter(&fakeChatModel{}, 100)

	other, err := store.CreateChat(context.Background(), chatModel.Chat{UserID: uuid.New(), Name: "not yours"})
	if err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}

	payload, _ := json.Marshal(map[string]string{"chat_name": "hijacked"})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, authedRequest(http.MethodPut, "/chat/"+other.ID.String()+"/metadata", payload))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestDeleteChat(t *testing.T) {
	r, store := setupRouter(&fakeChatModel{}, 100)
	chatID := createChat(t, r)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, authedRequest(http.MethodDelete, "/chat/"+chatID.String(), nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if _, err := store.GetChat(context.Background(), chatID); err == nil {
		t.Fatalf("expected the chat to be deleted")
	}
}

func TestMalformedBrainIDFallsBackToHeadless(t *testing.T) {
	r, _ := setupRouter(&fakeChatModel{content: "headless"}, 100)
	chatID := createChat(t, r)

	payload, _ := json.Marshal(map[string]string{"question": "hi"})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, authedRequest(http.MethodPost, "/chat/"+chatID.String()+"/question?brain_id=not-a-uuid", payload))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected malformed brain_id to be ignored, got %d: %s", resp.Code, resp.Body.String())
	}
}

func createChat(t *testing.T, r *chi.Mux) uuid.UUID {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{"name": "test chat"})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, authedRequest(http.MethodPost, "/chat", payload))
	if resp.Code != http.StatusOK {
		t.Fatalf("failed to create chat: %d %s", resp.Code, resp.Body.String())
	}
	var created chatModel.Chat
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode created chat: %v", err)
	}
	return created.ID
}

