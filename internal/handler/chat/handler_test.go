package chat

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/campanio/backend/internal/logger"
	"github.com/campanio/backend/internal/middleware"
	"github.com/campanio/backend/internal/model/chat"
	"github.com/campanio/backend/internal/service/auth"
	chatservice "github.com/campanio/backend/internal/service/chat"
	dayservice "github.com/campanio/backend/internal/service/day"
	"github.com/campanio/backend/internal/store/storetest"
)

func setupRouter(t *testing.T, userID string) *chi.Mux {
	t.Helper()
	ledger := dayservice.NewLedger(storetest.DB(t))
	handler := New(chatservice.NewService(ledger, logger.Nop()), ledger)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.WithPrincipal(r.Context(), auth.Principal{UserID: userID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	handler.RegisterRoutes(r)
	return r
}

func post(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func exchange(userID, assistantID string) []chat.UIMessage {
	parts := json.RawMessage(`[{"type":"text","text":"hi"}]`)
	return []chat.UIMessage{
		{ID: userID, Role: chat.RoleUser, Parts: parts},
		{ID: assistantID, Role: chat.RoleAssistant, Parts: parts},
	}
}

func TestSaveChatValid(t *testing.T) {
	r := setupRouter(t, "user-1")

	resp := post(r, "/chat/save-chat", map[string]any{
		"chatId":   "chat-1",
		"date":     "2025.02.01",
		"messages": exchange("u1", "a1"),
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var body struct {
		ChatID           string       `json:"chatId"`
		UserMessage      chat.Message `json:"userMessage"`
		AssistantMessage chat.Message `json:"assistantMessage"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ChatID != "chat-1" || body.UserMessage.ID != "u1" || body.AssistantMessage.ID != "a1" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestSaveChatMissingChatID(t *testing.T) {
	r := setupRouter(t, "user-1")

	resp := post(r, "/chat/save-chat", map[string]any{
		"date":     "2025.02.01",
		"messages": exchange("u1", "a1"),
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSaveChatInvalidBody(t *testing.T) {
	r := setupRouter(t, "user-1")

	req := httptest.NewRequest(http.MethodPost, "/chat/save-chat", bytes.NewReader([]byte(`{"messages":`)))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestFetchChatsUnknownDay(t *testing.T) {
	r := setupRouter(t, "user-1")

	resp := post(r, "/chat/fetch-chats", map[string]string{"date": "2025.02.01"})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
