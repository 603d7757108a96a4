package stream

import (
	"context"
	"errors"
	"net/http"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	"github.com/campanio/backend/internal/apperr"
	"github.com/campanio/backend/internal/logger"
	"github.com/campanio/backend/internal/middleware"
	"github.com/campanio/backend/internal/model/chat"
	aiService "github.com/campanio/backend/internal/service/ai"
	dayService "github.com/campanio/backend/internal/service/day"
	"github.com/campanio/backend/pkg/utils"
)

var ErrAIUnavailable = apperr.External("chat service unavailable", nil)

// Replier produces the companion's reply to a conversation, streamed or in
// one piece.
type Replier interface {
	StreamReply(ctx context.Context, messages []chat.UIMessage, todayMood string) (*schema.StreamReader[*schema.Message], error)
	GenerateReply(ctx context.Context, messages []chat.UIMessage, todayMood string) (*schema.Message, error)
}

// Handler manages streaming AI responses via Server-Sent Events and WebSocket
type Handler struct {
	replier       Replier
	ledger        *dayService.Ledger
	allowedOrigin string
	log           *logger.Logger
}

// New creates a new stream handler. replier may be nil when no model is configured.
func New(replier Replier, ledger *dayService.Ledger, allowedOrigin string, log *logger.Logger) *Handler {
	return &Handler{
		replier:       replier,
		ledger:        ledger,
		allowedOrigin: allowedOrigin,
		log:           log.With("handler", "stream"),
	}
}

// RegisterRoutes 注册流式对话路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleSSE)
	r.Get("/chat/ws", h.handleWebSocket)
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event    string `json:"event"`
	Content  string `json:"content,omitempty"`
	Finished bool   `json:"finished,omitempty"`
	Error    string `json:"error,omitempty"`
}

// handleSSE streams the reply to {messages}. Validation failures are answered
// as plain JSON before the stream opens. Clients that send ?stream=false, or
// connections that cannot flush, get the whole reply as one JSON message.
func (h *Handler) handleSSE(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Messages []chat.UIMessage `json:"messages"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondAppError(w, err)
		return
	}

	ctx := r.Context()
	mood, err := h.prepare(ctx)
	if err != nil {
		utils.RespondAppError(w, err)
		return
	}

	sse, ok := utils.NewSSEWriter(w)
	if !ok || r.URL.Query().Get("stream") == "false" {
		h.respondWhole(w, r, payload.Messages, mood)
		return
	}

	stream, err := h.replier.StreamReply(ctx, payload.Messages, mood)
	if err != nil {
		utils.RespondAppError(w, err)
		return
	}

	sse.Open()
	h.sendSSE(sse, StreamResponse{Event: "start"})

	response, err := aiService.Collect(stream, func(delta string) {
		h.sendSSE(sse, StreamResponse{Event: "delta", Content: delta})
	})
	if err != nil {
		if !errors.Is(ctx.Err(), context.Canceled) {
			h.log.Warn("stream failed", "error", err)
		}
		h.sendSSE(sse, StreamResponse{Event: "error", Error: apperr.Message(err)})
		return
	}

	h.sendSSE(sse, StreamResponse{Event: "message", Content: response.Content})
	h.sendSSE(sse, StreamResponse{Event: "end", Finished: true})
}

func (h *Handler) respondWhole(w http.ResponseWriter, r *http.Request, messages []chat.UIMessage, mood string) {
	reply, err := h.replier.GenerateReply(r.Context(), messages, mood)
	if err != nil {
		utils.RespondAppError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, StreamResponse{Event: "message", Content: reply.Content, Finished: true})
}

// prepare checks that a reply can be produced and resolves today's mood.
func (h *Handler) prepare(ctx context.Context) (string, error) {
	if h.replier == nil {
		return "", ErrAIUnavailable
	}
	principal, ok := middleware.PrincipalFrom(ctx)
	if !ok {
		return "", dayService.ErrUserRequired
	}
	return h.todayMood(ctx, principal.UserID), nil
}

// openStream resolves today's mood and starts the completion.
func (h *Handler) openStream(ctx context.Context, messages []chat.UIMessage) (*schema.StreamReader[*schema.Message], error) {
	mood, err := h.prepare(ctx)
	if err != nil {
		return nil, err
	}
	return h.replier.StreamReply(ctx, messages, mood)
}

func (h *Handler) todayMood(ctx context.Context, userID string) string {
	if h.ledger == nil {
		return ""
	}
	d, err := h.ledger.FindDay(ctx, userID, h.ledger.Today())
	if err != nil {
		if !errors.Is(err, dayService.ErrDayNotFound) {
			h.log.Warn("load today's mood failed", "error", err)
		}
		return ""
	}
	return d.Mood
}

func (h *Handler) sendSSE(sse *utils.SSEWriter, response StreamResponse) {
	if err := sse.Send(response); err != nil {
		h.log.Debug("sse frame dropped", "event", response.Event, "error", err)
	}
}
