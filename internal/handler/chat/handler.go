package chat

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campanio/backend/internal/apperr"
	"github.com/campanio/backend/internal/middleware"
	"github.com/campanio/backend/internal/model/chat"
	chatService "github.com/campanio/backend/internal/service/chat"
	dayService "github.com/campanio/backend/internal/service/day"
	"github.com/campanio/backend/pkg/utils"
)

// Handler 聊天记录的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
	ledger  *dayService.Ledger
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, ledger *dayService.Ledger) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		ledger:  ledger,
	}
}

// RegisterRoutes 注册聊天记录相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/save-chat", h.handleSaveChat)
	r.Post("/chat/particular-chat", h.handleParticularChat)
	r.Post("/chat/fetch-chats", h.handleFetchDayChats)
	r.Get("/chat/fetch-chats", h.handleFetchAllChats)
}

// handleSaveChat 保存最后一轮用户与助手消息
func (h *Handler) handleSaveChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ChatID   string           `json:"chatId"`
		Date     string           `json:"date"`
		Messages []chat.UIMessage `json:"messages"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondAppError(w, err)
		return
	}

	principal, _ := middleware.PrincipalFrom(r.Context())
	exchange, err := h.chatSvc.AppendExchange(r.Context(), principal.UserID, payload.ChatID, payload.Date, payload.Messages)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"message":      apperr.Message(err),
				"chatId":       payload.ChatID,
				"alreadySaved": true,
			})
			return
		}
		utils.RespondAppError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"message":          "chat saved",
		"chatId":           exchange.Chat.ID,
		"userMessage":      exchange.UserMessage,
		"assistantMessage": exchange.AssistantMessage,
	})
}

// handleParticularChat 返回某一天的单个会话及其消息
func (h *Handler) handleParticularChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Date   string `json:"date"`
		ChatID string `json:"chatId"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondAppError(w, err)
		return
	}

	principal, _ := middleware.PrincipalFrom(r.Context())
	c, err := h.chatSvc.GetChat(r.Context(), principal.UserID, payload.Date, payload.ChatID)
	if err != nil {
		utils.RespondAppError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"chat": c})
}

// handleFetchDayChats 返回某一天的全部会话
func (h *Handler) handleFetchDayChats(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Date string `json:"date"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondAppError(w, err)
		return
	}

	principal, _ := middleware.PrincipalFrom(r.Context())
	d, err := h.chatSvc.DayChats(r.Context(), principal.UserID, payload.Date)
	if err != nil {
		utils.RespondAppError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"dayChats": d})
}

// handleFetchAllChats 按日期返回用户的全部会话列表（不含消息）
func (h *Handler) handleFetchAllChats(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFrom(r.Context())
	days, err := h.ledger.ListDaysWithChats(r.Context(), principal.UserID)
	if err != nil {
		utils.RespondAppError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"days": days})
}
