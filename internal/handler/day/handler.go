package day

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campanio/backend/internal/middleware"
	dayService "github.com/campanio/backend/internal/service/day"
	"github.com/campanio/backend/pkg/utils"
)

// Handler 日记录查询处理器
type Handler struct {
	ledger *dayService.Ledger
}

// New 创建日记录处理器
func New(ledger *dayService.Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// RegisterRoutes 注册日记录路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/day", h.handleGetDay)
}

// handleGetDay 按日期返回当天的心情、日记与回顾
func (h *Handler) handleGetDay(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Date string `json:"date"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondAppError(w, err)
		return
	}

	principal, _ := middleware.PrincipalFrom(r.Context())
	d, err := h.ledger.FindDay(r.Context(), principal.UserID, payload.Date)
	if err != nil {
		utils.RespondAppError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"message": "day found",
		"day":     d,
	})
}
