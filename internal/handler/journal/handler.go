package journal

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campanio/backend/internal/apperr"
	"github.com/campanio/backend/internal/middleware"
	journalService "github.com/campanio/backend/internal/service/journal"
	"github.com/campanio/backend/pkg/utils"
)

// Handler 日记处理器
type Handler struct {
	journal *journalService.Service
}

// New 创建日记处理器
func New(journal *journalService.Service) *Handler {
	return &Handler{journal: journal}
}

// RegisterRoutes 注册日记路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/journal", func(r chi.Router) {
		r.Post("/save", h.handleSave)
		r.Put("/edit", h.handleEdit)
	})
}

// handleSave 保存当天日记并生成回顾。回顾失败时日记仍然保留。
func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Journal string `json:"journal"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondAppError(w, err)
		return
	}

	principal, _ := middleware.PrincipalFrom(r.Context())
	outcome, err := h.journal.SaveJournal(r.Context(), principal.UserID, payload.Journal)
	if err != nil {
		if outcome.Day.ID != "" && apperr.KindOf(err) == apperr.KindExternal {
			respondReflectionFailure(w, outcome.Day.Date, err)
			return
		}
		utils.RespondAppError(w, err)
		return
	}

	if outcome.AlreadySaved {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"message":      journalService.ErrJournalAlreadySaved.Message,
			"date":         outcome.Day.Date,
			"alreadySaved": true,
		})
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"message":      "journal saved",
		"date":         outcome.Day.Date,
		"alreadySaved": false,
		"reflection":   outcome.Day.Reflection,
	})
}

// handleEdit 覆盖日记并重新生成回顾
func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Date    string `json:"date"`
		Journal string `json:"journal"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondAppError(w, err)
		return
	}

	principal, _ := middleware.PrincipalFrom(r.Context())
	updated, err := h.journal.EditJournal(r.Context(), principal.UserID, payload.Date, payload.Journal)
	if err != nil {
		if updated.ID != "" && apperr.KindOf(err) == apperr.KindExternal {
			respondReflectionFailure(w, updated.Date, err)
			return
		}
		utils.RespondAppError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"message":    "journal updated",
		"date":       updated.Date,
		"reflection": updated.Reflection,
	})
}

func respondReflectionFailure(w http.ResponseWriter, date string, err error) {
	utils.RespondJSON(w, apperr.KindExternal.Status(), map[string]any{
		"error":        apperr.Message(err),
		"date":         date,
		"journalSaved": true,
	})
}
