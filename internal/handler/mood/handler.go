package mood

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	analysis "github.com/campanio/backend/internal/analysis/mood"
	"github.com/campanio/backend/internal/apperr"
	"github.com/campanio/backend/internal/middleware"
	catalog "github.com/campanio/backend/internal/model/mood"
	dayService "github.com/campanio/backend/internal/service/day"
	emotionService "github.com/campanio/backend/internal/service/emotion"
	"github.com/campanio/backend/internal/service/journal"
	"github.com/campanio/backend/pkg/utils"
)

var errTextRequired = apperr.Validation("text is required")

// Handler 心情记录处理器
type Handler struct {
	journal *journal.Service
	ledger  *dayService.Ledger
	emotion *emotionService.Service
}

// New 创建心情处理器
func New(journalSvc *journal.Service, ledger *dayService.Ledger, emotion *emotionService.Service) *Handler {
	return &Handler{journal: journalSvc, ledger: ledger, emotion: emotion}
}

// RegisterRoutes 注册心情相关路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/mood", func(r chi.Router) {
		r.Post("/save", h.handleSave)
		r.Put("/edit", h.handleEdit)
		r.Get("/fetch-days", h.handleFetchDays)
		r.Get("/catalog", h.handleCatalog)
		r.Post("/suggest", h.handleSuggest)
		r.Post("/stress", h.handleStress)
	})
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Mood string `json:"mood"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondAppError(w, err)
		return
	}

	principal, _ := middleware.PrincipalFrom(r.Context())
	outcome, err := h.journal.SaveMood(r.Context(), principal.UserID, payload.Mood)
	if err != nil {
		utils.RespondAppError(w, err)
		return
	}

	message := "mood saved"
	if outcome.AlreadySaved {
		message = journal.ErrMoodAlreadySaved.Message
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"message":      message,
		"date":         outcome.Day.Date,
		"mood":         outcome.Day.Mood,
		"alreadySaved": outcome.AlreadySaved,
	})
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Date string `json:"date"`
		Mood string `json:"mood"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondAppError(w, err)
		return
	}

	principal, _ := middleware.PrincipalFrom(r.Context())
	updated, err := h.journal.EditMood(r.Context(), principal.UserID, payload.Date, payload.Mood)
	if err != nil {
		utils.RespondAppError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"message": "mood updated",
		"date":    updated.Date,
		"mood":    updated.Mood,
	})
}

// handleFetchDays 返回贡献日历所需的 (date, mood) 列表
func (h *Handler) handleFetchDays(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFrom(r.Context())
	days, err := h.ledger.ListMoods(r.Context(), principal.UserID)
	if err != nil {
		utils.RespondAppError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"days": days})
}

func (h *Handler) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{"moods": catalog.Catalog()})
}

// handleSuggest 根据日记文本推荐心情
func (h *Handler) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondAppError(w, err)
		return
	}
	if payload.Text == "" {
		utils.RespondAppError(w, errTextRequired)
		return
	}

	utils.RespondJSON(w, http.StatusOK, h.emotion.Suggest(r.Context(), payload.Text))
}

// handleStress 基于心情、睡眠与工作量估算压力等级
func (h *Handler) handleStress(w http.ResponseWriter, r *http.Request) {
	var payload analysis.StressInput
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondAppError(w, err)
		return
	}

	result, err := analysis.EstimateStress(payload)
	if err != nil {
		utils.RespondAppError(w, apperr.Validation(err.Error()))
		return
	}
	utils.RespondJSON(w, http.StatusOK, result)
}
