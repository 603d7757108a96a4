package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/campanio/backend/internal/handler/chat"
	"github.com/campanio/backend/internal/handler/day"
	"github.com/campanio/backend/internal/handler/journal"
	"github.com/campanio/backend/internal/handler/mood"
	"github.com/campanio/backend/internal/handler/stream"
	"github.com/campanio/backend/internal/logger"
	middlewarePkg "github.com/campanio/backend/internal/middleware"
	chatService "github.com/campanio/backend/internal/service/chat"
	dayService "github.com/campanio/backend/internal/service/day"
	emotionService "github.com/campanio/backend/internal/service/emotion"
	journalService "github.com/campanio/backend/internal/service/journal"
	"github.com/campanio/backend/pkg/utils"
)

// Dependencies 路由所需的服务集合
type Dependencies struct {
	Guard         middlewarePkg.Authenticator
	Ledger        *dayService.Ledger
	Journal       *journalService.Service
	Chats         *chatService.Service
	Emotion       *emotionService.Service
	Replier       stream.Replier
	AllowedOrigin string
	Log           *logger.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigin))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	dayHandler := day.New(deps.Ledger)
	moodHandler := mood.New(deps.Journal, deps.Ledger, deps.Emotion)
	journalHandler := journal.New(deps.Journal)
	chatHandler := chat.New(deps.Chats, deps.Ledger)
	streamHandler := stream.New(deps.Replier, deps.Ledger, deps.AllowedOrigin, deps.Log)

	r.Route("/api", func(api chi.Router) {
		api.Use(middlewarePkg.RequireUser(deps.Guard))

		dayHandler.RegisterRoutes(api)
		moodHandler.RegisterRoutes(api)
		journalHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
	})

	return r
}
