package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/campanio/backend/internal/config"
	"github.com/campanio/backend/internal/handler"
	"github.com/campanio/backend/internal/logger"
	"github.com/campanio/backend/internal/service/ai"
	"github.com/campanio/backend/internal/service/auth"
	"github.com/campanio/backend/internal/service/chat"
	"github.com/campanio/backend/internal/service/day"
	emotionservice "github.com/campanio/backend/internal/service/emotion"
	"github.com/campanio/backend/internal/service/journal"
	"github.com/campanio/backend/internal/store"
	"github.com/campanio/backend/pkg/utils"
)

var rootCmd = &cobra.Command{
	Use:   "campanio",
	Short: "Campanio wellness companion backend.",
	Long: `Campanio serves the journaling, mood tracking and companion chat API.

Running without a subcommand starts the HTTP server.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Load .env file
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync()

		db, err := store.Open(cfg.Database, log)
		if err != nil {
			return err
		}
		if err := store.AutoMigrate(db); err != nil {
			return err
		}
		log.Info("database schema is up to date", "driver", cfg.Database.Driver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func bootstrap() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	utils.SetLogger(log)
	return cfg, log, nil
}

func serve(ctx context.Context) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := store.Open(cfg.Database, log)
	if err != nil {
		return err
	}
	if err := store.AutoMigrate(db); err != nil {
		return err
	}

	ledger := day.NewLedger(db, day.WithLocation(cfg.Journal.Location))

	// Initialize AI service
	var aiService *ai.Service
	if cfg.AI.Enabled() {
		aiService, err = ai.NewService(ctx, cfg.AI, cfg.Journal.ReflectionTimeout, log)
		if err != nil {
			log.Warn("failed to initialize AI service, continuing without chat and reflections", "error", err)
			aiService = nil
		} else {
			log.Info("AI service initialized", "model", cfg.AI.Model)
		}
	} else {
		log.Warn("ark credentials not configured, chat and reflections are disabled")
	}

	var chatModel model.ChatModel
	if aiService != nil {
		chatModel = aiService.GetChatModel()
	}
	emotionSvc, err := emotionservice.NewService(ctx, chatModel, emotionservice.Config{
		Enabled: cfg.AI.MoodClassifier,
		Timeout: cfg.AI.ChatTimeout,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to initialize mood classifier: %w", err)
	}
	if cfg.AI.MoodClassifier && !emotionSvc.Enabled() {
		log.Warn("mood classifier requested but chat model unavailable, falling back to keywords")
	}

	guard, closeGuard, err := newGuard(ctx, cfg.Auth, log)
	if err != nil {
		return err
	}
	defer closeGuard()

	deps := handler.Dependencies{
		Guard:         guard,
		Ledger:        ledger,
		Chats:         chat.NewService(ledger, log),
		Emotion:       emotionSvc,
		AllowedOrigin: cfg.Server.AllowedOrigin,
		Log:           log,
	}
	if aiService != nil {
		deps.Journal = journal.NewService(ledger, aiService, log)
		deps.Replier = aiService
	} else {
		deps.Journal = journal.NewService(ledger, nil, log)
	}

	return startServer(ctx, cfg.Server, handler.NewRouter(deps), log)
}

// newGuard builds the session guard from whichever verifiers are configured.
func newGuard(ctx context.Context, cfg config.AuthConfig, log *logger.Logger) (*auth.Guard, func(), error) {
	verifiers := make([]auth.Verifier, 0, 2)
	closer := func() {}

	if v := auth.NewJWTVerifier(cfg.JWTSecret); v != nil {
		verifiers = append(verifiers, v)
		log.Info("JWT session verifier enabled")
	}
	if cfg.RedisURL != "" {
		sessions, err := auth.NewSessionStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect session store: %w", err)
		}
		verifiers = append(verifiers, sessions)
		closer = func() { _ = sessions.Close() }
		log.Info("Redis session verifier enabled")
	}

	return auth.NewGuard(cfg.CookieName, log, verifiers...), closer, nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, log *logger.Logger) error {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info("Campanio backend listening", "addr", addr)
	if err := runServer(ctx, srv); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
