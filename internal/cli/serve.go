package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"presales/internal/api"
	"presales/internal/dialogue"
	"presales/internal/extract"
	"presales/internal/guidance"
	"presales/internal/lead"
	"presales/internal/llm"
	"presales/internal/notify"
	"presales/internal/redis"
	"presales/internal/state"
	"presales/internal/storage"
	"presales/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat API server",
	Long: `Run the HTTP API. The server answers chat turns, serves session history,
guidance tables and captured leads, and exposes Prometheus metrics.

Examples:
  presales serve
  presales serve --addr :9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: server.address)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if seeded, err := seedGuidance(ctx); err != nil {
		return fmt.Errorf("seed guidance: %w", err)
	} else if seeded {
		log.Info("guidance tables seeded")
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		var err error
		rdb, err = redis.NewRedisClient(cfg.Redis)
		if err != nil {
			return fmt.Errorf("create redis client: %w", err)
		}
		defer rdb.Close()
	}

	store := state.NewStore(storage.NewConversationRepo(db, cfg.Database.Driver), rdb, log)
	store.Start(ctx)

	chat, err := llm.NewFromConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init chat model: %w", err)
	}

	retries := cfg.Extraction.MaxRetries
	if retries == 0 {
		retries = extract.NoRetries
	}
	extractorLLM, err := extract.NewLLM(chat, extract.LLMOptions{
		MaxRetries:  retries,
		BackoffBase: cfg.ExtractionBackoff(),
		CacheSize:   cfg.Extraction.CacheSize,
		MaxTokens:   cfg.Extraction.MaxTokens,
	}, log)
	if err != nil {
		return fmt.Errorf("init extractor: %w", err)
	}
	aggregator := lead.NewAggregator(extract.New(extract.DefaultChains(extractorLLM)), log)

	notifier, err := notify.FromConfig(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("init notifier: %w", err)
	}
	committer := lead.NewCommitter(
		storage.NewLeadRepo(db, cfg.Database.Driver),
		lead.Policy{RequireProjectInfo: cfg.Lead.RequireProjectInfo},
		notifier,
		log,
	)

	guide := guidance.NewStore(storage.NewGuidanceRepo(db, cfg.Database.Driver), log)

	orchestrator := dialogue.NewOrchestrator(store, chat, guide, aggregator, committer, dialogue.Options{
		SystemPrompt: dialogue.LoadSystemPrompt(cfg.Chat.SystemPromptPath, log),
		Temperature:  cfg.Chat.Temperature,
		MaxTokens:    cfg.Chat.MaxTokens,
		TurnTimeout:  cfg.TurnTimeout(),
	}, log)

	manager := worker.NewManager(orchestrator, worker.DispatcherConfig{
		MinWorkers:  cfg.Worker.MinWorkers,
		MaxWorkers:  cfg.Worker.MaxWorkers,
		QueueSize:   cfg.Worker.QueueSize,
		IdleTimeout: time.Duration(cfg.Worker.IdleTimeoutSeconds) * time.Second,
	}, log)
	defer manager.Stop()

	handlers := api.NewHandler(manager, orchestrator, guide, storage.NewLeadRepo(db, cfg.Database.Driver), db, cfg.Server.CORSOrigins, log)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	handlers.RegisterRoutes(router)

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Address
	}
	srv := &http.Server{Addr: addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", addr), zap.String("provider", cfg.Chat.Provider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.TurnTimeout()+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}
