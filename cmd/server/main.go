package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/promptvprompt/server-go/internal/ai"
	"github.com/promptvprompt/server-go/internal/config"
	"github.com/promptvprompt/server-go/internal/game"
	"github.com/promptvprompt/server-go/internal/matchmaking"
	"github.com/promptvprompt/server-go/internal/repository"
	"github.com/promptvprompt/server-go/internal/server"
	"github.com/promptvprompt/server-go/internal/user"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting prompt duel server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	if cfg.OpenAI.APIKey == "" {
		logger.Warn("openai api key not configured; judge requests will fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var (
		sessions game.SessionStore
		turns    game.TurnStore
		scenes   game.TemplateStore
		users    user.Store
	)

	if cfg.Database.URL != "" {
		db, dbErr := repository.NewDB(ctx, repository.DatabaseConfig{
			URL:             cfg.Database.URL,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
		}, logger)
		if dbErr != nil {
			logger.Fatal("failed to connect to database", zap.Error(dbErr))
		}
		defer db.Close()

		stats := db.Stats()
		logger.Info("database connection pool initialized",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
		)

		sessions = repository.NewGameRepository(db)
		turns = repository.NewTurnRepository(db)
		scenes = repository.NewTemplateRepository(db)
		users = repository.NewUserRepository(db)
	} else {
		logger.Warn("no database configured; using in-memory stores")
		sessions = repository.NewMemoryGameStore()
		turns = repository.NewMemoryTurnStore()
		templateStore := repository.NewMemoryTemplateStore(defaultTemplate())
		scenes = templateStore
		users = repository.NewMemoryUserStore()
	}

	userMgr := user.NewManager(users, logger)
	logger.Info("user manager initialized")

	queue := matchmaking.NewQueue(logger)
	logger.Info("matchmaking queue initialized")

	judge := ai.NewOpenAIJudge(ai.Config{
		APIKey:    cfg.OpenAI.APIKey,
		Model:     cfg.OpenAI.Model,
		MaxTokens: cfg.OpenAI.MaxTokens,
	}, turns, logger)
	logger.Info("ai judge initialized", zap.String("model", cfg.OpenAI.Model))

	gameSvc := game.NewService(sessions, turns, scenes, userMgr, judge, userMgr, game.Config{
		MaxTurnsPerPhase:   cfg.Game.MaxTurnsPerPhase,
		MaxCharsPerMessage: cfg.Game.MaxCharsPerMessage,
		TransitionWindow:   cfg.Game.TransitionWindow,
	}, logger)
	logger.Info("game service initialized",
		zap.Int("max_turns_per_phase", cfg.Game.MaxTurnsPerPhase),
		zap.Int("max_chars_per_message", cfg.Game.MaxCharsPerMessage),
	)

	srv := server.New(cfg.Server, gameSvc, queue, userMgr, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}

	logger.Info("shutting down gracefully...")
	cancel()

	logger.Info("prompt duel server stopped")
}

// defaultTemplate seeds the in-memory template store so a database-less dev
// server can create games.
func defaultTemplate() game.ScenarioTemplate {
	return game.ScenarioTemplate{
		ID:                uuid.NewString(),
		Name:              "Suspicious Guard",
		CharacterTemplate: "A suspicious castle guard protecting the {{location}} gate",
		SecretTemplate:    "The gate password is {{password}}",
		Variables: map[string]string{
			"location": "northern",
			"password": "blue42",
		},
		IsActive:  true,
		CreatedAt: time.Now(),
	}
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
