package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/xaenox/kg-note/internal/auth"
	"github.com/xaenox/kg-note/internal/bot"
	"github.com/xaenox/kg-note/internal/classifier"
	"github.com/xaenox/kg-note/internal/metrics"
	"github.com/xaenox/kg-note/internal/models"
	"github.com/xaenox/kg-note/internal/notes"
	"github.com/xaenox/kg-note/internal/server"
	"github.com/xaenox/kg-note/internal/storage"
	"github.com/xaenox/kg-note/pkg/config"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and, when configured, the Telegram bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// backends holds whatever storage could be brought up. notes and users are
// nil when only the flat category file is available.
type backends struct {
	categories storage.CategoryStore
	notes      storage.NoteStore
	users      storage.UserStore
	database   server.Pinger
	close      func() error
}

func openBackends(ctx context.Context, cfg *config.Config, logger *zap.Logger) backends {
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store := storage.NewMemoryStorage()
		return backends{categories: store, notes: store, users: store, database: store, close: store.Close}
	}

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	store, err := storage.NewPostgresStorage(connectCtx, databaseConfig(cfg), logger)
	if err != nil {
		logger.Warn("Database unavailable, falling back to the category file",
			zap.Error(err),
			zap.String("file", cfg.Categories.File))
		return backends{
			categories: storage.NewFileCategoryStore(cfg.Categories.File),
			close:      func() error { return nil },
		}
	}
	return backends{categories: store, notes: store, users: store, database: store, close: store.Close}
}

func newCategorizer(cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) (classifier.Categorizer, classifier.Assistant, bool) {
	if cfg.LLM.APIKey == "" {
		logger.Warn("No LLM API key configured, using keyword categorization")
		kc := classifier.NewKeywordCategorizer(cfg.LLM.MaxTags)
		return offlineCategorizer{kc, collector}, kc, false
	}

	gpt := classifier.NewGPTClassifier(classifier.GPTOptions{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	}, collector, logger)
	return gpt, gpt, true
}

// offlineCategorizer counts keyword categorizations under their own outcome.
type offlineCategorizer struct {
	*classifier.KeywordCategorizer
	metrics *metrics.Collector
}

func (c offlineCategorizer) Categorize(ctx context.Context, content string, page classifier.PageContext, existing []models.Category) models.Categorization {
	c.metrics.ObserveCategorization(metrics.OutcomeOffline)
	return c.KeywordCategorizer.Categorize(ctx, content, page, existing)
}

func newAuthService(ctx context.Context, cfg *config.Config, users storage.UserStore, logger *zap.Logger) (*auth.Service, error) {
	if cfg.UsingDevSecret() {
		logger.Warn("Using the development JWT secret, set JWT_SECRET before exposing this service")
	}
	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}

	var google auth.Verifier
	if cfg.Auth.GoogleClientID != "" {
		v, err := auth.NewIDTokenVerifier(ctx, cfg.Auth.GoogleClientID)
		if err != nil {
			return nil, err
		}
		google = v
	} else {
		logger.Warn("GOOGLE_CLIENT_ID not set, Google id token login disabled")
	}

	return auth.NewService(tokens, users, google, auth.NewUserinfoVerifier(), logger), nil
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	collector := metrics.NewCollector("kgnote")

	b := openBackends(ctx, cfg, logger)
	defer func() {
		if err := b.close(); err != nil {
			logger.Error("Failed to close storage", zap.Error(err))
		}
	}()

	categorizer, assistant, llmEnabled := newCategorizer(cfg, collector, logger)
	noteService := notes.NewService(b.categories, b.notes, categorizer, nil, collector, logger)

	authService, err := newAuthService(ctx, cfg, b.users, logger)
	if err != nil {
		return fmt.Errorf("failed to set up authentication: %w", err)
	}

	api := server.New(server.Deps{
		Auth:           authService,
		Notes:          noteService,
		Assistant:      assistant,
		Metrics:        collector,
		Database:       b.database,
		LLMEnabled:     llmEnabled,
		AllowedOrigins: cfg.Server.CORSOrigins,
		Logger:         logger,
	})

	if cfg.Telegram.Token != "" {
		tg, err := bot.New(cfg.Telegram.Token, noteService, logger)
		if err != nil {
			return err
		}
		go func() {
			if err := tg.Start(ctx); err != nil {
				logger.Error("Telegram bot stopped", zap.Error(err))
			}
		}()
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			zap.String("addr", httpServer.Addr),
			zap.String("environment", cfg.Environment))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
