package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"ArticleForge/internal/config"
	"ArticleForge/internal/domain"
	"ArticleForge/internal/infrastructure/feed"
	"ArticleForge/internal/infrastructure/llm"
	"ArticleForge/internal/infrastructure/progress"
	"ArticleForge/internal/infrastructure/publish"
	"ArticleForge/internal/infrastructure/storage"
	"ArticleForge/internal/logging"
	"ArticleForge/internal/ports"
	"ArticleForge/internal/template"
	"ArticleForge/internal/usecase"
)

// Application wires configuration to the orchestrator and owns the
// process-lifetime resources (database handle).
type Application struct {
	cfg          config.Config
	logger       *slog.Logger
	db           *sql.DB
	recordStore  *storage.RecordStore
	orchestrator *usecase.Orchestrator
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	recordStore := storage.NewRecordStore(db)
	var records ports.RecordStore = recordStore
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		records = storage.NewRedisGuard(recordStore, client, cfg.Redis.LockTTL,
			baseLogger.With("component", "storage.redis"))
	}

	publisher, err := buildPublisher(cfg.Publish)
	if err != nil {
		return nil, err
	}

	sinks := progress.Multi{
		progress.NewLogSink(baseLogger.With("component", "progress")),
	}
	if cfg.Progress.WebhookURL != "" {
		sinks = append(sinks, progress.NewWebhookSink(cfg.Progress.WebhookURL,
			baseLogger.With("component", "progress.webhook")))
	}

	generator := llm.NewGenerator(llm.Config{
		Endpoint: cfg.Generator.Endpoint,
		Model:    cfg.Generator.Model,
		APIKey:   cfg.Generator.APIKey,
	})

	orchestrator := usecase.NewOrchestrator(usecase.Deps{
		Fetcher:   feed.NewFetcher(nil, baseLogger.With("component", "feed")),
		Resolver:  template.NewResolver(os.DirFS(cfg.Templates.Dir)),
		Extractor: generator,
		Generator: generator,
		Records:   records,
		Publisher: publisher,
		Progress:  sinks,
		Logger:    baseLogger.With("component", "orchestrator"),
	})

	return &Application{
		cfg:          cfg,
		logger:       baseLogger,
		db:           db,
		orchestrator: orchestrator,
		recordStore:  recordStore,
	}, nil
}

func buildPublisher(cfg config.PublishConfig) (ports.Publisher, error) {
	switch cfg.Target {
	case domain.PublishTargetWordPress:
		return publish.NewWordPressPublisher(publish.WordPressConfig{
			BaseURL:     cfg.WordPress.BaseURL,
			Username:    cfg.WordPress.Username,
			AppPassword: cfg.WordPress.AppPassword,
			Status:      cfg.WordPress.Status,
		}), nil
	case domain.PublishTargetMDX:
		return publish.NewMDXPublisher(publish.MDXConfig{
			APIBaseURL: cfg.MDX.APIBaseURL,
			Owner:      cfg.MDX.Owner,
			Repo:       cfg.MDX.Repo,
			Token:      cfg.MDX.Token,
			BaseBranch: cfg.MDX.BaseBranch,
			ContentDir: cfg.MDX.ContentDir,
		}), nil
	}
	return nil, fmt.Errorf("unknown publish target %q", cfg.Target)
}

// Run executes one orchestrator invocation per active feed, in config
// order, and stops on the first fatal error.
func (a *Application) Run(ctx context.Context) error {
	if err := a.recordStore.Migrate(ctx); err != nil {
		return err
	}

	options := domain.GenerationOptions{
		TargetLength: a.cfg.Run.TargetLength,
		Tone:         a.cfg.Run.Tone,
		Language:     a.cfg.Run.Language,
		Debug:        a.cfg.Run.Debug,
	}

	for _, source := range a.cfg.Feeds {
		if !source.Active {
			continue
		}

		outcome, err := a.orchestrator.Run(ctx, usecase.RunParams{
			Source:      source,
			TemplateID:  a.cfg.Run.TemplateID,
			Options:     options,
			MaxAttempts: a.cfg.Run.MaxAttempts,
		})
		if err != nil {
			return fmt.Errorf("feed %s: %w", source.ID, err)
		}

		a.logger.Info("run finished",
			"feed", source.ID,
			"status", string(outcome.Status),
			"attempts", outcome.AttemptsUsed,
			"duplicates", outcome.DuplicatesSeen,
			"ref", outcome.Publish.Ref(),
		)
	}
	return nil
}

// Close releases process-lifetime resources.
func (a *Application) Close() error {
	return a.db.Close()
}
