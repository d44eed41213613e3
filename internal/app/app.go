package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"licitahub/internal/config"
	"licitahub/internal/consolidate"
	"licitahub/internal/dedup"
	"licitahub/internal/domain"
	"licitahub/internal/infrastructure/clients"
	"licitahub/internal/infrastructure/scheduler"
	"licitahub/internal/infrastructure/storage"
	"licitahub/internal/logging"
	"licitahub/internal/ports"
	"licitahub/internal/sources"
)

// Application wires configuration to the consolidation core and optional
// collaborators (audit storage, watch-mode scheduler).
type Application struct {
	cfg          config.Config
	logger       *slog.Logger
	manager      *sources.Manager
	orchestrator *consolidate.Orchestrator
	repository   ports.ListingRepository
	closeStorage func()
}

// New builds a runnable application instance.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	manager := sources.NewManager()
	if err := clients.Build(cfg.Sources, manager, baseLogger); err != nil {
		return nil, fmt.Errorf("build sources: %w", err)
	}

	orchestrator := consolidate.New(consolidate.Deps{
		Manager:       manager,
		Engine:        dedup.NewEngine(),
		GlobalTimeout: cfg.Consolidation.GlobalTimeout(),
		Logger:        baseLogger.With("component", "orchestrator"),
	})

	app := &Application{
		cfg:          cfg,
		logger:       baseLogger,
		manager:      manager,
		orchestrator: orchestrator,
	}

	if cfg.Database.DSN != "" {
		pool, err := storage.Connect(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect storage: %w", err)
		}
		app.repository = storage.NewPostgresRepository(pool)
		app.closeStorage = pool.Close
	}

	return app, nil
}

// RunOnce executes one consolidation and, when storage is configured,
// records the audit snapshot. A failed save is logged, never fatal.
func (a *Application) RunOnce(ctx context.Context, query domain.SearchQuery) domain.ConsolidatedResult {
	result := a.orchestrator.FetchAll(ctx, query)

	if a.repository != nil {
		if err := a.repository.SaveRun(ctx, query, result); err != nil {
			a.logger.Warn("audit snapshot not saved", "error", err)
		}
	}

	return result
}

// Watch re-runs the query on the configured refresh interval until the
// context is cancelled.
func (a *Application) Watch(ctx context.Context, query domain.SearchQuery, onResult func(domain.ConsolidatedResult)) error {
	driver := scheduler.NewInterval(a.cfg.Refresh.Interval())

	job := func(t time.Time) {
		result := a.RunOnce(ctx, query)
		a.logger.Info("refresh finished",
			"trigger", t.Format(time.RFC3339),
			"total", result.Total,
			"failed", result.SourcesFailed)
		if onResult != nil {
			onResult(result)
		}
	}

	if err := driver.Start(ctx, job); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	<-ctx.Done()
	return driver.Stop(context.Background())
}

// Status snapshots every registered source for diagnostics.
func (a *Application) Status() []sources.Status {
	return a.manager.Status()
}

// Close releases held resources.
func (a *Application) Close() {
	if a.closeStorage != nil {
		a.closeStorage()
	}
}
