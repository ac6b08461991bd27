package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"IncidentRadar/internal/config"
	"IncidentRadar/internal/domain"
	"IncidentRadar/internal/httpapi"
	"IncidentRadar/internal/infrastructure/llm"
	"IncidentRadar/internal/infrastructure/scheduler"
	"IncidentRadar/internal/infrastructure/sources"
	"IncidentRadar/internal/infrastructure/storage"
	"IncidentRadar/internal/infrastructure/telegram"
	"IncidentRadar/internal/logging"
	"IncidentRadar/internal/policy"
	"IncidentRadar/internal/ports"
	"IncidentRadar/internal/scanner"
	"IncidentRadar/internal/usecase"
)

const shutdownTimeout = 15 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	closers   []io.Closer
}

// New builds the runnable application: connectors, storage, decision client,
// notifier and the pipeline on top of them.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	client := sources.NewHTTPClient(cfg.Sources.RequestTimeout)
	registry := scanner.NewRegistry()
	registry.Register(sources.NewHackerNewsScanner(client, baseLogger.With("component", "scanner.hn")))
	registry.Register(sources.NewNVDScanner(client, cfg.Sources.NVDAPIKey, baseLogger.With("component", "scanner.nvd")))
	registry.Register(sources.NewFeedScanner(client, cfg.Sources.RSSFeeds, baseLogger.With("component", "scanner.rss")))
	registry.Register(sources.NewAdvisoryScanner(client, cfg.Sources.GitHubToken, baseLogger.With("component", "scanner.ghsa")))
	registry.Register(sources.NewKEVScanner(client, baseLogger.With("component", "scanner.kev")))
	registry.Register(sources.NewEUVDScanner(client, baseLogger.With("component", "scanner.euvd")))

	source := sources.NewStrategySource(registry, cfg.Ingestion.HNMaxItems, cfg.Ingestion.NVDWindowDays, baseLogger.With("component", "source"))

	repo, err := a.openRepository(ctx)
	if err != nil {
		return nil, err
	}

	decider, err := llm.NewDecisionClient(ctx, cfg.Decision, baseLogger.With("component", "decision"))
	switch {
	case errors.Is(err, llm.ErrDisabled):
		baseLogger.Info("decision tier disabled", "reason", err)
		decider = nil
	case err != nil:
		a.Close()
		return nil, fmt.Errorf("decision client: %w", err)
	}
	if closer, ok := decider.(io.Closer); ok {
		a.closers = append(a.closers, closer)
	}

	deps := usecase.PipelineDeps{
		Source:      source,
		Repository:  repo,
		Decider:     decider,
		AutoPublish: policy.NewAutoPublish(cfg.AutoPublish.TrustedSources, domain.Severity(cfg.AutoPublish.MinSeverity)),
		Caps: domain.RuntimeCaps{
			HNMaxItems:       cfg.Ingestion.HNMaxItems,
			DecisionMaxCalls: cfg.Ingestion.DecisionMaxCalls,
			MaxEventsPerRun:  cfg.Ingestion.MaxEventsPerRun,
		},
		MaxAgeDays:   cfg.Ingestion.MaxEventAgeDays,
		EnableHN:     cfg.Sources.EnableHN,
		SplitEnabled: cfg.Sources.SplitEnabled,
		Logger:       baseLogger.With("component", "pipeline"),
	}
	// NewNotifier returns a nil pointer when unconfigured; keep the interface nil too.
	if notifier := telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID); notifier != nil {
		deps.Notifier = notifier
	}

	a.pipeline = usecase.NewPipeline(deps)
	a.scheduler = usecase.NewScheduler(
		scheduler.NewIntervalScheduler(cfg.Scheduler.Interval, false, baseLogger.With("component", "scheduler")),
		a.pipeline,
		cfg.Scheduler.Location(),
		baseLogger.With("component", "scheduler"),
	)
	return a, nil
}

func (a *Application) openRepository(ctx context.Context) (ports.EventRepository, error) {
	switch a.cfg.Database.Driver {
	case "postgres":
		repo, err := storage.NewPostgresRepository(ctx, a.cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = repo.Close()
			return nil, err
		}
		a.closers = append(a.closers, repo)
		return repo, nil
	case "sqlite", "":
		repo, err := storage.OpenSQLite(ctx, a.cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, repo)
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", a.cfg.Database.Driver)
	}
}

// Run executes one manual ingestion run.
func (a *Application) Run(ctx context.Context, opts usecase.RunOptions) (domain.RunResult, error) {
	return a.pipeline.Run(ctx, opts)
}

// RunScheduled executes the batch owned by the slot containing at.
func (a *Application) RunScheduled(ctx context.Context, at time.Time) (domain.RunResult, error) {
	return a.pipeline.RunScheduled(ctx, at.In(a.cfg.Scheduler.Location()))
}

// RunCron executes the source bound to a per-source cron expression.
func (a *Application) RunCron(ctx context.Context, expr string) (domain.RunResult, error) {
	return a.pipeline.RunCron(ctx, expr)
}

// Promote creates a manual draft for a stored event.
func (a *Application) Promote(ctx context.Context, eventID int64) (usecase.PromoteResult, error) {
	return a.pipeline.PromoteEvent(ctx, eventID)
}

// Serve starts the scheduler and the admin HTTP API, blocking until ctx ends.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           httpapi.NewRouter(a.pipeline, a.cfg.HTTP.AdminToken, a.logger.With("component", "http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown", "error", err)
	}
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		a.logger.Warn("scheduler stop", "error", err)
	}
	return runErr
}

// Close releases storage and decision client resources.
func (a *Application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("close", "error", err)
		}
	}
	a.closers = nil
}
