package usecase

import (
	"context"
	"log/slog"
	"time"

	"IncidentRadar/internal/ports"
)

// Scheduler wires the interval driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	location *time.Location
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring runs. Ticks are
// converted to loc before slot selection and logging.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{driver: driver, pipeline: pipeline, location: loc, logger: logger}
}

// Start registers the scheduled run with the driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		trigger = trigger.In(s.location)
		result, err := s.pipeline.RunScheduled(ctx, trigger)
		if err != nil {
			s.logger.Error("scheduled run failed", "tick", trigger, "error", err)
			return
		}
		s.logger.Info("scheduled run complete",
			"tick", trigger,
			"run_id", result.RunID,
			"sources", result.Sources,
			"inserted", result.Inserted,
			"errors", len(result.Errors),
		)
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
