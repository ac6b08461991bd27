package sources

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"IncidentRadar/internal/domain"
	"IncidentRadar/internal/ports"
	"IncidentRadar/internal/scanner"
)

// StrategySource implements IncidentSource via registered scanner strategies.
type StrategySource struct {
	registry   *scanner.Registry
	maxItems   int
	windowDays int
	now        func() time.Time
	logger     *slog.Logger
}

var _ ports.IncidentSource = (*StrategySource)(nil)

// NewStrategySource wires the registry with per-run connector limits.
func NewStrategySource(reg *scanner.Registry, hnMaxItems, windowDays int, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry:   reg,
		maxItems:   hnMaxItems,
		windowDays: windowDays,
		now:        time.Now,
		logger:     orDiscard(log),
	}
}

// Fetch runs every requested connector concurrently. Each connector writes its
// own slot, so one failing source never cancels its siblings.
func (s *StrategySource) Fetch(ctx context.Context, requested []domain.Source) (ports.FetchReport, error) {
	if s.registry == nil {
		return ports.FetchReport{}, fmt.Errorf("scanner registry is not configured")
	}

	req := scanner.Request{
		Now:        s.now(),
		MaxItems:   s.maxItems,
		WindowDays: s.windowDays,
	}

	s.logger.Debug("fetch sources", "sources", requested)

	results := make([][]domain.RawItem, len(requested))
	failures := make([]error, len(requested))

	var g errgroup.Group
	for i, source := range requested {
		g.Go(func() error {
			strategy, err := s.registry.Resolve(source)
			if err != nil {
				failures[i] = err
				return nil
			}
			started := time.Now()
			items, err := strategy.Scan(ctx, req)
			if err != nil {
				failures[i] = err
				s.logger.Warn("source failed", "source", source, "error", err)
				return nil
			}
			for j := range items {
				if items[j].Source == "" {
					items[j].Source = source
				}
			}
			results[i] = items
			s.logger.Debug("source produced items", "source", source, "count", len(items), "took", time.Since(started))
			return nil
		})
	}
	_ = g.Wait()

	var report ports.FetchReport
	for i, source := range requested {
		if failures[i] != nil {
			report.Errors = append(report.Errors, ports.SourceError{Source: source, Err: failures[i]})
			continue
		}
		report.Items = append(report.Items, results[i]...)
	}

	s.logger.Debug("strategy source done", "total_items", len(report.Items), "failed", len(report.Errors))
	return report, nil
}
