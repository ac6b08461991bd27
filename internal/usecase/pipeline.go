package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"IncidentRadar/internal/dedup"
	"IncidentRadar/internal/domain"
	"IncidentRadar/internal/policy"
	"IncidentRadar/internal/ports"
	"IncidentRadar/internal/relevance"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source       ports.IncidentSource
	Repository   ports.EventRepository
	Decider      ports.DecisionClient
	Notifier     ports.Notifier
	AutoPublish  policy.AutoPublish
	Caps         domain.RuntimeCaps
	MaxAgeDays   int
	EnableHN     bool
	SplitEnabled bool
	Now          func() time.Time
	Logger       *slog.Logger
}

// Pipeline implements the incident-ingestion workflow.
type Pipeline struct {
	source       ports.IncidentSource
	repository   ports.EventRepository
	engine       *dedup.Engine
	notifier     ports.Notifier
	autoPublish  policy.AutoPublish
	caps         domain.RuntimeCaps
	maxAge       time.Duration
	enableHN     bool
	splitEnabled bool
	now          func() time.Time
	logger       *slog.Logger
}

// RunOptions narrows one run. Empty Sources means every enabled source;
// MaxEvents only lowers the configured per-run cap.
type RunOptions struct {
	Sources   []domain.Source
	MaxEvents int
}

// PromoteResult reports the draft created (or found) for a promoted event.
type PromoteResult struct {
	DraftID  int64 `json:"draftId"`
	Inserted bool  `json:"inserted"`
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	maxAgeDays := deps.MaxAgeDays
	if maxAgeDays <= 0 {
		maxAgeDays = 60
	}
	return &Pipeline{
		source:       deps.Source,
		repository:   deps.Repository,
		engine:       dedup.NewEngine(deps.Decider, logger.With("component", "dedup")),
		notifier:     deps.Notifier,
		autoPublish:  deps.AutoPublish,
		caps:         deps.Caps,
		maxAge:       time.Duration(maxAgeDays) * 24 * time.Hour,
		enableHN:     deps.EnableHN,
		splitEnabled: deps.SplitEnabled,
		now:          now,
		logger:       logger,
	}
}

// RunScheduled runs the source batch owned by the slot containing t.
func (p *Pipeline) RunScheduled(ctx context.Context, t time.Time) (domain.RunResult, error) {
	return p.runAllowlist(ctx, ScheduledSources(t, p.splitEnabled, p.enableHN))
}

// RunCron runs the single source bound to a per-source cron expression.
func (p *Pipeline) RunCron(ctx context.Context, expr string) (domain.RunResult, error) {
	sources, ok := SourcesForCron(expr, p.enableHN)
	if !ok {
		return domain.RunResult{}, fmt.Errorf("unknown cron expression %q", expr)
	}
	return p.runAllowlist(ctx, sources)
}

// runAllowlist treats an empty allowlist as a no-op run rather than "all sources".
func (p *Pipeline) runAllowlist(ctx context.Context, sources []domain.Source) (domain.RunResult, error) {
	if len(sources) == 0 {
		now := p.now()
		return domain.RunResult{RunID: uuid.NewString(), StartedAt: now, FinishedAt: now, Sources: []domain.Source{}, Errors: []string{}}, nil
	}
	return p.Run(ctx, RunOptions{Sources: sources})
}

// Run fetches, filters, deduplicates and stores one batch of incidents.
// Only a missing source or repository is fatal; everything else is recorded
// in the result's Errors.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (domain.RunResult, error) {
	if p.source == nil || p.repository == nil {
		return domain.RunResult{}, fmt.Errorf("pipeline is not wired: source and repository are required")
	}

	started := p.now()
	result := domain.RunResult{
		RunID:     uuid.NewString(),
		StartedAt: started,
		Sources:   p.resolveSources(opts.Sources),
		Errors:    []string{},
	}
	log := p.logger.With("run_id", result.RunID)
	log.Info("run started", "sources", result.Sources)

	recent, err := p.repository.ReadRecentEvents(ctx, dedup.SeedWindow)
	if err != nil {
		log.Warn("recent window unavailable", "error", err)
		result.Errors = append(result.Errors, fmt.Sprintf("recent events: %v", err))
		recent = nil
	}

	report, err := p.source.Fetch(ctx, result.Sources)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("fetch: %v", err))
	}
	for _, srcErr := range report.Errors {
		result.Errors = append(result.Errors, srcErr.Error())
	}
	result.Fetched = len(report.Items)

	items := p.prioritize(filterRecent(report.Items, started.Add(-p.maxAge)))
	limit := p.runCap(opts.MaxEvents)
	if len(items) > limit {
		result.Errors = append(result.Errors, fmt.Sprintf("run cap hit: processed %d/%d events", limit, len(items)))
		items = items[:limit]
	}
	result.Processed = len(items)

	state := dedup.NewRunState(recent, p.caps.DecisionMaxCalls)

	var (
		tasks     errgroup.Group
		notifyMu  sync.Mutex
		notifyErr []string
	)

	for _, item := range items {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("run interrupted: %v", ctx.Err()))
			break
		}

		outcome := p.processItem(ctx, state, item, &result)
		if outcome == nil || p.notifier == nil {
			continue
		}

		event, draft := outcome.event, outcome.draft
		tasks.Go(func() error {
			if err := p.notifier.PublishIncident(ctx, event, draft); err != nil {
				log.Warn("notification failed", "event_id", event.ID, "error", err)
				notifyMu.Lock()
				notifyErr = append(notifyErr, fmt.Sprintf("notify %d: %v", event.ID, err))
				notifyMu.Unlock()
			}
			return nil
		})
	}

	_ = tasks.Wait()
	result.Errors = append(result.Errors, notifyErr...)
	result.DecisionCalls = state.Calls()
	result.FinishedAt = p.now()

	log.Info("run finished",
		"fetched", result.Fetched,
		"processed", result.Processed,
		"relevant", result.Relevant,
		"inserted", result.Inserted,
		"deduped", result.Deduped,
		"drafts", result.DraftsCreated,
		"decision_calls", result.DecisionCalls,
		"errors", len(result.Errors),
	)
	return result, nil
}

type stored struct {
	event domain.StoredEvent
	draft *domain.DraftPost
}

// processItem runs one item through classification, dedup and persistence.
// It returns the stored event when a new row was written.
func (p *Pipeline) processItem(ctx context.Context, state *dedup.RunState, item domain.RawItem, result *domain.RunResult) *stored {
	candidate, ok := relevance.Classify(item)
	if !ok {
		return nil
	}
	result.Relevant++

	fingerprint := dedup.Fingerprint(item)
	if state.MarkSeen(fingerprint) {
		result.Deduped++
		return nil
	}

	verdict := p.engine.Check(ctx, state, item)
	result.Errors = append(result.Errors, verdict.Errors...)
	if verdict.Duplicate {
		p.logger.Debug("duplicate dropped", "title", item.Title, "tier", verdict.Tier, "match_id", verdict.Match.ID)
		result.Deduped++
		return nil
	}

	event := domain.StoredEvent{
		Source:      item.Source,
		ExternalID:  item.ExternalID,
		Title:       item.Title,
		URL:         item.URL,
		Summary:     item.Summary,
		PublishedAt: item.PublishedAt,
		Severity:    policy.InferSeverity(item.Title, item.Summary),
		Confidence:  policy.Confidence(candidate.Relevance),
		Fingerprint: fingerprint,
	}

	res, err := p.repository.InsertEventIfNew(ctx, event)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("store %s/%s: %v", item.Source, item.ExternalID, err))
		return nil
	}
	if !res.Inserted {
		result.Deduped++
		return nil
	}
	result.Inserted++
	event.ID = res.ID
	event.CreatedAt = p.now()
	state.Remember(event)

	out := &stored{event: event}
	if !p.autoPublish.ShouldPublish(event) {
		return out
	}

	draft := policy.BuildDraft(event, p.now(), true)
	draftRes, err := p.repository.InsertDraftIfNew(ctx, event.ID, draft)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("draft %d: %v", event.ID, err))
		return out
	}
	if draftRes.Inserted {
		result.DraftsCreated++
		draft.ID = draftRes.ID
		draft.EventID = event.ID
		out.draft = &draft
	}
	return out
}

// PromoteEvent creates a manual (unpublished) draft for a stored event.
func (p *Pipeline) PromoteEvent(ctx context.Context, eventID int64) (PromoteResult, error) {
	if p.repository == nil {
		return PromoteResult{}, fmt.Errorf("pipeline is not wired: repository is required")
	}

	event, err := p.repository.GetEvent(ctx, eventID)
	if err != nil {
		return PromoteResult{}, fmt.Errorf("load event: %w", err)
	}
	if event.Severity == "" {
		event.Severity = policy.InferSeverity(event.Title, event.Summary)
	}
	if event.Confidence <= 0 {
		event.Confidence = policy.Confidence(relevance.Score(event.Title, event.Summary, event.Source))
	}

	draft := policy.BuildDraft(event, p.now(), false)
	res, err := p.repository.InsertDraftIfNew(ctx, event.ID, draft)
	if err != nil {
		return PromoteResult{}, fmt.Errorf("insert draft: %w", err)
	}
	p.logger.Info("event promoted", "event_id", event.ID, "draft_id", res.ID, "inserted", res.Inserted)
	return PromoteResult{DraftID: res.ID, Inserted: res.Inserted}, nil
}

// GetDraft returns the draft attached to an event.
func (p *Pipeline) GetDraft(ctx context.Context, eventID int64) (domain.DraftPost, error) {
	if p.repository == nil {
		return domain.DraftPost{}, fmt.Errorf("pipeline is not wired: repository is required")
	}
	return p.repository.GetDraftByEvent(ctx, eventID)
}

func (p *Pipeline) resolveSources(requested []domain.Source) []domain.Source {
	if len(requested) == 0 {
		return EnabledSources(p.enableHN)
	}
	out := make([]domain.Source, 0, len(requested))
	for _, s := range requested {
		if s == domain.SourceHackerNews && !p.enableHN {
			continue
		}
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func (p *Pipeline) runCap(override int) int {
	limit := p.caps.MaxEventsPerRun
	if limit <= 0 {
		limit = override
	}
	if override > 0 {
		limit = min(limit, override)
	}
	return max(limit, 1)
}

// filterRecent drops undated items and items published before cutoff.
func filterRecent(items []domain.RawItem, cutoff time.Time) []domain.RawItem {
	out := make([]domain.RawItem, 0, len(items))
	for _, item := range items {
		if item.PublishedAt == nil || item.PublishedAt.Before(cutoff) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// prioritize orders newest first, keeping fetch order for equal timestamps.
func (p *Pipeline) prioritize(items []domain.RawItem) []domain.RawItem {
	slices.SortStableFunc(items, func(a, b domain.RawItem) int {
		return b.PublishedAt.Compare(*a.PublishedAt)
	})
	return items
}
