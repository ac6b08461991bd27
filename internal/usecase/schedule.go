package usecase

import (
	"strings"
	"time"

	"IncidentRadar/internal/domain"
)

// ScheduleSlot is the width of one scheduled batch window.
const ScheduleSlot = 30 * time.Minute

var scheduledBatches = [][]domain.Source{
	{domain.SourceNVD, domain.SourceGHSA, domain.SourceCISAKEV},
	{domain.SourceRSS, domain.SourceEUVD, domain.SourceHackerNews},
}

var cronSources = map[string]domain.Source{
	"0 * * * *":  domain.SourceNVD,
	"10 * * * *": domain.SourceGHSA,
	"20 * * * *": domain.SourceCISAKEV,
	"30 * * * *": domain.SourceRSS,
	"40 * * * *": domain.SourceEUVD,
	"50 * * * *": domain.SourceHackerNews,
}

// ScheduledSources returns the allowlist for a scheduled tick at t. With the
// split enabled, consecutive 30-minute slots alternate between two batches.
func ScheduledSources(t time.Time, splitEnabled, enableHN bool) []domain.Source {
	if !splitEnabled {
		return EnabledSources(enableHN)
	}
	slot := t.Unix() / int64(ScheduleSlot/time.Second)
	batch := scheduledBatches[slot%int64(len(scheduledBatches))]
	return withoutDisabled(batch, enableHN)
}

// SourcesForCron maps the per-source cron expressions to their single source.
// Unknown expressions report false; a disabled HN slot yields an empty list.
func SourcesForCron(expr string, enableHN bool) ([]domain.Source, bool) {
	source, ok := cronSources[strings.TrimSpace(expr)]
	if !ok {
		return nil, false
	}
	return withoutDisabled([]domain.Source{source}, enableHN), true
}

// EnabledSources lists every source, minus HN when it is disabled.
func EnabledSources(enableHN bool) []domain.Source {
	return withoutDisabled(domain.AllSources(), enableHN)
}

func withoutDisabled(sources []domain.Source, enableHN bool) []domain.Source {
	out := make([]domain.Source, 0, len(sources))
	for _, s := range sources {
		if s == domain.SourceHackerNews && !enableHN {
			continue
		}
		out = append(out, s)
	}
	return out
}
