package policy

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IncidentRadar/internal/domain"
)

func TestInferSeverity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, domain.SeverityHigh, InferSeverity("Zero-day in agent runtime", ""))
	assert.Equal(t, domain.SeverityHigh, InferSeverity("Copilot flaw", "allows data exfiltration"))
	assert.Equal(t, domain.SeverityMedium, InferSeverity("CVE-2025-0001 (NVD)", "improper input validation"))
	assert.Equal(t, domain.SeverityLow, InferSeverity("Model card update", "documentation"))
}

func TestRankAndParse(t *testing.T) {
	t.Parallel()

	assert.Less(t, Rank(domain.SeverityLow), Rank(domain.SeverityMedium))
	assert.Less(t, Rank(domain.SeverityMedium), Rank(domain.SeverityHigh))
	assert.Equal(t, domain.SeverityMedium, ParseSeverity(" Medium "))
	assert.Equal(t, domain.SeverityHigh, ParseSeverity("urgent"))
}

func TestConfidenceClamp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.45, Confidence(0.4))
	assert.Equal(t, 0.99, Confidence(1))
	assert.Equal(t, 0.7, Confidence(0.7))
}

func TestShouldPublish(t *testing.T) {
	t.Parallel()

	high := domain.StoredEvent{Source: domain.SourceNVD, Severity: domain.SeverityHigh}
	medium := domain.StoredEvent{Source: domain.SourceNVD, Severity: domain.SeverityMedium}
	untrusted := domain.StoredEvent{Source: domain.SourceRSS, Severity: domain.SeverityHigh}

	strict := NewAutoPublish([]string{"NVD"}, domain.SeverityHigh)
	assert.True(t, strict.ShouldPublish(high))
	assert.False(t, strict.ShouldPublish(medium))
	assert.False(t, strict.ShouldPublish(untrusted))

	lowered := NewAutoPublish([]string{"nvd", " "}, domain.SeverityMedium)
	assert.True(t, lowered.ShouldPublish(medium))
	assert.False(t, lowered.ShouldPublish(domain.StoredEvent{Source: domain.SourceNVD, Severity: domain.SeverityLow}))
}

func TestBuildDraftAutoPublish(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.January, 14, 9, 0, 0, 0, time.UTC)
	event := domain.StoredEvent{
		Source:     domain.SourceNVD,
		ExternalID: "CVE-2026-12345",
		Title:      "CVE-2026-12345 (NVD)",
		URL:        "https://nvd.nist.gov/vuln/detail/CVE-2026-12345",
		Summary:    "Remote code execution in LLM gateway.",
		Severity:   domain.SeverityHigh,
		Confidence: 0.87,
	}

	draft := BuildDraft(event, now, true)

	assert.Equal(t, domain.DraftStatusPublished, draft.Status)
	assert.Equal(t, "AI security incident: CVE-2026-12345 (NVD)", draft.Headline)
	assert.Equal(t, "ai-security-incident-cve-2026-12345-nvd-cve-2026-12345", draft.Slug)
	require.NotNil(t, draft.PublishedAt)
	require.NotNil(t, draft.ApprovedAt)
	assert.True(t, draft.PublishedAt.Equal(now))
	assert.Contains(t, draft.LinkedInText, "Severity: HIGH | Confidence: 87%")
	assert.Contains(t, draft.LinkedInText, "Issue: Remote code execution in LLM gateway.")
	assert.True(t, strings.HasSuffix(draft.LinkedInText, draftTags))
	assert.LessOrEqual(t, len([]rune(draft.XText)), 280)
}

func TestBuildDraftManual(t *testing.T) {
	t.Parallel()

	draft := BuildDraft(domain.StoredEvent{
		Title:      "Agent hijack",
		URL:        "https://example.com",
		Severity:   domain.SeverityLow,
		Confidence: 0.5,
	}, time.Now(), false)

	assert.Equal(t, domain.DraftStatusDraft, draft.Status)
	assert.Empty(t, draft.Slug)
	assert.Nil(t, draft.PublishedAt)
	assert.Contains(t, draft.LinkedInText, "Issue: Agent hijack")
}

func TestShortenAndSlug(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", Shorten("short", 10))
	assert.Equal(t, "abcdefg...", Shorten("abcdefghijklmnop", 10))
	assert.Equal(t, "hello-world", Slugify("  Hello, World!  "))
	assert.Len(t, Slugify(strings.Repeat("a", 100)), 64)
	assert.Len(t, BuildSlug(strings.Repeat("word ", 40), strings.Repeat("id", 40)), 96)
}
