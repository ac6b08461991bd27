package relevance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"IncidentRadar/internal/domain"
)

func TestScoreRelevantIncident(t *testing.T) {
	t.Parallel()

	score := Score(
		"Prompt injection vulnerability found in enterprise LLM",
		"Security researchers disclosed data leak paths and exploit details.",
		domain.SourceRSS,
	)

	assert.GreaterOrEqual(t, score, Threshold)
	assert.LessOrEqual(t, score, 1.0)
}

func TestScoreHackerNewsReleaseIsNoise(t *testing.T) {
	t.Parallel()

	assert.Zero(t, Score("New AI model release", "benchmark results", domain.SourceHackerNews))

	_, ok := Classify(domain.RawItem{
		Source:  domain.SourceHackerNews,
		Title:   "New AI model release",
		Summary: "benchmark results",
	})
	assert.False(t, ok)
}

func TestHackerNewsNeedsIncidentAndNoNoise(t *testing.T) {
	t.Parallel()

	assert.True(t, IsRelevant("LLM agent exfiltration via crafted email", "", domain.SourceHackerNews))
	assert.False(t, IsRelevant("Show HN: LLM exploit playground", "", domain.SourceHackerNews))
	assert.False(t, IsRelevant("Kernel exploit found", "no machine learning here", domain.SourceHackerNews))
}

func TestSourcePolicies(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		title  string
		body   string
		source domain.Source
		want   bool
	}{
		{name: "nvd always relevant", title: "CVE-2025-0001 (NVD)", body: "buffer overflow in parser", source: domain.SourceNVD, want: true},
		{name: "ghsa needs ai", title: "Deserialization in pickle loader", body: "affects model hub", source: domain.SourceGHSA, want: true},
		{name: "ghsa without ai", title: "XSS in wiki", body: "stored xss", source: domain.SourceGHSA, want: false},
		{name: "kev needs ai", title: "CVE-2025-1111 (CISA KEV)", body: "Vendor Copilot - RCE", source: domain.SourceCISAKEV, want: true},
		{name: "euvd without ai", title: "Router flaw (EUVD)", body: "firmware bug", source: domain.SourceEUVD, want: false},
		{name: "rss needs both", title: "OpenAI ships new features", body: "faster responses", source: domain.SourceRSS, want: false},
		{name: "rss with both", title: "OpenAI plugin vulnerability", body: "", source: domain.SourceRSS, want: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, IsRelevant(tc.title, tc.body, tc.source))
		})
	}
}

func TestScoreFloorAndCeiling(t *testing.T) {
	t.Parallel()

	// relevant but few hits still scores the floor
	assert.Equal(t, Threshold, Score("CVE-2025-0002 (NVD)", "integer overflow", domain.SourceNVD))

	dense := "ai llm model agent chatgpt gemini copilot claude security vulnerability cve breach rce exploit malware"
	assert.Equal(t, 1.0, Score(dense, "", domain.SourceRSS))
}

func TestClassifyKeepsScore(t *testing.T) {
	t.Parallel()

	candidate, ok := Classify(domain.RawItem{
		Source:  domain.SourceRSS,
		Title:   "LLM jailbreak leads to data leak",
		Summary: "security advisory",
	})

	assert.True(t, ok)
	assert.GreaterOrEqual(t, candidate.Relevance, Threshold)
	assert.Equal(t, "LLM jailbreak leads to data leak", candidate.Title)
}
