package policy

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"IncidentRadar/internal/domain"
)

const (
	draftTags      = "#AISecurity #CyberSecurity #RiskManagement"
	nextStepLine   = "Suggested next step: validate exposure scope, patch or mitigate, and brief stakeholders."
	headlineMax    = 110
	issueMax       = 220
	shortIssueMax  = 140
	shortFormMax   = 280
	slugHeadline   = 64
	slugMax        = 96
	headlinePrefix = "AI security incident: "
)

var slugExpr = regexp.MustCompile(`[^a-z0-9]+`)

// BuildDraft renders the short-form post for an event.
// Auto-published drafts are created already published and carry a slug.
func BuildDraft(event domain.StoredEvent, now time.Time, autoPublish bool) domain.DraftPost {
	headline := Shorten(headlinePrefix+event.Title, headlineMax)
	issueSource := event.Summary
	if issueSource == "" {
		issueSource = event.Title
	}
	issue := Shorten(issueSource, issueMax)
	sourceLine := "Source: " + event.URL

	long := strings.Join([]string{
		headline,
		"",
		"Issue: " + issue,
		fmt.Sprintf("Severity: %s | Confidence: %d%%", strings.ToUpper(string(event.Severity)), int(math.Round(event.Confidence*100))),
		nextStepLine,
		sourceLine,
		"",
		draftTags,
	}, "\n")

	short := Shorten(strings.Join([]string{headline, Shorten(issue, shortIssueMax), sourceLine, draftTags}, "\n"), shortFormMax)

	draft := domain.DraftPost{
		Status:       domain.DraftStatusDraft,
		Headline:     headline,
		LinkedInText: long,
		XText:        short,
		Tags:         draftTags,
		CreatedAt:    now,
	}

	if autoPublish {
		ts := now
		draft.Status = domain.DraftStatusPublished
		draft.ApprovedAt = &ts
		draft.PublishedAt = &ts
		draft.Slug = BuildSlug(headline, event.ExternalID)
	}

	return draft
}

// BuildSlug joins a sanitized headline with the sanitized external id.
func BuildSlug(headline, externalID string) string {
	id := slugExpr.ReplaceAllString(strings.ToLower(externalID), "-")
	return truncate(Slugify(headline)+"-"+id, slugMax)
}

// Slugify keeps lower-case alphanumeric runs joined by dashes, capped at 64 chars.
func Slugify(value string) string {
	slug := slugExpr.ReplaceAllString(strings.ToLower(value), "-")
	return truncate(strings.Trim(slug, "-"), slugHeadline)
}

// Shorten cuts value to maxLength runes, marking truncation with "...".
func Shorten(value string, maxLength int) string {
	runes := []rune(value)
	if len(runes) <= maxLength {
		return value
	}
	keep := max(0, maxLength-3)
	return strings.TrimRight(string(runes[:keep]), " \t\n") + "..."
}

func truncate(value string, n int) string {
	if len(value) <= n {
		return value
	}
	return value[:n]
}
