package domain

import (
	"fmt"
	"strings"
	"time"
)

// Source tags where an incident candidate came from.
type Source string

const (
	SourceHackerNews Source = "hn"
	SourceNVD        Source = "nvd"
	SourceGHSA       Source = "ghsa"
	SourceCISAKEV    Source = "cisa_kev"
	SourceEUVD       Source = "euvd"
	SourceRSS        Source = "rss"
)

// AllSources lists every supported source in canonical order.
func AllSources() []Source {
	return []Source{SourceHackerNews, SourceNVD, SourceRSS, SourceGHSA, SourceCISAKEV, SourceEUVD}
}

// ParseSource maps a user supplied name to a known source.
func ParseSource(value string) (Source, bool) {
	candidate := Source(strings.ToLower(strings.TrimSpace(value)))
	for _, s := range AllSources() {
		if s == candidate {
			return s, true
		}
	}
	return "", false
}

// ParseSources splits comma separated entries into known sources.
// Blank entries are ignored; an unknown name is an error.
func ParseSources(values []string) ([]Source, error) {
	var out []Source
	for _, entry := range values {
		for _, name := range strings.Split(entry, ",") {
			if strings.TrimSpace(name) == "" {
				continue
			}
			source, ok := ParseSource(name)
			if !ok {
				return nil, fmt.Errorf("unknown source %q", strings.TrimSpace(name))
			}
			out = append(out, source)
		}
	}
	return out, nil
}

// RawItem is a normalized upstream row produced by a connector.
type RawItem struct {
	Source      Source
	ExternalID  string
	Title       string
	URL         string
	Summary     string
	PublishedAt *time.Time
}

// Candidate is a raw item that passed relevance classification.
type Candidate struct {
	RawItem
	Relevance float64
}

// Severity is the coarse impact tier of an incident.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// StoredEvent is an incident proposed for, or read back from, persistence.
type StoredEvent struct {
	ID          int64
	Source      Source
	ExternalID  string
	Title       string
	URL         string
	Summary     string
	PublishedAt *time.Time
	Severity    Severity
	Confidence  float64
	Fingerprint string
	CreatedAt   time.Time
}

// Item returns the raw projection used by heuristics and decision prompts.
func (e StoredEvent) Item() RawItem {
	return RawItem{
		Source:      e.Source,
		ExternalID:  e.ExternalID,
		Title:       e.Title,
		URL:         e.URL,
		Summary:     e.Summary,
		PublishedAt: e.PublishedAt,
	}
}

// DraftStatus enumerates the publication workflow.
type DraftStatus string

const (
	DraftStatusDraft     DraftStatus = "draft"
	DraftStatusApproved  DraftStatus = "approved"
	DraftStatusPublished DraftStatus = "published"
)

// DraftPost is the short-form write-up attached to exactly one event.
type DraftPost struct {
	ID           int64       `json:"id"`
	EventID      int64       `json:"eventId"`
	Status       DraftStatus `json:"status"`
	Headline     string      `json:"headline"`
	LinkedInText string      `json:"linkedinText"`
	XText        string      `json:"xText"`
	Tags         string      `json:"tags"`
	Slug         string      `json:"slug,omitempty"`
	ApprovedAt   *time.Time  `json:"approvedAt,omitempty"`
	PublishedAt  *time.Time  `json:"publishedAt,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
}
