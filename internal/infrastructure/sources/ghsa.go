package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v80/github"

	"IncidentRadar/internal/domain"
	"IncidentRadar/internal/scanner"
)

const ghsaPageSize = 40

// AdvisoryScanner lists GitHub's global security advisories, newest first.
type AdvisoryScanner struct {
	client *github.Client
	logger *slog.Logger
}

var _ scanner.Scanner = (*AdvisoryScanner)(nil)

// NewAdvisoryScanner builds a go-github client; token is optional.
func NewAdvisoryScanner(httpClient *http.Client, token string, logger *slog.Logger) *AdvisoryScanner {
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}
	client := github.NewClient(httpClient)
	client.UserAgent = userAgent
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &AdvisoryScanner{client: client, logger: orDiscard(logger)}
}

func (a *AdvisoryScanner) Name() domain.Source {
	return domain.SourceGHSA
}

// Scan reads one page of advisories; rows need an id, a summary and an html_url.
func (a *AdvisoryScanner) Scan(ctx context.Context, _ scanner.Request) ([]domain.RawItem, error) {
	opts := &github.ListGlobalSecurityAdvisoriesOptions{
		ListCursorOptions: github.ListCursorOptions{PerPage: ghsaPageSize},
	}

	advisories, _, err := a.client.SecurityAdvisories.ListGlobalSecurityAdvisories(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list advisories: %w", err)
	}

	items := make([]domain.RawItem, 0, len(advisories))
	for _, adv := range advisories {
		if adv == nil {
			continue
		}
		id := adv.GetGHSAID()
		if id == "" {
			id = firstIdentifier(adv)
		}
		summary := strings.TrimSpace(adv.GetSummary())
		htmlURL := adv.GetHTMLURL()
		if id == "" || summary == "" || htmlURL == "" {
			continue
		}

		body := adv.GetDescription()
		if strings.TrimSpace(body) == "" {
			body = summary
		}

		var published *time.Time
		if ts := adv.GetPublishedAt(); !ts.IsZero() {
			utc := ts.UTC()
			published = &utc
		}

		items = append(items, domain.RawItem{
			Source:      domain.SourceGHSA,
			ExternalID:  id,
			Title:       fmt.Sprintf("%s (%s)", summary, id),
			URL:         htmlURL,
			Summary:     normalizeWhitespace(body),
			PublishedAt: published,
		})
	}

	a.logger.Debug("ghsa advisories fetched", "count", len(advisories), "kept", len(items))
	return items, nil
}

func firstIdentifier(adv *github.GlobalSecurityAdvisory) string {
	for _, ident := range adv.Identifiers {
		if ident != nil && ident.GetValue() != "" {
			return ident.GetValue()
		}
	}
	return adv.GetCVEID()
}
