package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"IncidentRadar/internal/domain"
	"IncidentRadar/internal/scanner"
)

const (
	kevFeedURL   = "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json"
	cveRecordURL = "https://www.cve.org/CVERecord?id="
)

// KEVScanner reads CISA's known-exploited-vulnerabilities catalog.
type KEVScanner struct {
	client  *http.Client
	feedURL string
	logger  *slog.Logger
}

var _ scanner.Scanner = (*KEVScanner)(nil)

func NewKEVScanner(client *http.Client, logger *slog.Logger) *KEVScanner {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &KEVScanner{client: client, feedURL: kevFeedURL, logger: orDiscard(logger)}
}

func (k *KEVScanner) Name() domain.Source {
	return domain.SourceCISAKEV
}

type kevCatalog struct {
	Vulnerabilities []struct {
		CVEID            string `json:"cveID"`
		VendorProject    string `json:"vendorProject"`
		Product          string `json:"product"`
		ShortDescription string `json:"shortDescription"`
		DateAdded        string `json:"dateAdded"`
		DueDate          string `json:"dueDate"`
	} `json:"vulnerabilities"`
}

// Scan synthesizes a title per CVE since the catalog has no title field.
func (k *KEVScanner) Scan(ctx context.Context, _ scanner.Request) ([]domain.RawItem, error) {
	var catalog kevCatalog
	if err := fetchJSON(ctx, k.client, k.feedURL, nil, &catalog); err != nil {
		return nil, fmt.Errorf("kev catalog: %w", err)
	}

	items := make([]domain.RawItem, 0, len(catalog.Vulnerabilities))
	for _, row := range catalog.Vulnerabilities {
		cveID := strings.TrimSpace(row.CVEID)
		if cveID == "" {
			continue
		}

		vendor := normalizeWhitespace(row.VendorProject)
		product := normalizeWhitespace(row.Product)
		description := normalizeWhitespace(row.ShortDescription)
		summary := strings.TrimSpace(vendor + " " + product)
		if description != "" {
			summary += " - " + description
		}

		date := row.DateAdded
		if strings.TrimSpace(date) == "" {
			date = row.DueDate
		}

		items = append(items, domain.RawItem{
			Source:      domain.SourceCISAKEV,
			ExternalID:  cveID,
			Title:       cveID + " (CISA KEV)",
			URL:         cveRecordURL + url.QueryEscape(cveID),
			Summary:     normalizeWhitespace(summary),
			PublishedAt: parseTimestamp(date),
		})
	}

	k.logger.Debug("kev catalog fetched", "count", len(items))
	return items, nil
}
