package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"IncidentRadar/internal/domain"
	"IncidentRadar/internal/scanner"
)

const (
	euvdFeedURL   = "https://euvdservices.enisa.europa.eu/api/lastvulnerabilities"
	euvdDetailURL = "https://euvd.enisa.europa.eu/vulnerability/"
)

// EUVDScanner reads ENISA's latest vulnerabilities list.
type EUVDScanner struct {
	client  *http.Client
	feedURL string
	logger  *slog.Logger
}

var _ scanner.Scanner = (*EUVDScanner)(nil)

func NewEUVDScanner(client *http.Client, logger *slog.Logger) *EUVDScanner {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &EUVDScanner{client: client, feedURL: euvdFeedURL, logger: orDiscard(logger)}
}

func (e *EUVDScanner) Name() domain.Source {
	return domain.SourceEUVD
}

// Scan accepts a top-level array or an object wrapping items/vulnerabilities.
func (e *EUVDScanner) Scan(ctx context.Context, _ scanner.Request) ([]domain.RawItem, error) {
	body, err := fetch(ctx, e.client, e.feedURL, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, fmt.Errorf("euvd: %w", err)
	}

	rows, err := decodeEUVDRows(body)
	if err != nil {
		return nil, fmt.Errorf("euvd: %w", err)
	}

	items := make([]domain.RawItem, 0, len(rows))
	for _, row := range rows {
		id := strings.TrimSpace(pick(row, "cve", "cveId", "id"))
		title := strings.TrimSpace(pickOr(row, id, "title", "summary"))
		if id == "" || title == "" {
			continue
		}
		summary := normalizeWhitespace(pickOr(row, title, "description", "summary"))
		published := strings.TrimSpace(pick(row, "published", "publishedAt", "date", "datePublished"))

		items = append(items, domain.RawItem{
			Source:      domain.SourceEUVD,
			ExternalID:  id,
			Title:       title + " (EUVD)",
			URL:         euvdDetailURL + url.PathEscape(id),
			Summary:     summary,
			PublishedAt: parseTimestamp(published),
		})
	}

	e.logger.Debug("euvd rows fetched", "rows", len(rows), "kept", len(items))
	return items, nil
}

func decodeEUVDRows(body []byte) ([]map[string]any, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var rows []map[string]any
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode array: %w", err)
		}
		return rows, nil
	}

	var wrapper struct {
		Items           []map[string]any `json:"items"`
		Vulnerabilities []map[string]any `json:"vulnerabilities"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	if wrapper.Items != nil {
		return wrapper.Items, nil
	}
	return wrapper.Vulnerabilities, nil
}

// pick returns the first present, non-null key rendered as a string.
func pick(row map[string]any, keys ...string) string {
	for _, key := range keys {
		value, ok := row[key]
		if !ok || value == nil {
			continue
		}
		switch v := value.(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(v)
		default:
			continue
		}
	}
	return ""
}

func pickOr(row map[string]any, fallback string, keys ...string) string {
	for _, key := range keys {
		if value, ok := row[key]; ok && value != nil {
			return pick(row, key)
		}
	}
	return fallback
}
