package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"IncidentRadar/internal/domain"
	"IncidentRadar/internal/scanner"
)

// DefaultFeeds is used when no feed list is configured.
var DefaultFeeds = []string{
	"https://www.kb.cert.org/vuls/atomfeed/",
	"https://cert.europa.eu/publications/security-advisories-rss",
	"https://cert.europa.eu/publications/threat-intelligence-rss",
	"https://cloud.google.com/feeds/google-cloud-security-bulletins.xml",
	"https://aws.amazon.com/security/security-bulletins/rss/feed/",
	"https://ubuntu.com/security/notices/rss.xml",
}

// FeedScanner reads RSS and Atom feeds.
type FeedScanner struct {
	client *http.Client
	feeds  []string
	logger *slog.Logger
}

var _ scanner.Scanner = (*FeedScanner)(nil)

func NewFeedScanner(client *http.Client, feeds []string, logger *slog.Logger) *FeedScanner {
	if client == nil {
		client = NewHTTPClient(0)
	}
	if len(feeds) == 0 {
		feeds = DefaultFeeds
	}
	return &FeedScanner{client: client, feeds: feeds, logger: orDiscard(logger)}
}

func (f *FeedScanner) Name() domain.Source {
	return domain.SourceRSS
}

// Scan fetches all feeds concurrently. A failing feed contributes nothing;
// an error is returned only when every feed failed.
func (f *FeedScanner) Scan(ctx context.Context, _ scanner.Request) ([]domain.RawItem, error) {
	results := make([][]domain.RawItem, len(f.feeds))
	failures := make([]error, len(f.feeds))

	var g errgroup.Group
	for i, feedURL := range f.feeds {
		g.Go(func() error {
			items, err := f.readFeed(ctx, feedURL)
			if err != nil {
				f.logger.Warn("feed failed", "feed", feedURL, "error", err)
				failures[i] = fmt.Errorf("feed %s: %w", feedURL, err)
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	if len(f.feeds) > 0 && allFailed(failures) {
		return nil, errors.Join(failures...)
	}

	var merged []domain.RawItem
	for _, chunk := range results {
		merged = append(merged, chunk...)
	}
	return merged, nil
}

func (f *FeedScanner) readFeed(ctx context.Context, feedURL string) ([]domain.RawItem, error) {
	body, err := fetch(ctx, f.client, feedURL, map[string]string{
		"Accept": "application/rss+xml, application/atom+xml, application/xml, text/xml",
	})
	if err != nil {
		return nil, err
	}
	return parseFeed(body, feedURL)
}

// parseFeed maps RSS <item> and Atom <entry> rows; links resolve against feedURL.
func parseFeed(body []byte, feedURL string) ([]domain.RawItem, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]domain.RawItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry == nil {
			continue
		}
		title := stripMarkup(entry.Title)
		link := entry.Link
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0]
		}
		link = resolveLink(link, feedURL)
		if title == "" || link == "" {
			continue
		}

		summary := entry.Description
		if strings.TrimSpace(summary) == "" {
			summary = entry.Content
		}

		externalID := strings.TrimSpace(entry.GUID)
		if externalID == "" {
			externalID = link
		}
		if externalID == "" {
			externalID = title
		}

		items = append(items, domain.RawItem{
			Source:      domain.SourceRSS,
			ExternalID:  externalID,
			Title:       title,
			URL:         link,
			Summary:     stripMarkup(summary),
			PublishedAt: entryTime(entry),
		})
	}
	return items, nil
}

func entryTime(entry *gofeed.Item) *time.Time {
	for _, parsed := range []*time.Time{entry.PublishedParsed, entry.UpdatedParsed} {
		if parsed != nil && !parsed.IsZero() {
			utc := parsed.UTC()
			return &utc
		}
	}
	if ts := parseTimestamp(entry.Published); ts != nil {
		return ts
	}
	return parseTimestamp(entry.Updated)
}
