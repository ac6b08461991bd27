package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"IncidentRadar/internal/domain"
	"IncidentRadar/internal/scanner"
)

const hackerNewsBaseURL = "https://hacker-news.firebaseio.com/v0"

// HackerNewsScanner reads the top stories and fetches each item's detail.
type HackerNewsScanner struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ scanner.Scanner = (*HackerNewsScanner)(nil)

// NewHackerNewsScanner wires an HTTP client; item fetches are throttled to 10 req/s.
func NewHackerNewsScanner(client *http.Client, logger *slog.Logger) *HackerNewsScanner {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &HackerNewsScanner{
		client:  client,
		baseURL: hackerNewsBaseURL,
		limiter: rate.NewLimiter(rate.Limit(10), 10),
		logger:  orDiscard(logger),
	}
}

func (h *HackerNewsScanner) Name() domain.Source {
	return domain.SourceHackerNews
}

type hnItem struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text"`
	Time  int64  `json:"time"`
}

// Scan returns up to req.MaxItems stories; rows without title or URL are skipped.
func (h *HackerNewsScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawItem, error) {
	if req.MaxItems <= 0 {
		return nil, nil
	}

	var ids []int64
	if err := fetchJSON(ctx, h.client, h.baseURL+"/topstories.json", nil, &ids); err != nil {
		return nil, fmt.Errorf("topstories: %w", err)
	}
	if len(ids) > req.MaxItems {
		ids = ids[:req.MaxItems]
	}

	slots := make([]*domain.RawItem, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			if err := h.limiter.Wait(ctx); err != nil {
				return nil
			}
			item, ok := h.fetchItem(ctx, id)
			if ok {
				slots[i] = &item
			}
			return nil
		})
	}
	_ = g.Wait()

	items := make([]domain.RawItem, 0, len(slots))
	for _, slot := range slots {
		if slot != nil {
			items = append(items, *slot)
		}
	}
	h.logger.Debug("hn items fetched", "requested", len(ids), "kept", len(items))
	return items, nil
}

func (h *HackerNewsScanner) fetchItem(ctx context.Context, id int64) (domain.RawItem, bool) {
	var row hnItem
	itemURL := h.baseURL + "/item/" + strconv.FormatInt(id, 10) + ".json"
	if err := fetchJSON(ctx, h.client, itemURL, nil, &row); err != nil {
		h.logger.Debug("hn item skipped", "id", id, "error", err)
		return domain.RawItem{}, false
	}
	if row.ID == 0 || row.Type != "story" || row.Title == "" || row.URL == "" {
		return domain.RawItem{}, false
	}

	var published *time.Time
	if row.Time > 0 {
		ts := time.Unix(row.Time, 0).UTC()
		published = &ts
	}

	return domain.RawItem{
		Source:      domain.SourceHackerNews,
		ExternalID:  strconv.FormatInt(row.ID, 10),
		Title:       normalizeWhitespace(row.Title),
		URL:         row.URL,
		Summary:     stripMarkup(row.Text),
		PublishedAt: published,
	}, true
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
