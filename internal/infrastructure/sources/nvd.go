package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"IncidentRadar/internal/domain"
	"IncidentRadar/internal/scanner"
)

const (
	nvdBaseURL        = "https://services.nvd.nist.gov/rest/json/cves/2.0"
	nvdDetailURL      = "https://nvd.nist.gov/vuln/detail/"
	nvdResultsPerPage = 10
	nvdDateLayout     = "2006-01-02T15:04:05.000Z"
	defaultWindowDays = 60
)

// NVDKeywords is the fixed vocabulary searched on every run.
var NVDKeywords = []string{"artificial intelligence", "llm", "prompt injection", "machine learning"}

// NVDScanner runs one keyword-scoped CVE search per vocabulary term.
type NVDScanner struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	keywords []string
	limiter  *rate.Limiter
	logger   *slog.Logger
}

var _ scanner.Scanner = (*NVDScanner)(nil)

// NewNVDScanner sizes its limiter to the public NVD quota (5 req / 30 s, 50 with a key).
func NewNVDScanner(client *http.Client, apiKey string, logger *slog.Logger) *NVDScanner {
	if client == nil {
		client = NewHTTPClient(0)
	}
	limiter := rate.NewLimiter(rate.Every(6*time.Second), 5)
	if apiKey != "" {
		limiter = rate.NewLimiter(rate.Every(600*time.Millisecond), 50)
	}
	return &NVDScanner{
		client:   client,
		baseURL:  nvdBaseURL,
		apiKey:   apiKey,
		keywords: NVDKeywords,
		limiter:  limiter,
		logger:   orDiscard(logger),
	}
}

func (n *NVDScanner) Name() domain.Source {
	return domain.SourceNVD
}

type nvdResponse struct {
	Vulnerabilities []struct {
		CVE *struct {
			ID           string `json:"id"`
			Published    string `json:"published"`
			Descriptions []struct {
				Lang  string `json:"lang"`
				Value string `json:"value"`
			} `json:"descriptions"`
		} `json:"cve"`
	} `json:"vulnerabilities"`
}

// Scan queries every keyword concurrently; failing keywords are skipped unless all fail.
func (n *NVDScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawItem, error) {
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	windowDays := req.WindowDays
	if windowDays <= 0 {
		windowDays = defaultWindowDays
	}
	end := now.UTC()
	start := end.Add(-time.Duration(windowDays) * 24 * time.Hour)

	results := make([][]domain.RawItem, len(n.keywords))
	failures := make([]error, len(n.keywords))

	var g errgroup.Group
	for i, keyword := range n.keywords {
		g.Go(func() error {
			items, err := n.query(ctx, keyword, start, end)
			if err != nil {
				n.logger.Warn("nvd keyword failed", "keyword", keyword, "error", err)
				failures[i] = fmt.Errorf("keyword %q: %w", keyword, err)
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	if len(n.keywords) > 0 && allFailed(failures) {
		return nil, errors.Join(failures...)
	}

	seen := map[string]struct{}{}
	var merged []domain.RawItem
	for _, chunk := range results {
		for _, item := range chunk {
			if _, ok := seen[item.ExternalID]; ok {
				continue
			}
			seen[item.ExternalID] = struct{}{}
			merged = append(merged, item)
		}
	}
	return merged, nil
}

func (n *NVDScanner) query(ctx context.Context, keyword string, start, end time.Time) ([]domain.RawItem, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("keywordSearch", keyword)
	params.Set("resultsPerPage", strconv.Itoa(nvdResultsPerPage))
	params.Set("pubStartDate", start.Format(nvdDateLayout))
	params.Set("pubEndDate", end.Format(nvdDateLayout))

	headers := map[string]string{}
	if n.apiKey != "" {
		headers["apiKey"] = n.apiKey
	}

	var body nvdResponse
	if err := fetchJSON(ctx, n.client, n.baseURL+"?"+params.Encode(), headers, &body); err != nil {
		return nil, err
	}

	items := make([]domain.RawItem, 0, len(body.Vulnerabilities))
	for _, vuln := range body.Vulnerabilities {
		if vuln.CVE == nil || vuln.CVE.ID == "" {
			continue
		}
		summary := ""
		for _, d := range vuln.CVE.Descriptions {
			if d.Lang == "en" {
				summary = d.Value
				break
			}
		}
		if summary == "" && len(vuln.CVE.Descriptions) > 0 {
			summary = vuln.CVE.Descriptions[0].Value
		}

		items = append(items, domain.RawItem{
			Source:      domain.SourceNVD,
			ExternalID:  vuln.CVE.ID,
			Title:       vuln.CVE.ID + " (NVD)",
			URL:         nvdDetailURL + vuln.CVE.ID,
			Summary:     normalizeWhitespace(summary),
			PublishedAt: parseTimestamp(vuln.CVE.Published),
		})
	}
	return items, nil
}

func allFailed(errs []error) bool {
	for _, err := range errs {
		if err == nil {
			return false
		}
	}
	return true
}
