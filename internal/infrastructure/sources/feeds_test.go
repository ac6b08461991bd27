package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IncidentRadar/internal/domain"
	"IncidentRadar/internal/scanner"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Advisories</title>
    <item>
      <title>LLM gateway &amp; prompt injection</title>
      <link>/advisories/1</link>
      <guid>adv-1</guid>
      <description><![CDATA[<p>Attackers <b>exfiltrate</b> data</p><script>x()</script>]]></description>
      <pubDate>Fri, 02 Jan 2026 15:04:05 GMT</pubDate>
    </item>
    <item>
      <title></title>
      <link>https://feeds.example.org/empty</link>
    </item>
    <item>
      <title>No guid here</title>
      <link>https://other.example.org/post</link>
    </item>
  </channel>
</rss>`

const atomFixture = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Vulnerability Notes</title>
  <entry>
    <title>VU#123 AI model server breach</title>
    <link href="/vuls/id/123"/>
    <id>tag:kb,2026:vu123</id>
    <summary>Model server &lt;b&gt;leaks&lt;/b&gt; tokens</summary>
    <updated>2026-01-03T10:00:00Z</updated>
  </entry>
</feed>`

func TestParseFeedResolvesRelativeLinks(t *testing.T) {
	t.Parallel()

	items, err := parseFeed([]byte(rssFixture), "https://feeds.example.org/sec/rss.xml")
	require.NoError(t, err)
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, domain.SourceRSS, first.Source)
	assert.Equal(t, "https://feeds.example.org/advisories/1", first.URL)
	assert.Equal(t, "adv-1", first.ExternalID)
	assert.Equal(t, "LLM gateway & prompt injection", first.Title)
	assert.Equal(t, "Attackers exfiltrate data", first.Summary)
	require.NotNil(t, first.PublishedAt)
	assert.Equal(t, 15, first.PublishedAt.Hour())

	assert.Equal(t, "https://other.example.org/post", items[1].ExternalID)
	assert.Nil(t, items[1].PublishedAt)
}

func TestParseFeedReadsAtomEntries(t *testing.T) {
	t.Parallel()

	items, err := parseFeed([]byte(atomFixture), "https://www.kb.cert.org/vuls/atomfeed/")
	require.NoError(t, err)
	require.Len(t, items, 1)

	entry := items[0]
	assert.Equal(t, "https://www.kb.cert.org/vuls/id/123", entry.URL)
	assert.Equal(t, "tag:kb,2026:vu123", entry.ExternalID)
	assert.Equal(t, "Model server leaks tokens", entry.Summary)
	require.NotNil(t, entry.PublishedAt)
	assert.Equal(t, 3, entry.PublishedAt.Day())
}

func TestFeedScanToleratesPartialFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/atom":
			fmt.Fprint(w, atomFixture)
		case "/garbage":
			fmt.Fprint(w, "not a feed")
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	feeds := NewFeedScanner(srv.Client(), []string{srv.URL + "/atom", srv.URL + "/down", srv.URL + "/garbage"}, nil)
	items, err := feeds.Scan(context.Background(), scanner.Request{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, srv.URL+"/vuls/id/123", items[0].URL)

	allDown := NewFeedScanner(srv.Client(), []string{srv.URL + "/down"}, nil)
	_, err = allDown.Scan(context.Background(), scanner.Request{})
	require.Error(t, err)
}

type fakeScanner struct {
	name  domain.Source
	items []domain.RawItem
	err   error
	req   scanner.Request
}

func (f *fakeScanner) Name() domain.Source { return f.name }

func (f *fakeScanner) Scan(_ context.Context, req scanner.Request) ([]domain.RawItem, error) {
	f.req = req
	return f.items, f.err
}

func TestStrategySourceIsolatesFailures(t *testing.T) {
	t.Parallel()

	hn := &fakeScanner{name: domain.SourceHackerNews, items: []domain.RawItem{{Title: "a", URL: "https://a"}}}
	nvd := &fakeScanner{name: domain.SourceNVD, err: errors.New("upstream returned 500")}
	kev := &fakeScanner{name: domain.SourceCISAKEV, items: []domain.RawItem{{Source: domain.SourceCISAKEV, Title: "b", URL: "https://b"}}}

	reg := scanner.NewRegistry()
	reg.Register(hn)
	reg.Register(nvd)
	reg.Register(kev)

	src := NewStrategySource(reg, 8, 45, nil)
	report, err := src.Fetch(context.Background(), []domain.Source{domain.SourceHackerNews, domain.SourceNVD, domain.SourceCISAKEV, domain.SourceEUVD})
	require.NoError(t, err)

	require.Len(t, report.Items, 2)
	assert.Equal(t, domain.SourceHackerNews, report.Items[0].Source)
	assert.Equal(t, domain.SourceCISAKEV, report.Items[1].Source)

	require.Len(t, report.Errors, 2)
	assert.Equal(t, "nvd: upstream returned 500", report.Errors[0].Error())
	assert.Equal(t, domain.SourceEUVD, report.Errors[1].Source)

	assert.Equal(t, 8, hn.req.MaxItems)
	assert.Equal(t, 45, hn.req.WindowDays)
}
