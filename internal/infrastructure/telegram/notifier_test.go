package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IncidentRadar/internal/domain"
)

func TestNewNotifierRequiresCredentials(t *testing.T) {
	t.Parallel()

	assert.Nil(t, NewNotifier("", "chat"))
	assert.Nil(t, NewNotifier("token", ""))
	assert.NotNil(t, NewNotifier("token", "chat"))
}

func TestPublishIncidentPostsForm(t *testing.T) {
	t.Parallel()

	type sent struct{ path, chat, text string }
	calls := make(chan sent, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		calls <- sent{path: r.URL.Path, chat: r.PostForm.Get("chat_id"), text: r.PostForm.Get("text")}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier("tok", "42")
	n.baseURL = srv.URL
	n.client = srv.Client()

	event := domain.StoredEvent{Title: "CVE-2026-0001 (NVD)", URL: "https://nvd.example/1", Severity: domain.SeverityHigh}
	require.NoError(t, n.PublishIncident(context.Background(), event, nil))

	first := <-calls
	assert.Equal(t, "/bottok/sendMessage", first.path)
	assert.Equal(t, "42", first.chat)
	assert.Equal(t, "[HIGH] CVE-2026-0001 (NVD)\nhttps://nvd.example/1", first.text)

	draft := &domain.DraftPost{XText: "short form"}
	require.NoError(t, n.PublishIncident(context.Background(), event, draft))
	assert.Equal(t, "short form", (<-calls).text)
}

func TestPublishIncidentReportsStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	n := NewNotifier("tok", "42")
	n.baseURL = srv.URL

	err := n.PublishIncident(context.Background(), domain.StoredEvent{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
