package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"IncidentRadar/internal/domain"
	"IncidentRadar/internal/ports"
)

const telegramAPI = "https://api.telegram.org"

// Notifier announces stored incidents to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier returns nil when the bot is not configured.
func NewNotifier(botToken, chatID string) *Notifier {
	if botToken == "" || chatID == "" {
		return nil
	}
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  telegramAPI,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// PublishIncident posts a plain-text message; the short-form draft is used when present.
func (n *Notifier) PublishIncident(ctx context.Context, event domain.StoredEvent, draft *domain.DraftPost) error {
	if n == nil || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", formatIncident(event, draft))
	form.Set("disable_web_page_preview", "true")

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}
	return nil
}

func formatIncident(event domain.StoredEvent, draft *domain.DraftPost) string {
	if draft != nil && draft.XText != "" {
		return draft.XText
	}
	return fmt.Sprintf("[%s] %s\n%s", strings.ToUpper(string(event.Severity)), event.Title, event.URL)
}
