// Package notify delivers operational alerts to an external webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const alertTimeout = 5 * time.Second

// WebhookNotifier posts alert lines to a chat webhook. Delivery is best
// effort and asynchronous so callers never block on a slow alert sink.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:        url,
		httpClient: &http.Client{Timeout: alertTimeout},
	}
}

// Alertf formats and delivers one alert line.
func (n *WebhookNotifier) Alertf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	go n.post(msg)
}

func (n *WebhookNotifier) post(msg string) {
	body, err := json.Marshal(map[string]string{"content": msg})
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal alert payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Msg("Failed to build alert request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("Failed to deliver alert")
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Warn().Int("status", resp.StatusCode).Msg("Alert webhook rejected message")
	}
}

// Nop is an AlertNotifier that drops everything. Used when no webhook is
// configured and in tests.
type Nop struct{}

func (Nop) Alertf(string, ...any) {}
