package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const webhookTimeout = time.Second

// WebhookNotifier forwards broadcast events to the dashboard's /api/webhook endpoint.
// Delivery is best effort: failures are logged and the event is dropped.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewWebhookNotifier creates a notifier for the dashboard at baseURL.
func NewWebhookNotifier(logger *zap.Logger, baseURL string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    strings.TrimRight(baseURL, "/") + "/api/webhook",
		client: &http.Client{Timeout: webhookTimeout},
		logger: logger,
	}
}

// Run forwards events from b until ctx is cancelled.
func (n *WebhookNotifier) Run(ctx context.Context, b *Broadcaster) error {
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			if err := n.Send(ctx, e); err != nil {
				n.logger.Warn("dashboard push failed", zap.String("event", e.Name), zap.Error(err))
			}
		}
	}
}

// Send posts a single event.
func (n *WebhookNotifier) Send(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}

	ctx, cancel := context.WithTimeout(ctx, webhookTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "post webhook")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	n.logger.Debug("dashboard push ok", zap.String("event", e.Name))

	return nil
}
