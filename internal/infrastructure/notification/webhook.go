package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	domainerrors "github.com/mkelleher/storefront-sentinel/internal/domain/errors"
)

// WebhookNotifier delivers alerts as JSON posts to a configured webhook.
// Actual mail fan-out to the recipients is the webhook consumer's job.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewWebhookNotifier creates the notifier. A zero timeout defaults to ten
// seconds.
func NewWebhookNotifier(url string, timeout time.Duration, logger *zap.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type alertPayload struct {
	Recipients []string  `json:"recipients"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	SentAt     time.Time `json:"sent_at"`
}

// Send posts one alert to the webhook.
func (n *WebhookNotifier) Send(ctx context.Context, recipients []string, subject, body string) error {
	payload, err := json.Marshal(alertPayload{
		Recipients: recipients,
		Subject:    subject,
		Body:       body,
		SentAt:     time.Now().UTC(),
	})
	if err != nil {
		return domainerrors.NewInternalError("encoding alert payload failed").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return domainerrors.NewInternalError("building alert request failed").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return domainerrors.NewNotificationError("alert webhook unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domainerrors.NewNotificationError("alert webhook returned " + resp.Status)
	}

	n.logger.Debug("alert delivered",
		zap.String("subject", subject),
		zap.Int("recipients", len(recipients)))
	return nil
}
