package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rryowa/storefront/internal/client"
)

const (
	defaultHTTPStatusThreshold = 300
	defaultWebhookTimeout      = 5 * time.Second

	EventSessionInvalidated = "session_invalidated"
)

type invalidationPayload struct {
	Event     string    `json:"event"`
	SignInURL string    `json:"sign_in_url"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}

// WebhookService tells an outside listener that the session is gone and the
// user has to be sent to the sign-in page.
type WebhookService struct {
	client     *http.Client
	log        *zap.SugaredLogger
	webhookURL string

	// sent is closed over by tests to wait for the async post.
	sent func(status int, err error)
}

func NewWebhookService(log *zap.SugaredLogger, webhookURL string) *WebhookService {
	return &WebhookService{
		client:     &http.Client{Timeout: defaultWebhookTimeout},
		log:        log,
		webhookURL: webhookURL,
	}
}

// Attach forwards every invalidation published on invalidations.
func (s *WebhookService) Attach(invalidations InvalidationSubscriber) func() {
	return invalidations.Subscribe(func(inv client.Invalidation) {
		s.NotifySessionInvalidated(context.Background(), inv)
	})
}

func (s *WebhookService) NotifySessionInvalidated(ctx context.Context, inv client.Invalidation) {
	if s.webhookURL == "" {
		return
	}

	reason := ""
	if inv.Reason != nil {
		reason = inv.Reason.Error()
	}
	data := invalidationPayload{
		Event:     EventSessionInvalidated,
		SignInURL: inv.SignInURL,
		Reason:    reason,
		At:        inv.At.UTC(),
	}

	go func() {
		status, err := s.post(context.WithoutCancel(ctx), data)
		if s.sent != nil {
			s.sent(status, err)
		}
	}()
}

func (s *WebhookService) post(ctx context.Context, data invalidationPayload) (int, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		s.log.Errorw("failed to marshal webhook payload", "error", err)
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		s.log.Errorw("failed to create webhook request", "error", err)
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Errorw("failed to send webhook", "error", err)
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= defaultHTTPStatusThreshold {
		s.log.Warnw("webhook returned non-2xx status", "status", resp.StatusCode)
	}
	return resp.StatusCode, nil
}
