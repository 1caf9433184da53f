package events

import (
	"context"
	"fmt"
	"time"

	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// WebhookPublisher POSTs events as JSON to a delivery service.
type WebhookPublisher struct {
	client *resty.Client
	url    string
	logger *zap.Logger
}

func NewWebhookPublisher(cfg *config.WebhookConfig, logger *zap.Logger) *WebhookPublisher {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json")

	return &WebhookPublisher{
		client: client,
		url:    cfg.URL,
		logger: logger,
	}
}

func (p *WebhookPublisher) Publish(ctx context.Context, event Event) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("X-Event-Type", string(event.Type)).
		SetHeader("X-Event-Id", event.ID).
		SetBody(event).
		Post(p.url)
	if err != nil {
		return fmt.Errorf("failed to post event: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode(), resp.String())
	}

	p.logger.Debug("Event delivered to webhook",
		zap.String("event_id", event.ID),
		zap.Int("status", resp.StatusCode()),
	)
	return nil
}
