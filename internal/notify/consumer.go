package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/atlas-accounts/atlas-accounts/jobs"
)

// Consumer processes queued activation emails, attempting each delivery
// strategy in order.
type Consumer struct {
	deliverers []Deliverer
	logger     *slog.Logger
	deliveries *prometheus.CounterVec
}

// NewConsumer constructs a Consumer. Strategy order matters: the fallback
// must come last. Metrics registration is optional.
func NewConsumer(deliverers []Deliverer, logger *slog.Logger, registerer prometheus.Registerer) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_email_deliveries_total",
		Help: "Activation emails delivered, partitioned by channel and outcome.",
	}, []string{"channel", "outcome"})
	if registerer != nil {
		registerer.MustRegister(deliveries)
	}
	return &Consumer{deliverers: deliverers, logger: logger, deliveries: deliveries}
}

// HandleActivationEmail is the asynq handler for TaskActivationEmail.
// Malformed payloads are logged and dropped; delivery failures across every
// strategy return an error so asynq requeues the task (at-least-once,
// duplicates acceptable since re-displaying a code is harmless).
func (c *Consumer) HandleActivationEmail(ctx context.Context, t *asynq.Task) error {
	var payload jobs.ActivationEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		c.logger.Error("drop malformed email payload", slog.Any("error", err))
		return asynq.SkipRetry
	}
	if payload.Type != "activation_code" {
		c.logger.Warn("drop unknown message type", slog.String("type", payload.Type))
		return asynq.SkipRetry
	}
	if payload.Recipient == "" || payload.ActivationCode == "" || payload.UserID == "" {
		c.logger.Error("drop email payload with missing fields",
			slog.String("user_id", payload.UserID))
		return asynq.SkipRetry
	}

	html, text := RenderActivationEmail(payload.ActivationCode)
	email := Email{
		To:          payload.Recipient,
		Subject:     payload.Subject,
		Code:        payload.ActivationCode,
		HTMLContent: html,
		TextContent: text,
	}

	var lastErr error
	for _, d := range c.deliverers {
		if err := d.Deliver(ctx, email); err != nil {
			c.deliveries.WithLabelValues(d.Name(), "failure").Inc()
			c.logger.Warn("delivery attempt failed",
				slog.String("channel", d.Name()), slog.Any("error", err))
			lastErr = err
			continue
		}
		c.deliveries.WithLabelValues(d.Name(), "success").Inc()
		c.logger.Info("activation email delivered",
			slog.String("channel", d.Name()), slog.String("user_id", payload.UserID))
		return nil
	}
	if lastErr == nil {
		lastErr = errors.New("notify: no delivery strategies configured")
	}
	return lastErr
}
