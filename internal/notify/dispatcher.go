// Package notify queues and delivers activation code emails. The dispatcher
// publishes to the durable queue; the consumer tries delivery strategies in
// order until one succeeds.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/atlas-accounts/atlas-accounts/internal/shared"
	"github.com/atlas-accounts/atlas-accounts/jobs"
)

// DefaultSubject is the subject line for activation code emails.
const DefaultSubject = "Your Activation Code"

// Dispatcher publishes activation code messages to the email queue.
type Dispatcher struct {
	client   *asynq.Client
	queue    string
	logger   *slog.Logger
	enqueued *prometheus.CounterVec
}

// NewDispatcher constructs a Dispatcher publishing to the named queue.
// Metrics registration is optional.
func NewDispatcher(client *asynq.Client, queue string, logger *slog.Logger, registerer prometheus.Registerer) *Dispatcher {
	if queue == "" {
		queue = jobs.QueueEmail
	}
	if logger == nil {
		logger = slog.Default()
	}
	enqueued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_email_enqueued_total",
		Help: "Activation email tasks enqueued, partitioned by outcome.",
	}, []string{"outcome"})
	if registerer != nil {
		registerer.MustRegister(enqueued)
	}
	return &Dispatcher{client: client, queue: queue, logger: logger, enqueued: enqueued}
}

// EnqueueActivationCode publishes a delivery task. A broker failure surfaces
// as NotificationUnavailable so register and resend fail loudly instead of
// silently losing the code.
func (d *Dispatcher) EnqueueActivationCode(ctx context.Context, email, code string, userID uuid.UUID) error {
	task, err := jobs.NewActivationEmailTask(jobs.ActivationEmailPayload{
		Type:           "activation_code",
		Recipient:      email,
		ActivationCode: code,
		UserID:         userID.String(),
		Subject:        DefaultSubject,
		Template:       "activation_code",
		Timestamp:      float64(time.Now().UnixMilli()) / 1000,
	})
	if err != nil {
		d.enqueued.WithLabelValues("failure").Inc()
		return shared.ErrNotificationUnavailable.WithCause(err)
	}

	if _, err := d.client.EnqueueContext(ctx, task, asynq.Queue(d.queue)); err != nil {
		d.enqueued.WithLabelValues("failure").Inc()
		d.logger.Error("enqueue activation email", slog.Any("error", err))
		return shared.ErrNotificationUnavailable.WithCause(err)
	}

	d.enqueued.WithLabelValues("success").Inc()
	d.logger.Info("activation email queued", slog.String("user_id", userID.String()))
	return nil
}
