package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Notifier enqueues security-event tasks. It satisfies the notifier
// contracts of the authn and twofactor packages and never blocks the request
// path on queue errors.
type Notifier struct {
	client *asynq.Client
	logger *slog.Logger
}

// NewNotifier constructs a Notifier. A nil client disables enqueueing.
func NewNotifier(client *asynq.Client, logger *slog.Logger) *Notifier {
	return &Notifier{client: client, logger: logger}
}

// SecurityEvent enqueues one security notification.
func (n *Notifier) SecurityEvent(ctx context.Context, identityID uuid.UUID, event string) {
	if n == nil || n.client == nil {
		return
	}
	task, err := NewSecurityEventTask(SecurityEventPayload{
		IdentityID: identityID.String(),
		Event:      event,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		n.log("build security event task", err)
		return
	}
	if _, err := n.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault)); err != nil {
		n.log("enqueue security event", err)
	}
}

func (n *Notifier) log(msg string, err error) {
	if n.logger != nil {
		n.logger.Warn(msg, slog.Any("error", err))
	}
}
