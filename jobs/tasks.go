package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSecurityEvent is the task type for security notification emails.
	TaskTypeSecurityEvent = "mail:security_event"
)

// SecurityEventPayload describes a security-relevant account transition that
// should be mailed to the account owner.
type SecurityEventPayload struct {
	IdentityID string    `json:"identity_id"`
	Event      string    `json:"event"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewSecurityEventTask constructs an Asynq task.
func NewSecurityEventTask(payload SecurityEventPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSecurityEvent, data), nil
}

// HandleSecurityEventTask processes TaskTypeSecurityEvent tasks. Template
// rendering and delivery are out of scope; the worker records the event.
func HandleSecurityEventTask(ctx context.Context, t *asynq.Task) error {
	var payload SecurityEventPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	fmt.Printf("[jobs] security event identity=%s event=%s at=%s\n",
		payload.IdentityID, payload.Event, payload.OccurredAt.Format(time.RFC3339))
	return nil
}
