// Package jobs defines the background task contracts and the asynq worker.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueEmail carries activation code notifications. The name is part of
	// the deployment contract and configurable through EMAIL_QUEUE.
	QueueEmail = "email_notifications"

	// TaskActivationEmail delivers an activation code to a recipient.
	TaskActivationEmail = "email:activation_code"
	// TaskSweepCodes purges expired and used activation codes.
	TaskSweepCodes = "codes:sweep"
)

// ActivationEmailPayload is the queue message contract for code delivery.
type ActivationEmailPayload struct {
	Type           string  `json:"type"`
	Recipient      string  `json:"recipient"`
	ActivationCode string  `json:"activation_code"`
	UserID         string  `json:"user_id"`
	Subject        string  `json:"subject"`
	Template       string  `json:"template"`
	Timestamp      float64 `json:"timestamp"`
}

// NewActivationEmailTask constructs the asynq task for an activation email.
func NewActivationEmailTask(payload ActivationEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskActivationEmail, data), nil
}

// NewSweepCodesTask constructs the periodic sweep task.
func NewSweepCodesTask() *asynq.Task {
	return asynq.NewTask(TaskSweepCodes, nil)
}
