// Package notifxqueue dispatches notifications through the jobx queue
// instead of sending inline. The enqueue is cheap and durable; a worker
// picks the job up and performs the actual send, with jobx retrying
// transient provider failures.
package notifxqueue

import (
	"context"
	"encoding/json"

	"github.com/vantak/gatehouse/pkg/jobx"
	"github.com/vantak/gatehouse/pkg/notifx"
)

// JobTypeSendEmail is the jobx job type for queued email sends.
const JobTypeSendEmail = "send_email"

// QueueName is the jobx queue notifications land on.
const QueueName = "notifications"

type emailJob struct {
	Template string                 `json:"template,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
	Message  notifx.EmailMessage    `json:"message"`
}

// QueuedSender enqueues emails as jobx jobs. It mirrors the sending surface
// of notifx.Client so callers can swap between direct and queued dispatch.
type QueuedSender struct {
	jobs jobx.Enqueuer
}

// NewQueuedSender creates a sender over the given enqueuer.
func NewQueuedSender(jobs jobx.Enqueuer) *QueuedSender {
	return &QueuedSender{jobs: jobs}
}

// SendEmail enqueues a plain email send.
func (s *QueuedSender) SendEmail(ctx context.Context, msg notifx.EmailMessage) error {
	return s.enqueue(ctx, emailJob{Message: msg})
}

// SendTemplatedEmail enqueues a templated email send. Rendering happens in
// the worker, against the template registry of the handling client.
func (s *QueuedSender) SendTemplatedEmail(ctx context.Context, templateName string, data interface{}, msg notifx.EmailMessage) error {
	payload := emailJob{Template: templateName, Message: msg}
	if data != nil {
		// Template data crosses the queue as JSON; only plain key/value
		// maps survive the round trip.
		raw, err := json.Marshal(data)
		if err != nil {
			return notifx.ErrRegistry.NewWithCause(notifx.CodeInvalidMessage, err)
		}
		if err := json.Unmarshal(raw, &payload.Data); err != nil {
			return notifx.ErrRegistry.NewWithCause(notifx.CodeInvalidMessage, err)
		}
	}
	return s.enqueue(ctx, payload)
}

func (s *QueuedSender) enqueue(ctx context.Context, payload emailJob) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return notifx.ErrRegistry.NewWithCause(notifx.CodeInvalidMessage, err)
	}
	_, err = s.jobs.Enqueue(ctx, jobx.Job{
		Type:    JobTypeSendEmail,
		Queue:   QueueName,
		Payload: raw,
	})
	return err
}

// RegisterHandler wires the worker side: jobs of type send_email are
// delivered through the given notifx client.
func RegisterHandler(jobs *jobx.Client, client *notifx.Client) {
	jobs.Register(JobTypeSendEmail, func(ctx context.Context, job *jobx.JobInfo) error {
		var payload emailJob
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return notifx.ErrRegistry.NewWithCause(notifx.CodeInvalidMessage, err)
		}
		if payload.Template != "" {
			return client.SendTemplatedEmail(ctx, payload.Template, payload.Data, payload.Message)
		}
		return client.SendEmail(ctx, payload.Message)
	})
}
