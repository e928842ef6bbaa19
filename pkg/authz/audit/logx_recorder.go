package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vantak/gatehouse/pkg/logx"
)

// LogxRecorder implements Recorder by writing structured logx entries. The
// downstream audit pipeline tails these; persistence format is out of scope.
type LogxRecorder struct{}

func NewLogxRecorder() *LogxRecorder {
	return &LogxRecorder{}
}

func (r *LogxRecorder) Record(_ context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}

	fields := logx.Fields{
		"audit_event": event.Name,
		"event_id":    event.ID,
		"severity":    string(event.Severity),
		"timestamp":   event.At,
	}
	if !event.UserID.IsEmpty() {
		fields["user_id"] = event.UserID
	}
	if !event.TenantID.IsEmpty() {
		fields["tenant_id"] = event.TenantID
	}
	if !event.ClientID.IsEmpty() {
		fields["client_id"] = event.ClientID
	}
	if event.Address != "" {
		fields["ip"] = event.Address
	}
	for k, v := range event.Details {
		fields[k] = v
	}

	entry := logx.WithFields(fields)
	switch event.Severity {
	case SeverityHigh:
		entry.Warn("Audit: " + event.Name)
	default:
		entry.Info("Audit: " + event.Name)
	}
}

// CollectingRecorder retains events in memory, for tests.
type CollectingRecorder struct {
	Events []Event
}

func NewCollectingRecorder() *CollectingRecorder {
	return &CollectingRecorder{}
}

func (r *CollectingRecorder) Record(_ context.Context, event Event) {
	r.Events = append(r.Events, event)
}

// Named returns the recorded events matching a name.
func (r *CollectingRecorder) Named(name string) []Event {
	var out []Event
	for _, e := range r.Events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
