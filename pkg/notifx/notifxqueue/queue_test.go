package notifxqueue_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantak/gatehouse/pkg/jobx"
	"github.com/vantak/gatehouse/pkg/notifx"
	"github.com/vantak/gatehouse/pkg/notifx/notifxqueue"
)

// captureEnqueuer records enqueued jobs.
type captureEnqueuer struct {
	jobs []jobx.Job
}

func (c *captureEnqueuer) Enqueue(_ context.Context, job jobx.Job) (string, error) {
	c.jobs = append(c.jobs, job)
	return "job-1", nil
}

func (c *captureEnqueuer) EnqueueDelayed(ctx context.Context, job jobx.Job, _ time.Duration) (string, error) {
	return c.Enqueue(ctx, job)
}

func TestSendTemplatedEmailEnqueues(t *testing.T) {
	enq := &captureEnqueuer{}
	sender := notifxqueue.NewQueuedSender(enq)

	err := sender.SendTemplatedEmail(context.Background(), "two_factor_reminder",
		map[string]interface{}{"Remaining": 2},
		notifx.EmailMessage{To: []string{"u@example.com"}, Subject: "heads up"})
	require.NoError(t, err)

	require.Len(t, enq.jobs, 1)
	job := enq.jobs[0]
	assert.Equal(t, notifxqueue.JobTypeSendEmail, job.Type)
	assert.Equal(t, notifxqueue.QueueName, job.Queue)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(job.Payload, &payload))
	assert.Equal(t, "two_factor_reminder", payload["template"])
}

func TestSendEmailEnqueues(t *testing.T) {
	enq := &captureEnqueuer{}
	sender := notifxqueue.NewQueuedSender(enq)

	err := sender.SendEmail(context.Background(), notifx.EmailMessage{
		To:      []string{"u@example.com"},
		Subject: "plain",
	})
	require.NoError(t, err)
	require.Len(t, enq.jobs, 1)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(enq.jobs[0].Payload, &payload))
	assert.NotContains(t, payload, "template")
}

// recordingSender captures messages delivered by the worker-side handler.
type recordingSender struct {
	mu   sync.Mutex
	msgs []notifx.EmailMessage
}

func (s *recordingSender) SendEmail(_ context.Context, msg notifx.EmailMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *recordingSender) all() []notifx.EmailMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notifx.EmailMessage(nil), s.msgs...)
}

// singleJobQueue hands its one job to the first worker that asks and
// reports the outcome on done.
type singleJobQueue struct {
	mu   sync.Mutex
	job  *jobx.JobInfo
	done chan error
}

func (q *singleJobQueue) Enqueue(context.Context, jobx.Job) (string, error) { return "", nil }
func (q *singleJobQueue) EnqueueDelayed(context.Context, jobx.Job, time.Duration) (string, error) {
	return "", nil
}
func (q *singleJobQueue) GetJob(context.Context, string) (*jobx.JobInfo, error) { return nil, nil }

func (q *singleJobQueue) Dequeue(ctx context.Context, _ []string, timeout time.Duration) (*jobx.JobInfo, error) {
	q.mu.Lock()
	j := q.job
	q.job = nil
	q.mu.Unlock()
	if j != nil {
		return j, nil
	}
	select {
	case <-ctx.Done():
	case <-time.After(timeout):
	}
	return nil, nil
}

func (q *singleJobQueue) Complete(context.Context, string) error {
	q.done <- nil
	return nil
}

func (q *singleJobQueue) Fail(_ context.Context, _ string, errMsg string) (bool, error) {
	q.done <- assert.AnError
	return false, nil
}

func (q *singleJobQueue) Retry(context.Context, string, time.Duration) error { return nil }
func (q *singleJobQueue) PromoteScheduled(context.Context, []string) error   { return nil }

func TestHandlerRoundTrip(t *testing.T) {
	// Producer side: enqueue a templated send.
	enq := &captureEnqueuer{}
	sender := notifxqueue.NewQueuedSender(enq)
	require.NoError(t, sender.SendTemplatedEmail(context.Background(), "greeting",
		map[string]interface{}{"Name": "Ada"},
		notifx.EmailMessage{To: []string{"u@example.com"}, Subject: "hello"}))

	// Worker side: replay the captured payload through the handler.
	provider := &recordingSender{}
	client := notifx.NewClient(provider)
	require.NoError(t, client.RegisterTemplate("greeting", `<p>Hi {{.Name}}</p>`))

	queue := &singleJobQueue{
		job: &jobx.JobInfo{
			ID:      "job-1",
			Type:    notifxqueue.JobTypeSendEmail,
			Queue:   notifxqueue.QueueName,
			Payload: enq.jobs[0].Payload,
		},
		done: make(chan error, 1),
	}
	jobs := jobx.NewClient(queue,
		jobx.WithQueues(notifxqueue.QueueName),
		jobx.WithConcurrency(1),
	)
	notifxqueue.RegisterHandler(jobs, client)

	ctx, cancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		_ = jobs.Start(ctx)
		close(workerDone)
	}()
	defer func() {
		cancel()
		<-workerDone
	}()

	select {
	case err := <-queue.done:
		require.NoError(t, err, "send should complete, not fail")
	case <-time.After(5 * time.Second):
		t.Fatal("handler never ran")
	}

	msgs := provider.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"u@example.com"}, msgs[0].To)
	assert.Equal(t, "hello", msgs[0].Subject)
	assert.Contains(t, msgs[0].HTMLBody, "Hi Ada")
}
