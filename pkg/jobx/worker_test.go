package jobx_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantak/gatehouse/pkg/jobx"
)

// memQueue is an in-memory jobx.Queue for worker-loop tests.
type memQueue struct {
	mu        sync.Mutex
	jobs      map[string]*jobx.JobInfo
	ready     chan string
	scheduled []string
}

func newMemQueue() *memQueue {
	return &memQueue{
		jobs:  make(map[string]*jobx.JobInfo),
		ready: make(chan string, 64),
	}
}

func (q *memQueue) Enqueue(_ context.Context, job jobx.Job) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := uuid.New().String()
	q.jobs[id] = &jobx.JobInfo{
		ID:         id,
		Type:       job.Type,
		Queue:      job.Queue,
		Payload:    job.Payload,
		Status:     jobx.StatusPending,
		MaxRetries: job.MaxRetries,
		CreatedAt:  time.Now(),
	}
	q.ready <- id
	return id, nil
}

func (q *memQueue) EnqueueDelayed(ctx context.Context, job jobx.Job, _ time.Duration) (string, error) {
	return q.Enqueue(ctx, job)
}

func (q *memQueue) GetJob(_ context.Context, jobID string) (*jobx.JobInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	info, ok := q.jobs[jobID]
	if !ok {
		return nil, jobx.ErrRegistry.New(jobx.CodeJobNotFound)
	}
	cp := *info
	return &cp, nil
}

func (q *memQueue) Dequeue(ctx context.Context, _ []string, timeout time.Duration) (*jobx.JobInfo, error) {
	select {
	case <-ctx.Done():
		return nil, nil
	case <-time.After(timeout):
		return nil, nil
	case id := <-q.ready:
		q.mu.Lock()
		defer q.mu.Unlock()
		info := q.jobs[id]
		info.Status = jobx.StatusActive
		info.Attempts++
		cp := *info
		return &cp, nil
	}
}

func (q *memQueue) Complete(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[jobID].Status = jobx.StatusCompleted
	return nil
}

func (q *memQueue) Fail(_ context.Context, jobID string, errMsg string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	info := q.jobs[jobID]
	retry := info.ShouldRetry()
	if retry {
		info.Status = jobx.StatusRetrying
	} else {
		info.Status = jobx.StatusFailed
	}
	info.Error = errMsg
	return retry, nil
}

func (q *memQueue) Retry(_ context.Context, jobID string, _ time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.scheduled = append(q.scheduled, jobID)
	return nil
}

func (q *memQueue) PromoteScheduled(_ context.Context, _ []string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range q.scheduled {
		q.ready <- id
	}
	q.scheduled = nil
	return nil
}

func (q *memQueue) status(jobID string) jobx.Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.jobs[jobID].Status
}

func startWorkers(t *testing.T, c *jobx.Client) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitForStatus(t *testing.T, q *memQueue, jobID string, want jobx.Status) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if q.status(jobID) == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("job %s never reached status %s (now %s)", jobID, want, q.status(jobID))
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWorkerProcessesJob(t *testing.T) {
	q := newMemQueue()
	c := jobx.NewClient(q,
		jobx.WithQueues("test"),
		jobx.WithConcurrency(1),
	)

	got := make(chan string, 1)
	c.Register("greet", func(_ context.Context, job *jobx.JobInfo) error {
		var payload map[string]string
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return err
		}
		got <- payload["name"]
		return nil
	})

	startWorkers(t, c)

	id, err := c.Enqueue(context.Background(), jobx.Job{
		Type:    "greet",
		Queue:   "test",
		Payload: json.RawMessage(`{"name":"ada"}`),
	})
	require.NoError(t, err)

	select {
	case name := <-got:
		assert.Equal(t, "ada", name)
	case <-time.After(5 * time.Second):
		t.Fatal("handler never ran")
	}
	waitForStatus(t, q, id, jobx.StatusCompleted)
}

func TestWorkerRetriesThenSucceeds(t *testing.T) {
	q := newMemQueue()
	c := jobx.NewClient(q,
		jobx.WithQueues("test"),
		jobx.WithConcurrency(1),
		jobx.WithRetryDelay(time.Millisecond),
	)

	var mu sync.Mutex
	attempts := 0
	c.Register("flaky", func(context.Context, *jobx.JobInfo) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return errors.New("transient")
		}
		return nil
	})

	startWorkers(t, c)

	id, err := c.Enqueue(context.Background(), jobx.Job{Type: "flaky", Queue: "test"})
	require.NoError(t, err)

	waitForStatus(t, q, id, jobx.StatusCompleted)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, attempts)
}

func TestWorkerExhaustsRetries(t *testing.T) {
	q := newMemQueue()
	c := jobx.NewClient(q,
		jobx.WithQueues("test"),
		jobx.WithConcurrency(1),
		jobx.WithRetryDelay(time.Millisecond),
	)

	c.Register("doomed", func(context.Context, *jobx.JobInfo) error {
		return errors.New("permanent")
	})

	startWorkers(t, c)

	id, err := c.Enqueue(context.Background(), jobx.Job{Type: "doomed", Queue: "test", MaxRetries: 2})
	require.NoError(t, err)

	waitForStatus(t, q, id, jobx.StatusFailed)
}

func TestUnhandledJobTypeFails(t *testing.T) {
	q := newMemQueue()
	c := jobx.NewClient(q,
		jobx.WithQueues("test"),
		jobx.WithConcurrency(1),
	)

	startWorkers(t, c)

	id, err := c.Enqueue(context.Background(), jobx.Job{Type: "mystery", Queue: "test", MaxRetries: 1})
	require.NoError(t, err)

	// A job with no registered handler is failed by the worker loop.
	deadline := time.After(5 * time.Second)
	for {
		s := q.status(id)
		if s == jobx.StatusFailed || s == jobx.StatusRetrying {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("job never failed (status %s)", s)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
