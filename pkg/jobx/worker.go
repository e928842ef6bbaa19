package jobx

import (
	"context"
	"sync"
	"time"

	"github.com/vantak/gatehouse/pkg/logx"
)

// HandlerFunc processes one job. A nil return completes the job; an error
// fails it and triggers a retry while budget remains.
type HandlerFunc func(ctx context.Context, job *JobInfo) error

// Enqueuer enqueues jobs for processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) (string, error)
	EnqueueDelayed(ctx context.Context, job Job, delay time.Duration) (string, error)
}

// Queue is the backend contract: enqueue, blocking dequeue, and the state
// transitions driven by the worker loop.
type Queue interface {
	Enqueuer

	GetJob(ctx context.Context, jobID string) (*JobInfo, error)
	Dequeue(ctx context.Context, queues []string, timeout time.Duration) (*JobInfo, error)
	Complete(ctx context.Context, jobID string) error
	Fail(ctx context.Context, jobID string, errMsg string) (retry bool, err error)
	Retry(ctx context.Context, jobID string, delay time.Duration) error
	PromoteScheduled(ctx context.Context, queues []string) error
}

// Options configures the worker pool.
type Options struct {
	Queues         []string
	Concurrency    int
	PollInterval   time.Duration
	DequeueTimeout time.Duration
	RetryDelay     time.Duration
}

// Option mutates the worker Options.
type Option func(*Options)

// WithQueues sets the queues to process.
func WithQueues(queues ...string) Option {
	return func(o *Options) { o.Queues = queues }
}

// WithConcurrency sets the number of worker goroutines.
func WithConcurrency(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.Concurrency = n
		}
	}
}

// WithRetryDelay sets the delay before a failed job runs again.
func WithRetryDelay(d time.Duration) Option {
	return func(o *Options) { o.RetryDelay = d }
}

func defaultOptions() Options {
	return Options{
		Queues:         []string{"default"},
		Concurrency:    4,
		PollInterval:   time.Second,
		DequeueTimeout: 5 * time.Second,
		RetryDelay:     30 * time.Second,
	}
}

// Client enqueues jobs and runs the worker pool that processes them.
type Client struct {
	queue    Queue
	opts     Options
	handlers map[string]HandlerFunc
	mu       sync.RWMutex
	running  bool
}

// NewClient creates a job client over the given backend.
func NewClient(queue Queue, options ...Option) *Client {
	opts := defaultOptions()
	for _, o := range options {
		o(&opts)
	}
	return &Client{
		queue:    queue,
		opts:     opts,
		handlers: make(map[string]HandlerFunc),
	}
}

// Register adds the handler for a job type.
func (c *Client) Register(jobType string, handler HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[jobType] = handler
}

// Enqueue submits a job for immediate processing.
func (c *Client) Enqueue(ctx context.Context, job Job) (string, error) {
	applyJobDefaults(&job)
	return c.queue.Enqueue(ctx, job)
}

// EnqueueDelayed submits a job that becomes runnable after delay.
func (c *Client) EnqueueDelayed(ctx context.Context, job Job, delay time.Duration) (string, error) {
	applyJobDefaults(&job)
	return c.queue.EnqueueDelayed(ctx, job, delay)
}

func applyJobDefaults(job *Job) {
	if job.Queue == "" {
		job.Queue = "default"
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = 3
	}
}

// Start runs the worker pool. It blocks until ctx is cancelled, then waits
// for in-flight jobs to finish.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrRegistry.New(CodeAlreadyRunning)
	}
	c.running = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	logx.Infof("jobx: starting %d workers on queues %v", c.opts.Concurrency, c.opts.Queues)

	var wg sync.WaitGroup

	// Promote delayed and retrying jobs back onto the ready queues.
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.promoteLoop(ctx)
	}()

	for i := 0; i < c.opts.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.workerLoop(ctx, id)
		}(i)
	}

	<-ctx.Done()
	wg.Wait()
	logx.Info("jobx: workers stopped")
	return nil
}

func (c *Client) promoteLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.queue.PromoteScheduled(ctx, c.opts.Queues); err != nil {
				if ctx.Err() != nil {
					return
				}
				logx.WithError(err).Warn("jobx: promoting scheduled jobs failed")
			}
		}
	}
}

func (c *Client) workerLoop(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := c.queue.Dequeue(ctx, c.opts.Queues, c.opts.DequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logx.WithError(err).Warnf("jobx: worker %d dequeue error", id)
			time.Sleep(c.opts.PollInterval)
			continue
		}
		if job == nil {
			continue
		}

		c.process(ctx, job)
	}
}

func (c *Client) process(ctx context.Context, job *JobInfo) {
	c.mu.RLock()
	handler, ok := c.handlers[job.Type]
	c.mu.RUnlock()

	if !ok {
		logx.Warnf("jobx: no handler for job type %q (id=%s)", job.Type, job.ID)
		_, _ = c.queue.Fail(ctx, job.ID, "no handler registered")
		return
	}

	if err := handler(ctx, job); err != nil {
		logx.WithError(err).Warnf("jobx: job %s (type=%s) failed", job.ID, job.Type)

		retry, failErr := c.queue.Fail(ctx, job.ID, err.Error())
		if failErr != nil {
			logx.WithError(failErr).Errorf("jobx: recording failure of job %s failed", job.ID)
			return
		}
		if retry {
			if err := c.queue.Retry(ctx, job.ID, c.opts.RetryDelay); err != nil {
				logx.WithError(err).Errorf("jobx: scheduling retry of job %s failed", job.ID)
			}
		}
		return
	}

	if err := c.queue.Complete(ctx, job.ID); err != nil {
		logx.WithError(err).Errorf("jobx: completing job %s failed", job.ID)
	}
}
