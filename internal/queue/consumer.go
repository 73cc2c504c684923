package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/danielolaszy/sprintsplit/internal/logging"
	"github.com/danielolaszy/sprintsplit/pkg/models"
)

// Handler processes one job. A returned error marks the job failed.
type Handler func(ctx context.Context, job models.SplitJob) error

// Consumer runs a fixed number of workers that claim and process jobs.
type Consumer struct {
	queue   *Queue
	handler Handler
	workers int
	poll    time.Duration
}

// NewConsumer creates a consumer. Workers below one are raised to one.
func NewConsumer(q *Queue, handler Handler, workers int, poll time.Duration) *Consumer {
	if workers < 1 {
		workers = 1
	}
	if poll <= 0 {
		poll = time.Second
	}
	return &Consumer{queue: q, handler: handler, workers: workers, poll: poll}
}

// Run processes jobs until ctx is cancelled, then waits for in-flight jobs to
// finish. Jobs already claimed are completed even after cancellation, within
// the job timeout.
func (c *Consumer) Run(ctx context.Context) error {
	logging.Info("consumer started", "queue", c.queue.Name(), "workers", c.workers)

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			c.loop(ctx, worker)
		}(i)
	}
	wg.Wait()

	logging.Info("consumer stopped", "queue", c.queue.Name())
	return nil
}

func (c *Consumer) loop(ctx context.Context, worker int) {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		for {
			if ctx.Err() != nil {
				return
			}
			processed, err := c.next(ctx)
			if err != nil {
				logging.Error("failed to claim job", "worker", worker, "error", err)
				break
			}
			if !processed {
				break
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Drain processes jobs on the calling goroutine until the queue has none
// available and returns how many were handled.
func (c *Consumer) Drain(ctx context.Context) (int, error) {
	handled := 0
	for ctx.Err() == nil {
		processed, err := c.next(ctx)
		if err != nil {
			return handled, err
		}
		if !processed {
			return handled, nil
		}
		handled++
	}
	return handled, ctx.Err()
}

// next claims one job and handles it. It reports false when no job was available.
func (c *Consumer) next(ctx context.Context) (bool, error) {
	job, err := c.queue.Claim(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	// A claimed job is not cancelled with the consumer, so the record is never
	// left running. It is bounded by the job timeout, which ends before the lease.
	runCtx := context.WithoutCancel(ctx)
	jobCtx, cancel := context.WithTimeout(runCtx, c.queue.jobTimeout)
	defer cancel()

	jobErr := c.handle(jobCtx, job)
	if jobErr != nil {
		logging.Error("job failed",
			"job", job.ID,
			"issue", job.Issue,
			"attempt", job.Attempts,
			"error", jobErr)
	}

	if err := c.queue.Complete(runCtx, job.ID, jobErr); err != nil {
		return true, err
	}
	return true, nil
}

func (c *Consumer) handle(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return c.handler(ctx, job.SplitJob())
}
