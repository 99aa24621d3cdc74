// Package dispatch runs named background jobs on an in-process worker pool.
//
// Scheduling is one-way and best-effort: Schedule never blocks, returns an
// error when the job cannot be queued, and gives no delivery guarantee once
// it has been. Jobs still queued when Run returns are dropped.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrQueueFull is returned when the buffer has no room for another job
	ErrQueueFull = errors.New("dispatch queue full")
	// ErrQueueClosed is returned after the queue has stopped
	ErrQueueClosed = errors.New("dispatch queue closed")
	// ErrUnknownJob is returned when no handler is registered for a job name
	ErrUnknownJob = errors.New("unknown job")
)

// Job is a unit of deferred work
type Job struct {
	Name  string
	Args  map[string]interface{}
	Delay time.Duration // Minimum wait before the job may start
}

// Handler executes a job
type Handler func(ctx context.Context, args map[string]interface{}) error

type queued struct {
	job       Job
	notBefore time.Time
}

// Queue is a bounded job queue served by a fixed number of workers
type Queue struct {
	jobs    chan queued
	workers int

	mu       sync.RWMutex
	handlers map[string]Handler
	closed   bool

	completed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// Stats reports cumulative job outcomes
type Stats struct {
	Completed int64
	Failed    int64
	Dropped   int64
	Pending   int
}

// New creates a queue holding at most size pending jobs, served by workers goroutines
func New(workers, size int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = 1
	}
	return &Queue{
		jobs:     make(chan queued, size),
		workers:  workers,
		handlers: make(map[string]Handler),
	}
}

// Register binds a handler to a job name
func (q *Queue) Register(name string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[name] = h
}

// Schedule enqueues job without blocking
func (q *Queue) Schedule(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.dropped.Add(1)
		return ErrQueueClosed
	}
	if _, ok := q.handlers[job.Name]; !ok {
		q.dropped.Add(1)
		return fmt.Errorf("%w: %s", ErrUnknownJob, job.Name)
	}

	select {
	case q.jobs <- queued{job: job, notBefore: time.Now().Add(job.Delay)}:
		return nil
	default:
		q.dropped.Add(1)
		return ErrQueueFull
	}
}

// Run serves jobs until ctx is cancelled, then marks the queue closed
func (q *Queue) Run(ctx context.Context) error {
	defer func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
	}()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < q.workers; i++ {
		g.Go(func() error {
			q.work(ctx)
			return nil
		})
	}
	return g.Wait()
}

// Stats returns a snapshot of job outcomes
func (q *Queue) Stats() Stats {
	return Stats{
		Completed: q.completed.Load(),
		Failed:    q.failed.Load(),
		Dropped:   q.dropped.Load(),
		Pending:   len(q.jobs),
	}
}

func (q *Queue) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-q.jobs:
			if wait := time.Until(item.notBefore); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			q.execute(ctx, item.job)
		}
	}
}

func (q *Queue) execute(ctx context.Context, job Job) {
	q.mu.RLock()
	h := q.handlers[job.Name]
	q.mu.RUnlock()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return h(ctx, job.Args)
	}()

	if err != nil {
		q.failed.Add(1)
		log.Printf("dispatch: job %s failed: %v", job.Name, err)
		return
	}
	q.completed.Add(1)
}

// IntArg reads an integer argument, accepting the numeric types JSON and Go callers produce
func IntArg(args map[string]interface{}, key string, defaultValue int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return defaultValue
}
