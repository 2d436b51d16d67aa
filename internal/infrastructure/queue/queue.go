package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"PostTranslator/internal/domain"
	"PostTranslator/internal/ports"
)

const (
	DefaultWorkers    = 4
	DefaultBuffer     = 256
	DefaultJobTimeout = 60 * time.Second
)

// ErrClosed is returned when enqueueing after Stop.
var ErrClosed = errors.New("queue is closed")

// Handler executes one translation job.
type Handler func(ctx context.Context, args domain.TranslateJobArgs)

// Options configures the worker pool.
type Options struct {
	Workers    int
	Buffer     int
	JobTimeout time.Duration
	Logger     *slog.Logger
}

type job struct {
	id   string
	args domain.TranslateJobArgs
}

// Queue is a bounded in-process worker pool for translation jobs.
type Queue struct {
	workers int
	timeout time.Duration
	logger  *slog.Logger

	jobs chan job

	// sendMu guards jobs against close while senders are blocked on it.
	sendMu sync.RWMutex
	closed bool

	mu      sync.Mutex
	pending map[string]domain.TranslateJobArgs
	timers  map[string]*time.Timer

	startOnce sync.Once
	wg        sync.WaitGroup
}

var _ ports.JobQueue = (*Queue)(nil)

// New builds a stopped queue; call Start to launch workers.
func New(opts Options) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = DefaultJobTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Queue{
		workers: opts.Workers,
		timeout: opts.JobTimeout,
		logger:  opts.Logger,
		jobs:    make(chan job, opts.Buffer),
		pending: map[string]domain.TranslateJobArgs{},
		timers:  map[string]*time.Timer{},
	}
}

// Start launches the workers. Jobs run with ctx as parent and a per-job timeout.
func (q *Queue) Start(ctx context.Context, handler Handler) {
	q.startOnce.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.work(ctx, handler)
		}
	})
}

func (q *Queue) work(ctx context.Context, handler Handler) {
	defer q.wg.Done()
	for j := range q.jobs {
		q.run(ctx, handler, j)
	}
}

func (q *Queue) run(ctx context.Context, handler Handler, j job) {
	defer q.done(j.id)
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("job panicked", "job_id", j.id, "post_id", j.args.PostID, "panic", r)
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()
	handler(jobCtx, j.args)
}

// Enqueue schedules args for immediate execution. It blocks while the buffer is full.
func (q *Queue) Enqueue(ctx context.Context, args domain.TranslateJobArgs) (string, error) {
	id := uuid.NewString()
	q.track(id, args)
	if err := q.push(ctx, job{id: id, args: args}); err != nil {
		q.done(id)
		return "", err
	}
	return id, nil
}

// EnqueueIn schedules args after delay. The job counts as pending while it waits.
func (q *Queue) EnqueueIn(ctx context.Context, delay time.Duration, args domain.TranslateJobArgs) (string, error) {
	if delay <= 0 {
		return q.Enqueue(ctx, args)
	}

	q.sendMu.RLock()
	closed := q.closed
	q.sendMu.RUnlock()
	if closed {
		return "", ErrClosed
	}

	id := uuid.NewString()
	q.track(id, args)

	q.mu.Lock()
	q.timers[id] = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, id)
		q.mu.Unlock()

		if err := q.push(context.Background(), job{id: id, args: args}); err != nil {
			q.done(id)
			q.logger.Warn("delayed job dropped", "job_id", id, "post_id", args.PostID, "error", err)
		}
	})
	q.mu.Unlock()

	return id, nil
}

func (q *Queue) push(ctx context.Context, j job) error {
	q.sendMu.RLock()
	defer q.sendMu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.jobs <- j:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue job %s: %w", j.id, ctx.Err())
	}
}

func (q *Queue) track(id string, args domain.TranslateJobArgs) {
	q.mu.Lock()
	q.pending[id] = args
	q.mu.Unlock()
}

func (q *Queue) done(id string) {
	q.mu.Lock()
	delete(q.pending, id)
	q.mu.Unlock()
}

// Pending lists the target languages still queued or running for postID.
func (q *Queue) Pending(postID int64) []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	seen := map[string]bool{}
	var out []string
	for _, args := range q.pending {
		if args.PostID == postID && !seen[args.TargetLanguage] {
			seen[args.TargetLanguage] = true
			out = append(out, args.TargetLanguage)
		}
	}
	sort.Strings(out)
	return out
}

// Len reports how many jobs are waiting or running.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Wait blocks until every queued and delayed job has finished.
func (q *Queue) Wait(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for q.Len() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Stop refuses new jobs, drops delayed ones and waits for workers to drain the buffer.
func (q *Queue) Stop(ctx context.Context) error {
	q.sendMu.Lock()
	if q.closed {
		q.sendMu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	q.sendMu.Unlock()

	q.mu.Lock()
	for id, timer := range q.timers {
		if timer.Stop() {
			delete(q.pending, id)
		}
		delete(q.timers, id)
	}
	q.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop queue: %w", ctx.Err())
	}
}
