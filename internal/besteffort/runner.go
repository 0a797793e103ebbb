// Package besteffort runs side effects whose failure must never reach the
// operation that triggered them: revenue snapshots and audit entries written
// after a commit.
package besteffort

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	obsmetrics "github.com/plannivo/finance/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Task is one unit of best-effort work.
type Task func(ctx context.Context) error

// Submitter accepts best-effort work.
type Submitter interface {
	Submit(name string, task Task) bool
}

type job struct {
	name string
	task Task
}

type Params struct {
	fx.In

	Log     *zap.Logger
	Config  Config              `optional:"true"`
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Runner struct {
	log     *zap.Logger
	metrics *obsmetrics.Metrics
	cfg     Config

	queue    chan job
	pending  sync.WaitGroup
	workers  sync.WaitGroup
	failures atomic.Int64

	mu      sync.RWMutex
	started bool
	stopped bool
	cancel  context.CancelFunc
}

func NewRunner(p Params) *Runner {
	cfg := p.Config.withDefaults()
	return &Runner{
		log:     p.Log.Named("besteffort"),
		metrics: p.Metrics,
		cfg:     cfg,
		queue:   make(chan job, cfg.QueueSize),
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.stopped {
		return
	}
	r.started = true

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	for i := 0; i < r.cfg.Workers; i++ {
		r.workers.Add(1)
		go r.work(ctx)
	}
}

// Submit enqueues task without blocking. It returns false and counts a
// failure when the runner is stopped or the queue is full.
func (r *Runner) Submit(name string, task Task) bool {
	if task == nil {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		r.fail(name, "stopped", nil)
		return false
	}

	r.pending.Add(1)
	select {
	case r.queue <- job{name: name, task: task}:
		return true
	default:
		r.pending.Done()
		r.fail(name, "queue_full", nil)
		return false
	}
}

// Drain waits for every submitted task to finish or for ctx to end.
func (r *Runner) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop refuses new work, drains what is queued, then stops the workers.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	started := r.started
	r.mu.Unlock()

	if !started {
		return nil
	}

	err := r.Drain(ctx)
	r.cancel()
	close(r.queue)
	r.workers.Wait()
	return err
}

// Failures is the number of tasks dropped or failed since start.
func (r *Runner) Failures() int64 {
	return r.failures.Load()
}

func (r *Runner) work(ctx context.Context) {
	defer r.workers.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-r.queue:
			if !ok {
				return
			}
			r.run(ctx, j)
		}
	}
}

func (r *Runner) run(parent context.Context, j job) {
	defer r.pending.Done()

	ctx, cancel := context.WithTimeout(parent, r.cfg.TaskTimeout)
	defer cancel()

	defer func() {
		if recovered := recover(); recovered != nil {
			r.fail(j.name, "panic", nil)
			r.log.Error("best-effort task panicked", zap.String("task", j.name), zap.Any("panic", recovered))
		}
	}()

	if err := j.task(ctx); err != nil {
		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		r.fail(j.name, reason, err)
	}
}

func (r *Runner) fail(name, reason string, err error) {
	r.failures.Add(1)
	r.metrics.RecordBestEffortFailure(context.Background(), name, reason)
	fields := []zap.Field{zap.String("task", name), zap.String("reason", reason)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	r.log.Warn("best-effort task failed", fields...)
}
