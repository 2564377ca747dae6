package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/studyhall/studyhall-api/internal/config"
	"github.com/studyhall/studyhall-api/internal/platform/logger"
	"github.com/studyhall/studyhall-api/internal/store"
)

// Runner errors
var (
	ErrQueueFull            = errors.New("task queue is full")
	ErrRunnerStopped        = errors.New("task runner is not running")
	ErrInvalidExecutionMode = errors.New("invalid execution mode")
)

// Failure reasons written onto task records by the sweeps. Interrupted
// and stuck work is never retried automatically; the records go straight
// to failed so polling clients are not left watching a task that nobody
// will ever finish.
const (
	reasonInterrupted = "task interrupted by service restart"
	reasonStuck       = "task processing timed out"
)

// Runner executes queued tasks with a fixed pool of workers over a
// buffered channel. Queued tasks run under the runner's own context, not
// the submitting request's, so a client disconnect cannot cancel work
// that was already accepted.
type Runner struct {
	tasks  store.GenerationTaskStore
	cfg    config.TaskConfig
	logger *slog.Logger

	queue   chan Task
	wg      sync.WaitGroup
	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// NewRunner creates a task runner with the given configuration.
func NewRunner(tasks store.GenerationTaskStore, cfg config.TaskConfig, log *slog.Logger) *Runner {
	if tasks == nil {
		panic("task store cannot be nil")
	}

	if log == nil {
		log = slog.Default()
	}

	return &Runner{
		tasks:  tasks,
		cfg:    cfg,
		logger: log.With(slog.String("component", "task_runner")),
		queue:  make(chan Task, cfg.QueueSize),
	}
}

// Start sweeps tasks orphaned by a previous shutdown, then launches the
// worker pool and the stuck-task monitor.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}

	swept, err := r.tasks.FailActiveTasks(ctx, reasonInterrupted)
	if err != nil {
		return err
	}
	if swept > 0 {
		r.logger.Warn("failed tasks orphaned by previous shutdown",
			slog.Int64("count", swept))
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.running = true

	for i := 0; i < r.cfg.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(runCtx, i)
	}

	r.wg.Add(1)
	go r.stuckTaskMonitor(runCtx)

	r.logger.Info("task runner started",
		slog.Int("workers", r.cfg.WorkerCount),
		slog.Int("queue_size", r.cfg.QueueSize))
	return nil
}

// Submit enqueues a task for execution. Returns ErrQueueFull when the
// queue has no room rather than blocking the caller.
func (r *Runner) Submit(t Task) error {
	r.mu.Lock()
	running := r.running
	r.mu.Unlock()

	if !running {
		return ErrRunnerStopped
	}

	select {
	case r.queue <- t:
		r.logger.Debug("task queued", slog.String("task_id", t.ID().String()))
		return nil
	default:
		r.logger.Warn("task queue full", slog.String("task_id", t.ID().String()))
		return ErrQueueFull
	}
}

// Stop cancels the workers and waits for in-flight tasks to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("task runner stopped")
}

func (r *Runner) worker(ctx context.Context, id int) {
	defer r.wg.Done()

	log := r.logger.With(slog.Int("worker_id", id))
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-r.queue:
			taskLog := log.With(slog.String("task_id", t.ID().String()))
			taskLog.Debug("task execution starting")

			// Failures here were already written onto the task record by
			// the orchestrator; the log line is for operators.
			if err := t.Execute(logger.WithLogger(ctx, taskLog)); err != nil {
				taskLog.Warn("task execution failed", slog.String("error", err.Error()))
			} else {
				taskLog.Debug("task execution finished")
			}
		}
	}
}

// stuckTaskMonitor periodically fails tasks that have been processing
// longer than the configured age, e.g. after a worker crash mid-task.
func (r *Runner) stuckTaskMonitor(ctx context.Context) {
	defer r.wg.Done()

	interval := r.cfg.StuckTaskCheckInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := r.tasks.FailStuckTasks(ctx, r.cfg.StuckTaskAge, reasonStuck)
			if err != nil {
				r.logger.Error("stuck task sweep failed", slog.String("error", err.Error()))
				continue
			}
			if swept > 0 {
				r.logger.Warn("failed stuck tasks", slog.Int64("count", swept))
			}
		}
	}
}
