package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// RunnerConfig holds configuration for the task runner
type RunnerConfig struct {
	// RunTimeout bounds a single Execute call. Zero means no timeout.
	RunTimeout time.Duration

	// RunOnStart executes every task once immediately when the runner starts.
	RunOnStart bool
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		RunTimeout: time.Minute,
		RunOnStart: true,
	}
}

type scheduledTask struct {
	task     Task
	interval time.Duration
}

// Runner executes scheduled tasks on their own tickers.
type Runner struct {
	mu         sync.Mutex
	tasks      []scheduledTask
	started    bool
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     RunnerConfig
	logger     *slog.Logger
	errHandler func(task Task, err error)
}

// NewRunner creates a new Runner
func NewRunner(config RunnerConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "task_runner"))

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger,
		errHandler: func(task Task, err error) {
			logger.Error("task execution failed",
				slog.String("task_type", task.Type()),
				slog.String("error", err.Error()))
		},
	}
}

// SetErrorHandler allows setting a custom error handler function
func (r *Runner) SetErrorHandler(handler func(task Task, err error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errHandler = handler
}

// Schedule registers task to run every interval. It must be called before Start.
func (r *Runner) Schedule(task Task, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("task %s: interval must be positive, got %s", task.Type(), interval)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return fmt.Errorf("task %s: runner already started", task.Type())
	}
	r.tasks = append(r.tasks, scheduledTask{task: task, interval: interval})
	return nil
}

// Start launches one goroutine per scheduled task.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	for _, st := range r.tasks {
		r.wg.Add(1)
		go r.loop(st)
	}
	r.logger.Info("task runner started", slog.Int("task_count", len(r.tasks)))
}

// Stop cancels running tasks and waits for their goroutines to exit.
func (r *Runner) Stop() {
	r.cancelFunc()
	r.wg.Wait()
	r.logger.Info("task runner stopped")
}

func (r *Runner) loop(st scheduledTask) {
	defer r.wg.Done()

	log := r.logger.With(slog.String("task_type", st.task.Type()))
	log.Debug("starting task loop", slog.Duration("interval", st.interval))

	if r.config.RunOnStart {
		r.run(st.task)
	}

	ticker := time.NewTicker(st.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			log.Debug("stopping task loop")
			return
		case <-ticker.C:
			r.run(st.task)
		}
	}
}

func (r *Runner) run(task Task) {
	if r.ctx.Err() != nil {
		return
	}

	ctx := r.ctx
	if r.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.RunTimeout)
		defer cancel()
	}

	if err := task.Execute(ctx); err != nil {
		r.mu.Lock()
		handler := r.errHandler
		r.mu.Unlock()
		handler(task, err)
	}
}
