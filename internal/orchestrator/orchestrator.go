package orchestrator

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config configures an Orchestrator.
type Config struct {
	// MaxRetries is the attempt budget per step. Defaults to 3.
	MaxRetries int

	// BackoffBase scales the linear backoff: the wait before attempt
	// n+1 is BackoffBase*n. Defaults to 1s.
	BackoffBase time.Duration

	Logger *zap.Logger
}

// Orchestrator runs step sequences with retry, rollback and
// checkpointing. One instance carries its breaker, checkpoint set and
// rollback registry across ExecuteWithRetry invocations; build a new
// instance per independent workflow.
type Orchestrator struct {
	maxRetries  int
	backoffBase time.Duration
	breaker     *CircuitBreaker
	logger      *zap.Logger

	// sleep is replaceable so tests can observe backoff without
	// waiting for it.
	sleep func(ctx context.Context, d time.Duration) error

	mu           sync.Mutex
	createdFiles []string
	createdDirs  []string
	checkpoints  map[string]bool
	executions   map[string]int
}

// New creates an orchestrator. The circuit breaker threshold equals
// the retry budget, so a single step exhausting its retries opens the
// circuit for the whole workflow.
func New(cfg Config) *Orchestrator {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Orchestrator{
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.BackoffBase,
		breaker:     NewCircuitBreaker(cfg.MaxRetries),
		logger:      cfg.Logger,
		sleep:       sleepContext,
		checkpoints: make(map[string]bool),
		executions:  make(map[string]int),
	}
}

// ExecuteWithRetry runs the steps in order, retrying each failed step
// up to MaxRetries attempts with linear backoff. values seeds the
// shared transaction. On a step exhausting its retries: mutating steps
// roll back every registered artifact, non-mutating steps leave
// artifacts and return the step's own error unchanged.
func (o *Orchestrator) ExecuteWithRetry(ctx context.Context, steps []Step, values map[string]any) (*Result, error) {
	if values == nil {
		values = make(map[string]any)
	}
	tx := &Tx{Values: values, orch: o}
	result := &Result{
		Status:        StatusCompleted,
		StepsExecuted: []string{},
		Executions:    make(map[string]int),
	}

	for _, step := range steps {
		if step.Checkpoint && o.checkpointDone(step.Name) {
			o.logger.Debug("skipping checkpointed step", zap.String("step", step.Name))
			continue
		}

		err := o.runStep(ctx, step, tx)
		result.Executions[step.Name] = o.executionCount(step.Name)
		if err != nil {
			result.Status = StatusFailed
			result.Failures = append(result.Failures, StepFailure{Step: step.Name, Error: err.Error()})
			if step.Mutating {
				o.rollback()
			}
			return result, err
		}

		if step.Checkpoint {
			o.markCheckpoint(step.Name)
		}
		result.StepsExecuted = append(result.StepsExecuted, step.Name)
	}

	return result, nil
}

// runStep retries one step until it succeeds, the budget is spent, the
// breaker opens or the context ends. The returned error is the step's
// last error unchanged, or ErrCircuitOpen (wrapped with the step name)
// when the breaker tripped.
func (o *Orchestrator) runStep(ctx context.Context, step Step, tx *Tx) error {
	var lastErr error
	for attempt := 1; attempt <= o.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if o.breaker.IsOpen() {
			return fmt.Errorf("step %q: %w", step.Name, ErrCircuitOpen)
		}

		o.recordExecution(step.Name)
		start := time.Now()
		err := step.Run(ctx, tx)
		observeStep(ctx, step.Name, time.Since(start), err)
		if err == nil {
			if attempt > 1 {
				o.logger.Info("step recovered",
					zap.String("step", step.Name),
					zap.Int("attempt", attempt),
				)
			}
			return nil
		}

		lastErr = err
		o.breaker.RecordFailure()
		o.logger.Warn("step failed",
			zap.String("step", step.Name),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", o.maxRetries),
			zap.Error(err),
		)

		if attempt < o.maxRetries {
			// This failure may have tripped the breaker on top of
			// failures from earlier steps. Never sleep once it is open.
			if o.breaker.IsOpen() {
				return fmt.Errorf("step %q: %w", step.Name, ErrCircuitOpen)
			}
			if err := o.sleep(ctx, o.backoffBase*time.Duration(attempt)); err != nil {
				return err
			}
		}
	}
	return lastErr
}

// rollback removes registered files, then directories, each in
// reverse creation order. Removal is best-effort: a path that is
// already gone or cannot be removed does not stop the rest of the
// rollback.
func (o *Orchestrator) rollback() {
	o.mu.Lock()
	files := o.createdFiles
	dirs := o.createdDirs
	o.createdFiles = nil
	o.createdDirs = nil
	o.mu.Unlock()

	for i := len(files) - 1; i >= 0; i-- {
		if err := os.Remove(files[i]); err != nil && !os.IsNotExist(err) {
			o.logger.Warn("rollback: remove file failed", zap.String("path", files[i]), zap.Error(err))
		}
	}
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.RemoveAll(dirs[i]); err != nil {
			o.logger.Warn("rollback: remove directory failed", zap.String("path", dirs[i]), zap.Error(err))
		}
	}
	o.logger.Info("workflow rolled back",
		zap.Int("files", len(files)),
		zap.Int("dirs", len(dirs)),
	)
}

// Breaker exposes the shared circuit breaker, mainly for status
// reporting.
func (o *Orchestrator) Breaker() *CircuitBreaker {
	return o.breaker
}

func (o *Orchestrator) registerFile(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.createdFiles = append(o.createdFiles, path)
}

func (o *Orchestrator) registerDir(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.createdDirs = append(o.createdDirs, path)
}

func (o *Orchestrator) checkpointDone(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.checkpoints[name]
}

func (o *Orchestrator) markCheckpoint(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.checkpoints[name] = true
}

func (o *Orchestrator) recordExecution(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.executions[name]++
}

func (o *Orchestrator) executionCount(name string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.executions[name]
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
