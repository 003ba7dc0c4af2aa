package loop

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/podharness/internal/clock"
	"github.com/fyrsmithlabs/podharness/internal/evaluate"
	"github.com/fyrsmithlabs/podharness/internal/exchange"
	"github.com/fyrsmithlabs/podharness/internal/llm"
)

// Terminal loop statuses. Exhausting the attempt budget is a FAIL
// whose reason carries ReasonMaxAttemptsExceeded.
const (
	StatusPass = "PASS"
	StatusFail = "FAIL"

	ReasonMaxAttemptsExceeded = "MAX_ATTEMPTS_EXCEEDED"
)

const defaultMaxAttempts = 3

// Worker produces a result for the pod's instructions.
type Worker interface {
	Execute(ctx context.Context) (string, error)
	ExecuteWithFeedback(ctx context.Context, gaps []string) (string, error)
}

// Supervisor evaluates the pod's result and writes feedback.
type Supervisor interface {
	SetAttempt(n int)
	Evaluate(podDir, podID string) (evaluate.Status, error)
}

// Config configures a Loop.
type Config struct {
	PodDir    string
	PodID     string
	WorkerID  string
	SessionID string

	// MaxAttempts bounds the feedback cycle. Defaults to 3.
	MaxAttempts int

	// Timeout bounds each worker execution. Zero means no per-attempt
	// deadline.
	Timeout time.Duration
}

// Result is the loop's terminal outcome.
type Result struct {
	Status   string `json:"status"`
	Attempts int    `json:"attempts"`
	Result   any    `json:"result,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Iteration is one loop cycle kept in the in-memory history.
type Iteration struct {
	Attempt   int
	Response  string
	Status    evaluate.Status
	Gaps      []string
	Timestamp string
}

// Loop coordinates one pod's feedback cycle.
type Loop struct {
	cfg        Config
	worker     Worker
	supervisor Supervisor
	exchange   *exchange.Exchange
	clock      clock.Clock
	logger     *zap.Logger

	mu      sync.Mutex
	history []Iteration
}

// New creates a loop. Worker and supervisor are required; nil exchange,
// clock and logger default to production implementations.
func New(cfg Config, w Worker, s Supervisor, ex *exchange.Exchange, c clock.Clock, logger *zap.Logger) (*Loop, error) {
	if w == nil {
		return nil, fmt.Errorf("loop: worker is required")
	}
	if s == nil {
		return nil, fmt.Errorf("loop: supervisor is required")
	}
	if cfg.PodDir == "" {
		return nil, fmt.Errorf("loop: pod directory is required")
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if c == nil {
		c = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ex == nil {
		ex = exchange.New(nil, nil, c, logger)
	}
	return &Loop{
		cfg:        cfg,
		worker:     w,
		supervisor: s,
		exchange:   ex,
		clock:      c,
		logger:     logger,
	}, nil
}

// Run drives the feedback cycle to a terminal result. Missing or
// malformed instructions are setup errors and propagate; a worker
// timeout is absorbed into a terminal FAIL result; all other worker
// and evaluation errors propagate.
func (l *Loop) Run(ctx context.Context) (*Result, error) {
	ins, err := l.exchange.ReadInstructions(l.cfg.PodDir)
	if err != nil {
		return nil, fmt.Errorf("read instructions: %w", err)
	}
	outputPath := filepath.Join(l.cfg.PodDir, ins.OutputPath)

	for attempt := 1; attempt <= l.cfg.MaxAttempts; attempt++ {
		response, executed, err := l.executeAttempt(ctx, attempt)
		if err != nil {
			if isTimeout(err) {
				l.logger.Warn("worker timed out",
					zap.String("pod_id", l.cfg.PodID),
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
				observeOutcome(ctx, StatusFail)
				return &Result{
					Status:   StatusFail,
					Attempts: attempt,
					Reason:   "timeout: " + err.Error(),
				}, nil
			}
			return nil, fmt.Errorf("attempt %d: %w", attempt, err)
		}

		if executed {
			if _, err := l.exchange.WriteResultAt(outputPath, response, l.cfg.WorkerID, l.cfg.PodID, l.cfg.SessionID); err != nil {
				return nil, fmt.Errorf("attempt %d: write result: %w", attempt, err)
			}
		}

		l.supervisor.SetAttempt(attempt)
		status, err := l.supervisor.Evaluate(l.cfg.PodDir, l.cfg.PodID)
		if err != nil {
			return nil, fmt.Errorf("attempt %d: evaluate: %w", attempt, err)
		}
		observeIteration(ctx, status)

		var gaps []string
		if status == evaluate.StatusFail {
			if fb, err := l.exchange.ReadFeedback(l.cfg.PodDir); err == nil && fb != nil {
				gaps = fb.Gaps
			}
		}
		l.record(Iteration{
			Attempt:   attempt,
			Response:  response,
			Status:    status,
			Gaps:      gaps,
			Timestamp: clock.Timestamp(l.clock.Now()),
		})

		if status == evaluate.StatusPass {
			l.logger.Info("loop passed",
				zap.String("pod_id", l.cfg.PodID),
				zap.Int("attempts", attempt),
			)
			observeOutcome(ctx, StatusPass)
			return &Result{
				Status:   StatusPass,
				Attempts: attempt,
				Result:   response,
			}, nil
		}
		l.logger.Info("loop attempt failed",
			zap.String("pod_id", l.cfg.PodID),
			zap.Int("attempt", attempt),
			zap.Strings("gaps", gaps),
		)
	}

	observeOutcome(ctx, ReasonMaxAttemptsExceeded)
	return &Result{
		Status:   StatusFail,
		Attempts: l.cfg.MaxAttempts,
		Reason:   ReasonMaxAttemptsExceeded,
	}, nil
}

// executeAttempt runs the worker once. Attempt 1 executes the bare
// instructions; later attempts fold the latest FAIL feedback into the
// prompt. A retry attempt that finds no FAIL feedback on disk means
// the pod state is inconsistent: the worker stays idle and evaluation
// proceeds on whatever result is already there.
func (l *Loop) executeAttempt(ctx context.Context, attempt int) (string, bool, error) {
	attemptCtx := ctx
	if l.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, l.cfg.Timeout)
		defer cancel()
	}

	if attempt == 1 {
		response, err := l.worker.Execute(attemptCtx)
		return response, true, err
	}

	fb, err := l.exchange.ReadFeedback(l.cfg.PodDir)
	if err != nil {
		return "", false, fmt.Errorf("read feedback: %w", err)
	}
	if fb == nil || !fb.IsFail() || len(fb.Gaps) == 0 {
		l.logger.Warn("retry attempt without FAIL feedback, worker skipped",
			zap.String("pod_id", l.cfg.PodID),
			zap.Int("attempt", attempt),
		)
		return "", false, nil
	}
	response, err := l.worker.ExecuteWithFeedback(attemptCtx, fb.Gaps)
	return response, true, err
}

// History returns a copy of the iteration history.
func (l *Loop) History() []Iteration {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Iteration, len(l.history))
	copy(out, l.history)
	return out
}

func (l *Loop) record(it Iteration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history = append(l.history, it)
}

// isTimeout matches both a context deadline hit by the loop's own
// per-attempt budget and a timeout classified by the LLM client.
func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || llm.IsKind(err, llm.KindTimeout)
}
