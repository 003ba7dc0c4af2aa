package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/podharness/internal/clock"
	"github.com/fyrsmithlabs/podharness/internal/exchange"
	"github.com/fyrsmithlabs/podharness/internal/llm"
)

// Executor states.
const (
	StatusIdle               = "idle"
	StatusWaitingFeedback    = "WAITING_FEEDBACK"
	StatusRetry              = "RETRY"
	StatusComplete           = "COMPLETE"
	StatusMaxRetriesExceeded = "MAX_RETRIES_EXCEEDED"
)

const defaultPollInterval = 100 * time.Millisecond

// Attempt is one executed prompt kept in the in-memory history.
type Attempt struct {
	Number    int
	Prompt    string
	Response  string
	Timestamp string
	Err       string
}

// Config configures an Executor.
type Config struct {
	// PodDir is the pod directory holding instructions.json and
	// feedback.json.
	PodDir string

	WorkerID string
	Client   llm.Client

	// MaxRetries bounds feedback-driven retries in Run. Defaults to 3.
	MaxRetries int

	// PollInterval is the feedback polling cadence in Run.
	PollInterval time.Duration

	Clock  clock.Clock
	Logger *zap.Logger
}

// Executor runs task attempts against an LLM and tracks its own state
// across the feedback cycle.
type Executor struct {
	podDir       string
	workerID     string
	client       llm.Client
	exchange     *exchange.Exchange
	maxRetries   int
	pollInterval time.Duration
	clock        clock.Clock
	logger       *zap.Logger

	mu      sync.Mutex
	status  string
	attempt int
	history []Attempt
}

// NewExecutor creates an executor. The LLM client is required; other
// nil dependencies default to production implementations.
func NewExecutor(cfg Config) (*Executor, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("worker: llm client is required")
	}
	if cfg.PodDir == "" {
		return nil, fmt.Errorf("worker: pod directory is required")
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Executor{
		podDir:       cfg.PodDir,
		workerID:     cfg.WorkerID,
		client:       cfg.Client,
		exchange:     exchange.New(nil, nil, cfg.Clock, cfg.Logger),
		maxRetries:   cfg.MaxRetries,
		pollInterval: cfg.PollInterval,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		status:       StatusIdle,
	}, nil
}

// Status returns the executor's current state.
func (e *Executor) Status() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// History returns a copy of the attempt history.
func (e *Executor) History() []Attempt {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Attempt, len(e.history))
	copy(out, e.history)
	return out
}

// ReadInstructions reads the pod's instruction document.
func (e *Executor) ReadInstructions() (*exchange.Instructions, error) {
	return e.exchange.ReadInstructions(e.podDir)
}

// Execute runs the instructions once through the LLM and returns the
// raw response.
func (e *Executor) Execute(ctx context.Context) (string, error) {
	ins, err := e.ReadInstructions()
	if err != nil {
		return "", err
	}
	return e.callLLM(ctx, ins.Instructions)
}

// ExecuteWithFeedback reruns the instructions with the supervisor's
// gaps folded into the prompt verbatim, one per line.
func (e *Executor) ExecuteWithFeedback(ctx context.Context, gaps []string) (string, error) {
	ins, err := e.ReadInstructions()
	if err != nil {
		return "", err
	}
	return e.callLLM(ctx, BuildRetryPrompt(ins.Instructions, gaps))
}

// BuildRetryPrompt appends the previous attempt's gaps to the original
// instructions.
func BuildRetryPrompt(instructions string, gaps []string) string {
	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\nPrevious attempt had these issues:\n")
	for _, gap := range gaps {
		b.WriteString("- ")
		b.WriteString(gap)
		b.WriteString("\n")
	}
	b.WriteString("\nPlease address these issues.")
	return b.String()
}

// ShouldRetry reports whether feedback asks for another attempt within
// the retry budget.
func (e *Executor) ShouldRetry(fb *exchange.Feedback) bool {
	if !fb.IsFail() {
		return false
	}
	return fb.Attempt <= e.maxRetries
}

// CheckCompletion reads the pod's feedback and reports whether the
// task has passed.
func (e *Executor) CheckCompletion() (bool, error) {
	fb, err := e.exchange.ReadFeedback(e.podDir)
	if err != nil {
		return false, err
	}
	return fb.IsPass(), nil
}

// Run drives the autonomous worker state machine: execute, publish
// the result, wait for feedback, and either finish or retry with the
// gaps. Returns the terminal status.
func (e *Executor) Run(ctx context.Context) (string, error) {
	ins, err := e.ReadInstructions()
	if err != nil {
		return "", err
	}

	var gaps []string
	for {
		e.mu.Lock()
		e.attempt++
		attempt := e.attempt
		e.mu.Unlock()

		var response string
		if attempt == 1 {
			response, err = e.callLLM(ctx, ins.Instructions)
		} else {
			response, err = e.callLLM(ctx, BuildRetryPrompt(ins.Instructions, gaps))
		}
		if err != nil {
			return "", err
		}

		outputPath := filepath.Join(e.podDir, ins.OutputPath)
		if _, err := e.exchange.WriteResultAt(outputPath, response, e.workerID, ins.PodID, ins.SessionID); err != nil {
			return "", err
		}

		e.setStatus(StatusWaitingFeedback)
		fb, err := e.waitForFeedback(ctx, attempt)
		if err != nil {
			return "", err
		}

		if fb.IsPass() {
			e.setStatus(StatusComplete)
			return StatusComplete, nil
		}
		if !e.ShouldRetry(fb) {
			e.setStatus(StatusMaxRetriesExceeded)
			return StatusMaxRetriesExceeded, nil
		}
		gaps = fb.Gaps
		e.setStatus(StatusRetry)
		e.logger.Info("retrying after feedback",
			zap.String("worker_id", e.workerID),
			zap.Int("next_attempt", fb.Attempt),
			zap.Strings("gaps", gaps),
		)
	}
}

// waitForFeedback polls for feedback addressing the given attempt or
// later. Feedback left over from a previous attempt is ignored.
func (e *Executor) waitForFeedback(ctx context.Context, attempt int) (*exchange.Feedback, error) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()
	for {
		fb, err := e.exchange.ReadFeedback(e.podDir)
		if err != nil {
			return nil, err
		}
		if fb != nil {
			if fb.IsPass() || fb.Attempt > attempt {
				return fb, nil
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (e *Executor) callLLM(ctx context.Context, prompt string) (string, error) {
	e.mu.Lock()
	number := len(e.history) + 1
	e.mu.Unlock()

	response, err := e.client.Call(ctx, prompt)
	record := Attempt{
		Number:    number,
		Prompt:    prompt,
		Response:  response,
		Timestamp: clock.Timestamp(e.clock.Now()),
	}
	if err != nil {
		record.Err = err.Error()
	}
	e.mu.Lock()
	e.history = append(e.history, record)
	e.mu.Unlock()

	if err != nil {
		return "", err
	}
	return response, nil
}

func (e *Executor) setStatus(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = s
}
