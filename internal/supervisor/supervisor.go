package supervisor

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/podharness/internal/clock"
	"github.com/fyrsmithlabs/podharness/internal/evaluate"
	"github.com/fyrsmithlabs/podharness/internal/exchange"
	"github.com/fyrsmithlabs/podharness/internal/podfs"
)

// Record is one evaluation kept in the in-memory history.
type Record struct {
	Status       evaluate.Status
	PodID        string
	Timestamp    string
	Instructions string
	Result       string
	Gaps         []string
}

// Evaluation compares worker results to instructions and writes
// feedback. One Evaluation tracks a single pod's attempt counter and
// history across loop iterations.
type Evaluation struct {
	comparator *evaluate.Comparator
	exchange   *exchange.Exchange
	clock      clock.Clock
	logger     *zap.Logger

	mu      sync.Mutex
	attempt int
	history []Record
}

// NewEvaluation creates an evaluation. Nil dependencies default to
// production implementations.
func NewEvaluation(comparator *evaluate.Comparator, ex *exchange.Exchange, c clock.Clock, logger *zap.Logger) *Evaluation {
	if logger == nil {
		logger = zap.NewNop()
	}
	if comparator == nil {
		comparator = evaluate.NewComparator(logger)
	}
	if c == nil {
		c = clock.System{}
	}
	if ex == nil {
		ex = exchange.New(nil, nil, c, logger)
	}
	return &Evaluation{
		comparator: comparator,
		exchange:   ex,
		clock:      c,
		logger:     logger,
	}
}

// SetAttempt records the loop's current attempt number before an
// evaluation, so FAIL feedback can point the worker at the next
// attempt.
func (e *Evaluation) SetAttempt(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attempt = n
}

// Evaluate reads the pod's instructions and latest result, compares
// them, and writes feedback. A missing result is evaluated as empty
// (the comparator reports it as a gap); missing or malformed
// instructions are setup errors and propagate.
func (e *Evaluation) Evaluate(podDir, podID string) (evaluate.Status, error) {
	ins, err := e.exchange.ReadInstructions(podDir)
	if err != nil {
		return "", fmt.Errorf("read instructions: %w", err)
	}

	resultText := ""
	var resultValue any
	res, err := e.exchange.ReadResult(podDir)
	switch {
	case err == nil:
		resultValue = res.Result
		resultText = coerceResult(res.Result)
	case errors.Is(err, podfs.ErrNotFound):
		// No result yet: evaluate the empty result.
	default:
		var decodeErr *podfs.DecodeError
		if errors.As(err, &decodeErr) {
			// A torn or hand-edited result is a worker output problem,
			// not a setup error: fail it with a gap.
			e.logger.Warn("result unreadable, evaluating as empty",
				zap.String("pod_id", podID),
				zap.Error(err),
			)
		} else {
			return "", fmt.Errorf("read result: %w", err)
		}
	}

	status, gaps := e.comparator.Evaluate(ins.Instructions, resultText)

	e.mu.Lock()
	current := e.attempt
	e.mu.Unlock()

	if status == evaluate.StatusPass {
		attempts := current
		if attempts < 1 {
			attempts = 1
		}
		if _, err := e.exchange.WritePass(resultValue, attempts, podDir, podID); err != nil {
			return "", fmt.Errorf("write pass feedback: %w", err)
		}
	} else {
		if _, err := e.exchange.WriteFail(gaps, current+1, podDir, podID); err != nil {
			return "", fmt.Errorf("write fail feedback: %w", err)
		}
	}

	e.record(Record{
		Status:       status,
		PodID:        podID,
		Timestamp:    clock.Timestamp(e.clock.Now()),
		Instructions: ins.Instructions,
		Result:       resultText,
		Gaps:         gaps,
	})
	e.logger.Info("evaluation complete",
		zap.String("pod_id", podID),
		zap.String("status", string(status)),
		zap.Int("gaps", len(gaps)),
	)
	return status, nil
}

// History returns a copy of the evaluation history.
func (e *Evaluation) History() []Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Record, len(e.history))
	copy(out, e.history)
	return out
}

func (e *Evaluation) record(r Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, r)
}

// coerceResult renders a decoded result value as the text the
// comparator evaluates. Strings pass through; structured values are
// compared by their compact JSON encoding.
func coerceResult(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}
