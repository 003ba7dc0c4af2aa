package loop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/podharness/internal/evaluate"
	"github.com/fyrsmithlabs/podharness/internal/exchange"
	"github.com/fyrsmithlabs/podharness/internal/llm"
	"github.com/fyrsmithlabs/podharness/internal/podfs"
	"github.com/fyrsmithlabs/podharness/internal/supervisor"
)

// scriptedWorker returns canned responses in order, cycling on the
// last. It records whether each call carried feedback gaps.
type scriptedWorker struct {
	responses []string
	err       error
	calls     int
	gapsSeen  [][]string
}

func (w *scriptedWorker) next() (string, error) {
	w.calls++
	if w.err != nil {
		return "", w.err
	}
	idx := w.calls - 1
	if idx >= len(w.responses) {
		idx = len(w.responses) - 1
	}
	return w.responses[idx], nil
}

func (w *scriptedWorker) Execute(ctx context.Context) (string, error) {
	w.gapsSeen = append(w.gapsSeen, nil)
	return w.next()
}

func (w *scriptedWorker) ExecuteWithFeedback(ctx context.Context, gaps []string) (string, error) {
	w.gapsSeen = append(w.gapsSeen, gaps)
	return w.next()
}

func newTestLoop(t *testing.T, w Worker, maxAttempts int) (*Loop, *exchange.Exchange, string) {
	t.Helper()
	podDir := t.TempDir()
	ex := exchange.New(nil, nil, nil, nil)
	s := supervisor.NewEvaluation(nil, ex, nil, nil)
	l, err := New(Config{
		PodDir:      podDir,
		PodID:       "pod-1",
		WorkerID:    "w1",
		SessionID:   "s1",
		MaxAttempts: maxAttempts,
	}, w, s, ex, nil, nil)
	require.NoError(t, err)
	return l, ex, podDir
}

func TestNewValidation(t *testing.T) {
	w := &scriptedWorker{responses: []string{"x"}}
	s := supervisor.NewEvaluation(nil, nil, nil, nil)

	_, err := New(Config{PodDir: "p"}, nil, s, nil, nil, nil)
	assert.Error(t, err, "worker required")
	_, err = New(Config{PodDir: "p"}, w, nil, nil, nil, nil)
	assert.Error(t, err, "supervisor required")
	_, err = New(Config{}, w, s, nil, nil, nil)
	assert.Error(t, err, "pod dir required")
}

func TestRunPassesOnSecondAttempt(t *testing.T) {
	w := &scriptedWorker{responses: []string{"wrong answer", "PASS"}}
	l, ex, podDir := newTestLoop(t, w, 3)
	_, err := ex.WriteInstructions("Respond with exactly PASS", podDir, "s1")
	require.NoError(t, err)

	result, err := l.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, "PASS", result.Result)

	// Second call carried the first attempt's gaps.
	require.Len(t, w.gapsSeen, 2)
	assert.Nil(t, w.gapsSeen[0])
	assert.NotEmpty(t, w.gapsSeen[1])

	fb, err := ex.ReadFeedback(podDir)
	require.NoError(t, err)
	assert.True(t, fb.IsPass())
	assert.Equal(t, 2, fb.Attempts)
}

func TestRunPassesFirstTry(t *testing.T) {
	w := &scriptedWorker{responses: []string{"PASS"}}
	l, ex, podDir := newTestLoop(t, w, 3)
	_, err := ex.WriteInstructions("Respond with exactly PASS", podDir, "s1")
	require.NoError(t, err)

	result, err := l.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 1, w.calls)
}

func TestRunExhaustsAttempts(t *testing.T) {
	w := &scriptedWorker{responses: []string{"always wrong"}}
	l, ex, podDir := newTestLoop(t, w, 3)
	_, err := ex.WriteInstructions("Respond with exactly PASS", podDir, "s1")
	require.NoError(t, err)

	result, err := l.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusFail, result.Status)
	assert.Equal(t, ReasonMaxAttemptsExceeded, result.Reason)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, 3, w.calls)

	fb, err := ex.ReadFeedback(podDir)
	require.NoError(t, err)
	assert.True(t, fb.IsFail(), "last feedback stays on disk for inspection")
}

// silentSupervisor reports FAIL without ever writing feedback,
// simulating a pod whose feedback document went missing mid-cycle.
type silentSupervisor struct{}

func (s *silentSupervisor) SetAttempt(int) {}

func (s *silentSupervisor) Evaluate(podDir, podID string) (evaluate.Status, error) {
	return evaluate.StatusFail, nil
}

func TestRunSkipsWorkerWithoutFailFeedback(t *testing.T) {
	w := &scriptedWorker{responses: []string{"always wrong"}}
	podDir := t.TempDir()
	ex := exchange.New(nil, nil, nil, nil)
	l, err := New(Config{
		PodDir:      podDir,
		PodID:       "pod-1",
		WorkerID:    "w1",
		MaxAttempts: 3,
	}, w, &silentSupervisor{}, ex, nil, nil)
	require.NoError(t, err)
	_, err = ex.WriteInstructions("Respond with exactly PASS", podDir, "s1")
	require.NoError(t, err)

	result, err := l.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusFail, result.Status)
	assert.Equal(t, ReasonMaxAttemptsExceeded, result.Reason)
	assert.Equal(t, 1, w.calls, "retry attempts without FAIL feedback leave the worker idle")
}

func TestRunRequiresInstructions(t *testing.T) {
	w := &scriptedWorker{responses: []string{"x"}}
	l, _, _ := newTestLoop(t, w, 3)

	_, err := l.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, podfs.ErrNotFound)
	assert.Equal(t, 0, w.calls, "worker never runs without instructions")
}

func TestRunAbsorbsWorkerTimeout(t *testing.T) {
	w := &scriptedWorker{err: &llm.Error{Kind: llm.KindTimeout, Detail: "call deadline exceeded"}}
	l, ex, podDir := newTestLoop(t, w, 3)
	_, err := ex.WriteInstructions("Respond with exactly PASS", podDir, "s1")
	require.NoError(t, err)

	result, err := l.Run(context.Background())
	require.NoError(t, err, "timeout is a terminal result, not an error")
	assert.Equal(t, StatusFail, result.Status)
	assert.Equal(t, 1, result.Attempts)
	assert.Contains(t, result.Reason, "timeout:")
}

func TestRunAbsorbsContextDeadline(t *testing.T) {
	w := &scriptedWorker{err: context.DeadlineExceeded}
	l, ex, podDir := newTestLoop(t, w, 3)
	_, err := ex.WriteInstructions("Respond with exactly PASS", podDir, "s1")
	require.NoError(t, err)

	result, err := l.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Reason, "timeout:")
}

func TestRunPropagatesOtherWorkerErrors(t *testing.T) {
	workerErr := errors.New("provider exploded")
	w := &scriptedWorker{err: workerErr}
	l, ex, podDir := newTestLoop(t, w, 3)
	_, err := ex.WriteInstructions("Respond with exactly PASS", podDir, "s1")
	require.NoError(t, err)

	_, err = l.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, workerErr)
}

func TestRunRecordsHistory(t *testing.T) {
	w := &scriptedWorker{responses: []string{"wrong", "PASS"}}
	l, ex, podDir := newTestLoop(t, w, 3)
	_, err := ex.WriteInstructions("Respond with exactly PASS", podDir, "s1")
	require.NoError(t, err)

	_, err = l.Run(context.Background())
	require.NoError(t, err)

	history := l.History()
	require.Len(t, history, 2)
	assert.Equal(t, 1, history[0].Attempt)
	assert.Equal(t, evaluate.StatusFail, history[0].Status)
	assert.NotEmpty(t, history[0].Gaps)
	assert.Equal(t, 2, history[1].Attempt)
	assert.Equal(t, evaluate.StatusPass, history[1].Status)
}

func TestRunHonorsCustomOutputPath(t *testing.T) {
	// Instructions always point output at result.json today, but the
	// loop follows whatever the document names.
	w := &scriptedWorker{responses: []string{"PASS"}}
	l, ex, podDir := newTestLoop(t, w, 3)
	_, err := ex.WriteInstructions("Respond with exactly PASS", podDir, "s1")
	require.NoError(t, err)

	_, err = l.Run(context.Background())
	require.NoError(t, err)

	res, err := ex.ReadResult(podDir)
	require.NoError(t, err)
	assert.Equal(t, "PASS", res.Result)
	assert.Equal(t, "w1", res.WorkerID)
}

func TestRunPerAttemptTimeoutConfig(t *testing.T) {
	slow := &slowWorker{delay: 200 * time.Millisecond}
	podDir := t.TempDir()
	ex := exchange.New(nil, nil, nil, nil)
	s := supervisor.NewEvaluation(nil, ex, nil, nil)
	l, err := New(Config{
		PodDir:      podDir,
		PodID:       "pod-1",
		WorkerID:    "w1",
		MaxAttempts: 3,
		Timeout:     10 * time.Millisecond,
	}, slow, s, ex, nil, nil)
	require.NoError(t, err)
	_, err = ex.WriteInstructions("Respond with exactly PASS", podDir, "s1")
	require.NoError(t, err)

	result, err := l.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Reason, "timeout:")
}

// slowWorker blocks until its context expires.
type slowWorker struct {
	delay time.Duration
}

func (w *slowWorker) Execute(ctx context.Context) (string, error) {
	select {
	case <-time.After(w.delay):
		return "PASS", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (w *slowWorker) ExecuteWithFeedback(ctx context.Context, gaps []string) (string, error) {
	return w.Execute(ctx)
}
