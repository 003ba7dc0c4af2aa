package exchange

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/podharness/internal/clock"
	"github.com/fyrsmithlabs/podharness/internal/paths"
	"github.com/fyrsmithlabs/podharness/internal/podfs"
	"github.com/fyrsmithlabs/podharness/internal/schema"
)

// Exchange writes and reads pod coordination documents.
type Exchange struct {
	store    *podfs.Store
	resolver *paths.Resolver
	clock    clock.Clock
	logger   *zap.Logger
}

// New creates an exchange. Nil dependencies default to production
// implementations.
func New(store *podfs.Store, resolver *paths.Resolver, c clock.Clock, logger *zap.Logger) *Exchange {
	if store == nil {
		store = podfs.NewStore()
	}
	if c == nil {
		c = clock.System{}
	}
	if resolver == nil {
		resolver = paths.NewResolver(c)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exchange{store: store, resolver: resolver, clock: c, logger: logger}
}

// WriteInstructions builds the instructions document for a pod and
// writes it atomically, so a worker polling for instructions never
// observes a torn document. The pod id is derived from the directory
// name. Blank instruction text is a validation error and nothing is
// written.
func (e *Exchange) WriteInstructions(text, podDir, sessionID string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", schema.NewValidationError("instructions", "instructions cannot be empty")
	}

	doc := map[string]any{
		"instructions": text,
		"output_path":  ResultFile,
		"pod_id":       filepath.Base(podDir),
		"session_id":   sessionID,
		"project_root": e.resolver.FindProjectRoot(podDir),
		"timestamp":    clock.Timestamp(e.clock.Now()),
	}
	if ok, problems := schema.ValidateInstructions(doc); !ok {
		return "", schema.NewValidationError("instructions", problems...)
	}

	path := filepath.Join(podDir, InstructionsFile)
	if err := e.store.WriteAtomic(path, doc); err != nil {
		return "", err
	}
	e.logger.Debug("instructions written",
		zap.String("pod_id", filepath.Base(podDir)),
		zap.String("path", path),
	)
	return path, nil
}

// WriteResult writes a worker result document to <dir>/result.json.
// An empty result value is a validation error and nothing is written.
func (e *Exchange) WriteResult(value any, dir, workerID, podID, sessionID string) (string, error) {
	return e.WriteResultAt(filepath.Join(dir, ResultFile), value, workerID, podID, sessionID)
}

// WriteResultAt writes a result document to an explicit path, honoring
// instruction documents whose output_path differs from result.json.
func (e *Exchange) WriteResultAt(path string, value any, workerID, podID, sessionID string) (string, error) {
	if isEmptyResult(value) {
		return "", schema.NewValidationError("result", "result cannot be empty")
	}

	doc := map[string]any{
		"result":     value,
		"worker_id":  workerID,
		"pod_id":     podID,
		"session_id": sessionID,
		"timestamp":  clock.Timestamp(e.clock.Now()),
	}
	if ok, problems := schema.ValidateResult(doc); !ok {
		return "", schema.NewValidationError("result", problems...)
	}

	if err := e.store.WriteAtomic(path, doc); err != nil {
		return "", err
	}
	e.logger.Debug("result written",
		zap.String("worker_id", workerID),
		zap.String("path", path),
	)
	return path, nil
}

// WritePass writes PASS feedback to <podDir>/feedback.json.
func (e *Exchange) WritePass(result any, attempts int, podDir, podID string) (string, error) {
	doc := map[string]any{
		"status":    "PASS",
		"result":    result,
		"attempts":  attempts,
		"timestamp": clock.Timestamp(e.clock.Now()),
		"pod_id":    podID,
	}
	return e.writeFeedback(doc, podDir)
}

// WriteFail writes FAIL feedback to <podDir>/feedback.json. An empty
// gap list fails validation and nothing is written.
func (e *Exchange) WriteFail(gaps []string, attempt int, podDir, podID string) (string, error) {
	gapValues := make([]any, len(gaps))
	for i, g := range gaps {
		gapValues[i] = g
	}
	doc := map[string]any{
		"status":    "FAIL",
		"gaps":      gapValues,
		"attempt":   attempt,
		"timestamp": clock.Timestamp(e.clock.Now()),
		"pod_id":    podID,
	}
	return e.writeFeedback(doc, podDir)
}

func (e *Exchange) writeFeedback(doc map[string]any, podDir string) (string, error) {
	if ok, problems := schema.ValidateFeedback(doc); !ok {
		return "", schema.NewValidationError("feedback", problems...)
	}

	path := filepath.Join(podDir, FeedbackFile)
	if err := e.store.WriteAtomic(path, doc); err != nil {
		return "", err
	}
	e.logger.Debug("feedback written",
		zap.Any("status", doc["status"]),
		zap.String("path", path),
	)
	return path, nil
}

// ReadInstructions reads and validates <podDir>/instructions.json.
// Missing file and malformed JSON surface as podfs.ErrNotFound and
// *podfs.DecodeError; both indicate setup errors and are never
// retried by callers.
func (e *Exchange) ReadInstructions(podDir string) (*Instructions, error) {
	path := filepath.Join(podDir, InstructionsFile)
	doc, err := e.store.ReadDocument(path)
	if err != nil {
		return nil, err
	}
	if ok, problems := schema.ValidateInstructions(doc); !ok {
		return nil, schema.NewValidationError("instructions", problems...)
	}

	var ins Instructions
	if err := e.store.Read(path, &ins); err != nil {
		return nil, err
	}
	return &ins, nil
}

// ReadResult reads <dir>/result.json.
func (e *Exchange) ReadResult(dir string) (*Result, error) {
	var res Result
	if err := e.store.Read(filepath.Join(dir, ResultFile), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ReadFeedback reads <podDir>/feedback.json. Returns (nil, nil) when
// no feedback has been written yet; absence is a normal state between
// the first worker attempt and the first evaluation.
func (e *Exchange) ReadFeedback(podDir string) (*Feedback, error) {
	var fb Feedback
	err := e.store.Read(filepath.Join(podDir, FeedbackFile), &fb)
	if errors.Is(err, podfs.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &fb, nil
}

// AggregateWorkerResults reads result.json from every worker
// subdirectory of the pod. Workers without a readable result are
// silently skipped; partial completion is expected, not exceptional.
func (e *Exchange) AggregateWorkerResults(podDir string) ([]*Result, error) {
	workersDir := filepath.Join(podDir, "workers")
	entries, err := os.ReadDir(workersDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Result{}, nil
		}
		return nil, fmt.Errorf("list workers in %s: %w", podDir, err)
	}

	results := []*Result{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		res, err := e.ReadResult(filepath.Join(workersDir, entry.Name()))
		if err != nil {
			e.logger.Debug("skipping worker without readable result",
				zap.String("worker_dir", entry.Name()),
				zap.Error(err),
			)
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

// isEmptyResult treats nil and empty strings as absent result values.
// Other JSON values, including empty objects and arrays, are valid
// results.
func isEmptyResult(value any) bool {
	if value == nil {
		return true
	}
	s, ok := value.(string)
	return ok && s == ""
}
