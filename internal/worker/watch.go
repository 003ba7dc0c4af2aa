package worker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/podharness/internal/exchange"
	"github.com/fyrsmithlabs/podharness/internal/podfs"
)

// ErrWaitTimeout reports that instructions did not appear within the
// wait budget.
var ErrWaitTimeout = errors.New("timed out waiting for instructions")

// WaitForInstructions blocks until instructions.json appears in the
// pod directory, then reads and returns it. Instructions already on
// disk return immediately. The watch covers the whole pod directory
// because the file is created by rename, which fsnotify reports as a
// Create on the final name.
func (e *Executor) WaitForInstructions(ctx context.Context, timeout time.Duration) (*exchange.Instructions, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(e.podDir); err != nil {
		return nil, fmt.Errorf("watch pod directory: %w", err)
	}

	// The file may have landed before the watch was established.
	ins, err := e.ReadInstructions()
	if err == nil {
		return ins, nil
	}
	if !errors.Is(err, podfs.ErrNotFound) {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	target := filepath.Join(e.podDir, exchange.InstructionsFile)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil, fmt.Errorf("watcher closed")
			}
			if event.Name != target {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			ins, err := e.ReadInstructions()
			if errors.Is(err, podfs.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			e.logger.Debug("instructions arrived",
				zap.String("worker_id", e.workerID),
				zap.String("path", target),
			)
			return ins, nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil, fmt.Errorf("watcher closed")
			}
			return nil, fmt.Errorf("watch pod directory: %w", err)
		case <-timer.C:
			return nil, ErrWaitTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
