package paths

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/podharness/internal/clock"
)

const (
	// HarnessDirName is the root of all generated harness data.
	HarnessDirName = ".agent-harness"

	// SessionsDirName holds one directory per session.
	SessionsDirName = "sessions"

	gitignoreContent = "sessions/\n"
)

// rootMarkers identify a project root, checked in order.
var rootMarkers = []string{".git", "go.mod", "package.json", "pyproject.toml"}

// Resolver creates harness directories and resolves project roots.
type Resolver struct {
	clock clock.Clock
}

// NewResolver creates a resolver. A nil clock defaults to the system
// clock.
func NewResolver(c clock.Clock) *Resolver {
	if c == nil {
		c = clock.System{}
	}
	return &Resolver{clock: c}
}

// FindProjectRoot walks upward from start through parent directories
// and returns the first ancestor (inclusive) containing a root marker.
// If no marker is found before the filesystem root, start is returned
// unchanged. Never fails.
func (r *Resolver) FindProjectRoot(start string) string {
	current, err := filepath.Abs(start)
	if err != nil {
		return start
	}
	for {
		for _, marker := range rootMarkers {
			if _, err := os.Stat(filepath.Join(current, marker)); err == nil {
				return current
			}
		}
		parent := filepath.Dir(current)
		if parent == current {
			return start
		}
		current = parent
	}
}

// CreateSessionDir ensures <root>/.agent-harness exists with its
// generated-data .gitignore and a sessions/ subdirectory, then creates
// and returns a uniquely named session directory:
//
//	.agent-harness/sessions/agent-<name>-session-<uuid>-<ts>/
//
// The random id alone is collision-resistant; the timestamp keeps the
// name informative and sortable.
func (r *Resolver) CreateSessionDir(projectRoot, agentName string) (string, error) {
	harnessDir := filepath.Join(projectRoot, HarnessDirName)
	if err := os.MkdirAll(harnessDir, 0o755); err != nil {
		return "", fmt.Errorf("create harness directory: %w", err)
	}

	// Generated session data stays out of version control by convention.
	gitignore := filepath.Join(harnessDir, ".gitignore")
	if _, err := os.Stat(gitignore); os.IsNotExist(err) {
		if err := os.WriteFile(gitignore, []byte(gitignoreContent), 0o644); err != nil {
			return "", fmt.Errorf("write harness .gitignore: %w", err)
		}
	}

	sessionsDir := filepath.Join(harnessDir, SessionsDirName)
	if err := os.MkdirAll(sessionsDir, 0o755); err != nil {
		return "", fmt.Errorf("create sessions directory: %w", err)
	}

	name := fmt.Sprintf("agent-%s-session-%s-%s", agentName, uuid.NewString(), r.dirStamp())
	sessionDir := filepath.Join(sessionsDir, name)
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return "", fmt.Errorf("create session directory: %w", err)
	}
	return sessionDir, nil
}

// CreatePodDir creates <session>/pods/pod-<name>-<ts>-<suffix>/.
// The random suffix guarantees uniqueness even when two pods are
// created within the same timestamp tick.
func (r *Resolver) CreatePodDir(sessionDir, podName string) (string, error) {
	podsDir := filepath.Join(sessionDir, "pods")
	if err := os.MkdirAll(podsDir, 0o755); err != nil {
		return "", fmt.Errorf("create pods directory: %w", err)
	}

	name := fmt.Sprintf("pod-%s-%s-%s", podName, r.dirStamp(), shortID())
	podDir := filepath.Join(podsDir, name)
	if err := os.Mkdir(podDir, 0o755); err != nil {
		return "", fmt.Errorf("create pod directory: %w", err)
	}
	return podDir, nil
}

// CreateWorkerDir creates <pod>/workers/worker-<id>-<ts>-<suffix>/.
func (r *Resolver) CreateWorkerDir(podDir, workerID string) (string, error) {
	workersDir := filepath.Join(podDir, "workers")
	if err := os.MkdirAll(workersDir, 0o755); err != nil {
		return "", fmt.Errorf("create workers directory: %w", err)
	}

	name := fmt.Sprintf("worker-%s-%s-%s", workerID, r.dirStamp(), shortID())
	workerDir := filepath.Join(workersDir, name)
	if err := os.Mkdir(workerDir, 0o755); err != nil {
		return "", fmt.Errorf("create worker directory: %w", err)
	}
	return workerDir, nil
}

func (r *Resolver) dirStamp() string {
	return r.clock.Now().Format(clock.DirLayout)
}

func shortID() string {
	return uuid.NewString()[:8]
}
