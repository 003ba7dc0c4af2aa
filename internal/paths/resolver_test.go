package paths

import (
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/podharness/internal/clock"
)

func TestFindProjectRootByMarker(t *testing.T) {
	tests := []struct {
		name   string
		marker string
	}{
		{"git directory", ".git"},
		{"go module", "go.mod"},
		{"node manifest", "package.json"},
		{"python manifest", "pyproject.toml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			if tt.marker == ".git" {
				require.NoError(t, os.Mkdir(filepath.Join(root, tt.marker), 0o755))
			} else {
				require.NoError(t, os.WriteFile(filepath.Join(root, tt.marker), nil, 0o644))
			}
			nested := filepath.Join(root, "a", "b", "c")
			require.NoError(t, os.MkdirAll(nested, 0o755))

			got := NewResolver(nil).FindProjectRoot(nested)
			assert.Equal(t, root, got)
		})
	}
}

func TestFindProjectRootInclusive(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), nil, 0o644))

	got := NewResolver(nil).FindProjectRoot(root)
	assert.Equal(t, root, got)
}

func TestFindProjectRootFallback(t *testing.T) {
	// A bare temp dir inside /tmp has no markers above it in practice,
	// but the fallback contract only requires start back unchanged when
	// nothing matches; build an isolated tree to make that deterministic.
	base := t.TempDir()
	start := filepath.Join(base, "no", "markers", "here")
	require.NoError(t, os.MkdirAll(start, 0o755))

	got := NewResolver(nil).FindProjectRoot(start)
	if got != start {
		// An ancestor outside the temp tree carried a marker; the walk
		// must then have stopped at that ancestor, never below start.
		assert.NotContains(t, got, base)
	}
}

func TestCreateSessionDir(t *testing.T) {
	root := t.TempDir()
	r := NewResolver(nil)

	sessionDir, err := r.CreateSessionDir(root, "planner")
	require.NoError(t, err)

	info, err := os.Stat(sessionDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	pattern := regexp.MustCompile(`^agent-planner-session-[0-9a-f-]{36}-\d{8}T\d{6}\.\d{9}Z$`)
	assert.Regexp(t, pattern, filepath.Base(sessionDir))
	assert.Equal(t, filepath.Join(root, HarnessDirName, SessionsDirName), filepath.Dir(sessionDir))
}

func TestCreateSessionDirWritesGitignoreOnce(t *testing.T) {
	root := t.TempDir()
	r := NewResolver(nil)

	_, err := r.CreateSessionDir(root, "planner")
	require.NoError(t, err)

	gitignore := filepath.Join(root, HarnessDirName, ".gitignore")
	content, err := os.ReadFile(gitignore)
	require.NoError(t, err)
	assert.Equal(t, "sessions/\n", string(content))

	// A second session must not clobber an existing ignore file.
	require.NoError(t, os.WriteFile(gitignore, []byte("sessions/\ncustom/\n"), 0o644))
	_, err = r.CreateSessionDir(root, "planner")
	require.NoError(t, err)
	content, _ = os.ReadFile(gitignore)
	assert.Equal(t, "sessions/\ncustom/\n", string(content))
}

func TestSessionDirsNeverCollide(t *testing.T) {
	root := t.TempDir()
	// A fixed clock removes timestamp entropy entirely; the random id
	// alone must keep names unique.
	r := NewResolver(clock.Fixed{T: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		dir, err := r.CreateSessionDir(root, "same")
		require.NoError(t, err)
		assert.False(t, seen[dir], "duplicate session dir %s", dir)
		seen[dir] = true
	}
}

func TestPodAndWorkerDirsUniqueUnderConcurrentCreation(t *testing.T) {
	root := t.TempDir()
	r := NewResolver(clock.Fixed{T: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})

	sessionDir, err := r.CreateSessionDir(root, "planner")
	require.NoError(t, err)

	const n = 16
	var mu sync.Mutex
	var wg sync.WaitGroup
	dirs := make(map[string]bool)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			podDir, err := r.CreatePodDir(sessionDir, "alpha")
			assert.NoError(t, err)
			workerDir, werr := r.CreateWorkerDir(podDir, "w1")
			assert.NoError(t, werr)
			mu.Lock()
			dirs[podDir] = true
			dirs[workerDir] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, dirs, 2*n)
}

func TestCreatePodDirLayout(t *testing.T) {
	root := t.TempDir()
	r := NewResolver(nil)

	sessionDir, err := r.CreateSessionDir(root, "planner")
	require.NoError(t, err)
	podDir, err := r.CreatePodDir(sessionDir, "alpha")
	require.NoError(t, err)
	workerDir, err := r.CreateWorkerDir(podDir, "w1")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(sessionDir, "pods"), filepath.Dir(podDir))
	assert.Regexp(t, `^pod-alpha-\d{8}T\d{6}\.\d{9}Z-[0-9a-f]{8}$`, filepath.Base(podDir))
	assert.Equal(t, filepath.Join(podDir, "workers"), filepath.Dir(workerDir))
	assert.Regexp(t, `^worker-w1-\d{8}T\d{6}\.\d{9}Z-[0-9a-f]{8}$`, filepath.Base(workerDir))
}
