package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/podharness/internal/exchange"
	"github.com/fyrsmithlabs/podharness/internal/paths"
	"github.com/fyrsmithlabs/podharness/internal/schema"
)

func TestProvisioningPipeline(t *testing.T) {
	projectRoot := t.TempDir()
	// Marker so the root walk stops here.
	require.NoError(t, os.WriteFile(filepath.Join(projectRoot, "go.mod"), []byte("module example\n"), 0o644))

	resolver := paths.NewResolver(nil)
	ex := exchange.New(nil, resolver, nil, nil)
	o, _ := newTestOrchestrator(3)

	steps := []Step{
		CreateSessionStep(resolver, projectRoot, "coder"),
		CreatePodStep(resolver, "fibonacci"),
		CreateWorkerStep(resolver, "w1"),
		WriteInstructionsStep(ex, "Return the number 42", "session-1"),
	}

	values := map[string]any{}
	result, err := o.ExecuteWithRetry(context.Background(), steps, values)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Len(t, result.StepsExecuted, 4)

	podDir, ok := values[ValuePodDir].(string)
	require.True(t, ok)
	assert.DirExists(t, podDir)

	workerDir, ok := values[ValueWorkerDir].(string)
	require.True(t, ok)
	assert.DirExists(t, workerDir)

	instructionsPath, ok := values[ValueInstructionsPath].(string)
	require.True(t, ok)
	assert.FileExists(t, instructionsPath)

	ins, err := ex.ReadInstructions(podDir)
	require.NoError(t, err)
	assert.Equal(t, "Return the number 42", ins.Instructions)
}

func TestProvisioningRollsBackOnInvalidInstructions(t *testing.T) {
	projectRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(projectRoot, "go.mod"), []byte("module example\n"), 0o644))

	resolver := paths.NewResolver(nil)
	ex := exchange.New(nil, resolver, nil, nil)
	o, _ := newTestOrchestrator(1)

	steps := []Step{
		CreateSessionStep(resolver, projectRoot, "coder"),
		CreatePodStep(resolver, "fibonacci"),
		WriteInstructionsStep(ex, "   ", "session-1"),
	}

	values := map[string]any{}
	_, err := o.ExecuteWithRetry(context.Background(), steps, values)
	require.Error(t, err)
	var valErr *schema.ValidationError
	assert.ErrorAs(t, err, &valErr)

	sessionDir := values[ValueSessionDir].(string)
	_, statErr := os.Stat(sessionDir)
	assert.True(t, os.IsNotExist(statErr), "failed provisioning removes the session directory")
}

func TestCreatePodStepRequiresSession(t *testing.T) {
	resolver := paths.NewResolver(nil)
	o, _ := newTestOrchestrator(1)

	_, err := o.ExecuteWithRetry(context.Background(), []Step{CreatePodStep(resolver, "p")}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no session directory")
}
