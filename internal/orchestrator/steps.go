package orchestrator

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/podharness/internal/config"
	"github.com/fyrsmithlabs/podharness/internal/exchange"
	"github.com/fyrsmithlabs/podharness/internal/paths"
)

// Shared transaction value keys used by the provisioning steps.
const (
	ValueSessionDir       = "session_dir"
	ValuePodDir           = "pod_dir"
	ValueWorkerDir        = "worker_dir"
	ValueInstructionsPath = "instructions_path"
	ValueSupervisorConfig = "supervisor_config"
)

// CreateSessionStep creates the session directory under the project's
// harness root and stores its path in the transaction.
func CreateSessionStep(resolver *paths.Resolver, projectRoot, agentName string) Step {
	return Step{
		Name:       "create_session",
		Checkpoint: true,
		Mutating:   true,
		Run: func(ctx context.Context, tx *Tx) error {
			sessionDir, err := resolver.CreateSessionDir(projectRoot, agentName)
			if err != nil {
				return err
			}
			tx.RegisterDir(sessionDir)
			tx.Values[ValueSessionDir] = sessionDir
			return nil
		},
	}
}

// CreatePodStep creates a pod directory inside the session created by
// an earlier CreateSessionStep.
func CreatePodStep(resolver *paths.Resolver, podName string) Step {
	return Step{
		Name:       "create_pod",
		Checkpoint: true,
		Mutating:   true,
		Run: func(ctx context.Context, tx *Tx) error {
			sessionDir, ok := tx.Values[ValueSessionDir].(string)
			if !ok || sessionDir == "" {
				return fmt.Errorf("create_pod: no session directory in workflow values")
			}
			podDir, err := resolver.CreatePodDir(sessionDir, podName)
			if err != nil {
				return err
			}
			tx.RegisterDir(podDir)
			tx.Values[ValuePodDir] = podDir
			return nil
		},
	}
}

// CreateWorkerStep creates a worker directory inside the pod created
// by an earlier CreatePodStep.
func CreateWorkerStep(resolver *paths.Resolver, workerID string) Step {
	return Step{
		Name:       "create_worker",
		Checkpoint: true,
		Mutating:   true,
		Run: func(ctx context.Context, tx *Tx) error {
			podDir, ok := tx.Values[ValuePodDir].(string)
			if !ok || podDir == "" {
				return fmt.Errorf("create_worker: no pod directory in workflow values")
			}
			workerDir, err := resolver.CreateWorkerDir(podDir, workerID)
			if err != nil {
				return err
			}
			tx.RegisterDir(workerDir)
			tx.Values[ValueWorkerDir] = workerDir
			return nil
		},
	}
}

// WriteInstructionsStep writes the task instructions into the pod
// directory. Blank instruction text fails validation, which is not a
// transient condition, so the step is mutating and triggers rollback.
func WriteInstructionsStep(ex *exchange.Exchange, text, sessionID string) Step {
	return Step{
		Name:     "write_instructions",
		Mutating: true,
		Run: func(ctx context.Context, tx *Tx) error {
			podDir, ok := tx.Values[ValuePodDir].(string)
			if !ok || podDir == "" {
				return fmt.Errorf("write_instructions: no pod directory in workflow values")
			}
			path, err := ex.WriteInstructions(text, podDir, sessionID)
			if err != nil {
				return err
			}
			tx.RegisterFile(path)
			tx.Values[ValueInstructionsPath] = path
			return nil
		},
	}
}

// LoadSupervisorConfigStep loads the pod's supervisor agent config.
// Read-only: failure propagates without rollback.
func LoadSupervisorConfigStep(loader *config.AgentLoader, podID string) Step {
	return Step{
		Name: "load_supervisor_config",
		Run: func(ctx context.Context, tx *Tx) error {
			doc, err := loader.LoadSupervisorConfig(podID)
			if err != nil {
				return err
			}
			tx.Values[ValueSupervisorConfig] = doc
			return nil
		},
	}
}
