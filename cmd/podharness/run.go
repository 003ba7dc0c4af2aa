package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/podharness/internal/exchange"
	"github.com/fyrsmithlabs/podharness/internal/llm"
	"github.com/fyrsmithlabs/podharness/internal/loop"
	"github.com/fyrsmithlabs/podharness/internal/orchestrator"
	"github.com/fyrsmithlabs/podharness/internal/paths"
	"github.com/fyrsmithlabs/podharness/internal/supervisor"
	"github.com/fyrsmithlabs/podharness/internal/worker"
)

var (
	runProjectRoot string
	runAgentName   string
	runPodName     string
	runWorkerID    string
)

var runCmd = &cobra.Command{
	Use:   "run <instructions>",
	Short: "Run one supervised task loop",
	Long: `Provision a session and pod under the project's .agent-harness
directory, write the task instructions, and drive the feedback loop
until the worker's result passes or attempts run out.

Examples:
  # Run a task against the configured LLM provider
  podharness run "Return the number 42"

  # Run inside a specific project
  podharness run --project-root ~/src/app "Respond with exactly PASS"`,
	Args: cobra.ExactArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().StringVar(&runProjectRoot, "project-root", ".", "directory whose project root hosts the harness data")
	runCmd.Flags().StringVar(&runAgentName, "agent", "coder", "agent name used in the session directory")
	runCmd.Flags().StringVar(&runPodName, "pod", "task", "pod name")
	runCmd.Flags().StringVar(&runWorkerID, "worker", "worker-1", "worker id recorded in results")
}

func runTask(cmd *cobra.Command, args []string) error {
	instructions := args[0]

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resolver := paths.NewResolver(nil)
	ex := exchange.New(nil, resolver, nil, logger)
	projectRoot := resolver.FindProjectRoot(runProjectRoot)
	sessionID := fmt.Sprintf("%s-session", runAgentName)

	orch := orchestrator.New(orchestrator.Config{
		MaxRetries:  cfg.Orchestrator.MaxRetries,
		BackoffBase: cfg.Orchestrator.BackoffBase.Duration(),
		Logger:      logger,
	})
	values := map[string]any{}
	steps := []orchestrator.Step{
		orchestrator.CreateSessionStep(resolver, projectRoot, runAgentName),
		orchestrator.CreatePodStep(resolver, runPodName),
		orchestrator.WriteInstructionsStep(ex, instructions, sessionID),
	}
	if _, err := orch.ExecuteWithRetry(ctx, steps, values); err != nil {
		return fmt.Errorf("provision pod: %w", err)
	}
	podDir := values[orchestrator.ValuePodDir].(string)
	podID := filepath.Base(podDir)
	logger.Info("pod provisioned",
		zap.String("pod_id", podID),
		zap.String("pod_dir", podDir),
	)

	client, err := llm.NewClient(ctx, llm.Options{
		Provider:          cfg.LLM.Provider,
		Model:             cfg.LLM.Model,
		APIKey:            cfg.LLM.APIKey.Value(),
		Timeout:           cfg.LLM.Timeout.Duration(),
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("build llm client: %w", err)
	}

	executor, err := worker.NewExecutor(worker.Config{
		PodDir:   podDir,
		WorkerID: runWorkerID,
		Client:   client,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("build worker: %w", err)
	}
	evaluation := supervisor.NewEvaluation(nil, ex, nil, logger)

	l, err := loop.New(loop.Config{
		PodDir:      podDir,
		PodID:       podID,
		WorkerID:    runWorkerID,
		SessionID:   sessionID,
		MaxAttempts: cfg.Loop.MaxAttempts,
		Timeout:     cfg.Loop.WorkerTimeout.Duration(),
	}, executor, evaluation, ex, nil, logger)
	if err != nil {
		return fmt.Errorf("build loop: %w", err)
	}

	result, err := l.Run(ctx)
	if err != nil {
		return fmt.Errorf("run loop: %w", err)
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(encoded))

	if result.Status != loop.StatusPass {
		return fmt.Errorf("task did not pass: %s", result.Status)
	}
	return nil
}
