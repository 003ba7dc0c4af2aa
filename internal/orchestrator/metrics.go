package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/fyrsmithlabs/podharness/internal/orchestrator"

var (
	stepExecutionCounter metric.Int64Counter
	stepErrorCounter     metric.Int64Counter
	stepDuration         metric.Float64Histogram
)

// initMetrics initializes OpenTelemetry metrics for workflow steps.
// This is called once during package initialization.
func initMetrics() {
	meter := otel.Meter(instrumentationName)

	var err error

	stepExecutionCounter, err = meter.Int64Counter(
		"podharness.orchestrator.step.executions",
		metric.WithDescription("Total number of workflow step executions"),
		metric.WithUnit("{execution}"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create step execution counter: %v", err))
	}

	stepErrorCounter, err = meter.Int64Counter(
		"podharness.orchestrator.step.errors",
		metric.WithDescription("Number of workflow step execution errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create step error counter: %v", err))
	}

	stepDuration, err = meter.Float64Histogram(
		"podharness.orchestrator.step.duration",
		metric.WithDescription("Duration of workflow step executions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create step duration histogram: %v", err))
	}
}

func init() {
	initMetrics()
}

// observeStep records one step execution.
func observeStep(ctx context.Context, name string, elapsed time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("step", name))
	stepExecutionCounter.Add(ctx, 1, attrs)
	stepDuration.Record(ctx, elapsed.Seconds(), attrs)
	if err != nil {
		stepErrorCounter.Add(ctx, 1, attrs)
	}
}
