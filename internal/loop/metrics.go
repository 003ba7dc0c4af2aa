package loop

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fyrsmithlabs/podharness/internal/evaluate"
)

const instrumentationName = "github.com/fyrsmithlabs/podharness/internal/loop"

var (
	iterationCounter metric.Int64Counter
	outcomeCounter   metric.Int64Counter
)

// initMetrics initializes OpenTelemetry metrics for the feedback loop.
// This is called once during package initialization.
func initMetrics() {
	meter := otel.Meter(instrumentationName)

	var err error

	iterationCounter, err = meter.Int64Counter(
		"podharness.loop.iterations",
		metric.WithDescription("Total number of feedback loop iterations"),
		metric.WithUnit("{iteration}"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create iteration counter: %v", err))
	}

	outcomeCounter, err = meter.Int64Counter(
		"podharness.loop.outcomes",
		metric.WithDescription("Terminal feedback loop outcomes by status"),
		metric.WithUnit("{outcome}"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create outcome counter: %v", err))
	}
}

func init() {
	initMetrics()
}

func observeIteration(ctx context.Context, status evaluate.Status) {
	iterationCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))
}

func observeOutcome(ctx context.Context, status string) {
	outcomeCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
