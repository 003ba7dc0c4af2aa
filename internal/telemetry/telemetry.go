package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
)

// Config configures metric export.
type Config struct {
	// Enabled turns OTLP export on. Disabled telemetry leaves the
	// global no-op meter provider in place.
	Enabled bool

	// Endpoint is the OTLP gRPC collector address.
	Endpoint string

	// ServiceName identifies the harness in the collector.
	ServiceName string

	// ExportInterval is the periodic reader cadence.
	ExportInterval time.Duration
}

// NewDefaultConfig returns telemetry defaults: disabled, local
// collector, 15s export interval.
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:        false,
		Endpoint:       "localhost:4317",
		ServiceName:    "podharness",
		ExportInterval: 15 * time.Second,
	}
}

// Telemetry owns the meter provider and its shutdown.
type Telemetry struct {
	meterProvider *sdkmetric.MeterProvider
	logger        *zap.Logger
}

// New initializes metric export and installs the global meter
// provider. A disabled config returns a no-op instance.
func New(ctx context.Context, cfg *Config, logger *zap.Logger) (*Telemetry, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Telemetry{logger: logger}
	if !cfg.Enabled {
		return t, nil
	}

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("build telemetry resource: %w", err)
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(interval),
		)),
	)
	otel.SetMeterProvider(mp)
	t.meterProvider = mp
	logger.Info("telemetry enabled",
		zap.String("endpoint", cfg.Endpoint),
		zap.Duration("export_interval", interval),
	)
	return t, nil
}

// Shutdown flushes and stops metric export.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.meterProvider == nil {
		return nil
	}
	if err := t.meterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown meter provider: %w", err)
	}
	return nil
}
