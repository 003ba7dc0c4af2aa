package config

import (
	"fmt"
	"time"
)

// Config is the harness configuration.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Logging      LoggingConfig      `koanf:"logging"`
	Loop         LoopConfig         `koanf:"loop"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator"`
	LLM          LLMConfig          `koanf:"llm"`
	Telemetry    TelemetryConfig    `koanf:"telemetry"`
}

// TelemetryConfig configures OTLP metric export.
type TelemetryConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Endpoint       string   `koanf:"endpoint"`
	ExportInterval Duration `koanf:"export_interval"`
}

// ServerConfig configures the HTTP status API.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// LoopConfig configures the supervisor/worker feedback loop.
type LoopConfig struct {
	MaxAttempts   int      `koanf:"max_attempts"`
	WorkerTimeout Duration `koanf:"worker_timeout"`
}

// OrchestratorConfig configures workflow retry behavior.
type OrchestratorConfig struct {
	MaxRetries  int      `koanf:"max_retries"`
	BackoffBase Duration `koanf:"backoff_base"`
}

// LLMConfig configures the LLM provider used by workers.
type LLMConfig struct {
	Provider          string   `koanf:"provider"`
	Model             string   `koanf:"model"`
	APIKey            Secret   `koanf:"api_key"`
	Timeout           Duration `koanf:"timeout"`
	RequestsPerSecond float64  `koanf:"requests_per_second"`
}

// NewDefaultConfig returns the harness defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 9632,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Loop: LoopConfig{
			MaxAttempts:   3,
			WorkerTimeout: Duration(2 * time.Minute),
		},
		Orchestrator: OrchestratorConfig{
			MaxRetries:  3,
			BackoffBase: Duration(time.Second),
		},
		LLM: LLMConfig{
			Provider:          "anthropic",
			Timeout:           Duration(30 * time.Second),
			RequestsPerSecond: 1,
		},
		Telemetry: TelemetryConfig{
			Enabled:        false,
			Endpoint:       "localhost:4317",
			ExportInterval: Duration(15 * time.Second),
		},
	}
}

// Validate checks the configuration for fatal setup errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1-65535, got %d", c.Server.Port)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	if c.Loop.MaxAttempts < 1 {
		return fmt.Errorf("loop.max_attempts must be at least 1, got %d", c.Loop.MaxAttempts)
	}
	if c.Orchestrator.MaxRetries < 1 {
		return fmt.Errorf("orchestrator.max_retries must be at least 1, got %d", c.Orchestrator.MaxRetries)
	}
	if c.LLM.Provider == "" {
		return fmt.Errorf("llm.provider is required")
	}
	return nil
}
