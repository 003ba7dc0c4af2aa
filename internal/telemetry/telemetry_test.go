package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDisabledIsNoop(t *testing.T) {
	tel, err := New(context.Background(), &Config{Enabled: false}, nil)
	require.NoError(t, err)
	require.NotNil(t, tel)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNewNilConfigDefaultsDisabled(t *testing.T) {
	tel, err := New(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestShutdownNil(t *testing.T) {
	var tel *Telemetry
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, "podharness", cfg.ServiceName)
	assert.Equal(t, 15*time.Second, cfg.ExportInterval)
}
