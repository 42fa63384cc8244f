package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: test\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.InDelta(t, 1.0, cfg.Scoring.Weights.Sum(), 1e-9)
	assert.Equal(t, 1.0, cfg.Scoring.DecaySteepness)
	assert.Equal(t, 50.0, cfg.Scoring.NeutralPriceScore)
	assert.Equal(t, 5, cfg.Scoring.TopN)
}

func TestLoadRejectsBadWeights(t *testing.T) {
	path := writeConfig(t, `
jwt:
  secret: test
scoring:
  weights:
    location: 0.5
    sqft: 0.5
    price: 0.5
    asset_type: 0.1
    amenities: 0.1
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights must sum to 1.0")
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	path := writeConfig(t, "log_level: debug\n")

	_, err := Load(path)
	assert.Error(t, err)
}
