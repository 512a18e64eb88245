package app

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/dgallion1/sentree/internal/cache"
	"github.com/dgallion1/sentree/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		ResourcesDir: filepath.Join("..", "..", "resources"),
		CacheDir:     t.TempDir(),
		CacheEnabled: true,
		MaxBodyBytes: config.DefaultMaxBodyBytes,
	}
}

func TestBuild(t *testing.T) {
	a, err := Build(testConfig(t), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "1.0.0", a.Analyzer.APIVersion())
	assert.False(t, a.Claude.HasAPIKey())
	assert.IsType(t, &cache.FileStore{}, a.Entries)
}

func TestBuild_CacheDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.CacheEnabled = false

	a, err := Build(cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	assert.IsType(t, cache.Nop{}, a.Entries)
}

func TestBuild_MissingTemplates(t *testing.T) {
	cfg := testConfig(t)
	cfg.ResourcesDir = t.TempDir()

	_, err := Build(cfg, slog.New(slog.DiscardHandler))
	assert.ErrorContains(t, err, "load templates")
}
