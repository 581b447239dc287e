package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadFileOverlayMissingFileIsZeroValue(t *testing.T) {
	ov, err := LoadFileOverlay(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Nil(t, ov.LogLevel)
	assert.Nil(t, ov.DecayLambda)
}

func TestLoadFileOverlayParsesPartialFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: debug\ndecayLambda: 0.5\n"), 0o644))

	ov, err := LoadFileOverlay(path)
	require.NoError(t, err)
	require.NotNil(t, ov.LogLevel)
	assert.Equal(t, "debug", *ov.LogLevel)
	require.NotNil(t, ov.DecayLambda)
	assert.Equal(t, 0.5, *ov.DecayLambda)
	assert.Nil(t, ov.PromotionThreshold)
}

func TestApplyOverridesOnlySetFields(t *testing.T) {
	base := Config{LogLevel: "info", DecayLambda: 1e-4, PromotionThreshold: 10, ExactWeight: 0.4, SimilarityWeight: 0.4, PPRWeight: 0.2, EmbeddingDimension: 768, StorageBackend: StorageMemory}
	lvl := "debug"
	ov := &Overlay{LogLevel: &lvl}

	merged, err := Apply(base, ov)
	require.NoError(t, err)
	assert.Equal(t, "debug", merged.LogLevel)
	assert.Equal(t, 10, merged.PromotionThreshold)
}

func TestApplyRejectsInvalidResult(t *testing.T) {
	base := Config{EmbeddingDimension: 768, StorageBackend: StorageMemory, ExactWeight: 0.4, SimilarityWeight: 0.4, PPRWeight: 0.2}
	zeroDim := 0
	ov := &Overlay{}
	base.EmbeddingDimension = zeroDim

	_, err := Apply(base, ov)
	assert.Error(t, err)
}

func TestWatcherReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: info\n"), 0o644))

	base := Config{LogLevel: "info", EmbeddingDimension: 768, StorageBackend: StorageMemory, ExactWeight: 0.4, SimilarityWeight: 0.4, PPRWeight: 0.2}
	w, err := NewWatcher(path, base, zap.NewNop())
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, "info", w.Current().LogLevel)

	changed := make(chan *Config, 1)
	w.OnChange(func(c *Config) { changed <- c })

	require.NoError(t, os.WriteFile(path, []byte("logLevel: warn\n"), 0o644))

	select {
	case c := <-changed:
		assert.Equal(t, "warn", c.LogLevel)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
	assert.Equal(t, "warn", w.Current().LogLevel)
}
