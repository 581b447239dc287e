package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 768, cfg.EmbeddingDimension)
	assert.Equal(t, StorageMemory, cfg.StorageBackend)
	assert.Equal(t, 1e-4, cfg.DecayLambda)
}

func TestValidateRejectsBadDimension(t *testing.T) {
	os.Setenv("EMBEDDING_DIMENSION", "0")
	defer os.Unsetenv("EMBEDDING_DIMENSION")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateRequiresSPARQLURLs(t *testing.T) {
	os.Setenv("STORAGE_BACKEND", "sparql")
	defer os.Unsetenv("STORAGE_BACKEND")

	_, err := Load()
	assert.Error(t, err)
}
