package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "uploads", cfg.UploadDir)
	assert.Equal(t, 5*time.Second, cfg.DBReconnectDelay)
	assert.Equal(t, 20*time.Second, cfg.RendererTimeout)
	assert.Empty(t, cfg.DBDSN)
	assert.Empty(t, cfg.JWTSecret)
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"PORT":             "9000",
		"DB_DSN":           "postgres://x",
		"RENDERER_TIMEOUT": "3s",
		"LOG_FORMAT":       "json",
	})
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr())
	assert.Equal(t, "postgres://x", cfg.DBDSN)
	assert.Equal(t, 3*time.Second, cfg.RendererTimeout)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadFrom_Invalid(t *testing.T) {
	_, err := LoadFrom(map[string]string{"RENDERER_TIMEOUT": "pronto"})
	assert.Error(t, err)

	_, err = LoadFrom(map[string]string{"UPLOAD_DIR": " "})
	assert.Error(t, err)

	_, err = LoadFrom(map[string]string{"DB_SUPERVISE_INTERVAL": "0s"})
	assert.Error(t, err)
}
