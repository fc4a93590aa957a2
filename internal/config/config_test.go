package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	configContent := `
listen_addr = ":9090"
db_path = "/tmp/test-expenses.db"
model = "gemini-2.0-flash"
inference_timeout = "5s"
auto_process = false
workers = 2

[[banks]]
identifier = "TESTBNK"
bank_name = "Test Bank"
active = true

[[banks]]
identifier = "OLDBNK"
bank_name = "Old Bank"
active = false
`

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/test-expenses.db", cfg.DBPath)
	assert.Equal(t, "gemini-2.0-flash", cfg.Model)
	assert.Equal(t, 5*time.Second, cfg.InferenceTimeout)
	assert.False(t, cfg.AutoProcess)
	assert.Equal(t, 2, cfg.Workers)

	require.Len(t, cfg.Banks, 2)
	assert.Equal(t, "TESTBNK", cfg.Banks[0].Identifier)
	assert.Equal(t, "Test Bank", cfg.Banks[0].BankName)
	assert.True(t, cfg.Banks[0].Active)
	assert.False(t, cfg.Banks[1].Active)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "gemini-2.5-flash", cfg.Model)
	assert.Equal(t, 10*time.Second, cfg.InferenceTimeout)
	assert.True(t, cfg.AutoProcess)
	assert.Equal(t, 5, cfg.Workers)

	// No banks configured falls back to the built-in directory.
	assert.NotEmpty(t, cfg.Banks)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.toml")
	assert.Error(t, err)
}
