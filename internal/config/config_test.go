package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  host: "0.0.0.0"
  upload_dir: "/data/uploads"

cleaning:
  ceiling: 10000000

summary:
  provider: ollama
  ollama_model: "llama3"

log:
  level: debug
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
	assert.Equal(t, "/data/uploads", cfg.Server.UploadDir)
	assert.Equal(t, 10_000_000.0, cfg.Cleaning.Ceiling)
	assert.Equal(t, "ollama", cfg.Summary.Provider)
	assert.Equal(t, "llama3", cfg.Summary.OllamaModel)
	assert.Equal(t, "debug", cfg.Log.Level)

	// defaults fill what the file leaves out
	assert.Equal(t, 100, cfg.Server.MaxUploadMB)
	assert.Equal(t, "http://localhost:11434", cfg.Summary.OllamaBaseURL)
	require.NotNil(t, cfg.Summary.Temperature)
	assert.Equal(t, 0.3, *cfg.Summary.Temperature)
	require.NoError(t, cfg.Validate())
}

func TestLoadZeroTemperature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("summary:\n  temperature: 0\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Summary.Temperature)
	assert.Equal(t, 0.0, *cfg.Summary.Temperature)
}

func TestDatabaseDSN(t *testing.T) {
	assert.Empty(t, DatabaseConfig{}.DSN())

	db := DatabaseConfig{Host: "db", User: "app", Password: "s3cret", DBName: "growth"}
	assert.Equal(t, "host=db port=5432 user=app password=s3cret dbname=growth sslmode=disable", db.DSN())

	db.Password = `it's a pass\word`
	db.SSLMode = "require"
	db.Port = 6543
	assert.Equal(t, `host=db port=6543 user=app password='it\'s a pass\\word' dbname=growth sslmode=require`, db.DSN())
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 8001, cfg.Server.Port)
	assert.Equal(t, 1_000_000.0, cfg.Cleaning.Ceiling)
	assert.Equal(t, "none", cfg.Summary.Provider)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("PORT", "7000")
	t.Setenv("UPLOAD_DIR", "/tmp/up")
	t.Setenv("CLEANING_CEILING", "5000000")
	t.Setenv("SUMMARY_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "token")
	t.Setenv("SUMMARY_MODEL", "openai/gpt-4o-mini")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("DB_HOST", "pg.internal")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("DB_USER", "reader")
	t.Setenv("DB_NAME", "metrics")

	cfg, err := LoadFromEnv("")
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "/tmp/up", cfg.Server.UploadDir)
	assert.Equal(t, 5_000_000.0, cfg.Cleaning.Ceiling)
	assert.Equal(t, "openai", cfg.Summary.Provider)
	assert.Equal(t, "token", cfg.Summary.APIKey)
	assert.Equal(t, "openai/gpt-4o-mini", cfg.Summary.Model)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "host=pg.internal port=5433 user=reader password='' dbname=metrics sslmode=disable", cfg.Database.DSN())
}

func TestLoadFromEnvBadNumber(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("PORT", "eighty")

	_, err = LoadFromEnv("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"max ceiling", func(c *Config) { c.Cleaning.Ceiling = 10_000_000 }, false},
		{"ceiling too high", func(c *Config) { c.Cleaning.Ceiling = 10_000_001 }, true},
		{"negative ceiling", func(c *Config) { c.Cleaning.Ceiling = -1 }, true},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, true},
		{"unknown provider", func(c *Config) { c.Summary.Provider = "bard" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
