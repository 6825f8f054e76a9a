package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadFile_NoFile verifies defaults are returned when the file doesn't
// exist
func TestLoadFile_NoFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

// TestLoadFile_ValidConfig verifies a full config file is loaded
func TestLoadFile_ValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	configDir := filepath.Join(tmpDir, ".listscrape")
	require.NoError(t, os.MkdirAll(configDir, 0755))

	configContent := `scrape:
  article_marker: /news/
  category_markers: [tag, topic]
  timeout: 5s
  delay: 250ms
  workers: 3
  max_articles: 10
  retries: 2
  headers:
    X-Team: growth
server:
  addr: ":9090"
  run_ttl: 30m
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(configContent), 0644))

	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, "/news/", cfg.Scrape.ArticleMarker)
	assert.Equal(t, []string{"tag", "topic"}, cfg.Scrape.CategoryMarkers)
	assert.Equal(t, 5*time.Second, cfg.Scrape.Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Scrape.Delay)
	assert.Equal(t, 3, cfg.Scrape.Workers)
	assert.Equal(t, 10, cfg.Scrape.MaxArticles)
	assert.Equal(t, 2, cfg.Scrape.Retries)
	assert.Equal(t, map[string]string{"X-Team": "growth"}, cfg.Scrape.Headers)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Server.RunTTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

// TestLoadFile_ExplicitPath verifies a path argument bypasses HOME
func TestLoadFile_ExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scrape.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scrape:\n  delay: 2s\n"), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Scrape.Delay)
}

// TestLoadFile_InvalidYAML verifies an error is returned for malformed YAML
func TestLoadFile_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scrape:\n  workers: [not valid\n"), 0644))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

// TestLoadFile_PartialConfig verifies unset fields keep their defaults
func TestLoadFile_PartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scrape:\n  workers: 2\n"), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	defaults := Default()
	assert.Equal(t, 2, cfg.Scrape.Workers)
	assert.Equal(t, defaults.Scrape.ArticleMarker, cfg.Scrape.ArticleMarker)
	assert.Equal(t, defaults.Scrape.Delay, cfg.Scrape.Delay)
	assert.Equal(t, defaults.Server, cfg.Server)
}

// TestLoad_Layers verifies env overrides file and the result is validated
func TestLoad_Layers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scrape:\n  workers: 2\n  delay: 3s\n"), 0644))

	env := map[string]string{"LISTSCRAPE_WORKERS": "4"}
	cfg, err := Load(path, func(k string) string { return env[k] })
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Scrape.Workers)
	assert.Equal(t, 3*time.Second, cfg.Scrape.Delay)

	env["LISTSCRAPE_WORKERS"] = "9"
	_, err = Load(path, func(k string) string { return env[k] })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scrape.workers")
}

// TestLoadDotEnv verifies .env values are exported without overriding the
// environment
func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LISTSCRAPE_TEST_DOTENV_A=from-file\nLISTSCRAPE_TEST_DOTENV_B=from-file\n"), 0644))

	t.Setenv("LISTSCRAPE_TEST_DOTENV_A", "")
	t.Setenv("LISTSCRAPE_TEST_DOTENV_B", "from-env")
	require.NoError(t, os.Unsetenv("LISTSCRAPE_TEST_DOTENV_A"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))

	assert.Equal(t, "from-file", os.Getenv("LISTSCRAPE_TEST_DOTENV_A"))
	assert.Equal(t, "from-env", os.Getenv("LISTSCRAPE_TEST_DOTENV_B"))
}
