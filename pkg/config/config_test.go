package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
  timeout: "45s"
news:
  queries:
    - "台海 軍事"
  quality_min: 5
credits:
  monthly_quota: 500
`)

	cfg, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 45*time.Second, cfg.ServerTimeout())
	assert.Equal(t, []string{"台海 軍事"}, cfg.News.Queries)
	assert.Equal(t, 5, cfg.News.QualityMin)
	assert.Equal(t, 500.0, cfg.Credits.MonthlyQuota)
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `{}`))

	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.News.QualityMin)
	assert.Equal(t, 12, cfg.News.MaxTotal)
	assert.Equal(t, 15, cfg.News.MinTitleLen)
	assert.Equal(t, 1000.0, cfg.Credits.MonthlyQuota)
	assert.Equal(t, "@every 15m", cfg.Refresh.Spec)
	assert.Equal(t, 2650.0, cfg.Price.Gold.BasePrice)
	assert.Equal(t, 550.0, cfg.Price.Wheat.BasePrice)
	assert.Positive(t, cfg.ServerTimeout())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("DB_PASSWORD", "secret-from-env")

	cfg, err := LoadConfig(writeConfig(t, `
llm:
  api_key: "sk-from-file"
db:
  password: "from-file"
`))

	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.LLM.APIKey)
	assert.Equal(t, "secret-from-env", cfg.DB.Password)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestServerTimeoutInvalid(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Timeout: "not-a-duration"}}
	assert.Equal(t, time.Duration(0), cfg.ServerTimeout())
}
