// internal/common/config/loader_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: sales
    user: sales
  redis:
    address: localhost:6379
whatsapp:
  gateway_url: http://localhost:3000
`

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 15000, cfg.AntiBan.MinDelay)
	assert.Equal(t, 45000, cfg.AntiBan.MaxDelay)
	assert.True(t, cfg.AntiBan.TypingEnabled)
	assert.Equal(t, 1000, cfg.AntiBan.ThinkingMin)
	assert.Equal(t, 2000, cfg.AntiBan.ThinkingMax)
	assert.Equal(t, 70, cfg.Leads.DefaultThreshold)
	assert.Equal(t, 24*time.Hour, GetDuration(cfg.Leads.Window))
	assert.Equal(t, "mistral-small-latest", cfg.APIs.GenAI.Model)
	assert.Equal(t, 500, cfg.APIs.GenAI.MaxTokens)
	assert.Equal(t, "/webhooks/whatsapp", cfg.WhatsApp.WebhookPath)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.True(t, cfg.Database.Postgres.AutoMigrate)
}

func TestLoadFromFile_TypingCanBeDisabled(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig+`
anti_ban:
  typing_enabled: false
`))
	require.NoError(t, err)
	assert.False(t, cfg.AntiBan.TypingEnabled)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_GATEWAY_URL", "http://gateway:9000")

	cfg, err := LoadFromFile(writeConfig(t, `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: sales
    user: sales
  redis:
    address: localhost:6379
whatsapp:
  gateway_url: ${TEST_GATEWAY_URL}
`))
	require.NoError(t, err)
	assert.Equal(t, "http://gateway:9000", cfg.WhatsApp.GatewayURL)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing broker",
			body:    "database:\n  postgres:\n    host: x\n",
			wantErr: "camunda.broker_address is required",
		},
		{
			name:    "inverted anti-ban delays",
			body:    minimalConfig + "anti_ban:\n  min_delay: 50000\n  max_delay: 10000\n",
			wantErr: "anti_ban.min_delay",
		},
		{
			name:    "threshold out of range",
			body:    minimalConfig + "leads:\n  default_threshold: 150\n",
			wantErr: "leads.default_threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetWorkerConfig_Fallback(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"score-hot-lead": {Enabled: false, MaxJobsActive: 2},
	}}

	assert.False(t, IsWorkerEnabled(cfg, "score-hot-lead"))
	assert.True(t, IsWorkerEnabled(cfg, "negotiate-price"))
	assert.Equal(t, 5, GetWorkerConfig(cfg, "negotiate-price").MaxJobsActive)
	assert.Equal(t, 2, GetWorkerConfig(cfg, "score-hot-lead").MaxJobsActive)
}
