package common

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, 5, cfg.Retry.ExtractMaxAttempts)
	assert.Equal(t, 3, cfg.Retry.OCRMaxAttempts)
	assert.Equal(t, 2.0, cfg.Retry.BackoffBase)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quotesd.yaml")
	doc := `
store:
  dsn: memory://
mail:
  provider: maildrop
  maildrop:
    dir: /var/spool/quotes
llm:
  provider: langchain
  model: llama3
scheduler:
  interval: 45s
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")
	t.Setenv("SCOPES", `["Mail.Read","Mail.Send"]`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "memory://", cfg.Store.DSN)
	assert.Equal(t, "maildrop", cfg.Mail.Provider)
	assert.Equal(t, "/var/spool/quotes", cfg.Mail.Maildrop.Dir)
	assert.Equal(t, "langchain", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model, "env wins over file")
	assert.Equal(t, 45*time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, []string{"Mail.Read", "Mail.Send"}, cfg.Mail.Graph.Scopes)
}

func TestGetEnvAsStrings_CommaList(t *testing.T) {
	t.Setenv("SCOPES_TEST", "a, b,,c")
	assert.Equal(t, []string{"a", "b", "c"}, getEnvAsStrings("SCOPES_TEST", nil))
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mail.Provider = "maildrop"
	cfg.LLM.APIKey = "sk-test"
	cfg.Downstream.URL = "http://erp.local"
	require.NoError(t, cfg.Validate())

	cfg.Downstream.Kind = "postgres"
	cfg.LLM.Provider = "bard"
	err := cfg.Validate()
	require.Error(t, err)

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)
	assert.Contains(t, appErr.Message, "downstream.database.dsn")
	assert.Contains(t, appErr.Message, "llm.provider")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestConfigString_MasksSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.APIKey = "sk-secret"
	assert.NotContains(t, cfg.String(), "sk-secret")
}
