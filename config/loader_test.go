package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "memory", cfg.Transcript.Backend)
	assert.Equal(t, "sqlite", cfg.Archive.Driver)
	assert.False(t, cfg.Auth.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/colloquy.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colloquy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  http_port: 9000
llm:
  credential: sk-ant-test
  model: claude-sonnet-4-5
conversation:
  max_turns: 8
  turn_delay: 2s
transcript:
  backend: redis
  addr: redis:6379
`), 0o600))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, "sk-ant-test", cfg.LLM.Credential)
	assert.Equal(t, 8, cfg.Conversation.MaxTurns)
	assert.Equal(t, 2*time.Second, cfg.Conversation.TurnDelay)
	assert.Equal(t, "redis", cfg.Transcript.Backend)
	assert.Equal(t, "redis:6379", cfg.Transcript.Addr)
	// Untouched sections keep their defaults.
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colloquy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9000\n"), 0o600))

	t.Setenv("COLLOQUY_SERVER_HTTP_PORT", "7070")
	t.Setenv("COLLOQUY_LLM_CREDENTIAL", "gsk_test")
	t.Setenv("COLLOQUY_CONVERSATION_TURN_DELAY", "500ms")
	t.Setenv("COLLOQUY_AUTH_ENABLED", "true")
	t.Setenv("COLLOQUY_AUTH_JWT_SECRET", "s3cret")
	t.Setenv("COLLOQUY_LOG_OUTPUT_PATHS", "stdout, /var/log/colloquy.log")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.HTTPPort)
	assert.Equal(t, "gsk_test", cfg.LLM.Credential)
	assert.Equal(t, 500*time.Millisecond, cfg.Conversation.TurnDelay)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, []string{"stdout", "/var/log/colloquy.log"}, cfg.Log.OutputPaths)
	require.NoError(t, cfg.Validate())
}

func TestLoad_CustomEnvPrefix(t *testing.T) {
	t.Setenv("CQ_SERVER_HTTP_PORT", "6060")
	cfg, err := NewLoader().WithEnvPrefix("CQ").Load()
	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Server.HTTPPort)
}

func TestLoad_InvalidEnvValue(t *testing.T) {
	t.Setenv("COLLOQUY_SERVER_HTTP_PORT", "not-a-port")
	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COLLOQUY_SERVER_HTTP_PORT")
}

func TestLoad_ValidatorRuns(t *testing.T) {
	t.Setenv("COLLOQUY_CONVERSATION_MAX_TURNS", "0")
	_, err := NewLoader().WithValidator((*Config).Validate).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_turns")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.HTTPPort = 0 }, "HTTP port"},
		{"bad transcript backend", func(c *Config) { c.Transcript.Backend = "etcd" }, "transcript backend"},
		{"redis without addr", func(c *Config) { c.Transcript.Backend = "redis"; c.Transcript.Addr = "" }, "addr"},
		{"bad archive driver", func(c *Config) { c.Archive.Enabled = true; c.Archive.Driver = "oracle" }, "archive driver"},
		{"auth without secret", func(c *Config) { c.Auth.Enabled = true }, "jwt_secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestArchiveDSN(t *testing.T) {
	a := ArchiveConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Name: "colloquy", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=colloquy sslmode=disable", a.DSN())

	a.Driver = "mysql"
	assert.Equal(t, "u:p@tcp(db:5432)/colloquy?parseTime=true", a.DSN())

	a.Driver = "sqlite"
	assert.Equal(t, "colloquy", a.DSN())

	a.Driver = "bogus"
	assert.Empty(t, a.DSN())
}
