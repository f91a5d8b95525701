package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsStdio(t *testing.T) {
	t.Setenv("AGENTMAIL_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "stdio", cfg.Transport.Mode)
	require.Equal(t, "agentmail.db", cfg.Store.DatabasePath)
	require.Equal(t, 1024, cfg.Archive.QueueCapacity)
	require.Equal(t, "127.0.0.1", cfg.Transport.Host)
	require.Equal(t, "/mcp/", cfg.Transport.Path)
}

func TestLoadHTTPRequiresAuth(t *testing.T) {
	t.Setenv("AGENTMAIL_CONFIG", "")
	t.Setenv("AGENTMAIL_TRANSPORT", "http")
	_, err := Load("")
	require.Error(t, err)
}

func TestLoadHTTPWithBearerToken(t *testing.T) {
	t.Setenv("AGENTMAIL_CONFIG", "")
	t.Setenv("AGENTMAIL_TRANSPORT", "http")
	t.Setenv("AGENTMAIL_BEARER_TOKEN", "s3cr3t-token")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "http", cfg.Transport.Mode)
	require.Equal(t, "s3cr3t-token", cfg.Auth.BearerToken)
}

func TestLoadJWTRequiresJWKSURL(t *testing.T) {
	t.Setenv("AGENTMAIL_CONFIG", "")
	t.Setenv("AGENTMAIL_TRANSPORT", "http")
	t.Setenv("AGENTMAIL_JWT_ENABLED", "true")
	_, err := Load("")
	require.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentmail.toml")
	contents := "[store]\ndatabase_path = \"file.db\"\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	t.Setenv("AGENTMAIL_DATABASE_PATH", "env.db")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "env.db", cfg.Store.DatabasePath)
}

func TestMissingExplicitConfigPathIsAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestInvalidTransportMode(t *testing.T) {
	t.Setenv("AGENTMAIL_CONFIG", "")
	t.Setenv("AGENTMAIL_TRANSPORT", "carrier-pigeon")
	_, err := Load("")
	require.Error(t, err)
}
