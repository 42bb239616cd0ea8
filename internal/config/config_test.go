package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir keeps the ./fieldbutton.yaml lookup away from the developer's tree.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(NewViper(), "", nil)
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, ":3000", cfg.Addr())
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "crm.biplaza.es", cfg.Bitrix.Domain)
	assert.Equal(t, "https", cfg.Bitrix.Scheme)
	assert.Equal(t, []string{"userfieldtype.add"}, cfg.Bitrix.Endpoints)
	assert.Equal(t, 10*time.Second, cfg.Bitrix.Timeout)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 100, cfg.RateLimit.Max)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.False(t, cfg.API.Enabled)
}

func TestLoad_LegacyEnvNames(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "8080")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("BITRIX_DOMAIN", "portal.bitrix24.es")

	cfg, err := Load(NewViper(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, EnvProduction, cfg.Env)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "portal.bitrix24.es", cfg.Bitrix.Domain)
}

func TestLoad_PrefixedEnvWins(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "8080")
	t.Setenv("FIELDBUTTON_PORT", "9090")
	t.Setenv("FIELDBUTTON_BITRIX_ENDPOINTS", "userfieldtype.add,userfieldtype.add.json user.userfield.type.add")
	t.Setenv("FIELDBUTTON_BITRIX_TIMEOUT", "12s")
	t.Setenv("FIELDBUTTON_API_ENABLED", "true")

	cfg, err := Load(NewViper(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"userfieldtype.add", "userfieldtype.add.json", "user.userfield.type.add"}, cfg.Bitrix.Endpoints)
	assert.Equal(t, 12*time.Second, cfg.Bitrix.Timeout)
	assert.True(t, cfg.API.Enabled)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 4000
env: production
public_url: https://fields.example.com/
bitrix:
  domain: b24-test.bitrix24.com
  endpoints:
    - userfieldtype.add
    - userfield.type.add
  timeout: 15s
cache:
  enabled: false
ratelimit:
  max: 0
`), 0o644))

	cfg, err := Load(NewViper(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, "https://fields.example.com", cfg.PublicURL)
	assert.Equal(t, "b24-test.bitrix24.com", cfg.Bitrix.Domain)
	assert.Equal(t, []string{"userfieldtype.add", "userfield.type.add"}, cfg.Bitrix.Endpoints)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 0, cfg.RateLimit.Max)
}

func TestLoad_DefaultFileInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fieldbutton.yaml"), []byte("port: 5050\n"), 0o644))

	cfg, err := Load(NewViper(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, 5050, cfg.Port)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	chdir(t, t.TempDir())
	_, err := Load(NewViper(), "does-not-exist.yaml", nil)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load(NewViper(), "", nil)
	require.NoError(t, err)

	bad := *cfg
	bad.Port = 0
	bad.Bitrix.Timeout = 30 * time.Second
	bad.Bitrix.Domain = "https://crm.example.com"
	bad.Bitrix.Scheme = "ftp"
	bad.Log.Level = "loud"

	err = bad.Validate()
	require.Error(t, err)
	for _, want := range []string{"port", "bitrix.timeout", "bitrix.domain", "bitrix.scheme", "log.level"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("FIELDBUTTON_TEST_DOTENV=from-file\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("FIELDBUTTON_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("FIELDBUTTON_TEST_DOTENV"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{Env: EnvProduction, Log: LogConfig{Level: "warn"}}

	logger := NewLogger(cfg, &buf)
	logger.Info("hidden")
	logger.Warn("shown", slog.String("k", "v"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)
}
