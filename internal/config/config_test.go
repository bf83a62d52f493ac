package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testChdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func testChdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	testChdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDev, cfg.Server.Environment)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, 6, cfg.Security.CodeLength)
	assert.Equal(t, 10*time.Minute, cfg.Security.CodeTTL)
	assert.Equal(t, 3, cfg.Security.MaxCodeAttempts)
	assert.Equal(t, "auth-token", cfg.Session.AuthCookie)
	assert.Equal(t, "anon_token", cfg.Session.AnonCookie)
	assert.Equal(t, 365*24*time.Hour, cfg.Session.AnonTTL)
	assert.Equal(t, "https://sms.ru", cfg.SMS.BaseURL)
	assert.Equal(t, "X-Forwarded-For", cfg.Server.ProxyHeader)
	assert.Equal(t, []string{"127.0.0.1", "::1"}, cfg.Server.TrustedProxies)
}

func TestLoad_EnvOverrides(t *testing.T) {
	testChdir(t, t.TempDir())
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SECURITY_CODE_TTL", "5m")
	t.Setenv("SERVER_TRUSTED_PROXIES", "10.0.0.1,10.0.0.2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Security.CodeTTL)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.Server.TrustedProxies)
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	testChdir(t, t.TempDir())
	t.Setenv("SERVER_ENVIRONMENT", EnvProd)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret")

	t.Setenv("JWT_SECRET", "prod-secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "aso", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/aso?sslmode=disable", d.DSN())
}
