package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("ENV", "")
	t.Setenv("PORT", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("SESSION_COOKIE_SECURE", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 12*time.Hour, cfg.SessionTTL)
	require.False(t, cfg.SessionCookieSecure)
	require.Empty(t, cfg.RedisURL)
	require.Empty(t, cfg.KafkaBrokers)
	require.Equal(t, "zerohunger.donations", cfg.KafkaTopic)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("ENV", "prod")
	t.Setenv("PORT", "9090")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("LOCATION_PUSH_INTERVAL", "2")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://zh.example.com")
	t.Setenv("SESSION_COOKIE_SECURE", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, 30*time.Minute, cfg.SessionTTL)
	require.Equal(t, 2*time.Second, cfg.LocationPushInterval)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, []string{"https://zh.example.com"}, cfg.CORSAllowedOrigins)
	require.True(t, cfg.SessionCookieSecure)
}

func TestLoadConfigReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("MFA_ISSUER=FromFile\nLOG_LEVEL=debug\n"), 0o600))
	t.Setenv("ENV_FILE", path)
	// godotenv never overrides variables that are already set.
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("MFA_ISSUER", "")
	require.NoError(t, os.Unsetenv("MFA_ISSUER"))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "FromFile", cfg.MFAIssuer)
	require.Equal(t, "warn", cfg.LogLevel)
}
