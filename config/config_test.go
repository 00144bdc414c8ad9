package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("REDIS_HOST", "cache")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "3000", cfg.Port)
	require.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	require.Equal(t, DefaultJWTSecret, cfg.JWTSecret)
	require.True(t, cfg.UsingDefaultSecret)
	require.Equal(t, 24*time.Hour, cfg.LawyerTokenTTL)
	require.Equal(t, 7*24*time.Hour, cfg.ClientTokenTTL)
	require.Equal(t, "cache:6379", cfg.RedisHost)
	require.Equal(t, 100, cfg.RateLimitMax)
	require.Equal(t, 15*time.Minute, cfg.RateLimitWindow)
	require.Equal(t, 587, cfg.Mail.Port)
}

func TestLoadRequiresSecretInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsUnknownStoreDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")

	_, err := Load()
	require.ErrorContains(t, err, "STORE_DRIVER")
}

func TestDBConfigDSN(t *testing.T) {
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "legal")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "estate")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "host=db user=legal password=secret dbname=estate port=5432 sslmode=disable", cfg.DB.DSN())
	require.False(t, cfg.UsingDefaultSecret)
}
