package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "DB_DRIVER", "DB_PATH", "DATABASE_URL", "AMQP_URL", "AUDIT_EXCHANGE",
		"LOG_LEVEL", "LOG_FORMAT", "HOUSEKEEPING_SPEC", "REJECTED_TTL", "REWARD_DEDUPE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "payouts.db", cfg.DBPath)
	assert.Equal(t, "0 0 * * *", cfg.HousekeepingSpec)
	assert.Equal(t, 24*time.Hour, cfg.RejectedTTL)
	assert.False(t, cfg.RewardDedupe)
}

func TestLoad_EnvThenFlags(t *testing.T) {
	// GIVEN: Environment settings and a flag overriding one of them
	// WHEN: Loading
	// THEN: The flag wins, the rest come from the environment

	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("REJECTED_TTL", "72h")
	t.Setenv("REWARD_DEDUPE", "true")

	cfg, err := Load([]string{"-port", "9100", "-db", ":memory:"})
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, 72*time.Hour, cfg.RejectedTTL)
	assert.True(t, cfg.RewardDedupe)
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("AUDIT_EXCHANGE")

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("AUDIT_EXCHANGE=ops.audit\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("AUDIT_EXCHANGE") })

	cfg, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, "ops.audit", cfg.AuditExchange)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)

	_, err := Load([]string{"-driver", "postgres"})
	assert.ErrorContains(t, err, "DATABASE_URL")

	_, err = Load([]string{"-driver", "mysql"})
	assert.Error(t, err)

	_, err = Load([]string{"-log-format", "xml"})
	assert.Error(t, err)
}

func TestLogger(t *testing.T) {
	cfg := &Config{LogLevel: "debug", LogFormat: "json"}
	logger := cfg.Logger()
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}
