package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LEDGER_BACKEND", "DATABASE_PATH", "DB_BUSY_TIMEOUT",
		"ENGINE_MAX_COMMIT_ATTEMPTS", "ENGINE_RETRY_BACKOFF", "ENGINE_PURCHASE_TIMEOUT",
		"KAFKA_BROKERS", "HTTP_ALLOWED_ORIGINS", "HTTP_ADDR", "REDIS_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "referrals.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout)
	assert.Equal(t, 5, cfg.Engine.MaxCommitAttempts)
	assert.Equal(t, 20*time.Millisecond, cfg.Engine.RetryBackoff)
	assert.Equal(t, 10*time.Second, cfg.Engine.PurchaseTimeout)
	assert.Equal(t, ":3000", cfg.Http.Addr)
	assert.Equal(t, []string{"*"}, cfg.Http.AllowedOrigins)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, "earningsUpdate", cfg.Redis.Channel)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LEDGER_BACKEND", "Formance")
	t.Setenv("ENGINE_MAX_COMMIT_ATTEMPTS", "8")
	t.Setenv("ENGINE_RETRY_BACKOFF", "0s")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, ,kafka-2:9092")
	t.Setenv("HTTP_ALLOWED_ORIGINS", "https://app.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendFormance, cfg.Backend)
	assert.Equal(t, 8, cfg.Engine.MaxCommitAttempts)
	assert.Zero(t, cfg.Engine.RetryBackoff)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Http.AllowedOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"UnknownBackend", "LEDGER_BACKEND", "postgres"},
		{"ZeroAttempts", "ENGINE_MAX_COMMIT_ATTEMPTS", "0"},
		{"BadBackoff", "ENGINE_RETRY_BACKOFF", "soon"},
		{"BadBusyTimeout", "DB_BUSY_TIMEOUT", "5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestGetEnvInt_IgnoresGarbage(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "lots")
	assert.Equal(t, 25, getEnvInt("DB_MAX_OPEN_CONNS", 25))
}
