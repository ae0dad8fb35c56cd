package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"MODE", "HTTP_ADDR", "DB_DRIVER", "RECORD_BACKEND", "AUTH_HMAC_SECRET", "TOKEN_TTL", "CORS_ORIGINS", "SUBMIT_BURST", "BLOB_BASE_PATH"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	assert.Equal(t, ModeOffline, cfg.Mode)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "sql", cfg.RecordBackend)
	assert.Equal(t, 8*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 10, cfg.SubmitBurst)
	assert.True(t, cfg.StoreBreaker)
	assert.Len(t, cfg.CORSOrigins, 2)
	assert.Equal(t, "./data", cfg.BlobBasePath)
	require.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MODE", "online")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("RECORD_BACKEND", "mongo")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("AUTH_HMAC_SECRET", "0123456789abcdef0123")
	t.Setenv("TOKEN_TTL", "30m")
	t.Setenv("CORS_ORIGINS", " https://a.example , https://b.example,")
	t.Setenv("SUBMIT_RATE_PER_SEC", "0.5")
	t.Setenv("STORE_BREAKER", "no")

	cfg := FromEnv()
	assert.Equal(t, ModeOnline, cfg.Mode)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 0.5, cfg.SubmitRatePerSec)
	assert.False(t, cfg.StoreBreaker)
	require.NoError(t, cfg.Validate())
}

func TestValidateRejects(t *testing.T) {
	t.Setenv("MODE", "online")
	t.Setenv("AUTH_HMAC_SECRET", "")
	assert.Error(t, FromEnv().Validate(), "online mode needs a secret")

	t.Setenv("MODE", "")
	t.Setenv("AUTH_HMAC_SECRET", "")
	t.Setenv("DB_DRIVER", "oracle")
	assert.Error(t, FromEnv().Validate())

	t.Setenv("DB_DRIVER", "")
	t.Setenv("RECORD_BACKEND", "mongo")
	t.Setenv("MONGO_URI", "")
	assert.Error(t, FromEnv().Validate())
}
