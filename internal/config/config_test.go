package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := fromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "dev-secret", cfg.JWTConfig.Secret)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaConfig.Brokers)
	assert.Empty(t, cfg.RedisConfig.Addr)
	assert.Equal(t, 3*time.Second, cfg.LockConfig.Wait)
}

func TestFromViper_Environment(t *testing.T) {
	t.Setenv("BOOKING_SERVICE_PORT", "9000")
	t.Setenv("BOOKING_APP_ENV", "production")
	t.Setenv("BOOKING_JWT_SECRET", "s3cret")
	t.Setenv("BOOKING_KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("BOOKING_REDIS_ADDR", "redis:6379")
	t.Setenv("BOOKING_LOCK_WAIT", "500ms")

	cfg, err := fromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Port)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "s3cret", cfg.JWTConfig.Secret)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaConfig.Brokers)
	assert.Equal(t, "redis:6379", cfg.RedisConfig.Addr)
	assert.Equal(t, 500*time.Millisecond, cfg.LockConfig.Wait)
}

func TestFromViper_RequiresSecretInProduction(t *testing.T) {
	t.Setenv("BOOKING_APP_ENV", "production")
	_, err := fromViper(newViper())
	assert.Error(t, err)
}
