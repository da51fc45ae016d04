package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craps-server/internal/config"
)

func TestParseConfig(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "craps",
		Password: "secret",
		Name:     "craps",
		PoolSize: 12,
	}

	pc, err := ParseConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, int32(12), pc.MaxConns)
	assert.Equal(t, int32(3), pc.MinConns)
	assert.Equal(t, "db", pc.ConnConfig.Host)
	assert.Equal(t, uint16(5433), pc.ConnConfig.Port)
	assert.Equal(t, 10*time.Second, pc.ConnConfig.ConnectTimeout)
	assert.Equal(t, time.Hour, pc.MaxConnLifetime)
	assert.Equal(t, 30*time.Minute, pc.MaxConnIdleTime)
}

func TestParseConfigSmallPool(t *testing.T) {
	cfg := &config.DatabaseConfig{Host: "localhost", Port: 5432, User: "u", Name: "n", PoolSize: 2}

	pc, err := ParseConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(1), pc.MinConns)
}
