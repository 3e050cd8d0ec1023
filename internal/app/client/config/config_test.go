package config

import (
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(viper.New())
		require.NoError(t, err)

		assert.Equal(t, "localhost:8080", cfg.ServerAddress)
		assert.Equal(t, "http://localhost:8080", cfg.BaseURL())
		assert.Equal(t, 100, cfg.PushBatchSize)
		assert.Equal(t, "client.db", filepath.Base(cfg.DataPath))
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("SERVER_ADDRESS", "sync.example.com")
		t.Setenv("ENABLE_TLS", "true")
		t.Setenv("CLIENT_DATA_PATH", "/tmp/device.db")
		t.Setenv("PUSH_BATCH_SIZE", "10")

		cfg, err := Load(viper.New())
		require.NoError(t, err)

		assert.Equal(t, "https://sync.example.com", cfg.BaseURL())
		assert.Equal(t, "/tmp/device.db", cfg.DataPath)
		assert.Equal(t, 10, cfg.PushBatchSize)
	})

	t.Run("invalid batch size", func(t *testing.T) {
		t.Setenv("PUSH_BATCH_SIZE", "0")

		_, err := Load(viper.New())
		assert.Error(t, err)
	})
}
