package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerAddress = "localhost:8080"
	defaultEnv           = "local"
	defaultDataDir       = ".orgsync"
	defaultDataFile      = "client.db"
)

type Config struct {
	Env           string
	ServerAddress string
	EnableTLS     bool
	DataPath      string
	PushBatchSize int
	Timeout       time.Duration
}

// Load загружает конфигурацию клиента из .env, файла (если задан) и окружения
func Load(v *viper.Viper) (*Config, error) {
	envPath := ".env"
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("ошибка загрузки .env файла: %w", err)
		}
	}

	if v == nil {
		v = viper.New()
	}
	v.AutomaticEnv()

	v.SetDefault("app_env", defaultEnv)
	v.SetDefault("server_address", defaultServerAddress)
	v.SetDefault("enable_tls", false)
	v.SetDefault("push_batch_size", 100)
	v.SetDefault("client_timeout", 30*time.Second)

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	dataPath := v.GetString("client_data_path")
	if dataPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dataPath = filepath.Join(home, defaultDataDir, defaultDataFile)
	}

	config := &Config{
		Env:           v.GetString("app_env"),
		ServerAddress: v.GetString("server_address"),
		EnableTLS:     v.GetBool("enable_tls"),
		DataPath:      dataPath,
		PushBatchSize: v.GetInt("push_batch_size"),
		Timeout:       v.GetDuration("client_timeout"),
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.ServerAddress == "" {
		return errors.New("server_address не может быть пустым")
	}
	if c.PushBatchSize <= 0 {
		return fmt.Errorf("push_batch_size должен быть положительным: %d", c.PushBatchSize)
	}
	return nil
}

// BaseURL адрес сервера со схемой
func (c *Config) BaseURL() string {
	if c.EnableTLS {
		return "https://" + c.ServerAddress
	}
	return "http://" + c.ServerAddress
}
