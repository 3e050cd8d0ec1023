package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPath = ".env"

	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Env     string
	DB      DB
	Server  Server
	Logger  Logger
	Session Session
	Sync    Sync
}

type DB struct {
	Driver      string `env:"DB_DRIVER" envDefault:"postgres"`
	DatabaseURI string `env:"DATABASE_URI"`
}

type Server struct {
	RunAddress      string        `env:"RUN_ADDRESS" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type Logger struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

type Session struct {
	TTL time.Duration `env:"SESSION_TTL" envDefault:"720h"`
}

// Sync настройки движка синхронизации
type Sync struct {
	MaxBatchSize       int           `env:"SYNC_MAX_BATCH_SIZE" envDefault:"100"`
	DefaultPullLimit   int           `env:"SYNC_DEFAULT_PULL_LIMIT" envDefault:"100"`
	MaxPullLimit       int           `env:"SYNC_MAX_PULL_LIMIT" envDefault:"500"`
	DriftWarn          time.Duration `env:"SYNC_DRIFT_WARN" envDefault:"5m"`
	MaxWriteRetries    int           `env:"SYNC_MAX_WRITE_RETRIES" envDefault:"3"`
	TombstoneRetention time.Duration `env:"TOMBSTONE_RETENTION" envDefault:"720h"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", EnvProd)
	v.SetDefault("db_driver", DriverPostgres)
	v.SetDefault("run_address", ":8080")
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("session_ttl", 720*time.Hour)
	v.SetDefault("sync_max_batch_size", 100)
	v.SetDefault("sync_default_pull_limit", 100)
	v.SetDefault("sync_max_pull_limit", 500)
	v.SetDefault("sync_drift_warn", 5*time.Minute)
	v.SetDefault("sync_max_write_retries", 3)
	v.SetDefault("tombstone_retention", 720*time.Hour)
}

// Load читает конфигурацию из .env, файла конфигурации (если задан) и окружения.
// Переменные окружения имеют приоритет над файлом.
func Load(v *viper.Viper) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	if v == nil {
		v = viper.New()
	}
	setDefaults(v)
	v.AutomaticEnv()

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	config := Config{
		Env: v.GetString("app_env"),
		DB: DB{
			Driver:      v.GetString("db_driver"),
			DatabaseURI: v.GetString("database_uri"),
		},
		Server: Server{
			RunAddress:      v.GetString("run_address"),
			ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		},
		Logger:  Logger{LogLevel: v.GetString("log_level")},
		Session: Session{TTL: v.GetDuration("session_ttl")},
		Sync: Sync{
			MaxBatchSize:       v.GetInt("sync_max_batch_size"),
			DefaultPullLimit:   v.GetInt("sync_default_pull_limit"),
			MaxPullLimit:       v.GetInt("sync_max_pull_limit"),
			DriftWarn:          v.GetDuration("sync_drift_warn"),
			MaxWriteRetries:    v.GetInt("sync_max_write_retries"),
			TombstoneRetention: v.GetDuration("tombstone_retention"),
		},
	}

	return &config, nil
}

// MustLoad как Load, но завершает процесс при ошибке
func MustLoad(v *viper.Viper) *Config {
	cfg, err := Load(v)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	return cfg
}
