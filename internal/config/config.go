// Package config loads the tango configuration from YAML files and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/at-ishikawa/tango/internal/validation"
)

const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Server   ServerConfig   `mapstructure:"server"`
	Study    StudyConfig    `mapstructure:"study"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Log      LogConfig      `mapstructure:"log"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=sqlite3 mysql"`
	// Path is the SQLite database file.
	Path          string `mapstructure:"path" validate:"required_if=Driver sqlite3"`
	BusyTimeoutMs int    `mapstructure:"busy_timeout_ms" validate:"min=0"`

	Host            string            `mapstructure:"host" validate:"required_if=Driver mysql"`
	Port            int               `mapstructure:"port" validate:"min=0,max=65535"`
	Database        string            `mapstructure:"database" validate:"required_if=Driver mysql"`
	Username        string            `mapstructure:"username"`
	Password        string            `mapstructure:"password"`
	TLS             bool              `mapstructure:"tls"`
	Params          map[string]string `mapstructure:"params"`
	MaxOpenConns    int               `mapstructure:"max_open_conns" validate:"min=0"`
	MaxIdleConns    int               `mapstructure:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime int               `mapstructure:"conn_max_lifetime_seconds" validate:"min=0"`
}

type SyncConfig struct {
	// Endpoint is the base URL of the sync server. Syncing is disabled when empty.
	Endpoint       string        `mapstructure:"endpoint" validate:"omitempty,url"`
	Token          string        `mapstructure:"token"`
	Interval       time.Duration `mapstructure:"interval" validate:"gt=0"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	BatchSize      int           `mapstructure:"batch_size" validate:"min=1"`
	RetryAttempts  int           `mapstructure:"retry_attempts" validate:"min=0,max=10"`
}

type ServerConfig struct {
	Port int `mapstructure:"port" validate:"min=1,max=65535"`
	// Token is the bearer token clients must send. Authentication is off when empty.
	Token string `mapstructure:"token"`
	// AllowedOrigins lists the browser origins allowed by CORS.
	AllowedOrigins []string       `mapstructure:"allowed_origins" validate:"dive,url"`
	Database       DatabaseConfig `mapstructure:"database"`
}

type StudyConfig struct {
	// Timezone decides which calendar day an activity is counted on.
	Timezone   string `mapstructure:"timezone" validate:"required,timezone"`
	DailyLimit int    `mapstructure:"daily_limit" validate:"min=0"`
}

// Location returns the study timezone. Call only on a validated config.
func (c StudyConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode" validate:"oneof=development production"`
}

type ConfigLoader struct {
	viper     *viper.Viper
	validator *validation.Validator
}

func NewConfigLoader(configFile string) (*ConfigLoader, error) {
	validate, err := validation.New("mapstructure")
	if err != nil {
		return nil, fmt.Errorf("failed to create new validator: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/tango")
	}

	return &ConfigLoader{
		viper:     v,
		validator: validate,
	}, nil
}

func (loader *ConfigLoader) Load() (*Config, error) {
	v := loader.viper

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "tango.db")
	v.SetDefault("database.busy_timeout_ms", 5000)
	v.SetDefault("database.port", 3306)
	v.SetDefault("sync.endpoint", "")
	v.SetDefault("sync.token", "")
	v.SetDefault("sync.interval", 30*time.Second)
	v.SetDefault("sync.request_timeout", 10*time.Second)
	v.SetDefault("sync.batch_size", 50)
	v.SetDefault("sync.retry_attempts", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.database.driver", DriverSQLite)
	v.SetDefault("server.database.path", "tango-server.db")
	v.SetDefault("server.database.busy_timeout_ms", 5000)
	v.SetDefault("server.database.port", 3306)
	v.SetDefault("study.timezone", "UTC")
	v.SetDefault("study.daily_limit", 0)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("log.mode", "development")

	envBindings := []struct {
		key string
		env string
	}{
		{key: "database.password", env: "DB_PASSWORD"},
		{key: "server.database.password", env: "DB_PASSWORD"},
		{key: "sync.endpoint", env: "TANGO_SYNC_ENDPOINT"},
		{key: "sync.token", env: "TANGO_SYNC_TOKEN"},
		{key: "server.token", env: "TANGO_SERVER_TOKEN"},
		// OpenAI credentials come from the environment only
		{key: "openai.api_key", env: "OPENAI_API_KEY"},
		{key: "openai.model", env: "OPENAI_MODEL"},
	}
	for _, binding := range envBindings {
		if err := v.BindEnv(binding.key, binding.env); err != nil {
			return nil, fmt.Errorf("failed to bind %s environment variable: %w", binding.env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("configuration file found but could not be read: %w. Please check the file format and permissions", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}

	if err := loader.validator.Struct(cfg); err != nil {
		var validationErr *validation.Error
		if !errors.As(err, &validationErr) {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(validationErr.Messages, ", "))
	}

	return &cfg, nil
}
