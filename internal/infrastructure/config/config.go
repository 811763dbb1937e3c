package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"

	sharedConfig "github.com/pesaflow/pesaflow/internal/shared/config"
)

type Config struct {
	Server      sharedConfig.ServerConfig      `mapstructure:"server"`
	Database    sharedConfig.DatabaseConfig    `mapstructure:"database"`
	Logger      sharedConfig.LoggerConfig      `mapstructure:"logger"`
	Redis       sharedConfig.RedisConfig       `mapstructure:"redis"`
	Gateway     sharedConfig.GatewayConfig     `mapstructure:"gateway"`
	Callback    sharedConfig.CallbackConfig    `mapstructure:"callback"`
	Polling     sharedConfig.PollingConfig     `mapstructure:"polling"`
	Idempotency sharedConfig.IdempotencyConfig `mapstructure:"idempotency"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load loads configuration from file and environment variables
func Load(env string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../configs")
	viper.AddConfigPath("../../configs")

	viper.SetEnvPrefix("PESAFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional when everything comes from the environment
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if env != "" && env != "default" {
		viper.Set("server.mode", env)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	appConfigMu.Lock()
	appConfig = &config
	appConfigMu.Unlock()

	return &config, nil
}

// Get returns the loaded configuration
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("server.base_url", "http://localhost:8080")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)
	viper.SetDefault("database.username", "root")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.database", "pesaflow_dev")
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.max_open_conns", 100)
	viper.SetDefault("database.conn_max_lifetime", 60)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("logger.output_path", "stdout")

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Gateway defaults (sandbox endpoints, must be configured for production)
	viper.SetDefault("gateway.base_url", "https://sandbox.safaricom.co.ke")
	viper.SetDefault("gateway.transaction_type", "CustomerPayBillOnline")
	viper.SetDefault("gateway.timeout_seconds", 30)
	viper.SetDefault("gateway.token_safety_seconds", 30)
	viper.SetDefault("gateway.account_reference", "PESAFLOW")

	// Callback defaults
	viper.SetDefault("callback.path_secret", "change-me-in-production")
	viper.SetDefault("callback.allowed_cidrs", []string{
		"196.201.214.0/24",
		"196.201.213.0/24",
		"196.201.212.0/24",
	})

	// Polling defaults: 12 attempts x 5s ~= 60s budget
	viper.SetDefault("polling.interval_seconds", 5)
	viper.SetDefault("polling.max_attempts", 12)
	viper.SetDefault("polling.min_poll_interval_seconds", 2)
	viper.SetDefault("polling.stale_sweep_minutes", 5)

	// Idempotency defaults
	viper.SetDefault("idempotency.ttl_hours", 24)
}
