package config

import (
	"fmt"
	"time"
)

type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
	BaseURL string `mapstructure:"base_url"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// GatewayConfig holds the push payment gateway credentials and endpoints.
// ConsumerKey/ConsumerSecret are exchanged for a short-lived bearer token;
// Shortcode+Passkey derive the per-request password.
type GatewayConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	ConsumerKey      string `mapstructure:"consumer_key"`
	ConsumerSecret   string `mapstructure:"consumer_secret"`
	Shortcode        string `mapstructure:"shortcode"`
	Passkey          string `mapstructure:"passkey"`
	TransactionType  string `mapstructure:"transaction_type"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	TokenSafetySecs  int    `mapstructure:"token_safety_seconds"`
	AccountReference string `mapstructure:"account_reference"`
}

func (g *GatewayConfig) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

func (g *GatewayConfig) TokenSafetyMargin() time.Duration {
	if g.TokenSafetySecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(g.TokenSafetySecs) * time.Second
}

// CallbackConfig controls webhook ingestion authenticity checks.
// AllowedCIDRs is the gateway egress allow-list; PathSecret is the opaque
// token embedded in the registered callback URL path.
type CallbackConfig struct {
	PathSecret   string   `mapstructure:"path_secret"`
	AllowedCIDRs []string `mapstructure:"allowed_cidrs"`
}

type PollingConfig struct {
	IntervalSeconds     int `mapstructure:"interval_seconds"`
	MaxAttempts         int `mapstructure:"max_attempts"`
	MinPollIntervalSecs int `mapstructure:"min_poll_interval_seconds"`
	StaleSweepMinutes   int `mapstructure:"stale_sweep_minutes"`
}

func (p *PollingConfig) Interval() time.Duration {
	if p.IntervalSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(p.IntervalSeconds) * time.Second
}

func (p *PollingConfig) Attempts() int {
	if p.MaxAttempts <= 0 {
		return 12
	}
	return p.MaxAttempts
}

func (p *PollingConfig) MinPollInterval() time.Duration {
	if p.MinPollIntervalSecs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(p.MinPollIntervalSecs) * time.Second
}

func (p *PollingConfig) StaleSweepInterval() time.Duration {
	if p.StaleSweepMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(p.StaleSweepMinutes) * time.Minute
}

type IdempotencyConfig struct {
	TTLHours int `mapstructure:"ttl_hours"`
}

func (i *IdempotencyConfig) TTL() time.Duration {
	if i.TTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(i.TTLHours) * time.Hour
}
