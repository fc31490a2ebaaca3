// Package config defines the application configuration, loaded from
// environment variables with github.com/caarlos0/env.
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// AppConfig is the main application configuration.
type AppConfig struct {
	// IsDev controls development mode behavior (pretty console logging).
	IsDev bool `env:"DEV" envDefault:"false"`

	Postgres DBConfig     `envPrefix:"DB_"`
	Redis    RedisConfig  `envPrefix:"REDIS_"`
	Push     PushConfig   `envPrefix:"PUSH_"`
	Mail     MailConfig   `envPrefix:"MAIL_"`
	SMS      SMSConfig    `envPrefix:"SMS_"`
	Sweeper  SweepConfig  `envPrefix:"SWEEP_"`
	Notify   NotifyConfig `envPrefix:"NOTIFY_"`
}

// Sanitize applies guardrails to configuration values loaded from env.
func (c *AppConfig) Sanitize() {
	c.Sweeper.Sanitize()
	c.Notify.Sanitize()
}

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"nordtolk"`
	Password string `env:"PASSWORD" envDefault:"nordtolk"`
	Name     string `env:"NAME"     envDefault:"nordtolk"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"`
	// RunMigrationsOnStart controls whether the application automatically
	// applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// DSN returns the postgres connection string.
func (c DBConfig) DSN() string {
	hostPort := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=%s",
		c.User, c.Password, hostPort, c.Name, c.SSLMode)
}

// RedisConfig contains Redis configuration for the language cache.
type RedisConfig struct {
	Addr     string `env:"ADDR"     envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`
}

// PushConfig contains OneSignal push delivery configuration.
type PushConfig struct {
	AppID    string `env:"APP_ID"`
	RESTKey  string `env:"REST_KEY"`
	Endpoint string `env:"ENDPOINT" envDefault:""`
}

// Enabled reports whether push delivery is configured.
func (c PushConfig) Enabled() bool {
	return c.AppID != "" && c.RESTKey != ""
}

// MailConfig contains mail relay configuration.
type MailConfig struct {
	Endpoint  string `env:"ENDPOINT"`
	APIKey    string `env:"API_KEY"`
	FromEmail string `env:"FROM_EMAIL" envDefault:"bokning@nordtolk.se"`
	FromName  string `env:"FROM_NAME"  envDefault:"NordTolk"`
}

// Enabled reports whether mail delivery is configured.
func (c MailConfig) Enabled() bool {
	return c.Endpoint != ""
}

// SMSConfig contains SMS gateway configuration.
type SMSConfig struct {
	Endpoint   string `env:"ENDPOINT"`
	AccountSID string `env:"ACCOUNT_SID"`
	AuthToken  string `env:"AUTH_TOKEN"`
	From       string `env:"FROM"`
}

// Enabled reports whether SMS delivery is configured.
func (c SMSConfig) Enabled() bool {
	return c.Endpoint != "" && c.From != ""
}

// SweepConfig contains booking-expiry sweeper configuration.
type SweepConfig struct {
	Interval  time.Duration `env:"INTERVAL"   envDefault:"1m"`
	BatchSize int           `env:"BATCH_SIZE" envDefault:"100"`
}

// Sanitize applies guardrails to sweeper configuration.
func (c *SweepConfig) Sanitize() {
	if c.Interval < time.Second {
		c.Interval = time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
}

// NotifyConfig contains notification fan-out configuration.
type NotifyConfig struct {
	// SMSConcurrency bounds concurrent SMS sends during a fan-out.
	SMSConcurrency int `env:"SMS_CONCURRENCY" envDefault:"8"`
}

// Sanitize applies guardrails to notification configuration.
func (c *NotifyConfig) Sanitize() {
	if c.SMSConcurrency <= 0 {
		c.SMSConcurrency = 8
	}
}
