// Package config loads process configuration from an optional config.yml and
// PEOPLEHUB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	dErrors "peoplehub/pkg/domain-errors"
	pstrings "peoplehub/pkg/platform/strings"
)

const envPrefix = "PEOPLEHUB"

// Auth modes.
const (
	ModeHosted = "hosted"
	ModeLocal  = "local"
	ModeDemo   = "demo"
)

// Audit sinks.
const (
	AuditLog      = "log"
	AuditPostgres = "postgres"
	AuditKafka    = "kafka"
)

type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Keeper   KeeperConfig   `mapstructure:"keeper"`
	Session  SessionConfig  `mapstructure:"session"`
	Links    LinksConfig    `mapstructure:"links"`
	Log      LogConfig      `mapstructure:"log"`
}

type HTTPConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type AdminConfig struct {
	Token string `mapstructure:"token"`
}

type AuthConfig struct {
	Mode        string        `mapstructure:"mode"`
	RedirectURL string        `mapstructure:"redirect_url"`
	SigningKey  string        `mapstructure:"signing_key"`
	AccessTTL   time.Duration `mapstructure:"access_ttl"`
	RefreshTTL  time.Duration `mapstructure:"refresh_ttl"`
	// PurgeInterval is how often expired local tokens are removed.
	PurgeInterval time.Duration `mapstructure:"purge_interval"`
	// Lockout* throttle local password sign-in per email address.
	LockoutAttempts int           `mapstructure:"lockout_attempts"`
	LockoutWindow   time.Duration `mapstructure:"lockout_window"`
	LockoutDuration time.Duration `mapstructure:"lockout_duration"`
}

// BackendConfig points at the hosted auth and data backend.
type BackendConfig struct {
	URL     string `mapstructure:"url"`
	AnonKey string `mapstructure:"anon_key"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// Migrate applies pending migrations when serve starts.
	Migrate bool `mapstructure:"migrate"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type KafkaConfig struct {
	Brokers    []string `mapstructure:"brokers"`
	AuditTopic string   `mapstructure:"audit_topic"`
}

type AuditConfig struct {
	Sink   string `mapstructure:"sink"`
	Buffer int    `mapstructure:"buffer"`
}

type KeeperConfig struct {
	Interval          time.Duration `mapstructure:"interval"`
	RefreshThreshold  time.Duration `mapstructure:"refresh_threshold"`
	ActivityDebounce  time.Duration `mapstructure:"activity_debounce"`
	ActivityCooldown  time.Duration `mapstructure:"activity_cooldown"`
	ActivityThreshold time.Duration `mapstructure:"activity_threshold"`
	ValidateCooldown  time.Duration `mapstructure:"validate_cooldown"`
}

type SessionConfig struct {
	SignOutTimeout      time.Duration `mapstructure:"signout_timeout"`
	LoadTimeout         time.Duration `mapstructure:"load_timeout"`
	RememberTTL         time.Duration `mapstructure:"remember_ttl"`
	RevalidateThreshold time.Duration `mapstructure:"revalidate_threshold"`
}

type LinksConfig struct {
	RepairInterval time.Duration `mapstructure:"repair_interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", "127.0.0.1:8787")
	v.SetDefault("http.read_header_timeout", 5*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("admin.token", "")

	v.SetDefault("auth.mode", ModeHosted)
	v.SetDefault("auth.redirect_url", "")
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.access_ttl", time.Hour)
	v.SetDefault("auth.refresh_ttl", 30*24*time.Hour)
	v.SetDefault("auth.purge_interval", time.Hour)
	v.SetDefault("auth.lockout_attempts", 5)
	v.SetDefault("auth.lockout_window", 15*time.Minute)
	v.SetDefault("auth.lockout_duration", 15*time.Minute)
	v.SetDefault("backend.url", "")
	v.SetDefault("backend.anon_key", "")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.migrate", false)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 1)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.audit_topic", "peoplehub.audit")
	v.SetDefault("audit.sink", AuditLog)
	v.SetDefault("audit.buffer", 256)

	v.SetDefault("keeper.interval", 5*time.Minute)
	v.SetDefault("keeper.refresh_threshold", 10*time.Minute)
	v.SetDefault("keeper.activity_debounce", time.Second)
	v.SetDefault("keeper.activity_cooldown", 5*time.Minute)
	v.SetDefault("keeper.activity_threshold", 15*time.Minute)
	v.SetDefault("keeper.validate_cooldown", 60*time.Second)

	v.SetDefault("session.signout_timeout", 5*time.Second)
	v.SetDefault("session.load_timeout", 15*time.Second)
	v.SetDefault("session.remember_ttl", 30*24*time.Hour)
	v.SetDefault("session.revalidate_threshold", 5*time.Minute)

	v.SetDefault("links.repair_interval", time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads config.yml from path when present, then applies environment
// overrides such as PEOPLEHUB_AUTH_MODE for auth.mode.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "decode config")
	}
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	return &cfg, nil
}

// splitList accepts both a YAML list and a comma separated env value.
func splitList(in []string) []string {
	var parts []string
	for _, item := range in {
		parts = append(parts, strings.Split(item, ",")...)
	}
	return pstrings.DedupeAndTrim(parts)
}

// Validate reports settings the process cannot start with as a configuration
// error.
func (c *Config) Validate() error {
	var problems []string

	switch c.Auth.Mode {
	case ModeHosted:
		if strings.TrimSpace(c.Backend.URL) == "" || strings.TrimSpace(c.Backend.AnonKey) == "" {
			problems = append(problems, "hosted auth requires backend.url and backend.anon_key")
		}
	case ModeLocal:
		if strings.TrimSpace(c.Auth.SigningKey) == "" {
			problems = append(problems, "local auth requires auth.signing_key")
		}
	case ModeDemo:
	default:
		problems = append(problems, fmt.Sprintf("unknown auth.mode %q", c.Auth.Mode))
	}

	switch c.Audit.Sink {
	case AuditLog:
	case AuditPostgres:
		if c.Database.URL == "" {
			problems = append(problems, "audit.sink=postgres requires database.url")
		}
	case AuditKafka:
		if len(c.Kafka.Brokers) == 0 || c.Kafka.AuditTopic == "" {
			problems = append(problems, "audit.sink=kafka requires kafka.brokers and kafka.audit_topic")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown audit.sink %q", c.Audit.Sink))
	}

	if c.Database.MaxIdleConns > c.Database.MaxOpenConns && c.Database.MaxOpenConns > 0 {
		problems = append(problems, "database.max_idle_conns cannot exceed database.max_open_conns")
	}

	if len(problems) > 0 {
		return dErrors.New(dErrors.CodeConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// UsesDatabase reports whether the stores should be PostgreSQL backed.
func (c *Config) UsesDatabase() bool {
	return c.Database.URL != "" && c.Auth.Mode != ModeDemo
}
