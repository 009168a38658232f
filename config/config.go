package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Internal     InternalConfig     `mapstructure:"internal"`
	Commission   CommissionConfig   `mapstructure:"commission"`
	Referral     ReferralConfig     `mapstructure:"referral"`
	Notification NotificationConfig `mapstructure:"notification"`
	Outbox       OutboxConfig       `mapstructure:"outbox"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
	Sentry       SentryConfig       `mapstructure:"sentry"`
	RateLimit    RateLimitConfig    `mapstructure:"ratelimit"`
	Log          LogConfig          `mapstructure:"log"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres, sqlite
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	SummaryTTL time.Duration `mapstructure:"summary_ttl"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type InternalConfig struct {
	// KeyHash is the bcrypt hash of the shared key internal callers send in X-Internal-Key.
	KeyHash string `mapstructure:"key_hash"`
}

type CommissionConfig struct {
	DefaultRate float64 `mapstructure:"default_rate"`
}

type ReferralConfig struct {
	SellerAccountRate float64       `mapstructure:"seller_account_rate"`
	ProductRate       float64       `mapstructure:"product_rate"`
	CodeLength        int           `mapstructure:"code_length"`
	MaxCodeAttempts   int           `mapstructure:"max_code_attempts"`
	ReferralTTL       time.Duration `mapstructure:"referral_ttl"`
}

type NotificationConfig struct {
	QueueSize int `mapstructure:"queue_size"`
	Workers   int `mapstructure:"workers"`
}

type OutboxConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	Workers      int           `mapstructure:"workers"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
	Insecure    bool    `mapstructure:"insecure"`
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

type RateLimitConfig struct {
	ReferralRPS   float64 `mapstructure:"referral_rps"`
	ReferralBurst int     `mapstructure:"referral_burst"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, console
}

// Load reads defaults, an optional config.yaml, an optional .env file and
// LEDGER_* environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=ledger port=5432 sslmode=disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.summary_ttl", 5*time.Minute)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "market-ledger")

	v.SetDefault("internal.key_hash", "")

	v.SetDefault("commission.default_rate", 10.0)

	v.SetDefault("referral.seller_account_rate", 10.0)
	v.SetDefault("referral.product_rate", 5.0)
	v.SetDefault("referral.code_length", 8)
	v.SetDefault("referral.max_code_attempts", 10)
	v.SetDefault("referral.referral_ttl", 30*24*time.Hour)

	v.SetDefault("notification.queue_size", 1024)
	v.SetDefault("notification.workers", 2)

	v.SetDefault("outbox.enabled", true)
	v.SetDefault("outbox.poll_interval", time.Second)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.workers", 1)
	v.SetDefault("outbox.max_attempts", 5)
	v.SetDefault("outbox.brokers", []string{})
	v.SetDefault("outbox.topic", "ledger.events")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.service_name", "market-ledger")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("tracing.insecure", true)

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")

	v.SetDefault("ratelimit.referral_rps", 5.0)
	v.SetDefault("ratelimit.referral_burst", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("config: database.dsn is required")
	}
	if c.Commission.DefaultRate < 0 || c.Commission.DefaultRate > 100 {
		return fmt.Errorf("config: commission.default_rate %v out of range", c.Commission.DefaultRate)
	}
	if c.Referral.SellerAccountRate < 0 || c.Referral.SellerAccountRate > 100 ||
		c.Referral.ProductRate < 0 || c.Referral.ProductRate > 100 {
		return errors.New("config: referral rates must be within 0..100")
	}
	if c.Referral.CodeLength < 4 {
		return errors.New("config: referral.code_length must be at least 4")
	}
	if c.Referral.MaxCodeAttempts < 1 {
		return errors.New("config: referral.max_code_attempts must be positive")
	}
	if c.Outbox.Enabled && c.Outbox.PollInterval <= 0 {
		return errors.New("config: outbox.poll_interval must be positive")
	}
	return nil
}
