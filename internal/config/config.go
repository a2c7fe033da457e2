// Package config loads service settings from defaults, an optional YAML
// file, a .env file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/erazemk/assetdesk/internal/model"
)

// Notifier backends.
const (
	NotifierSMTP  = "smtp"
	NotifierKafka = "kafka"
	NotifierLog   = "log"
)

// Duration is a time.Duration written as "5s" or "1m30s" in YAML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

type Config struct {
	Environment      string   `yaml:"environment"`
	DBPath           string   `yaml:"db_path"`
	Addr             string   `yaml:"addr"`
	AdminUser        string   `yaml:"admin_user"`
	LogPath          string   `yaml:"log_path"`
	FrontendURL      string   `yaml:"frontend_url"`
	AssignmentPolicy string   `yaml:"assignment_policy"`
	TokenExpiry      Duration `yaml:"token_expiry"`
	Notifier         string   `yaml:"notifier"`

	SMTP   SMTPConfig   `yaml:"smtp"`
	Kafka  KafkaConfig  `yaml:"kafka"`
	Redis  RedisConfig  `yaml:"redis"`
	Outbox OutboxConfig `yaml:"outbox"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	FromName string `yaml:"from_name"`
	// TestRecipient receives the diagnostic mail; it defaults to From.
	TestRecipient      string   `yaml:"test_recipient"`
	InsecureSkipVerify bool     `yaml:"insecure_skip_verify"`
	Timeout            Duration `yaml:"timeout"`
}

type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	ClientID string   `yaml:"client_id"`
	Retries  int      `yaml:"retries"`
}

// RedisConfig enables the catalog cache when Addr is set.
type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
}

type OutboxConfig struct {
	MaxAttempts  int      `yaml:"max_attempts"`
	RetryDelay   Duration `yaml:"retry_delay"`
	PollInterval Duration `yaml:"poll_interval"`
	BatchSize    int      `yaml:"batch_size"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Environment:      "development",
		DBPath:           "assetdesk.db",
		Addr:             ":8080",
		AdminUser:        "admin",
		FrontendURL:      "http://localhost:3000",
		AssignmentPolicy: model.PolicyExclusive,
		TokenExpiry:      Duration{7 * 24 * time.Hour},
		Notifier:         NotifierLog,
		SMTP: SMTPConfig{
			Port:     465,
			FromName: "Asset Management System",
			Timeout:  Duration{10 * time.Second},
		},
		Kafka: KafkaConfig{
			Brokers:  []string{"localhost:9092"},
			Topic:    "assetdesk.notifications",
			ClientID: "assetdesk",
			Retries:  3,
		},
		Redis: RedisConfig{
			TTL: Duration{5 * time.Minute},
		},
		Outbox: OutboxConfig{
			MaxAttempts:  3,
			RetryDelay:   Duration{time.Minute},
			PollInterval: Duration{5 * time.Second},
			BatchSize:    20,
		},
	}
}

// Load builds the configuration. yamlPath may be empty. A missing .env file
// is not an error.
func Load(yamlPath string) (*Config, error) {
	cfg := Default()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", yamlPath, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Environment, "ENVIRONMENT")
	setString(&c.DBPath, "DB_PATH")
	setString(&c.Addr, "ADDR")
	setString(&c.AdminUser, "ADMIN_USER")
	setString(&c.LogPath, "LOG_PATH")
	setString(&c.FrontendURL, "FRONTEND_URL")
	setString(&c.AssignmentPolicy, "ASSIGNMENT_POLICY")
	setString(&c.Notifier, "NOTIFIER")

	setString(&c.SMTP.Host, "SMTP_HOST")
	setString(&c.SMTP.Username, "SMTP_USERNAME")
	setString(&c.SMTP.Password, "SMTP_PASSWORD")
	setString(&c.SMTP.From, "SMTP_FROM")
	setString(&c.SMTP.FromName, "SMTP_FROM_NAME")
	setString(&c.SMTP.TestRecipient, "SMTP_TEST_RECIPIENT")

	setString(&c.Kafka.Topic, "KAFKA_TOPIC")
	setString(&c.Kafka.ClientID, "KAFKA_CLIENT_ID")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}

	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")

	var errs []error
	errs = append(errs,
		setInt(&c.SMTP.Port, "SMTP_PORT"),
		setBool(&c.SMTP.InsecureSkipVerify, "SMTP_INSECURE_SKIP_VERIFY"),
		setDuration(&c.SMTP.Timeout, "SMTP_TIMEOUT"),
		setInt(&c.Kafka.Retries, "KAFKA_RETRIES"),
		setInt(&c.Redis.DB, "REDIS_DB"),
		setDuration(&c.Redis.TTL, "CACHE_TTL"),
		setInt(&c.Outbox.MaxAttempts, "OUTBOX_MAX_ATTEMPTS"),
		setDuration(&c.Outbox.RetryDelay, "OUTBOX_RETRY_DELAY"),
		setDuration(&c.Outbox.PollInterval, "OUTBOX_POLL_INTERVAL"),
		setInt(&c.Outbox.BatchSize, "OUTBOX_BATCH_SIZE"),
		setDuration(&c.TokenExpiry, "TOKEN_EXPIRY"),
	)
	return errors.Join(errs...)
}

// Validate checks values that have a fixed set of choices or must be
// positive.
func (c *Config) Validate() error {
	if !model.ValidPolicy(c.AssignmentPolicy) {
		return fmt.Errorf("invalid assignment policy %q (want %s or %s)",
			c.AssignmentPolicy, model.PolicyExclusive, model.PolicyShared)
	}
	switch c.Notifier {
	case NotifierSMTP:
		if c.SMTP.Host == "" || c.SMTP.From == "" {
			return errors.New("smtp notifier needs SMTP_HOST and SMTP_FROM")
		}
	case NotifierKafka:
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			return errors.New("kafka notifier needs KAFKA_BROKERS and KAFKA_TOPIC")
		}
	case NotifierLog:
	default:
		return fmt.Errorf("invalid notifier %q", c.Notifier)
	}
	if c.Outbox.MaxAttempts < 1 {
		return errors.New("outbox max attempts must be at least 1")
	}
	if c.Outbox.PollInterval.Duration <= 0 {
		return errors.New("outbox poll interval must be positive")
	}
	return nil
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	dst.Duration = d
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
