// Package config loads, validates and persists monitor configuration via Viper.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/JakeFAU/edital-monitor/internal/monitor"
)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "config/config.json"

// MaskedPassword replaces a non-empty SMTP password in API responses.
const MaskedPassword = "***"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	URL             string            `mapstructure:"url" json:"url" validate:"required,url"`
	Keywords        []string          `mapstructure:"keywords" json:"keywords"`
	IntervalMinutes int               `mapstructure:"interval_minutes" json:"interval_minutes" validate:"gte=1,lte=1440"`
	Server          ServerConfig      `mapstructure:"server" json:"server"`
	Auth            AuthConfig        `mapstructure:"auth" json:"auth"`
	Email           EmailConfig       `mapstructure:"email" json:"email"`
	Fetch           FetchConfig       `mapstructure:"fetch" json:"fetch"`
	Monitor         MonitorConfig     `mapstructure:"monitor" json:"monitor"`
	Subscribers     SubscribersConfig `mapstructure:"subscribers" json:"subscribers"`
	Archive         ArchiveConfig     `mapstructure:"archive" json:"archive"`
	PubSub          PubSubConfig      `mapstructure:"pubsub" json:"pubsub"`
	Logging         LoggingConfig     `mapstructure:"logging" json:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string `mapstructure:"host" json:"host"`
	Port int    `mapstructure:"port" json:"port" validate:"gte=1,lte=65535"`
	// SubscribeRatePerMinute throttles public sign-ups per client address.
	// Zero disables the limit.
	SubscribeRatePerMinute float64 `mapstructure:"subscribe_rate_per_minute" json:"subscribe_rate_per_minute" validate:"gte=0"`
	SubscribeBurst         int     `mapstructure:"subscribe_burst" json:"subscribe_burst" validate:"gte=0"`
}

// Addr joins host and port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthConfig gates the administrative endpoints.
type AuthConfig struct {
	AdminEnabled bool   `mapstructure:"admin_enabled" json:"admin_enabled"`
	APIKey       string `mapstructure:"api_key" json:"api_key"`
}

// EmailConfig describes the SMTP server alerts are sent through.
type EmailConfig struct {
	Enabled      bool   `mapstructure:"enabled" json:"enabled"`
	SMTPServer   string `mapstructure:"smtp_server" json:"smtp_server"`
	SMTPPort     int    `mapstructure:"smtp_port" json:"smtp_port" validate:"gte=1,lte=65535"`
	SMTPUser     string `mapstructure:"smtp_user" json:"smtp_user"`
	SMTPPassword string `mapstructure:"smtp_password" json:"smtp_password"`
	FromEmail    string `mapstructure:"from_email" json:"from_email"`
	UseTLS       bool   `mapstructure:"use_tls" json:"use_tls"`
	Timezone     string `mapstructure:"timezone" json:"timezone"`
}

// FetchConfig selects and tunes the page fetcher.
type FetchConfig struct {
	Backend        string `mapstructure:"backend" json:"backend" validate:"oneof=colly headless auto"`
	UserAgent      string `mapstructure:"user_agent" json:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" json:"timeout_seconds" validate:"gte=1"`
	SettleMillis   int    `mapstructure:"settle_millis" json:"settle_millis" validate:"gte=0"`
}

// Timeout converts TimeoutSeconds.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// MonitorConfig tunes the polling loop.
type MonitorConfig struct {
	Autostart          bool `mapstructure:"autostart" json:"autostart"`
	LogCapacity        int  `mapstructure:"log_capacity" json:"log_capacity" validate:"gte=1"`
	CheckGranularityMs int  `mapstructure:"check_granularity_ms" json:"check_granularity_ms" validate:"gte=10"`
}

// SubscribersConfig selects where the subscriber list lives.
type SubscribersConfig struct {
	Backend  string         `mapstructure:"backend" json:"backend" validate:"oneof=file postgres"`
	Path     string         `mapstructure:"path" json:"path"`
	Postgres PostgresConfig `mapstructure:"postgres" json:"postgres"`
}

// PostgresConfig holds the subscriber table connection.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn" json:"dsn"`
	Table    string `mapstructure:"table" json:"table"`
	MaxConns int32  `mapstructure:"max_conns" json:"max_conns"`
}

// ArchiveConfig selects where page snapshots are kept.
type ArchiveConfig struct {
	Backend   string `mapstructure:"backend" json:"backend" validate:"oneof=none memory local gcs"`
	Prefix    string `mapstructure:"prefix" json:"prefix"`
	LocalDir  string `mapstructure:"local_dir" json:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket" json:"gcs_bucket"`
}

// PubSubConfig holds the change-event topic.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled" json:"enabled"`
	ProjectID string `mapstructure:"project_id" json:"project_id"`
	TopicName string `mapstructure:"topic_name" json:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development" json:"development"`
	Level       string `mapstructure:"level" json:"level" validate:"oneof=debug info warn error"`
}

// Interval converts IntervalMinutes.
func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// Masked returns a copy safe to expose over the API.
func (c Config) Masked() Config {
	out := c
	out.Keywords = append([]string(nil), c.Keywords...)
	if out.Email.SMTPPassword != "" {
		out.Email.SMTPPassword = MaskedPassword
	}
	out.Auth.APIKey = ""
	if out.Subscribers.Postgres.DSN != "" {
		out.Subscribers.Postgres.DSN = MaskedPassword
	}
	return out
}

// Default returns the built-in configuration.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("EDITAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load builds a Config from the JSON file at path and EDITAL_* environment
// variables. A missing file is created with the defaults.
func Load(path string) (Config, error) {
	v := newViper()
	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			if err := Save(path, Default()); err != nil {
				return Config{}, err
			}
		}
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, &monitor.ConfigError{Path: path, Err: fmt.Errorf("read config: %w", err)}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, &monitor.ConfigError{Path: path, Err: fmt.Errorf("unmarshal config: %w", err)}
	}
	cfg.Keywords = splitKeywords(cfg.Keywords)
	if err := cfg.Validate(); err != nil {
		return Config{}, &monitor.ConfigError{Path: path, Err: err}
	}
	return cfg, nil
}

// Save writes cfg to path as JSON through viper.
func Save(path string, cfg Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return &monitor.ConfigError{Path: path, Err: fmt.Errorf("encode config: %w", err)}
	}
	v := viper.New()
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
		return &monitor.ConfigError{Path: path, Err: fmt.Errorf("stage config: %w", err)}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return &monitor.ConfigError{Path: path, Err: fmt.Errorf("create config dir: %w", err)}
		}
	}
	if err := v.WriteConfigAs(path); err != nil {
		return &monitor.ConfigError{Path: path, Err: fmt.Errorf("write config: %w", err)}
	}
	return nil
}

func splitKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, raw := range in {
		for _, kw := range strings.Split(raw, ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				out = append(out, kw)
			}
		}
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("url", "https://exemplo.com/edital")
	v.SetDefault("keywords", []string{"Resultado", "Homologação", "Classificados"})
	v.SetDefault("interval_minutes", 10)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.subscribe_rate_per_minute", 10)
	v.SetDefault("server.subscribe_burst", 5)
	v.SetDefault("auth.admin_enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("email.enabled", false)
	v.SetDefault("email.smtp_server", "smtp.gmail.com")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.smtp_user", "")
	v.SetDefault("email.smtp_password", "")
	v.SetDefault("email.from_email", "")
	v.SetDefault("email.use_tls", true)
	v.SetDefault("email.timezone", "America/Sao_Paulo")
	v.SetDefault("fetch.backend", "colly")
	v.SetDefault("fetch.user_agent", "")
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.settle_millis", 0)
	v.SetDefault("monitor.autostart", true)
	v.SetDefault("monitor.log_capacity", monitor.DefaultJournalCapacity)
	v.SetDefault("monitor.check_granularity_ms", int(monitor.DefaultCheckGranularity/time.Millisecond))
	v.SetDefault("subscribers.backend", "file")
	v.SetDefault("subscribers.path", "config/subscribers.json")
	v.SetDefault("subscribers.postgres.dsn", "")
	v.SetDefault("subscribers.postgres.table", "subscribers")
	v.SetDefault("subscribers.postgres.max_conns", 4)
	v.SetDefault("archive.backend", "none")
	v.SetDefault("archive.prefix", "snapshots")
	v.SetDefault("archive.local_dir", "data")
	v.SetDefault("archive.gcs_bucket", "")
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "edital-changes")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate enforces required values and cross-field rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &monitor.ValidationError{
				Field:  strings.TrimPrefix(fe.Namespace(), "Config."),
				Value:  fmt.Sprint(fe.Value()),
				Reason: "failed " + fe.Tag() + " rule",
			}
		}
		return fmt.Errorf("validate config: %w", err)
	}
	if c.Auth.AdminEnabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when admin endpoints are enabled")
	}
	if c.Email.Enabled {
		if c.Email.SMTPServer == "" {
			return fmt.Errorf("email.smtp_server must be set when email is enabled")
		}
		if !strings.Contains(c.Email.FromEmail, "@") {
			return fmt.Errorf("email.from_email must be an address when email is enabled")
		}
	}
	if c.Email.Timezone != "" {
		if _, err := time.LoadLocation(c.Email.Timezone); err != nil {
			return fmt.Errorf("email.timezone: %w", err)
		}
	}
	if c.Subscribers.Backend == "file" && c.Subscribers.Path == "" {
		return fmt.Errorf("subscribers.path is required for the file backend")
	}
	if c.Subscribers.Backend == "postgres" && c.Subscribers.Postgres.DSN == "" {
		return fmt.Errorf("subscribers.postgres.dsn is required for the postgres backend")
	}
	switch c.Archive.Backend {
	case "local":
		if c.Archive.LocalDir == "" {
			return fmt.Errorf("archive.local_dir is required for the local backend")
		}
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket is required for the gcs backend")
		}
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name are required when pubsub is enabled")
	}
	return nil
}
