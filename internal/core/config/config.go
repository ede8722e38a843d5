// Package config handles configuration loading and validation for boatpub.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hay-kot/criterio"
	"gopkg.in/yaml.v3"

	"github.com/hay-kot/boatpub/pkg/randid"
)

const (
	DefaultTopic     = "/boat/velocity"
	DefaultPlainPort = 1883
	DefaultTLSPort   = 8883

	TLSVersion12 = "1.2"
	TLSVersion13 = "1.3"
)

// Config holds the application configuration.
type Config struct {
	Broker  BrokerConfig  `yaml:"broker"`
	Publish PublishConfig `yaml:"publish"`
	Metrics MetricsConfig `yaml:"metrics"`
	History HistoryConfig `yaml:"history"`
	DataDir string        `yaml:"-"` // set by caller, not from config file

	// inlinePassword records that the password came from the config file itself.
	inlinePassword bool
}

// BrokerConfig describes how to reach the MQTT broker.
type BrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"` // 0 picks 1883 or 8883 depending on TLS
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	// Password is accepted for completeness; prefer PasswordFile or the
	// BOATPUB_BROKER_PASSWORD environment variable.
	Password       string        `yaml:"password,omitempty"`
	PasswordFile   string        `yaml:"password_file"`
	TLS            TLSConfig     `yaml:"tls"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
}

// TLSConfig holds the TLS options for the broker connection.
type TLSConfig struct {
	Enabled            bool   `yaml:"enabled"`
	CAFile             string `yaml:"ca_file"`
	CertFile           string `yaml:"cert_file"`
	KeyFile            string `yaml:"key_file"`
	MinVersion         string `yaml:"min_version"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// PublishConfig controls the publishing loop.
type PublishConfig struct {
	Topic      string        `yaml:"topic"`
	Count      int           `yaml:"count"`
	Interval   time.Duration `yaml:"interval"`
	QoS        int           `yaml:"qos"`
	Retained   bool          `yaml:"retained"`
	AckTimeout time.Duration `yaml:"ack_timeout"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the endpoint
}

// HistoryConfig controls run history retention.
type HistoryConfig struct {
	MaxEntries int `yaml:"max_entries"` // 0 means unlimited
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Broker: BrokerConfig{
			Host:           "localhost",
			ConnectTimeout: 10 * time.Second,
			KeepAlive:      60 * time.Second,
			TLS: TLSConfig{
				MinVersion: TLSVersion12,
			},
		},
		Publish: PublishConfig{
			Topic:      DefaultTopic,
			Count:      500,
			Interval:   500 * time.Millisecond,
			AckTimeout: 5 * time.Second,
		},
		History: HistoryConfig{
			MaxEntries: 50,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
// The result is not validated and the broker password is not resolved; see
// Resolved, Validate and ValidateDeep.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
			cfg.inlinePassword = cfg.Broker.Password != ""
		}
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Broker.ClientID == "" {
		c.Broker.ClientID = randid.Numbered("publish", 1000)
	}
	if c.Broker.ConnectTimeout == 0 {
		c.Broker.ConnectTimeout = defaults.Broker.ConnectTimeout
	}
	if c.Broker.KeepAlive == 0 {
		c.Broker.KeepAlive = defaults.Broker.KeepAlive
	}
	if c.Broker.TLS.MinVersion == "" {
		c.Broker.TLS.MinVersion = defaults.Broker.TLS.MinVersion
	}
	if c.Publish.Topic == "" {
		c.Publish.Topic = defaults.Publish.Topic
	}
	if c.Publish.Count == 0 {
		c.Publish.Count = defaults.Publish.Count
	}
	if c.Publish.AckTimeout == 0 {
		c.Publish.AckTimeout = defaults.Publish.AckTimeout
	}
}

// PasswordEnvVar names the environment variable consulted for the broker
// password when a username is configured and the file sets no password.
const PasswordEnvVar = "BOATPUB_BROKER_PASSWORD"

// ResolvePassword fills Broker.Password from PasswordEnvVar, then from the
// password file, when no password was given directly.
func (c *Config) ResolvePassword() error {
	if c.Broker.Password != "" {
		return nil
	}
	if env := os.Getenv(PasswordEnvVar); env != "" && c.Broker.Username != "" {
		c.Broker.Password = env
		return nil
	}
	if c.Broker.PasswordFile == "" {
		return nil
	}

	data, err := os.ReadFile(c.Broker.PasswordFile)
	if err != nil {
		return fmt.Errorf("read password file: %w", err)
	}

	c.Broker.Password = strings.TrimRight(string(data), "\r\n")
	return nil
}

// Resolved returns a copy of c with the broker password filled in.
func (c Config) Resolved() (Config, error) {
	err := c.ResolvePassword()
	return c, err
}

// EffectivePort returns the configured port, or the protocol default when unset.
func (b BrokerConfig) EffectivePort() int {
	if b.Port != 0 {
		return b.Port
	}
	if b.TLS.Enabled {
		return DefaultTLSPort
	}
	return DefaultPlainPort
}

// Address returns host:port of the broker.
func (b BrokerConfig) Address() string {
	return fmt.Sprintf("%s:%d", b.Host, b.EffectivePort())
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if strings.TrimSpace(c.Broker.Host) == "" {
		errs = errs.Append("broker.host", errors.New("cannot be empty"))
	}
	if c.Broker.Port < 0 || c.Broker.Port > 65535 {
		errs = errs.Append("broker.port", fmt.Errorf("must be between 0 and 65535, got %d", c.Broker.Port))
	}
	if strings.TrimSpace(c.Broker.ClientID) == "" {
		errs = errs.Append("broker.client_id", errors.New("cannot be empty"))
	}

	hasPassword := c.Broker.Password != "" || c.Broker.PasswordFile != ""
	if c.Broker.Username != "" && !hasPassword {
		errs = errs.Append("broker.password", errors.New("required when username is set"))
	}
	if c.Broker.Username == "" && hasPassword {
		errs = errs.Append("broker.username", errors.New("required when password is set"))
	}

	if c.Broker.ConnectTimeout <= 0 {
		errs = errs.Append("broker.connect_timeout", errors.New("must be greater than 0"))
	}
	if c.Broker.KeepAlive < 0 {
		errs = errs.Append("broker.keep_alive", errors.New("cannot be negative"))
	}

	tlsCfg := c.Broker.TLS
	if (tlsCfg.CertFile == "") != (tlsCfg.KeyFile == "") {
		errs = errs.Append("broker.tls", errors.New("cert_file and key_file must be set together"))
	}
	switch tlsCfg.MinVersion {
	case TLSVersion12, TLSVersion13:
	default:
		errs = errs.Append("broker.tls.min_version", fmt.Errorf("unsupported version %q (use %s or %s)", tlsCfg.MinVersion, TLSVersion12, TLSVersion13))
	}

	if err := validateTopic(c.Publish.Topic); err != nil {
		errs = errs.Append("publish.topic", err)
	}
	if c.Publish.Count < 1 {
		errs = errs.Append("publish.count", errors.New("must be at least 1"))
	}
	if c.Publish.Interval < 0 {
		errs = errs.Append("publish.interval", errors.New("cannot be negative"))
	}
	if c.Publish.QoS < 0 || c.Publish.QoS > 2 {
		errs = errs.Append("publish.qos", fmt.Errorf("must be 0, 1 or 2, got %d", c.Publish.QoS))
	}
	if c.Publish.QoS > 0 && c.Publish.AckTimeout <= 0 {
		errs = errs.Append("publish.ack_timeout", errors.New("must be greater than 0 when qos > 0"))
	}

	if c.History.MaxEntries < 0 {
		errs = errs.Append("history.max_entries", errors.New("cannot be negative"))
	}

	if c.DataDir == "" {
		errs = errs.Append("data_dir", errors.New("cannot be empty"))
	}

	return errs.ToError()
}

// validateTopic rejects topics a publisher may not use.
func validateTopic(topic string) error {
	if topic == "" {
		return errors.New("cannot be empty")
	}
	if strings.ContainsAny(topic, "+#") {
		return errors.New("wildcards are not allowed in publish topics")
	}
	if strings.ContainsRune(topic, 0) {
		return errors.New("cannot contain NUL characters")
	}
	return nil
}

// Check validates c as a publish run would, without modifying it. Defaults are
// applied to a copy and the password may come from PasswordEnvVar.
func (c Config) Check() error {
	c.applyDefaults()
	if c.Broker.Password == "" && c.Broker.Username != "" {
		c.Broker.Password = os.Getenv(PasswordEnvVar)
	}
	return c.Validate()
}

// RunsFile returns the path to the run history JSON file.
func (c *Config) RunsFile() string {
	return filepath.Join(c.DataDir, "runs.json")
}
