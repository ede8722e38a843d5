// Package setup builds a configuration file interactively or from
// key=value overrides.
package setup

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/hay-kot/boatpub/internal/core/config"
)

// Answers holds the values collected by the init form. Numeric and duration
// fields stay strings so the form can bind them directly.
type Answers struct {
	Host         string
	Port         string
	TLS          bool
	CAFile       string
	MinVersion   string
	Username     string
	PasswordFile string
	Topic        string
	Count        string
	Interval     string
	QoS          string
}

// AnswersFromConfig pre-fills the form from cfg.
func AnswersFromConfig(cfg *config.Config) Answers {
	port := ""
	if cfg.Broker.Port != 0 {
		port = strconv.Itoa(cfg.Broker.Port)
	}
	return Answers{
		Host:         cfg.Broker.Host,
		Port:         port,
		TLS:          cfg.Broker.TLS.Enabled,
		CAFile:       cfg.Broker.TLS.CAFile,
		MinVersion:   cfg.Broker.TLS.MinVersion,
		Username:     cfg.Broker.Username,
		PasswordFile: cfg.Broker.PasswordFile,
		Topic:        cfg.Publish.Topic,
		Count:        strconv.Itoa(cfg.Publish.Count),
		Interval:     cfg.Publish.Interval.String(),
		QoS:          strconv.Itoa(cfg.Publish.QoS),
	}
}

// Apply copies the answers into cfg. An empty port selects the protocol
// default.
func (a Answers) Apply(cfg *config.Config) error {
	port := 0
	if strings.TrimSpace(a.Port) != "" {
		p, err := strconv.Atoi(strings.TrimSpace(a.Port))
		if err != nil {
			return fmt.Errorf("port: %w", err)
		}
		port = p
	}

	count, err := strconv.Atoi(strings.TrimSpace(a.Count))
	if err != nil {
		return fmt.Errorf("count: %w", err)
	}

	interval, err := time.ParseDuration(strings.TrimSpace(a.Interval))
	if err != nil {
		return fmt.Errorf("interval: %w", err)
	}

	qos, err := strconv.Atoi(strings.TrimSpace(a.QoS))
	if err != nil {
		return fmt.Errorf("qos: %w", err)
	}

	cfg.Broker.Host = strings.TrimSpace(a.Host)
	cfg.Broker.Port = port
	cfg.Broker.TLS.Enabled = a.TLS
	cfg.Broker.TLS.CAFile = strings.TrimSpace(a.CAFile)
	if a.MinVersion != "" {
		cfg.Broker.TLS.MinVersion = a.MinVersion
	}
	cfg.Broker.Username = strings.TrimSpace(a.Username)
	cfg.Broker.PasswordFile = strings.TrimSpace(a.PasswordFile)
	cfg.Publish.Topic = strings.TrimSpace(a.Topic)
	cfg.Publish.Count = count
	cfg.Publish.Interval = interval
	cfg.Publish.QoS = qos
	return nil
}

// RunForm prompts for the main connection settings and writes the answers
// into cfg.
func RunForm(cfg *config.Config) error {
	a := AnswersFromConfig(cfg)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(fieldTitle("Broker host", true)).
				Value(&a.Host).
				Validate(requiredValidator("Broker host")),
			huh.NewInput().
				Title(fieldTitle("Broker port", false)).
				Description("Leave empty for 1883, or 8883 with TLS").
				Value(&a.Port).
				Validate(portValidator),
			huh.NewConfirm().
				Title("Use TLS?").
				Value(&a.TLS),
		),
		huh.NewGroup(
			huh.NewInput().
				Title(fieldTitle("CA file", false)).
				Description("PEM bundle used to verify the broker; empty uses system roots").
				Value(&a.CAFile).
				Validate(fileValidator),
			huh.NewSelect[string]().
				Title("Minimum TLS version").
				Options(huh.NewOptions(config.TLSVersion12, config.TLSVersion13)...).
				Value(&a.MinVersion),
		).WithHideFunc(func() bool { return !a.TLS }),
		huh.NewGroup(
			huh.NewInput().
				Title(fieldTitle("Username", false)).
				Value(&a.Username),
			huh.NewInput().
				Title(fieldTitle("Password file", false)).
				Description("File holding the broker password").
				Value(&a.PasswordFile).
				Validate(fileValidator),
		),
		huh.NewGroup(
			huh.NewInput().
				Title(fieldTitle("Topic", true)).
				Value(&a.Topic).
				Validate(requiredValidator("Topic")),
			huh.NewInput().
				Title(fieldTitle("Message count", true)).
				Value(&a.Count).
				Validate(positiveIntValidator),
			huh.NewInput().
				Title(fieldTitle("Interval", true)).
				Value(&a.Interval).
				Validate(durationValidator),
			huh.NewSelect[string]().
				Title("QoS").
				Options(huh.NewOptions("0", "1", "2")...).
				Value(&a.QoS),
		),
	)

	if err := form.Run(); err != nil {
		return err
	}
	return a.Apply(cfg)
}

// fieldTitle generates the display title for a field.
func fieldTitle(label string, required bool) string {
	if required {
		return label + " *"
	}
	return label
}

// requiredValidator returns a validator that checks for non-empty values.
func requiredValidator(label string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", label)
		}
		return nil
	}
}

func portValidator(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		return errors.New("port must be a number between 1 and 65535")
	}
	return nil
}

func positiveIntValidator(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return errors.New("must be a whole number of at least 1")
	}
	return nil
}

func durationValidator(s string) error {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return errors.New("must be a duration such as 500ms or 2s")
	}
	if d < 0 {
		return errors.New("cannot be negative")
	}
	return nil
}

func fileValidator(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	info, err := os.Stat(s)
	if err != nil {
		return fmt.Errorf("cannot read %s", s)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", s)
	}
	return nil
}
