package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/hay-kot/criterio"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs comprehensive validation of the configuration.
// Unlike Validate(), this resolves the broker password first and checks that
// referenced files are readable.
func (c *Config) ValidateDeep(configPath string) error {
	var errs criterio.FieldErrorsBuilder

	resolved, err := c.Resolved()
	if err != nil {
		errs = errs.Append("broker.password_file", err)
	}

	if err := resolved.Validate(); err != nil {
		var fieldErrs criterio.FieldErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			errs = errs.Append(fe.Field, fe.Err)
		}
	}

	if configPath != "" {
		if info, err := os.Stat(configPath); err == nil && info.IsDir() {
			errs = errs.Append("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
		} else if err != nil && !os.IsNotExist(err) {
			errs = errs.Append("config_file", fmt.Errorf("cannot access %s: %w", configPath, err))
		}
	}

	files := []struct {
		field string
		path  string
	}{
		{"broker.tls.ca_file", c.Broker.TLS.CAFile},
		{"broker.tls.cert_file", c.Broker.TLS.CertFile},
		{"broker.tls.key_file", c.Broker.TLS.KeyFile},
	}
	for _, f := range files {
		if f.path == "" {
			continue
		}
		if err := checkReadable(f.path); err != nil {
			errs = errs.Append(f.field, err)
		}
	}

	if c.Broker.TLS.Enabled {
		if _, err := c.Broker.TLS.Build(c.Broker.Host); err != nil {
			errs = errs.Append("broker.tls", err)
		}
	}

	if c.DataDir != "" {
		if info, err := os.Stat(c.DataDir); err == nil && !info.IsDir() {
			errs = errs.Append("data_dir", fmt.Errorf("%s exists but is not a directory", c.DataDir))
		}
	}

	return errs.ToError()
}

// Warnings returns non-fatal issues with the configuration.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if c.inlinePassword {
		warnings = append(warnings, ValidationWarning{
			Category: "Credentials",
			Item:     "broker.password",
			Message:  "password is stored in the config file; use password_file or BOATPUB_BROKER_PASSWORD",
		})
	}

	if c.Broker.Username != "" && !c.Broker.TLS.Enabled {
		warnings = append(warnings, ValidationWarning{
			Category: "Credentials",
			Item:     "broker.tls.enabled",
			Message:  "credentials are sent over a plaintext connection",
		})
	}

	if c.Broker.TLS.InsecureSkipVerify {
		warnings = append(warnings, ValidationWarning{
			Category: "TLS",
			Item:     "broker.tls.insecure_skip_verify",
			Message:  "broker certificate is not verified",
		})
	}

	if !c.Broker.TLS.Enabled && (c.Broker.TLS.CAFile != "" || c.Broker.TLS.CertFile != "") {
		warnings = append(warnings, ValidationWarning{
			Category: "TLS",
			Item:     "broker.tls.enabled",
			Message:  "TLS files are configured but TLS is disabled",
		})
	}

	return warnings
}

func checkReadable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", path)
		}
		return fmt.Errorf("cannot access %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	return nil
}
