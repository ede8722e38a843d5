package doctor

import (
	"context"
	"errors"
	"os"

	"github.com/hay-kot/criterio"

	"github.com/hay-kot/boatpub/internal/core/config"
)

// ConfigCheck validates the configuration file and reports where the broker
// password comes from.
type ConfigCheck struct {
	config     *config.Config
	configPath string
	loadErr    error
}

// NewConfigCheck creates a new configuration check.
func NewConfigCheck(cfg *config.Config, configPath string) *ConfigCheck {
	return &ConfigCheck{
		config:     cfg,
		configPath: configPath,
	}
}

// WithLoadError records why the config could not be loaded.
func (c *ConfigCheck) WithLoadError(err error) *ConfigCheck {
	c.loadErr = err
	return c
}

func (c *ConfigCheck) Name() string {
	return "Configuration"
}

func (c *ConfigCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if c.config == nil || c.loadErr != nil {
		detail := "configuration not loaded"
		if c.loadErr != nil {
			detail = c.loadErr.Error()
		}
		result.Items = append(result.Items, CheckItem{
			Label:  "Config loaded",
			Status: StatusFail,
			Detail: detail,
		})
		return result
	}

	err := c.config.ValidateDeep(c.configPath)
	if err == nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "Config valid",
			Status: StatusPass,
			Detail: c.configPath,
		})
	} else {
		result.Items = append(result.Items, fieldItems(err)...)
	}

	if src := passwordSource(c.config); c.config.Broker.Username != "" && src != "" {
		result.Items = append(result.Items, CheckItem{
			Label:  "Password source",
			Status: StatusPass,
			Detail: src,
		})
	}

	for _, w := range c.config.Warnings() {
		label := w.Category
		if w.Item != "" {
			label += " (" + w.Item + ")"
		}
		result.Items = append(result.Items, CheckItem{
			Label:  label,
			Status: StatusWarn,
			Detail: w.Message,
		})
	}

	return result
}

// fieldItems turns a validation error into one failing item per field.
func fieldItems(err error) []CheckItem {
	var fieldErrs criterio.FieldErrors
	if !errors.As(err, &fieldErrs) {
		return []CheckItem{{Label: "validation", Status: StatusFail, Detail: err.Error()}}
	}

	items := make([]CheckItem, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		label := fe.Field
		if label == "" {
			label = "validation"
		}
		items = append(items, CheckItem{Label: label, Status: StatusFail, Detail: fe.Err.Error()})
	}
	return items
}

// passwordSource mirrors the lookup order of config.ResolvePassword. It
// returns "" when no source is configured.
func passwordSource(cfg *config.Config) string {
	switch {
	case cfg.Broker.Password != "":
		return "config file"
	case os.Getenv(config.PasswordEnvVar) != "":
		return config.PasswordEnvVar
	case cfg.Broker.PasswordFile != "":
		return cfg.Broker.PasswordFile
	default:
		return ""
	}
}
