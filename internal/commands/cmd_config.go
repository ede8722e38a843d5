package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/hay-kot/boatpub/internal/core/config"
	"github.com/hay-kot/boatpub/internal/printer"
	"github.com/hay-kot/boatpub/internal/setup"
	"github.com/hay-kot/boatpub/internal/styles"
)

type ConfigCmd struct {
	flags  *Flags
	format string

	// init flags
	defaults bool
	force    bool
	sets     []string

	// runForm is replaced in tests
	runForm func(*config.Config) error
}

// NewConfigCmd creates a new config command.
func NewConfigCmd(flags *Flags) *ConfigCmd {
	return &ConfigCmd{flags: flags, runForm: setup.RunForm}
}

// Register adds the config commands to the application.
func (cmd *ConfigCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:        "validate",
				Usage:       "Validate configuration file",
				UsageText:   "boatpub config validate [options]",
				Description: "Validates the configuration file, checking broker settings, publish settings, TLS material, and file paths.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       "text",
						Destination: &cmd.format,
					},
				},
				Action: cmd.runValidate,
			},
			{
				Name:      "init",
				Usage:     "Write a new configuration file",
				UsageText: "boatpub config init [options]",
				Description: `Writes a configuration file to the config path.

Prompts for the broker and publish settings unless --defaults is set or
stdin is not a terminal. Values passed with --set are applied first and
pre-fill the prompts.

Example:
  boatpub config init
  boatpub config init --defaults --set broker.host=mqtt.local --set broker.tls.enabled=true`,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "defaults",
						Usage:       "skip the prompts",
						Destination: &cmd.defaults,
					},
					&cli.BoolFlag{
						Name:        "force",
						Aliases:     []string{"f"},
						Usage:       "overwrite an existing config file",
						Destination: &cmd.force,
					},
					&cli.StringSliceFlag{
						Name:        "set",
						Usage:       "set a config value (key=value, repeatable): " + strings.Join(setup.SettableKeys(), ", "),
						Destination: &cmd.sets,
					},
				},
				Action: cmd.runInit,
			},
		},
	})

	return app
}

func (cmd *ConfigCmd) runInit(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)
	path := cmd.flags.ConfigPath

	if _, err := os.Stat(path); err == nil && !cmd.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	values, err := setup.ParseSetValues(cmd.sets)
	if err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	if err := setup.ApplySet(&cfg, values); err != nil {
		return fmt.Errorf("invalid --set: %w", err)
	}

	if !cmd.defaults && term.IsTerminal(int(os.Stdin.Fd())) {
		_, _ = fmt.Fprintln(p.Writer(), styles.BannerStyle.Render(styles.Banner))
		_, _ = fmt.Fprintln(p.Writer())
		if err := cmd.runForm(&cfg); err != nil {
			return err
		}
	}

	cfg.DataDir = cmd.flags.DataDir
	if err := cfg.Check(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := cfg.Write(path); err != nil {
		return err
	}

	p.Success("Config written", path)
	return nil
}

func (cmd *ConfigCmd) runValidate(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	cfg, err := cmd.flags.LoadedConfig()
	if err != nil {
		return err
	}

	err = cfg.ValidateDeep(cmd.flags.ConfigPath)
	warnings := cfg.Warnings()

	if cmd.format == "json" {
		return cmd.outputJSON(c, err, warnings)
	}

	return cmd.outputText(p, err, warnings)
}

func (cmd *ConfigCmd) outputJSON(c *cli.Command, validationErr error, warnings []config.ValidationWarning) error {
	type fieldError struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	}

	out := struct {
		Valid    bool                       `json:"valid"`
		Errors   []fieldError               `json:"errors,omitempty"`
		Warnings []config.ValidationWarning `json:"warnings,omitempty"`
	}{
		Valid:    validationErr == nil,
		Warnings: warnings,
	}

	for _, fe := range extractFieldErrors(validationErr) {
		out.Errors = append(out.Errors, fieldError{Field: fe.Field, Message: fe.Err.Error()})
	}

	enc := json.NewEncoder(c.Root().Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}

	if validationErr != nil {
		return cli.Exit("", 1)
	}

	return nil
}

// extractFieldErrors extracts field errors from a validation error.
func extractFieldErrors(err error) criterio.FieldErrors {
	if err == nil {
		return nil
	}
	var fieldErrs criterio.FieldErrors
	if errors.As(err, &fieldErrs) {
		return fieldErrs
	}
	return criterio.FieldErrors{{Err: err}}
}

func (cmd *ConfigCmd) outputText(p *printer.Printer, validationErr error, warnings []config.ValidationWarning) error {
	fieldErrs := extractFieldErrors(validationErr)

	if len(fieldErrs) > 0 {
		p.Printf("Errors")
		for _, fe := range fieldErrs {
			if fe.Field != "" {
				p.Printf("  %s %s: %s", printer.Cross, fe.Field, fe.Err.Error())
			} else {
				p.Printf("  %s %s", printer.Cross, fe.Err.Error())
			}
		}
	}

	if len(warnings) > 0 {
		if len(fieldErrs) > 0 {
			p.Printf("")
		}
		p.Printf("Warnings")
		for _, warn := range warnings {
			msg := warn.Message
			if warn.Item != "" {
				msg = warn.Item + ": " + msg
			}
			p.Printf("  %s %s: %s", printer.Dot, warn.Category, msg)
		}
	}

	p.Printf("")
	if validationErr == nil {
		if len(warnings) > 0 {
			p.Successf("Configuration is valid (%d warning(s))", len(warnings))
		} else {
			p.Successf("Configuration is valid")
		}
		return nil
	}

	p.Errorf("%d error(s), %d warning(s)", len(fieldErrs), len(warnings))
	return cli.Exit("", 1)
}
