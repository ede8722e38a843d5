package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/boatpub/internal/commands"
	"github.com/hay-kot/boatpub/internal/core/config"
	"github.com/hay-kot/boatpub/internal/printer"
	"github.com/hay-kot/boatpub/internal/store/jsonfile"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	short := commit
	if len(commit) > 7 {
		short = commit[:7]
	}

	return fmt.Sprintf("%s (%s) %s", version, short, date)
}

func main() {
	if err := setupLogger("info", ""); err != nil {
		panic(err)
	}

	var (
		p   = printer.New(os.Stderr)
		ctx = printer.NewContext(context.Background(), p)
		app = newApp(&commands.Flags{})
	)

	exitCode := 0
	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Println()
		printer.Ctx(ctx).FatalError(err)
		exitCode = 1
	}

	os.Exit(exitCode)
}

// newApp builds the root command. The config is loaded but not validated
// before a subcommand runs; each subcommand decides how much it needs.
func newApp(flags *commands.Flags) *cli.Command {
	app := &cli.Command{
		Name:      "boatpub",
		Usage:     "Publish simulated boat velocity readings over MQTT",
		UsageText: "boatpub [global options] command [command options]",
		Description: `boatpub simulates a boat speed sensor. It connects to an MQTT broker,
over plaintext or TLS, and publishes timestamped velocity readings to a topic
at a fixed interval.

Run 'boatpub config init' to write a config file.
Run 'boatpub run' to start publishing.
Run 'boatpub doctor' to check the config and broker connection.
Run 'boatpub doc config' for the config file reference.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("BOATPUB_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (optional)",
				Sources:     cli.EnvVars("BOATPUB_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("BOATPUB_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("BOATPUB_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if err := setupLogger(flags.LogLevel, flags.LogFile); err != nil {
				return ctx, err
			}

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				// history and config init work without a readable config file
				log.Warn().Err(err).Str("config", flags.ConfigPath).Msg("failed to load config")
				flags.ConfigErr = fmt.Errorf("load config: %w", err)

				defaults := config.DefaultConfig()
				defaults.DataDir = flags.DataDir
				flags.RunStore = jsonfile.NewRunStore(defaults.RunsFile(), defaults.History.MaxEntries)
				return ctx, nil
			}
			flags.Config = cfg
			flags.RunStore = jsonfile.NewRunStore(cfg.RunsFile(), cfg.History.MaxEntries)

			log.Debug().
				Str("config", flags.ConfigPath).
				Str("data_dir", cfg.DataDir).
				Str("broker", cfg.Broker.Address()).
				Msg("configuration loaded")
			return ctx, nil
		},
	}

	app = commands.NewRunCmd(flags).Register(app)
	app = commands.NewConfigCmd(flags).Register(app)
	app = commands.NewDoctorCmd(flags).Register(app)
	app = commands.NewHistoryCmd(flags).Register(app)
	app = commands.NewDocCmd().Register(app)

	return app
}

func setupLogger(level string, logFile string) error {
	parsedLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	var output io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}

	if logFile != "" {
		// Create log directory if it doesn't exist
		logDir := filepath.Dir(logFile)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}

		// Write to both console and file
		output = io.MultiWriter(
			zerolog.ConsoleWriter{Out: os.Stderr},
			file,
		)
	}

	log.Logger = log.Output(output).Level(parsedLevel)

	return nil
}
