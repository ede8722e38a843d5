package commands

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/hay-kot/boatpub/internal/broker"
	"github.com/hay-kot/boatpub/internal/core/config"
	"github.com/hay-kot/boatpub/internal/core/runlog"
	"github.com/hay-kot/boatpub/internal/metrics"
	"github.com/hay-kot/boatpub/internal/printer"
	"github.com/hay-kot/boatpub/internal/publisher"
	"github.com/hay-kot/boatpub/internal/styles"
	"github.com/hay-kot/boatpub/pkg/randid"
)

type RunCmd struct {
	flags *Flags

	// Overrides for values from the config file
	host        string
	port        int
	tls         bool
	clientID    string
	username    string
	topic       string
	count       int
	interval    time.Duration
	qos         int
	metricsAddr string

	quiet bool

	// dialer is replaced in tests
	dialer *broker.Dialer
}

// NewRunCmd creates a new run command
func NewRunCmd(flags *Flags) *RunCmd {
	return &RunCmd{flags: flags}
}

// Register adds the run command to the application
func (cmd *RunCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "run",
		Usage:     "Publish simulated velocity readings to the broker",
		UsageText: "boatpub run [options]",
		Description: `Connects to the configured MQTT broker and publishes one velocity
reading per interval until the configured count is reached, then disconnects.

Each reading is a JSON object with an ISO-8601 timestamp and a velocity
between 0 and 30 rounded to two decimals. Failed publishes are reported and
the loop continues. Connection failures abort the run with exit status 1.

Flags override the matching values from the config file. The broker password
is read from BOATPUB_BROKER_PASSWORD or broker.password_file.

Example:
  boatpub run --host mqtt.example.com --tls
  boatpub run --count 10 --interval 100ms --qos 1`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "host",
				Usage:       "broker host name or IP",
				Sources:     cli.EnvVars("BOATPUB_BROKER_HOST"),
				Destination: &cmd.host,
			},
			&cli.IntFlag{
				Name:        "port",
				Aliases:     []string{"p"},
				Usage:       "broker port (default 1883, or 8883 with --tls)",
				Sources:     cli.EnvVars("BOATPUB_BROKER_PORT"),
				Destination: &cmd.port,
			},
			&cli.BoolFlag{
				Name:        "tls",
				Usage:       "connect over TLS",
				Sources:     cli.EnvVars("BOATPUB_BROKER_TLS"),
				Destination: &cmd.tls,
			},
			&cli.StringFlag{
				Name:        "client-id",
				Usage:       "MQTT client identifier (default publish-<n>)",
				Destination: &cmd.clientID,
			},
			&cli.StringFlag{
				Name:        "username",
				Aliases:     []string{"u"},
				Usage:       "broker username",
				Sources:     cli.EnvVars("BOATPUB_BROKER_USERNAME"),
				Destination: &cmd.username,
			},
			&cli.StringFlag{
				Name:        "topic",
				Aliases:     []string{"t"},
				Usage:       "topic to publish to",
				Destination: &cmd.topic,
			},
			&cli.IntFlag{
				Name:        "count",
				Aliases:     []string{"n"},
				Usage:       "number of readings to publish",
				Destination: &cmd.count,
			},
			&cli.DurationFlag{
				Name:        "interval",
				Aliases:     []string{"i"},
				Usage:       "pause before each reading",
				Destination: &cmd.interval,
			},
			&cli.IntFlag{
				Name:        "qos",
				Usage:       "MQTT quality of service (0, 1 or 2)",
				Destination: &cmd.qos,
			},
			&cli.StringFlag{
				Name:        "metrics-addr",
				Usage:       "serve Prometheus metrics on this address while running",
				Sources:     cli.EnvVars("BOATPUB_METRICS_ADDR"),
				Destination: &cmd.metricsAddr,
			},
			&cli.BoolFlag{
				Name:        "quiet",
				Aliases:     []string{"q"},
				Usage:       "only print the summary",
				Destination: &cmd.quiet,
			},
		},
		Action: cmd.run,
	})

	return app
}

// applyOverrides copies explicitly set flags into cfg.
func (cmd *RunCmd) applyOverrides(c *cli.Command, cfg *config.Config) {
	if c.IsSet("host") {
		cfg.Broker.Host = cmd.host
	}
	if c.IsSet("port") {
		cfg.Broker.Port = cmd.port
	}
	if c.IsSet("tls") {
		cfg.Broker.TLS.Enabled = cmd.tls
	}
	if c.IsSet("client-id") {
		cfg.Broker.ClientID = cmd.clientID
	}
	if c.IsSet("username") {
		cfg.Broker.Username = cmd.username
	}
	if c.IsSet("topic") {
		cfg.Publish.Topic = cmd.topic
	}
	if c.IsSet("count") {
		cfg.Publish.Count = cmd.count
	}
	if c.IsSet("interval") {
		cfg.Publish.Interval = cmd.interval
	}
	if c.IsSet("qos") {
		cfg.Publish.QoS = cmd.qos
	}
	if c.IsSet("metrics-addr") {
		cfg.Metrics.Addr = cmd.metricsAddr
	}
}

func (cmd *RunCmd) run(ctx context.Context, c *cli.Command) error {
	base, err := cmd.flags.LoadedConfig()
	if err != nil {
		return err
	}

	cfg := *base
	cmd.applyOverrides(c, &cfg)
	if err := cfg.ResolvePassword(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	p := printer.Ctx(ctx)
	for _, w := range cfg.Warnings() {
		p.Warnf("%s: %s", w.Item, w.Message)
	}

	opts, err := broker.OptionsFromConfig(&cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, runErr := cmd.publish(ctx, &cfg, opts, c.Root().Writer)

	entry := runlog.FromReport(randid.Generate(6), opts, cfg.Publish.Topic, report, runErr)
	if cmd.flags.RunStore != nil {
		if err := cmd.flags.RunStore.Save(context.WithoutCancel(ctx), entry); err != nil {
			log.Warn().Err(err).Msg("failed to save run history")
		}
	}

	if runErr != nil {
		return runErr
	}

	_, _ = fmt.Fprintln(p.Writer(), renderSummary(entry))
	return nil
}

// publish runs the loop, and the metrics endpoint alongside it when an
// address is configured.
func (cmd *RunCmd) publish(ctx context.Context, cfg *config.Config, opts broker.Options, out io.Writer) (publisher.Report, error) {
	observers := []publisher.Observer{}
	if !cmd.quiet {
		observers = append(observers, consoleObserver(out))
	}

	var (
		m  *metrics.Metrics
		ln net.Listener
	)
	if cfg.Metrics.Addr != "" {
		var lc net.ListenConfig
		l, err := lc.Listen(ctx, "tcp", cfg.Metrics.Addr)
		if err != nil {
			return publisher.Report{Requested: cfg.Publish.Count}, fmt.Errorf("metrics listener: %w", err)
		}
		m, ln = metrics.New(), l
		observers = append(observers, m)
	}

	dialer := cmd.dialer
	if dialer == nil {
		dialer = broker.NewDialer(log.Logger)
	}

	loop := publisher.New(
		publisher.SettingsFromConfig(cfg.Publish),
		publisher.BrokerDial(dialer, opts),
		log.Logger,
		publisher.WithObserver(observers...),
	)

	var (
		report publisher.Report
		runErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	metricsCtx, stopMetrics := context.WithCancel(gctx)
	defer stopMetrics()

	if m != nil {
		g.Go(func() error {
			return metrics.Serve(metricsCtx, ln, m, log.With().Str("component", "metrics").Logger())
		})
	}

	g.Go(func() error {
		defer stopMetrics()
		report, runErr = loop.Run(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Msg("metrics endpoint stopped")
	}

	return report, runErr
}

// consoleObserver prints one line per reading.
func consoleObserver(w io.Writer) publisher.Observer {
	return publisher.ObserverFuncs{
		Delivery: func(d publisher.Delivery) {
			if d.Status == broker.StatusAccepted {
				_, _ = fmt.Fprintf(w, "Send `%s` to topic `%s`\n", d.Payload, d.Topic)
				return
			}
			_, _ = fmt.Fprintf(w, "Failed to send message to topic %s\n", d.Topic)
		},
	}
}

func renderSummary(e runlog.Entry) string {
	accepted := styles.GoodStyle.Render(strconv.Itoa(e.Accepted))
	rejected := strconv.Itoa(e.Rejected)
	if e.Rejected > 0 {
		rejected = styles.BadStyle.Render(rejected)
	}

	transport := "plaintext"
	if e.TLS {
		transport = "tls"
	}

	rows := []string{
		styles.SummaryTitleStyle.Render("Run " + e.ID),
		styles.Row("Broker", e.Broker+" ("+transport+")"),
		styles.Row("Topic", e.Topic),
		styles.Row("Published", fmt.Sprintf("%d of %d", e.Attempted, e.Requested)),
		styles.Row("Accepted", accepted),
		styles.Row("Rejected", rejected),
	}

	if e.QoS > 0 {
		acked := strconv.Itoa(e.Acknowledged)
		if e.Unacknowledged > 0 {
			acked += " " + styles.WarnStyle.Render(fmt.Sprintf("(%d unacknowledged)", e.Unacknowledged))
		}
		rows = append(rows, styles.Row("Acknowledged", acked))
	}
	if e.Interrupted {
		rows = append(rows, styles.Row("Status", styles.WarnStyle.Render("interrupted")))
	}
	rows = append(rows, styles.Row("Duration", e.Duration().Round(time.Millisecond).String()))

	return styles.SummaryBoxStyle.Render(strings.Join(rows, "\n"))
}
