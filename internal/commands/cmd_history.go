package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/boatpub/internal/core/runlog"
	"github.com/hay-kot/boatpub/internal/printer"
)

type HistoryCmd struct {
	flags *Flags

	// Command-specific flags
	clear      bool
	jsonOut    bool
	lastFailed bool
}

// NewHistoryCmd creates a new history command
func NewHistoryCmd(flags *Flags) *HistoryCmd {
	return &HistoryCmd{flags: flags}
}

// Register adds the history command to the application
func (cmd *HistoryCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "history",
		Usage:     "View or manage run history",
		UsageText: "boatpub history [options] [run-id]",
		Description: `View or manage the history of 'run' invocations.

By default, lists recent runs with their IDs, broker, counts, and timestamp.
Pass a run ID to show the details of that run.
Use --last-failed to show the most recent failed run.
Use --clear to remove all history entries.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "clear",
				Aliases:     []string{"c"},
				Usage:       "clear all run history",
				Destination: &cmd.clear,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print entries as JSON",
				Destination: &cmd.jsonOut,
			},
			&cli.BoolFlag{
				Name:        "last-failed",
				Usage:       "show only the most recent failed run",
				Destination: &cmd.lastFailed,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *HistoryCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	if cmd.flags.RunStore == nil {
		return fmt.Errorf("run history not available")
	}

	if cmd.clear {
		return cmd.runClear(ctx, p)
	}

	if cmd.lastFailed {
		return cmd.runLastFailed(ctx, c)
	}

	if id := c.Args().First(); id != "" {
		return cmd.runShow(ctx, c, id)
	}

	return cmd.runList(ctx, c)
}

func (cmd *HistoryCmd) runList(ctx context.Context, c *cli.Command) error {
	entries, err := cmd.flags.RunStore.List(ctx)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}

	if cmd.jsonOut {
		return writeJSON(c, entries)
	}

	if len(entries) == 0 {
		printer.Ctx(ctx).Infof("No run history")
		return nil
	}

	out := c.Root().Writer
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tBROKER\tTOPIC\tSENT\tSTATUS\tTIME")

	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			e.ID,
			e.Broker,
			e.Topic,
			e.Accepted,
			e.Requested,
			entryStatus(e),
			e.StartedAt.Local().Format("2006-01-02 15:04:05"),
		)
	}

	return w.Flush()
}

func (cmd *HistoryCmd) runLastFailed(ctx context.Context, c *cli.Command) error {
	e, err := cmd.flags.RunStore.LastFailed(ctx)
	if errors.Is(err, runlog.ErrNotFound) {
		printer.Ctx(ctx).Infof("No failed runs")
		return nil
	}
	if err != nil {
		return fmt.Errorf("last failed run: %w", err)
	}

	if cmd.jsonOut {
		return writeJSON(c, e)
	}

	printEntry(c, e)
	return nil
}

func (cmd *HistoryCmd) runShow(ctx context.Context, c *cli.Command, id string) error {
	e, err := cmd.flags.RunStore.Get(ctx, id)
	if errors.Is(err, runlog.ErrNotFound) {
		return fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}

	if cmd.jsonOut {
		return writeJSON(c, e)
	}

	printEntry(c, e)
	return nil
}

func printEntry(c *cli.Command, e runlog.Entry) {
	p := printer.NewPlain(c.Root().Writer)
	p.Section("Run " + e.ID)
	p.KeyValue("Broker", e.Broker)
	p.KeyValue("Client", e.ClientID)
	p.KeyValue("Topic", e.Topic)
	p.KeyValue("Status", entryStatus(e))
	p.KeyValue("Sent", fmt.Sprintf("%d of %d (%d rejected)", e.Attempted, e.Requested, e.Rejected))
	if e.Error != "" {
		p.KeyValue("Error", e.Error)
	}
	p.KeyValue("Started", e.StartedAt.Local().Format(time.RFC3339))
	p.KeyValue("Duration", e.Duration().Round(time.Millisecond))
}

func (cmd *HistoryCmd) runClear(ctx context.Context, p *printer.Printer) error {
	if err := cmd.flags.RunStore.Clear(ctx); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}

	p.Successf("Run history cleared")
	return nil
}

func entryStatus(e runlog.Entry) string {
	switch {
	case e.Error != "" && e.ErrorKind != "":
		return printer.StatusFailed(string(e.ErrorKind))
	case e.Error != "":
		return printer.StatusFailed("error")
	case e.Rejected > 0:
		return printer.StatusWarn(fmt.Sprintf("%d rejected", e.Rejected))
	case e.Interrupted:
		return printer.StatusWarn("interrupted")
	default:
		return printer.StatusOK()
	}
}

func writeJSON(c *cli.Command, v any) error {
	enc := json.NewEncoder(c.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
