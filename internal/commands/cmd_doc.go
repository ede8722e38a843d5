package commands

import (
	"context"
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/hay-kot/boatpub/internal/printer"
)

//go:embed docs/*.md
var docsFS embed.FS

const docWidth = 100

type DocCmd struct {
	raw bool
}

func NewDocCmd() *DocCmd {
	return &DocCmd{}
}

func (cmd *DocCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "doc",
		Usage: "Show reference documentation",
		Description: `Prints reference documentation for boatpub.

Use 'boatpub doc config' for the config file keys and password lookup.
Use 'boatpub doc payload' for the message format and console output.

Output is rendered as markdown on a terminal and printed raw otherwise.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "raw",
				Usage:       "print markdown without rendering",
				Destination: &cmd.raw,
			},
		},
		Commands: []*cli.Command{
			cmd.pageCmd("config", "Show the configuration reference"),
			cmd.pageCmd("payload", "Show the payload reference"),
		},
	})
	return app
}

func (cmd *DocCmd) pageCmd(name, usage string) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Action: func(_ context.Context, c *cli.Command) error {
			return cmd.show(c, name)
		},
	}
}

func (cmd *DocCmd) show(c *cli.Command, name string) error {
	data, err := docsFS.ReadFile("docs/" + name + ".md")
	if err != nil {
		return fmt.Errorf("doc %s: %w", name, err)
	}

	w := c.Root().Writer
	if cmd.raw || !printer.ColorEnabled(w) {
		_, err := w.Write(data)
		return err
	}

	out, err := renderMarkdown(string(data), "tokyo-night", terminalWidth(w))
	if err != nil {
		// fall back to the plain text
		_, err := w.Write(data)
		return err
	}

	_, err = fmt.Fprintln(w, strings.TrimSpace(out))
	return err
}

func renderMarkdown(md, style string, width int) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return renderer.Render(md)
}

func terminalWidth(w any) int {
	f, ok := w.(*os.File)
	if !ok {
		return docWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return docWidth
	}
	return min(width, docWidth)
}
