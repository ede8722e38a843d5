// Package styles provides shared lipgloss styles for CLI output.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Tokyo Night color palette.
var (
	ColorGreen  = lipgloss.Color("#9ece6a")
	ColorYellow = lipgloss.Color("#e0af68")
	ColorRed    = lipgloss.Color("#d75f6b")
	ColorBlue   = lipgloss.Color("#7aa2f7")
	ColorGray   = lipgloss.Color("#565f89")
	ColorWhite  = lipgloss.Color("#c0caf5")
)

// Banner is printed by config init.
const Banner = `
 ┏┓ ┏━┓┏━┓╺┳╸┏━┓╻ ╻┏┓
 ┣┻┓┃ ┃┣━┫ ┃ ┣━┛┃ ┃┣┻┓
 ┗━┛┗━┛╹ ╹ ╹ ╹  ┗━┛┗━┛`

// BannerStyle styles the ASCII art banner.
var BannerStyle = lipgloss.NewStyle().
	Foreground(ColorBlue).
	Bold(true)

// SummaryBoxStyle frames the end-of-run summary.
var SummaryBoxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorGray).
	Padding(0, 1)

// SummaryTitleStyle styles the summary heading.
var SummaryTitleStyle = lipgloss.NewStyle().
	Foreground(ColorBlue).
	Bold(true)

// LabelStyle styles summary labels.
var LabelStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Width(16)

// ValueStyle styles summary values.
var ValueStyle = lipgloss.NewStyle().
	Foreground(ColorWhite)

// GoodStyle, WarnStyle and BadStyle color counts by outcome.
var (
	GoodStyle = lipgloss.NewStyle().Foreground(ColorGreen)
	WarnStyle = lipgloss.NewStyle().Foreground(ColorYellow)
	BadStyle  = lipgloss.NewStyle().Foreground(ColorRed)
)

// Row renders one "label value" summary line.
func Row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, LabelStyle.Render(label), ValueStyle.Render(value))
}
