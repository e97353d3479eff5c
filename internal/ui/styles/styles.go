// Package styles holds the terminal styles of the deckvault CLI.
package styles

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	Primary = lipgloss.Color("#7D56F4")
	Accent  = lipgloss.Color("#FF79C6")
	Success = lipgloss.Color("#50FA7B")
	Warning = lipgloss.Color("#FFB86C")
	Error   = lipgloss.Color("#FF5555")
	Muted   = lipgloss.Color("#6272A4")
	Text    = lipgloss.Color("#F8F8F2")
)

var (
	// Header is used for table column headers.
	Header = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFDF5")).
		Background(Primary).
		Padding(0, 1).
		Bold(true)

	Title = lipgloss.NewStyle().
		Foreground(Primary).
		Bold(true)

	MutedText   = lipgloss.NewStyle().Foreground(Muted)
	SuccessText = lipgloss.NewStyle().Foreground(Success)
	WarningText = lipgloss.NewStyle().Foreground(Warning)
	ErrorText   = lipgloss.NewStyle().Foreground(Error)

	Highlighted = lipgloss.NewStyle().
			Foreground(Accent).
			Bold(true)

	Box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Muted).
		Padding(0, 1)
)

var (
	CheckMark = lipgloss.NewStyle().Foreground(Success).SetString("✓")
	CrossMark = lipgloss.NewStyle().Foreground(Error).SetString("✗")
	Bullet    = lipgloss.NewStyle().Foreground(Primary).SetString("•")
	Plus      = lipgloss.NewStyle().Foreground(Success).SetString("+")
	Minus     = lipgloss.NewStyle().Foreground(Error).SetString("-")
	Tilde     = lipgloss.NewStyle().Foreground(Warning).SetString("~")
)

// FormatSuccess formats a success message
func FormatSuccess(msg string) string {
	return CheckMark.String() + " " + SuccessText.Render(msg)
}

// FormatError formats an error message
func FormatError(msg string) string {
	return CrossMark.String() + " " + ErrorText.Render(msg)
}

// FormatWarning formats a warning message
func FormatWarning(msg string) string {
	return WarningText.Render("! " + msg)
}

// FormatRef renders a branch@version reference.
func FormatRef(branch, version string) string {
	return Highlighted.Render(branch) + MutedText.Render("@") + version
}

// FormatCurrent marks the current branch in listings.
func FormatCurrent(name string, current bool) string {
	if current {
		return Bullet.String() + " " + Highlighted.Render(name)
	}
	return "  " + name
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
