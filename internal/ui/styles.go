package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Palette is one theme's set of colors.
type Palette struct {
	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
	Muted      lipgloss.Color
	Foreground lipgloss.Color
	Background lipgloss.Color
	Own        lipgloss.Color
}

var (
	darkPalette = Palette{
		Primary:    lipgloss.Color("#22d3ee"), // cyan accent
		Secondary:  lipgloss.Color("#7C3AED"),
		Success:    lipgloss.Color("#10B981"),
		Warning:    lipgloss.Color("#F59E0B"),
		Error:      lipgloss.Color("#EF4444"),
		Muted:      lipgloss.Color("#6B7280"),
		Foreground: lipgloss.Color("#F9FAFB"),
		Background: lipgloss.Color("#1F2937"),
		Own:        lipgloss.Color("#A78BFA"),
	}

	lightPalette = Palette{
		Primary:    lipgloss.Color("#0E7490"),
		Secondary:  lipgloss.Color("#6D28D9"),
		Success:    lipgloss.Color("#047857"),
		Warning:    lipgloss.Color("#B45309"),
		Error:      lipgloss.Color("#B91C1C"),
		Muted:      lipgloss.Color("#6B7280"),
		Foreground: lipgloss.Color("#111827"),
		Background: lipgloss.Color("#E5E7EB"),
		Own:        lipgloss.Color("#5B21B6"),
	}
)

// Text styles. Rebuilt by ApplyTheme.
var (
	TitleStyle    lipgloss.Style
	SuccessStyle  lipgloss.Style
	ErrorStyle    lipgloss.Style
	WarningStyle  lipgloss.Style
	MutedStyle    lipgloss.Style
	BoldStyle     lipgloss.Style
	HeaderStyle   lipgloss.Style
	FooterStyle   lipgloss.Style
	SpinnerStyle  lipgloss.Style
	SenderStyle   lipgloss.Style
	OwnStyle      lipgloss.Style
	SystemStyle   lipgloss.Style
	TimeStyle     lipgloss.Style
	RoomBoxStyle  lipgloss.Style
	InputBoxStyle lipgloss.Style
)

var current = ThemeDark

func init() {
	ApplyTheme(ThemeDark)
}

// ApplyTheme rebuilds every style for t.
func ApplyTheme(t Theme) {
	p := t.palette()
	current = t

	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(p.Primary).MarginBottom(1)
	SuccessStyle = lipgloss.NewStyle().Foreground(p.Success).Bold(true)
	ErrorStyle = lipgloss.NewStyle().Foreground(p.Error).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(p.Warning)
	MutedStyle = lipgloss.NewStyle().Foreground(p.Muted)
	BoldStyle = lipgloss.NewStyle().Bold(true)

	HeaderStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.Primary).
		Background(p.Background).
		Padding(0, 2)

	FooterStyle = lipgloss.NewStyle().Foreground(p.Muted)
	SpinnerStyle = lipgloss.NewStyle().Foreground(p.Primary)

	SenderStyle = lipgloss.NewStyle().Foreground(p.Primary).Bold(true)
	OwnStyle = lipgloss.NewStyle().Foreground(p.Own).Bold(true)
	SystemStyle = lipgloss.NewStyle().Foreground(p.Muted).Italic(true)
	TimeStyle = lipgloss.NewStyle().Foreground(p.Muted)

	RoomBoxStyle = lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(p.Success).
		Padding(1, 2)

	InputBoxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.Primary).
		Padding(0, 1)
}

// CurrentTheme returns the theme last applied.
func CurrentTheme() Theme {
	return current
}

const (
	IconSuccess = "✅"
	IconError   = "❌"
	IconWarning = "⚠️"
	IconInfo    = "ℹ️"
	IconRoom    = "🚪"
	IconPeer    = "👤"
	IconConnect = "🔌"
	IconCopy    = "📋"
	IconWeb     = "🌐"
	IconChat    = "💬"
)

func PrintError(msg string) {
	fmt.Printf("%s %s\n", ErrorStyle.Render(IconError), ErrorStyle.Render(msg))
}

func PrintErrorf(format string, args ...any) {
	PrintError(fmt.Sprintf(format, args...))
}

func PrintWarning(msg string) {
	fmt.Printf("%s %s\n", WarningStyle.Render(IconWarning), WarningStyle.Render(msg))
}

func PrintWarningf(format string, args ...any) {
	PrintWarning(fmt.Sprintf(format, args...))
}

func PrintSuccess(msg string) {
	fmt.Printf("%s %s\n", SuccessStyle.Render(IconSuccess), msg)
}

func PrintSuccessf(format string, args ...any) {
	PrintSuccess(fmt.Sprintf(format, args...))
}

func PrintInfo(msg string) {
	fmt.Printf("%s %s\n", IconInfo, msg)
}

func PrintInfof(format string, args ...any) {
	PrintInfo(fmt.Sprintf(format, args...))
}

func FormatError(err error) string {
	return fmt.Sprintf("%s %s", ErrorStyle.Render(IconError), ErrorStyle.Render(err.Error()))
}
