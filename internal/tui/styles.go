package tui

import "github.com/charmbracelet/lipgloss"

// Marketplace palette.
var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#8BC34A"}
	colorText    = lipgloss.AdaptiveColor{Light: "#101F38", Dark: "#F2F2F2"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	colorBorder  = lipgloss.AdaptiveColor{Light: "#DCE0E5", Dark: "#2A3850"}
	colorStar    = lipgloss.Color("#FFC107")
	colorError   = lipgloss.Color("#E53935")
)

// Styles holds every style the dialog uses.
type Styles struct {
	Frame      lipgloss.Style
	Title      lipgloss.Style
	Subtitle   lipgloss.Style
	Label      lipgloss.Style
	FocusLabel lipgloss.Style
	Star       lipgloss.Style
	StarEmpty  lipgloss.Style
	Type       lipgloss.Style
	TypeActive lipgloss.Style
	Counter    lipgloss.Style
	Error      lipgloss.Style
	Button     lipgloss.Style
	ButtonOff  lipgloss.Style
	Success    lipgloss.Style
	Help       lipgloss.Style
}

// DefaultStyles returns the standard look.
func DefaultStyles() Styles {
	return Styles{
		Frame: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(1, 2),
		Title:      lipgloss.NewStyle().Bold(true).Foreground(colorText),
		Subtitle:   lipgloss.NewStyle().Foreground(colorMuted),
		Label:      lipgloss.NewStyle().Foreground(colorMuted).Width(9),
		FocusLabel: lipgloss.NewStyle().Foreground(colorPrimary).Bold(true).Width(9),
		Star:       lipgloss.NewStyle().Foreground(colorStar),
		StarEmpty:  lipgloss.NewStyle().Foreground(colorMuted),
		Type:       lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1),
		TypeActive: lipgloss.NewStyle().Foreground(colorPrimary).Bold(true).Underline(true).Padding(0, 1),
		Counter:    lipgloss.NewStyle().Foreground(colorMuted),
		Error:      lipgloss.NewStyle().Foreground(colorError),
		Button: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(colorPrimary).
			Bold(true).
			Padding(0, 2),
		ButtonOff: lipgloss.NewStyle().
			Foreground(colorMuted).
			Background(colorBorder).
			Padding(0, 2),
		Success: lipgloss.NewStyle().Bold(true).Foreground(colorPrimary),
		Help:    lipgloss.NewStyle().Foreground(colorMuted).Italic(true),
	}
}
