package views

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#0A21C0")
	colorAccent  = lipgloss.Color("#4F63FF")
	colorSuccess = lipgloss.Color("#059669")
	colorDanger  = lipgloss.Color("#DC2626")
	colorWarning = lipgloss.Color("#FF9800")
	colorViolet  = lipgloss.Color("#8B5CF6")
	colorMuted   = lipgloss.Color("#6B7280")
)

// Styles groups the lipgloss styles used by every screen.
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Tab      lipgloss.Style
	TabOn    lipgloss.Style
	Card     lipgloss.Style
	CardNum  lipgloss.Style
	Error    lipgloss.Style
	Notice   lipgloss.Style
	Help     lipgloss.Style
	Label    lipgloss.Style
	Focused  lipgloss.Style
	Box      lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).MarginBottom(1),
		Subtitle: lipgloss.NewStyle().Foreground(colorMuted),
		Tab:      lipgloss.NewStyle().Padding(0, 1).Foreground(colorMuted),
		TabOn:    lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(colorAccent),
		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(0, 2).
			Width(20),
		CardNum: lipgloss.NewStyle().Bold(true),
		Error:   lipgloss.NewStyle().Foreground(colorDanger),
		Notice:  lipgloss.NewStyle().Foreground(colorViolet).Italic(true),
		Help:    lipgloss.NewStyle().Foreground(colorMuted).MarginTop(1),
		Label:   lipgloss.NewStyle().Width(12).Foreground(colorMuted),
		Focused: lipgloss.NewStyle().Foreground(colorAccent).Bold(true),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(1, 3),
	}
}
