package display

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#777777"))
	goodStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD7AF"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAF00"))
	faintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func stateStyle(collecting bool) lipgloss.Style {
	if collecting {
		return goodStyle
	}
	return warnStyle
}
