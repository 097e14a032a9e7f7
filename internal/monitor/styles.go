package monitor

import "github.com/charmbracelet/lipgloss"

var (
	docStyle    = lipgloss.NewStyle().Margin(1, 2)
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("228")).Bold(true).Render
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)

	statusStyles = map[string]lipgloss.Style{
		"admitting": lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		"active":    lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		"dead":      lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Bold(true),
	}
)

const (
	aliveIcon = "🟢"
	deadIcon  = "⚫"
	readyIcon = "✅"
)
