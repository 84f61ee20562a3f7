package tui

import "github.com/charmbracelet/lipgloss"

var (
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	cyanBold      = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	greenCheck    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	greenStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	questionMark  = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	questionStyle = lipgloss.NewStyle().Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	inputPromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	inputTextStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	cursorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
)

// Question is an answered wizard step.
type Question struct {
	Question string
	Answer   string
	Complete bool
}

// Item is one row of a picker or multi-select list.
type Item struct {
	ID     string
	Label  string
	Detail string
}

// truncate shortens s to n runes with a trailing ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
