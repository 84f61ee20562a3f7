package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// MultiSelectModel is a checkbox list.
type MultiSelectModel struct {
	items    []Item
	cursor   int
	selected map[int]bool
	done     bool
	quitting bool
	viewport int
	viewSize int
	Title    string
}

// NewMultiSelectModel creates a multi-select list with the ids in
// initialSelection already checked.
func NewMultiSelectModel(items []Item, initialSelection []string, title string) MultiSelectModel {
	if title == "" {
		title = "Select items"
	}

	index := make(map[string]int, len(items))
	for i, it := range items {
		index[it.ID] = i
	}
	selected := make(map[int]bool)
	for _, id := range initialSelection {
		if i, ok := index[id]; ok {
			selected[i] = true
		}
	}

	return MultiSelectModel{
		items:    items,
		selected: selected,
		viewSize: 15,
		Title:    title,
	}
}

// Init initializes the model
func (m MultiSelectModel) Init() tea.Cmd {
	return nil
}

func (m *MultiSelectModel) down() {
	if m.cursor < len(m.items)-1 {
		m.cursor++
		if m.cursor >= m.viewport+m.viewSize {
			m.viewport = m.cursor - m.viewSize + 1
		}
	}
}

// Update handles key presses
func (m MultiSelectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "q", "esc":
		m.quitting = true
		return m, tea.Quit

	case "enter":
		// Nothing checked means the row under the cursor.
		if len(m.selected) == 0 && len(m.items) > 0 {
			m.selected[m.cursor] = true
		}
		m.done = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			if m.cursor < m.viewport {
				m.viewport = m.cursor
			}
		}

	case "down", "j":
		m.down()

	case " ":
		if len(m.items) == 0 {
			break
		}
		if m.selected[m.cursor] {
			delete(m.selected, m.cursor)
		} else {
			m.selected[m.cursor] = true
		}

	case "tab":
		if len(m.items) == 0 {
			break
		}
		m.selected[m.cursor] = true
		m.down()

	case "a":
		for i := range m.items {
			m.selected[i] = true
		}

	case "n":
		m.selected = make(map[int]bool)
	}

	return m, nil
}

// View renders the list
func (m MultiSelectModel) View() string {
	if m.quitting || m.done {
		return ""
	}

	var s strings.Builder
	s.WriteString(cyanBold.Render(m.Title) + "\n\n")

	if len(m.items) == 0 {
		s.WriteString(dimStyle.Render("Nothing to select.\n"))
		return s.String()
	}

	end := min(m.viewport+m.viewSize, len(m.items))
	if m.viewport > 0 {
		s.WriteString(dimStyle.Render("  ↑ more above\n"))
	}

	for i := m.viewport; i < end; i++ {
		it := m.items[i]
		prefix := "  "
		style := lipgloss.NewStyle()
		if i == m.cursor {
			prefix = "▸ "
			style = selectedStyle
		}

		checkbox := "[ ]"
		if m.selected[i] {
			checkbox = greenCheck.Render("[✓]")
		}

		label := truncate(it.Label, 40)
		detail := dimStyle.Render(truncate(it.Detail, 40))
		s.WriteString(style.Render(fmt.Sprintf("%s%s %-40s", prefix, checkbox, label)) + " " + detail + "\n")
	}

	if end < len(m.items) {
		s.WriteString(dimStyle.Render("  ↓ more below\n"))
	}

	s.WriteString("\n")
	if n := len(m.selected); n > 0 {
		s.WriteString(greenStyle.Render(fmt.Sprintf("%d selected", n)) + " • ")
	}
	s.WriteString(dimStyle.Render("Space: toggle • Tab: select & next • a: all • n: none • Enter: confirm • q: cancel"))

	return s.String()
}

// Selected returns the checked ids in list order, or nil when cancelled.
func (m MultiSelectModel) Selected() []string {
	if !m.done {
		return nil
	}
	var ids []string
	for i, it := range m.items {
		if m.selected[i] {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

// RunMultiSelect runs the list and returns the checked ids. Cancelling
// returns nil.
func RunMultiSelect(items []Item, initialSelection []string, title string) ([]string, error) {
	finalModel, err := tea.NewProgram(NewMultiSelectModel(items, initialSelection, title)).Run()
	if err != nil {
		return nil, err
	}
	return finalModel.(MultiSelectModel).Selected(), nil
}
