package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// PickerModel is a single-choice list.
type PickerModel struct {
	items    []Item
	cursor   int
	viewport int
	viewSize int
	current  string
	chosen   bool
	quitting bool
	Title    string
}

// NewPickerModel creates a picker with the cursor on current, if present.
func NewPickerModel(items []Item, current, title string) PickerModel {
	if title == "" {
		title = "Select an item"
	}
	m := PickerModel{items: items, viewSize: 15, current: current, Title: title}
	for i, it := range items {
		if it.ID == current {
			m.cursor = i
			if m.cursor >= m.viewSize {
				m.viewport = m.cursor - m.viewSize + 1
			}
			break
		}
	}
	return m
}

// Init initializes the model
func (m PickerModel) Init() tea.Cmd {
	return nil
}

// Update handles key presses
func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "q", "esc":
		m.quitting = true
		return m, tea.Quit

	case "enter":
		if len(m.items) > 0 {
			m.chosen = true
		} else {
			m.quitting = true
		}
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			if m.cursor < m.viewport {
				m.viewport = m.cursor
			}
		}

	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
			if m.cursor >= m.viewport+m.viewSize {
				m.viewport = m.cursor - m.viewSize + 1
			}
		}
	}
	return m, nil
}

// View renders the list
func (m PickerModel) View() string {
	if m.quitting || m.chosen {
		return ""
	}

	var s strings.Builder
	s.WriteString(cyanBold.Render(m.Title) + "\n\n")

	if len(m.items) == 0 {
		s.WriteString(dimStyle.Render("Nothing to choose from.\n"))
		return s.String()
	}

	end := min(m.viewport+m.viewSize, len(m.items))
	if m.viewport > 0 {
		s.WriteString(dimStyle.Render("  ↑ more above\n"))
	}
	for i := m.viewport; i < end; i++ {
		it := m.items[i]
		marker := " "
		if it.ID == m.current {
			marker = greenStyle.Render("●")
		}
		label := fmt.Sprintf("%-40s", truncate(it.Label, 40))
		if i == m.cursor {
			s.WriteString(selectedStyle.Render("▸ ") + marker + " " + selectedStyle.Render(label))
		} else {
			s.WriteString("  " + marker + " " + label)
		}
		s.WriteString(" " + dimStyle.Render(truncate(it.Detail, 30)) + "\n")
	}
	if end < len(m.items) {
		s.WriteString(dimStyle.Render("  ↓ more below\n"))
	}

	s.WriteString("\n" + dimStyle.Render("↑/↓: move • Enter: choose • q: cancel"))
	return s.String()
}

// Chosen returns the chosen item's id, or "" when the picker was cancelled.
func (m PickerModel) Chosen() string {
	if !m.chosen || len(m.items) == 0 {
		return ""
	}
	return m.items[m.cursor].ID
}

// RunPicker runs the picker and returns the chosen id. Cancelling returns "".
func RunPicker(items []Item, current, title string) (string, error) {
	finalModel, err := tea.NewProgram(NewPickerModel(items, current, title)).Run()
	if err != nil {
		return "", err
	}
	return finalModel.(PickerModel).Chosen(), nil
}
