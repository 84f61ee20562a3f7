package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m tea.Model, keys ...string) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		m, cmd = m.Update(key(k))
	}
	return m, cmd
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func sampleItems() []Item {
	return []Item{
		{ID: "vs2022_x64", Label: "VS 2022 (x64)"},
		{ID: "vs2022_x86", Label: "VS 2022 (x86)"},
		{ID: "vs2019_x64", Label: "VS 2019 (x64)"},
	}
}

func TestPickerModel(t *testing.T) {
	tests := []struct {
		name    string
		current string
		keys    []string
		want    string
	}{
		{name: "enter picks first", keys: []string{"enter"}, want: "vs2022_x64"},
		{name: "starts on current", current: "vs2019_x64", keys: []string{"enter"}, want: "vs2019_x64"},
		{name: "move down", keys: []string{"down", "j", "enter"}, want: "vs2019_x64"},
		{name: "cursor stays in range", keys: []string{"down", "down", "down", "down", "up", "enter"}, want: "vs2022_x86"},
		{name: "q cancels", keys: []string{"down", "q"}, want: ""},
		{name: "esc cancels", keys: []string{"esc"}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, cmd := press(NewPickerModel(sampleItems(), tt.current, ""), tt.keys...)
			assert.True(t, isQuit(cmd))
			assert.Equal(t, tt.want, m.(PickerModel).Chosen())
		})
	}
}

func TestPickerModelEmpty(t *testing.T) {
	m := NewPickerModel(nil, "", "Pick")
	assert.Contains(t, m.View(), "Nothing to choose from")

	final, cmd := press(m, "enter")
	assert.True(t, isQuit(cmd))
	assert.Equal(t, "", final.(PickerModel).Chosen())
}

func TestPickerModelView(t *testing.T) {
	m := NewPickerModel(sampleItems(), "vs2022_x86", "Select environment")
	view := m.View()
	assert.Contains(t, view, "Select environment")
	assert.Contains(t, view, "VS 2019 (x64)")
	assert.Contains(t, view, "●")
}

func TestPickerModelViewport(t *testing.T) {
	var items []Item
	for i := 0; i < 20; i++ {
		items = append(items, Item{ID: string(rune('a' + i)), Label: string(rune('a' + i))})
	}
	m, _ := press(NewPickerModel(items, "", ""), "down", "down", "down", "down", "down",
		"down", "down", "down", "down", "down", "down", "down", "down", "down", "down", "down")
	pm := m.(PickerModel)
	assert.Equal(t, 16, pm.cursor)
	assert.Equal(t, 2, pm.viewport)
	assert.Contains(t, pm.View(), "more above")
}

func TestMultiSelectModel(t *testing.T) {
	tests := []struct {
		name    string
		initial []string
		keys    []string
		want    []string
	}{
		{name: "enter with nothing picks cursor", keys: []string{"down", "enter"}, want: []string{"vs2022_x86"}},
		{name: "space toggles", keys: []string{"space", "down", "down", "space", "enter"}, want: []string{"vs2022_x64", "vs2019_x64"}},
		{name: "space twice unselects", keys: []string{"space", "space", "down", "space", "enter"}, want: []string{"vs2022_x86"}},
		{name: "tab selects and moves", keys: []string{"tab", "tab", "enter"}, want: []string{"vs2022_x64", "vs2022_x86"}},
		{name: "all", keys: []string{"a", "enter"}, want: []string{"vs2022_x64", "vs2022_x86", "vs2019_x64"}},
		{name: "none then cursor", initial: []string{"vs2019_x64"}, keys: []string{"n", "enter"}, want: []string{"vs2022_x64"}},
		{name: "result keeps list order", keys: []string{"down", "down", "space", "up", "up", "space", "enter"}, want: []string{"vs2022_x64", "vs2019_x64"}},
		{name: "initial selection", initial: []string{"vs2019_x64", "unknown"}, keys: []string{"enter"}, want: []string{"vs2019_x64"}},
		{name: "cancel", keys: []string{"a", "q"}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, cmd := press(NewMultiSelectModel(sampleItems(), tt.initial, ""), tt.keys...)
			assert.True(t, isQuit(cmd))
			assert.Equal(t, tt.want, m.(MultiSelectModel).Selected())
		})
	}
}

func TestMultiSelectModelView(t *testing.T) {
	m, _ := press(NewMultiSelectModel(sampleItems(), nil, "Remove environments"), "space")
	view := m.View()
	assert.Contains(t, view, "Remove environments")
	assert.Contains(t, view, "1 selected")
	assert.Contains(t, view, "[✓]")
}

func TestEntryWizard(t *testing.T) {
	m, cmd := press(NewEntryWizardModel(nil),
		"My VS", "enter",
		`C:\VS\VC\Auxiliary\Build\vcvarsall.bat`, "enter",
		"down", "enter",
		"14.29", "enter",
		"down", "enter",
	)
	require.True(t, isQuit(cmd))

	wm := m.(EntryWizardModel)
	assert.False(t, wm.IsCancelled())
	e := wm.Entry()
	require.NotNil(t, e)
	assert.Equal(t, "vs2019_x86_1429", e.ID)
	assert.Equal(t, "My VS", e.DisplayName)
	assert.Equal(t, `C:\VS\VC\Auxiliary\Build\vcvarsall.bat`, e.VcvarsallPath)
	assert.Equal(t, "x86", e.Architecture)
	assert.Equal(t, "14.29", e.VcvarsVer)
	assert.Equal(t, 2019, e.VSYear)
	assert.Equal(t, "Visual Studio 16 2019", e.CMakeGenerator)
}

func TestEntryWizardDefaultsAndValidation(t *testing.T) {
	m, _ := press(NewEntryWizardModel([]string{"vs2022_x64"}), "enter")
	wm := m.(EntryWizardModel)
	assert.Equal(t, WizardStepName, wm.step)
	assert.Contains(t, wm.View(), "Display name cannot be empty")

	m, _ = press(wm, "Custom", "enter", `C:\tools\setup.bat`, "enter")
	wm = m.(EntryWizardModel)
	assert.Equal(t, WizardStepVcvarsall, wm.step)
	assert.Contains(t, wm.View(), "Path must point to vcvarsall.bat")

	// j/k are text while typing a path.
	m, _ = press(wm, "k", "enter")
	wm = m.(EntryWizardModel)
	assert.Equal(t, WizardStepVcvarsall, wm.step)

	m, _ = press(NewEntryWizardModel([]string{"vs2022_x64"}),
		"Custom", "enter", `"D:\vcvarsall.bat"`, "enter", "enter", "enter", "enter")
	wm = m.(EntryWizardModel)
	assert.Equal(t, WizardStepYear, wm.step)
	assert.Contains(t, wm.View(), "vs2022_x64 already exists")
	assert.Nil(t, wm.Entry())

	m, cmd := press(wm, "down", "down", "enter")
	require.True(t, isQuit(cmd))
	e := m.(EntryWizardModel).Entry()
	require.NotNil(t, e)
	assert.Equal(t, "vs2017_x64", e.ID)
	assert.Equal(t, `D:\vcvarsall.bat`, e.VcvarsallPath)
	assert.Empty(t, e.VcvarsVer)
}

func TestEntryWizardCancel(t *testing.T) {
	m, cmd := press(NewEntryWizardModel(nil), "name", "enter", "esc")
	assert.True(t, isQuit(cmd))
	wm := m.(EntryWizardModel)
	assert.True(t, wm.IsCancelled())
	assert.Nil(t, wm.Entry())
	assert.Contains(t, wm.View(), "Cancelled")
}
