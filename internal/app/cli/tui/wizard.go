package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ozacod/cppenv/internal/pkg/vsenv"
	"github.com/ozacod/cppenv/pkg/config"
)

// WizardStep is the current question of the entry wizard.
type WizardStep int

const (
	WizardStepName WizardStep = iota
	WizardStepVcvarsall
	WizardStepArch
	WizardStepToolset
	WizardStepYear
	WizardStepDone
)

var (
	// Architectures accepted by vcvarsall.bat.
	Architectures = []string{"x64", "x86", "arm64", "x86_x64", "x64_arm64"}
	// Years offered for manual entries.
	Years = []string{"2022", "2019", "2017"}
)

// EntryWizardModel asks for the fields of a manually added VS environment.
type EntryWizardModel struct {
	step      WizardStep
	textInput textinput.Model
	cursor    int
	cancelled bool
	errorMsg  string
	existing  map[string]bool

	name      string
	vcvarsall string
	arch      string
	toolset   string
	year      int

	questions       []Question
	currentQuestion string
}

// NewEntryWizardModel creates the wizard. existingIDs are rejected as
// duplicates.
func NewEntryWizardModel(existingIDs []string) EntryWizardModel {
	ti := textinput.New()
	ti.Placeholder = "VS 2022 x64 (custom)"
	ti.Focus()
	ti.CharLimit = 260
	ti.Width = 60
	ti.PromptStyle = inputPromptStyle
	ti.TextStyle = inputTextStyle
	ti.Cursor.Style = cursorStyle

	existing := make(map[string]bool, len(existingIDs))
	for _, id := range existingIDs {
		existing[id] = true
	}

	return EntryWizardModel{
		step:            WizardStepName,
		textInput:       ti,
		existing:        existing,
		currentQuestion: "Display name?",
	}
}

func (m EntryWizardModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m EntryWizardModel) isTextStep() bool {
	return m.step == WizardStepName || m.step == WizardStepVcvarsall || m.step == WizardStepToolset
}

func (m EntryWizardModel) options() []string {
	switch m.step {
	case WizardStepArch:
		return Architectures
	case WizardStepYear:
		return Years
	default:
		return nil
	}
}

func (m EntryWizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit

		case "enter":
			return m.handleEnter()

		case "up", "k":
			if !m.isTextStep() && m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if !m.isTextStep() && m.cursor < len(m.options())-1 {
				m.cursor++
			}
		}
	}

	if m.isTextStep() {
		m.textInput, cmd = m.textInput.Update(msg)
	}
	return m, cmd
}

func (m *EntryWizardModel) answer(a string) {
	m.questions = append(m.questions, Question{Question: m.currentQuestion, Answer: a, Complete: true})
	m.errorMsg = ""
}

func (m *EntryWizardModel) nextText(question, placeholder string) {
	m.currentQuestion = question
	m.textInput.Reset()
	m.textInput.Placeholder = placeholder
	m.textInput.Focus()
}

func (m EntryWizardModel) handleEnter() (tea.Model, tea.Cmd) {
	switch m.step {
	case WizardStepName:
		name := strings.TrimSpace(m.textInput.Value())
		if name == "" {
			m.errorMsg = "Display name cannot be empty"
			return m, nil
		}
		m.name = name
		m.answer(name)
		m.step = WizardStepVcvarsall
		m.nextText("Path to vcvarsall.bat?", `C:\Program Files\Microsoft Visual Studio\2022\Community\VC\Auxiliary\Build\vcvarsall.bat`)

	case WizardStepVcvarsall:
		path := strings.Trim(strings.TrimSpace(m.textInput.Value()), `"`)
		if !strings.HasSuffix(strings.ToLower(path), "vcvarsall.bat") {
			m.errorMsg = "Path must point to vcvarsall.bat"
			return m, nil
		}
		m.vcvarsall = path
		m.answer(path)
		m.step = WizardStepArch
		m.currentQuestion = "Architecture?"
		m.cursor = 0

	case WizardStepArch:
		m.arch = Architectures[m.cursor]
		m.answer(m.arch)
		m.step = WizardStepToolset
		m.nextText("Toolset version (optional)?", "14.38")

	case WizardStepToolset:
		m.toolset = strings.TrimSpace(m.textInput.Value())
		shown := m.toolset
		if shown == "" {
			shown = "default"
		}
		m.answer(shown)
		m.step = WizardStepYear
		m.currentQuestion = "Visual Studio year?"
		m.cursor = 0

	case WizardStepYear:
		year, _ := strconv.Atoi(Years[m.cursor])
		if id := config.MakeEntryID(year, m.arch, m.toolset); m.existing[id] {
			m.errorMsg = fmt.Sprintf("An environment with id %s already exists", id)
			return m, nil
		}
		m.year = year
		m.answer(Years[m.cursor])
		m.step = WizardStepDone
		return m, tea.Quit
	}

	return m, nil
}

func (m EntryWizardModel) View() string {
	if m.cancelled {
		return "\n  " + dimStyle.Render("Cancelled.") + "\n\n"
	}
	if m.step == WizardStepDone {
		return ""
	}

	var s strings.Builder
	s.WriteString(dimStyle.Render("cppenv vsenv add") + "\n\n")
	s.WriteString(cyanBold.Render("Add VS Environment") + "\n\n")

	for _, q := range m.questions {
		s.WriteString(greenCheck.Render("✔") + " " + dimStyle.Render(q.Question) + " " + cyanBold.Render(q.Answer) + "\n")
	}

	s.WriteString(questionMark.Render("?") + " " + questionStyle.Render(m.currentQuestion) + " ")

	if m.isTextStep() {
		s.WriteString(cyanBold.Render(m.textInput.View()))
	} else {
		opts := m.options()
		s.WriteString(dimStyle.Render(opts[m.cursor]) + "\n")
		for i, opt := range opts {
			cursor := " "
			if m.cursor == i {
				cursor = selectedStyle.Render("❯")
			}
			s.WriteString(fmt.Sprintf("  %s %s\n", cursor, opt))
		}
	}
	if m.errorMsg != "" {
		s.WriteString("\n  " + errorStyle.Render("✗ "+m.errorMsg))
	}

	s.WriteString("\n\n" + dimStyle.Render("  Press Ctrl+C to cancel") + "\n")
	return s.String()
}

// IsCancelled returns true if the user cancelled
func (m EntryWizardModel) IsCancelled() bool {
	return m.cancelled
}

// Entry returns the entry built from the answers, or nil if the wizard did
// not finish.
func (m EntryWizardModel) Entry() *config.Entry {
	if m.step != WizardStepDone {
		return nil
	}
	return &config.Entry{
		ID:             config.MakeEntryID(m.year, m.arch, m.toolset),
		DisplayName:    m.name,
		VcvarsallPath:  m.vcvarsall,
		VSYear:         m.year,
		Architecture:   m.arch,
		VcvarsVer:      m.toolset,
		CMakeGenerator: vsenv.GeneratorFor(m.year),
	}
}

// RunEntryWizard runs the wizard. A cancelled wizard returns nil, nil.
func RunEntryWizard(existingIDs []string) (*config.Entry, error) {
	finalModel, err := tea.NewProgram(NewEntryWizardModel(existingIDs)).Run()
	if err != nil {
		return nil, err
	}
	model := finalModel.(EntryWizardModel)
	if model.IsCancelled() {
		return nil, nil
	}
	return model.Entry(), nil
}
