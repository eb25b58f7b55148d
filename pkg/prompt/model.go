package prompt

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/entrhq/renewbot/pkg/config"
	"github.com/entrhq/renewbot/pkg/plan"
)

type phase int

const (
	phaseProfile phase = iota
	phaseNewProfile
	phaseCarriers
	phaseFile
	phaseDone
)

const newProfileRow = "+ New profile"

// Result is what the operator chose.
type Result struct {
	Profile   string
	Carriers  []plan.Carrier
	FilePath  string
	Cancelled bool
}

// Validator checks a reference file path.
type Validator func(path string) (config.ReferenceFile, error)

// Model walks the operator through profile, carriers and reference file.
type Model struct {
	profiles *config.ProfilesSection
	validate Validator

	phase  phase
	names  []string
	cursor int

	profile  string
	selected map[plan.Carrier]bool

	input   textinput.Model
	status  string
	warning bool
	err     string

	result Result
}

// NewModel creates the prompt over the stored profiles. The last used
// profile is preselected.
func NewModel(profiles *config.ProfilesSection, validate Validator) *Model {
	if validate == nil {
		validate = config.CheckReferenceFile
	}

	ti := textinput.New()
	ti.Prompt = "› "
	ti.CharLimit = 512
	ti.Width = 60

	m := &Model{
		profiles: profiles,
		validate: validate,
		names:    append(profiles.Names(), newProfileRow),
		selected: make(map[plan.Carrier]bool),
		input:    ti,
	}
	last := profiles.LastProfile()
	for i, name := range m.names {
		if name == last {
			m.cursor = i
		}
	}
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Result returns the choices. It is meaningful once the program has quit.
func (m *Model) Result() Result {
	return m.result
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m.updateInput(msg)
	}

	switch keyMsg.Type {
	case tea.KeyCtrlC:
		return m.cancel()
	case tea.KeyEsc:
		if m.phase == phaseProfile {
			return m.cancel()
		}
		m.back()
		return m, nil
	}

	switch m.phase {
	case phaseProfile:
		return m.updateProfile(keyMsg)
	case phaseNewProfile:
		return m.updateNewProfile(keyMsg)
	case phaseCarriers:
		return m.updateCarriers(keyMsg)
	case phaseFile:
		return m.updateFile(keyMsg)
	}
	return m, nil
}

func (m *Model) cancel() (tea.Model, tea.Cmd) {
	m.result = Result{Cancelled: true}
	m.phase = phaseDone
	return m, tea.Quit
}

func (m *Model) back() {
	m.err = ""
	switch m.phase {
	case phaseNewProfile, phaseCarriers:
		m.phase = phaseProfile
		m.input.Blur()
	case phaseFile:
		m.phase = phaseCarriers
		m.cursor = 0
		m.input.Blur()
	}
}

func (m *Model) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.phase != phaseNewProfile && m.phase != phaseFile {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) updateProfile(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.names)-1 {
			m.cursor++
		}
	case "enter":
		name := m.names[m.cursor]
		if name == newProfileRow {
			m.phase = phaseNewProfile
			m.input.Placeholder = "Profile name"
			m.input.SetValue("")
			return m, m.input.Focus()
		}
		m.chooseProfile(name)
	}
	return m, nil
}

func (m *Model) updateNewProfile(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type != tea.KeyEnter {
		return m.updateInput(msg)
	}
	name := strings.TrimSpace(m.input.Value())
	if name == "" {
		m.err = "Profile name cannot be empty"
		return m, nil
	}
	m.input.Blur()
	m.chooseProfile(name)
	return m, nil
}

func (m *Model) chooseProfile(name string) {
	p, _ := m.profiles.Profile(name)
	m.profile = name
	m.selected = make(map[plan.Carrier]bool, len(plan.AllCarriers))
	for _, c := range p.Carriers {
		m.selected[c] = true
	}
	m.input.SetValue(p.LastFilePath)
	m.err = ""
	m.cursor = 0
	m.phase = phaseCarriers
}

func (m *Model) updateCarriers(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(plan.AllCarriers)-1 {
			m.cursor++
		}
	case " ", "x":
		c := plan.AllCarriers[m.cursor]
		m.selected[c] = !m.selected[c]
		m.err = ""
	case "a":
		all := len(m.carriers()) < len(plan.AllCarriers)
		for _, c := range plan.AllCarriers {
			m.selected[c] = all
		}
		m.err = ""
	case "enter":
		if len(m.carriers()) == 0 {
			m.err = "Select at least one carrier"
			return m, nil
		}
		m.err = ""
		m.phase = phaseFile
		m.input.Placeholder = config.DefaultReferenceFile
		m.input.CursorEnd()
		m.checkFile()
		return m, m.input.Focus()
	}
	return m, nil
}

func (m *Model) updateFile(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type != tea.KeyEnter {
		model, cmd := m.updateInput(msg)
		m.checkFile()
		return model, cmd
	}

	path := m.resolvePath(m.input.Value())
	if _, err := m.validate(path); err != nil {
		m.err = err.Error()
		return m, nil
	}

	m.result = Result{
		Profile:  m.profile,
		Carriers: m.carriers(),
		FilePath: path,
	}
	m.phase = phaseDone
	return m, tea.Quit
}

// resolvePath turns a folder into the reference file inside it when there
// is one.
func (m *Model) resolvePath(path string) string {
	path = strings.TrimSpace(path)
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		if found := config.FindReferenceFile(path, ""); found != "" {
			return found
		}
	}
	return path
}

// checkFile refreshes the live status line under the file input.
func (m *Model) checkFile() {
	m.err = ""
	ref, err := m.validate(m.resolvePath(m.input.Value()))
	switch {
	case err != nil:
		m.status = err.Error()
		m.warning = true
	case ref.Warning != "":
		m.status = ref.Warning
		m.warning = true
	default:
		m.status = fmt.Sprintf("File found (%d bytes)", ref.Size)
		m.warning = false
	}
}

func (m *Model) carriers() []plan.Carrier {
	var out []plan.Carrier
	for _, c := range plan.AllCarriers {
		if m.selected[c] {
			out = append(out, c)
		}
	}
	return out
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.phase == phaseDone {
		return ""
	}

	var b strings.Builder
	switch m.phase {
	case phaseProfile:
		b.WriteString(titleStyle.Render("Select profile"))
		b.WriteString("\n\n")
		for i, name := range m.names {
			b.WriteString(m.row(i, name))
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ move • enter select • esc quit"))

	case phaseNewProfile:
		b.WriteString(titleStyle.Render("New profile"))
		b.WriteString("\n\n")
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter confirm • esc back"))

	case phaseCarriers:
		b.WriteString(titleStyle.Render("Approved carriers"))
		b.WriteString(subtitleStyle.Render("  " + m.profile))
		b.WriteString("\n\n")
		for i, c := range plan.AllCarriers {
			box := "[ ]"
			if m.selected[c] {
				box = checkedStyle.Render("[x]")
			}
			b.WriteString(m.row(i, fmt.Sprintf("%s %s", box, plan.DisplayNames(c)[0])))
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("space toggle • a all/none • enter continue • esc back"))

	case phaseFile:
		b.WriteString(titleStyle.Render("Reference file"))
		b.WriteString(subtitleStyle.Render("  " + m.profile))
		b.WriteString("\n\n")
		b.WriteString(m.input.View())
		b.WriteString("\n")
		if m.status != "" {
			style := okStyle
			if m.warning {
				style = warnStyle
			}
			b.WriteString(style.Render(m.status))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter start • esc back"))
	}

	if m.err != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.err))
	}

	return boxStyle.Render(b.String())
}

func (m *Model) row(i int, label string) string {
	if i == m.cursor {
		return cursorStyle.Render("› "+label) + "\n"
	}
	return "  " + label + "\n"
}
