package prompt

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/entrhq/renewbot/pkg/config"
	"github.com/entrhq/renewbot/pkg/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	keyUp    = tea.KeyMsg{Type: tea.KeyUp}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keySpace = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// acceptAll treats every non-empty path as a valid file.
func acceptAll(path string) (config.ReferenceFile, error) {
	if path == "" {
		return config.ReferenceFile{}, config.ErrNoReferenceFile
	}
	return config.ReferenceFile{Path: path, Size: 1234}, nil
}

func send(t *testing.T, m *Model, msgs ...tea.Msg) tea.Cmd {
	t.Helper()
	var cmd tea.Cmd
	for _, msg := range msgs {
		var next tea.Model
		next, cmd = m.Update(msg)
		require.Same(t, m, next)
	}
	return cmd
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestModel_PreselectsLastProfile(t *testing.T) {
	profiles := config.NewProfilesSection()
	require.NoError(t, profiles.Remember(config.Profile{Name: "El Capii", Carriers: plan.AllCarriers}))

	m := NewModel(profiles, acceptAll)

	assert.Equal(t, []string{"Swole", "El Capii", newProfileRow}, m.names)
	assert.Equal(t, 1, m.cursor)
	assert.Contains(t, m.View(), "Select profile")
}

func TestModel_FullFlow(t *testing.T) {
	profiles := config.NewProfilesSection()
	require.NoError(t, profiles.Remember(config.Profile{
		Name:         "Swole",
		Carriers:     []plan.Carrier{plan.Oscar, plan.Molina},
		LastFilePath: "/data/ListsCompiled.txt",
	}))
	m := NewModel(profiles, acceptAll)

	send(t, m, keyEnter)
	require.Equal(t, phaseCarriers, m.phase)
	assert.Equal(t, []plan.Carrier{plan.Oscar, plan.Molina}, m.carriers())

	// Oscar is first in the list; toggle it off and Aetna on.
	send(t, m, keySpace, keyDown, keyDown, runes("x"))
	assert.Equal(t, []plan.Carrier{plan.Molina, plan.Aetna}, m.carriers())

	send(t, m, keyEnter)
	require.Equal(t, phaseFile, m.phase)
	assert.Equal(t, "/data/ListsCompiled.txt", m.input.Value())
	assert.Contains(t, m.View(), "File found (1234 bytes)")

	cmd := send(t, m, keyEnter)
	assert.True(t, isQuit(cmd))

	res := m.Result()
	assert.False(t, res.Cancelled)
	assert.Equal(t, "Swole", res.Profile)
	assert.Equal(t, []plan.Carrier{plan.Molina, plan.Aetna}, res.Carriers)
	assert.Equal(t, "/data/ListsCompiled.txt", res.FilePath)
	assert.Empty(t, m.View())
}

func TestModel_NewProfile(t *testing.T) {
	m := NewModel(config.NewProfilesSection(), acceptAll)

	send(t, m, keyDown, keyDown, keyDown, keyEnter)
	require.Equal(t, phaseNewProfile, m.phase)

	send(t, m, keyEnter)
	assert.Equal(t, "Profile name cannot be empty", m.err)

	send(t, m, runes("Night"), keyEnter)
	require.Equal(t, phaseCarriers, m.phase)
	assert.Equal(t, "Night", m.profile)
	assert.Equal(t, plan.AllCarriers, m.carriers(), "new profiles start with every carrier")
	assert.Empty(t, m.input.Value())
}

func TestModel_CarrierSelectionRequired(t *testing.T) {
	m := NewModel(config.NewProfilesSection(), acceptAll)
	send(t, m, keyEnter)

	send(t, m, runes("a"))
	assert.Empty(t, m.carriers())

	send(t, m, keyEnter)
	assert.Equal(t, phaseCarriers, m.phase)
	assert.Equal(t, "Select at least one carrier", m.err)

	send(t, m, runes("a"))
	assert.Equal(t, plan.AllCarriers, m.carriers())
	assert.Empty(t, m.err)
}

func TestModel_CursorBounds(t *testing.T) {
	m := NewModel(config.NewProfilesSection(), acceptAll)

	send(t, m, keyUp, keyUp)
	assert.Equal(t, 0, m.cursor)

	for i := 0; i < 10; i++ {
		send(t, m, keyDown)
	}
	assert.Equal(t, len(m.names)-1, m.cursor)
}

func TestModel_InvalidFileBlocksStart(t *testing.T) {
	reject := func(path string) (config.ReferenceFile, error) {
		return config.ReferenceFile{}, errors.New("file not found: " + path)
	}
	m := NewModel(config.NewProfilesSection(), reject)
	send(t, m, keyEnter, keyEnter)
	require.Equal(t, phaseFile, m.phase)

	send(t, m, runes("missing.txt"))
	assert.True(t, m.warning)
	assert.Contains(t, m.status, "file not found")

	cmd := send(t, m, keyEnter)
	assert.False(t, isQuit(cmd))
	assert.Equal(t, phaseFile, m.phase)
	assert.Contains(t, m.err, "missing.txt")
}

func TestModel_SmallFileWarns(t *testing.T) {
	small := func(path string) (config.ReferenceFile, error) {
		return config.ReferenceFile{Path: path, Size: 10, Warning: "file is small (10 bytes)"}, nil
	}
	m := NewModel(config.NewProfilesSection(), small)
	send(t, m, keyEnter, keyEnter, runes("a.txt"))

	assert.True(t, m.warning)
	assert.Equal(t, "file is small (10 bytes)", m.status)

	cmd := send(t, m, keyEnter)
	assert.True(t, isQuit(cmd))
	assert.Equal(t, "a.txt", m.Result().FilePath)
}

func TestModel_EscapeNavigation(t *testing.T) {
	m := NewModel(config.NewProfilesSection(), acceptAll)
	send(t, m, keyEnter, keyEnter)
	require.Equal(t, phaseFile, m.phase)

	send(t, m, keyEsc)
	assert.Equal(t, phaseCarriers, m.phase)
	send(t, m, keyEsc)
	assert.Equal(t, phaseProfile, m.phase)

	cmd := send(t, m, keyEsc)
	assert.True(t, isQuit(cmd))
	assert.True(t, m.Result().Cancelled)
}

func TestModel_CtrlCCancelsAnywhere(t *testing.T) {
	m := NewModel(config.NewProfilesSection(), acceptAll)
	send(t, m, keyEnter)

	cmd := send(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, isQuit(cmd))
	assert.True(t, m.Result().Cancelled)
}

func TestModel_ViewListsCarriers(t *testing.T) {
	m := NewModel(config.NewProfilesSection(), acceptAll)
	send(t, m, keyEnter)

	view := m.View()
	for _, c := range plan.AllCarriers {
		assert.True(t, strings.Contains(view, plan.DisplayNames(c)[0]), "missing %s", c)
	}
}

func TestRemember(t *testing.T) {
	profiles := config.NewProfilesSection()

	err := Remember(profiles, Result{Profile: "Night", Carriers: []plan.Carrier{plan.Cigna}, FilePath: "/x.txt"})
	require.NoError(t, err)

	assert.Equal(t, "Night", profiles.LastProfile())
	p, ok := profiles.Profile("Night")
	require.True(t, ok)
	assert.Equal(t, "/x.txt", p.LastFilePath)

	assert.Error(t, Remember(profiles, Result{Profile: "Empty"}))
}
