package config

import (
	"encoding/json"
	"testing"

	"github.com/entrhq/renewbot/pkg/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfilesSection_Defaults(t *testing.T) {
	s := NewProfilesSection()

	assert.Equal(t, SectionIDProfiles, s.ID())
	assert.Equal(t, DefaultProfile, s.LastProfile())
	assert.Equal(t, []string{"Swole", "El Capii"}, s.Names())

	for _, name := range s.Names() {
		p, ok := s.Profile(name)
		require.True(t, ok)
		assert.Equal(t, plan.AllCarriers, p.Carriers)
		assert.Empty(t, p.LastFilePath)
	}
	assert.NoError(t, s.Validate())
}

func TestProfilesSection_SetDataFromJSON(t *testing.T) {
	raw := `{
		"last_profile": "El Capii",
		"profiles": {
			"El Capii": {"carriers": ["oscar", "AETNA", "kaiser"], "last_file_path": "C:/bot/ListsCompiled.txt"},
			"Temp": {"carriers": ["blue"]}
		}
	}`
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &data))

	s := NewProfilesSection()
	require.NoError(t, s.SetData(data))

	assert.Equal(t, "El Capii", s.LastProfile())
	assert.Equal(t, []string{"El Capii", "Temp"}, s.Names())

	p, ok := s.Profile("El Capii")
	require.True(t, ok)
	assert.Equal(t, []plan.Carrier{plan.Oscar, plan.Aetna}, p.Carriers)
	assert.Equal(t, "C:/bot/ListsCompiled.txt", p.LastFilePath)

	_, ok = s.Profile("Swole")
	assert.False(t, ok, "stored profiles replace the defaults")
}

func TestProfilesSection_SetDataErrors(t *testing.T) {
	tests := []struct {
		name string
		data map[string]interface{}
	}{
		{
			name: "last profile not a string",
			data: map[string]interface{}{"last_profile": 3.0},
		},
		{
			name: "profiles not an object",
			data: map[string]interface{}{"profiles": []interface{}{"Swole"}},
		},
		{
			name: "profile not an object",
			data: map[string]interface{}{"profiles": map[string]interface{}{"Swole": "oscar"}},
		},
		{
			name: "carriers not a list",
			data: map[string]interface{}{"profiles": map[string]interface{}{
				"Swole": map[string]interface{}{"carriers": "oscar"},
			}},
		},
		{
			name: "carrier not a string",
			data: map[string]interface{}{"profiles": map[string]interface{}{
				"Swole": map[string]interface{}{"carriers": []interface{}{1.0}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProfilesSection()
			assert.Error(t, s.SetData(tt.data))
		})
	}
}

func TestProfilesSection_DataRoundTrip(t *testing.T) {
	s := NewProfilesSection()
	require.NoError(t, s.Remember(Profile{
		Name:         "Weekend",
		Carriers:     []plan.Carrier{plan.Cigna},
		LastFilePath: "/tmp/list.xlsx",
	}))

	encoded, err := json.Marshal(s.Data())
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(encoded, &decoded))

	restored := &ProfilesSection{}
	restored.Reset()
	require.NoError(t, restored.SetData(decoded))

	assert.Equal(t, "Weekend", restored.LastProfile())
	p, ok := restored.Profile("Weekend")
	require.True(t, ok)
	assert.Equal(t, []plan.Carrier{plan.Cigna}, p.Carriers)
	assert.Equal(t, "/tmp/list.xlsx", p.LastFilePath)
}

func TestProfilesSection_Validate(t *testing.T) {
	t.Run("profile without known carriers approves all", func(t *testing.T) {
		s := NewProfilesSection()
		require.NoError(t, s.SetData(map[string]interface{}{
			"profiles": map[string]interface{}{
				"Swole": map[string]interface{}{"carriers": []interface{}{"kaiser", "kaiser"}},
			},
		}))
		assert.NoError(t, s.Validate())
		p, ok := s.Profile("Swole")
		require.True(t, ok)
		assert.Equal(t, plan.AllCarriers, p.Carriers)
	})

	t.Run("blank profile name", func(t *testing.T) {
		s := NewProfilesSection()
		require.NoError(t, s.SetData(map[string]interface{}{
			"profiles": map[string]interface{}{
				" ": map[string]interface{}{"carriers": []interface{}{"oscar"}},
			},
		}))
		assert.Error(t, s.Validate())
	})

	t.Run("last profile missing", func(t *testing.T) {
		s := NewProfilesSection()
		require.NoError(t, s.SetData(map[string]interface{}{"last_profile": "Ghost"}))
		assert.Error(t, s.Validate())
	})
}

func TestProfilesSection_Remember(t *testing.T) {
	s := NewProfilesSection()

	assert.Error(t, s.Remember(Profile{Name: " ", Carriers: plan.AllCarriers}))
	assert.Error(t, s.Remember(Profile{Name: "Empty"}))

	carriers := []plan.Carrier{plan.Molina}
	require.NoError(t, s.Remember(Profile{Name: "Swole", Carriers: carriers, LastFilePath: "a.txt"}))
	carriers[0] = plan.Aetna

	p, _ := s.Profile("Swole")
	assert.Equal(t, []plan.Carrier{plan.Molina}, p.Carriers, "stored carriers are copied")
	assert.Equal(t, "a.txt", p.LastFilePath)
	assert.True(t, p.ApprovalSet().Contains("Molina Marketplace"))
	assert.False(t, p.ApprovalSet().Contains("Aetna"))
}

func TestProfilesSection_UnknownProfile(t *testing.T) {
	s := NewProfilesSection()

	p, ok := s.Profile("Nobody")
	assert.False(t, ok)
	assert.Equal(t, "Nobody", p.Name)
	assert.Equal(t, plan.AllCarriers, p.Carriers)
}

func TestProfilesSection_Remove(t *testing.T) {
	s := NewProfilesSection()
	require.NoError(t, s.Remember(Profile{Name: "Temp", Carriers: plan.AllCarriers}))

	assert.True(t, s.Remove("Temp"))
	assert.Equal(t, DefaultProfile, s.LastProfile())
	assert.False(t, s.Remove("Temp"))
	assert.NoError(t, s.Validate())
}

func TestProfilesSection_ResetAllThroughManager(t *testing.T) {
	m := NewManager(newMemStore())
	s := NewProfilesSection()
	require.NoError(t, m.RegisterSection(s))
	require.NoError(t, s.Remember(Profile{Name: "Temp", Carriers: []plan.Carrier{plan.Oscar}}))

	m.ResetAll()

	assert.Equal(t, []string{"Swole", "El Capii"}, s.Names())
	assert.Equal(t, DefaultProfile, s.LastProfile())
}
