package config

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/entrhq/renewbot/pkg/plan"
)

const (
	// SectionIDProfiles is the identifier for the operator profiles section
	SectionIDProfiles = "profiles"

	// DefaultProfile is selected when no profile was used before
	DefaultProfile = "Swole"
)

// defaultProfileNames are the profiles every fresh store starts with.
var defaultProfileNames = []string{DefaultProfile, "El Capii"}

// Profile is one operator's remembered carrier approvals and reference file.
type Profile struct {
	Name         string
	Carriers     []plan.Carrier
	LastFilePath string
}

// ApprovalSet returns the profile's carriers as an approval set.
func (p Profile) ApprovalSet() plan.ApprovalSet {
	return plan.NewApprovalSet(p.Carriers...)
}

// ProfilesSection stores operator profiles and the last one used.
type ProfilesSection struct {
	lastProfile string
	profiles    map[string]Profile
	mu          sync.RWMutex
}

// NewProfilesSection creates the section with the default profiles.
func NewProfilesSection() *ProfilesSection {
	s := &ProfilesSection{}
	s.Reset()
	return s
}

// ID returns the section identifier.
func (s *ProfilesSection) ID() string {
	return SectionIDProfiles
}

// Title returns the section title.
func (s *ProfilesSection) Title() string {
	return "Operator Profiles"
}

// Description returns the section description.
func (s *ProfilesSection) Description() string {
	return "Approved carriers and the last reference file for each operator profile."
}

// Data returns the current configuration data.
func (s *ProfilesSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profiles := make(map[string]interface{}, len(s.profiles))
	for name, p := range s.profiles {
		carriers := make([]interface{}, 0, len(p.Carriers))
		for _, c := range p.Carriers {
			carriers = append(carriers, string(c))
		}
		profiles[name] = map[string]interface{}{
			"carriers":       carriers,
			"last_file_path": p.LastFilePath,
		}
	}

	return map[string]interface{}{
		"last_profile": s.lastProfile,
		"profiles":     profiles,
	}
}

// SetData replaces the profiles from stored values. Unknown carriers are
// dropped so a store written by a newer build still loads; a profile left
// with none approves every carrier.
func (s *ProfilesSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if raw, ok := data["last_profile"]; ok {
		name, ok := raw.(string)
		if !ok {
			return fmt.Errorf("invalid value type for last_profile: expected string, got %T", raw)
		}
		s.lastProfile = name
	}

	raw, ok := data["profiles"]
	if !ok {
		return nil
	}
	entries, ok := raw.(map[string]interface{})
	if !ok {
		return fmt.Errorf("invalid value type for profiles: expected object, got %T", raw)
	}

	profiles := make(map[string]Profile, len(entries))
	for name, entry := range entries {
		fields, ok := entry.(map[string]interface{})
		if !ok {
			return fmt.Errorf("invalid value type for profile %q: expected object, got %T", name, entry)
		}
		p := Profile{Name: name}

		names, err := stringList(fields["carriers"])
		if err != nil {
			return fmt.Errorf("profile %q carriers: %w", name, err)
		}
		seen := make(map[plan.Carrier]bool, len(names))
		for _, n := range names {
			if c, err := plan.ParseCarrier(n); err == nil && !seen[c] {
				seen[c] = true
				p.Carriers = append(p.Carriers, c)
			}
		}
		if len(p.Carriers) == 0 {
			p.Carriers = append([]plan.Carrier(nil), plan.AllCarriers...)
		}

		if path, ok := fields["last_file_path"].(string); ok {
			p.LastFilePath = path
		}
		profiles[name] = p
	}
	s.profiles = profiles

	return nil
}

func stringList(v interface{}) ([]string, error) {
	switch list := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return list, nil
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", item)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list, got %T", v)
	}
}

// Validate validates the current configuration.
func (s *ProfilesSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for name, p := range s.profiles {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("profile name cannot be empty")
		}
		if len(p.Carriers) == 0 {
			return fmt.Errorf("profile %q must approve at least one carrier", name)
		}
	}
	if s.lastProfile != "" {
		if _, ok := s.profiles[s.lastProfile]; !ok {
			return fmt.Errorf("last_profile %q is not a stored profile", s.lastProfile)
		}
	}

	return nil
}

// Reset restores the default profiles, each approving every carrier.
func (s *ProfilesSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastProfile = DefaultProfile
	s.profiles = make(map[string]Profile, len(defaultProfileNames))
	for _, name := range defaultProfileNames {
		s.profiles[name] = Profile{
			Name:     name,
			Carriers: append([]plan.Carrier(nil), plan.AllCarriers...),
		}
	}
}

// Names returns the stored profile names, the defaults first.
func (s *ProfilesSection) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.profiles))
	for _, name := range defaultProfileNames {
		if _, ok := s.profiles[name]; ok {
			names = append(names, name)
		}
	}
	var rest []string
	for name := range s.profiles {
		if !isDefaultProfile(name) {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

func isDefaultProfile(name string) bool {
	for _, d := range defaultProfileNames {
		if d == name {
			return true
		}
	}
	return false
}

// Profile returns the named profile. An unknown name yields a profile
// approving every carrier and false.
func (s *ProfilesSection) Profile(name string) (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[name]
	if !ok {
		return Profile{Name: name, Carriers: append([]plan.Carrier(nil), plan.AllCarriers...)}, false
	}
	p.Carriers = append([]plan.Carrier(nil), p.Carriers...)
	return p, true
}

// LastProfile returns the most recently used profile name.
func (s *ProfilesSection) LastProfile() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastProfile == "" {
		return DefaultProfile
	}
	return s.lastProfile
}

// Remember stores p and marks it as the last used profile.
func (s *ProfilesSection) Remember(p Profile) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("profile name cannot be empty")
	}
	if len(p.Carriers) == 0 {
		return fmt.Errorf("profile %q must approve at least one carrier", p.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p.Carriers = append([]plan.Carrier(nil), p.Carriers...)
	s.profiles[p.Name] = p
	s.lastProfile = p.Name
	return nil
}

// Remove deletes a stored profile. The last used profile falls back to the
// default when it is the one removed.
func (s *ProfilesSection) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[name]; !ok {
		return false
	}
	delete(s.profiles, name)
	if s.lastProfile == name {
		s.lastProfile = ""
		if _, ok := s.profiles[DefaultProfile]; ok {
			s.lastProfile = DefaultProfile
		}
	}
	return true
}
