// Package prompt asks the operator which profile, carriers and reference
// file to run with before a renewal run starts.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/entrhq/renewbot/pkg/config"
)

// ErrCancelled is returned when the operator quits the prompt.
var ErrCancelled = errors.New("prompt cancelled")

// Run shows the prompt on the given terminal streams and remembers the
// chosen profile in profiles. The caller persists the store.
func Run(ctx context.Context, profiles *config.ProfilesSection, in io.Reader, out io.Writer) (Result, error) {
	m := NewModel(profiles, nil)
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithInput(in), tea.WithOutput(out))

	final, err := p.Run()
	if err != nil {
		return Result{}, fmt.Errorf("prompt failed: %w", err)
	}

	res := final.(*Model).Result()
	if res.Cancelled {
		return res, ErrCancelled
	}
	if err := Remember(profiles, res); err != nil {
		return res, err
	}
	return res, nil
}

// Remember stores a completed result as the last used profile.
func Remember(profiles *config.ProfilesSection, res Result) error {
	return profiles.Remember(config.Profile{
		Name:         res.Profile,
		Carriers:     res.Carriers,
		LastFilePath: res.FilePath,
	})
}
