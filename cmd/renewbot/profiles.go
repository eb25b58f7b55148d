package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/entrhq/renewbot/pkg/config"
	"github.com/spf13/cobra"
)

var profilesJSON bool

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List stored operator profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(os.Stderr)
		if err != nil {
			return err
		}
		if profilesJSON {
			return printProfilesJSON(os.Stdout, store.Profiles())
		}
		printProfilesTable(os.Stdout, store.Profiles())
		return nil
	},
}

func init() {
	profilesCmd.Flags().BoolVar(&profilesJSON, "json", false, "output as JSON")
}

// openStore opens the profile store and reports upgrades or recovery on w.
func openStore(w io.Writer) (*config.Manager, error) {
	store, err := config.Open(storePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile store: %w", err)
	}
	if fs, ok := store.Store().(*config.FileStore); ok {
		if notice := fs.Notice(); notice != "" {
			fmt.Fprintf(w, "⚠ %s\n", notice)
		}
	}
	return store, nil
}

type profileView struct {
	Name         string   `json:"name"`
	Carriers     []string `json:"carriers"`
	LastFilePath string   `json:"last_file_path,omitempty"`
	Last         bool     `json:"last_used"`
}

func profileViews(profiles *config.ProfilesSection) []profileView {
	last := profiles.LastProfile()
	var views []profileView
	for _, name := range profiles.Names() {
		p, _ := profiles.Profile(name)
		views = append(views, profileView{
			Name:         name,
			Carriers:     p.ApprovalSet().Strings(),
			LastFilePath: p.LastFilePath,
			Last:         name == last,
		})
	}
	return views
}

func printProfilesJSON(w io.Writer, profiles *config.ProfilesSection) error {
	data, err := json.MarshalIndent(profileViews(profiles), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal profiles: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func printProfilesTable(w io.Writer, profiles *config.ProfilesSection) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tPROFILE\tCARRIERS\tFILE")
	for _, v := range profileViews(profiles) {
		mark := ""
		if v.Last {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mark, v.Name, strings.Join(v.Carriers, ","), v.LastFilePath)
	}
	tw.Flush()
}
