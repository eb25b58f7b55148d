package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/entrhq/renewbot/pkg/browser"
	"github.com/entrhq/renewbot/pkg/config"
	"github.com/entrhq/renewbot/pkg/executor/headless"
	"github.com/entrhq/renewbot/pkg/logging"
	"github.com/entrhq/renewbot/pkg/plan"
	"github.com/entrhq/renewbot/pkg/prompt"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type runOptions struct {
	configFile string
	profile    string
	carriers   []string
	file       string
	cdpURL     string
	listURL    string
	logLevel   string
	noPrompt   bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process the client roster in the attached browser",
	Long: `Attach to a Chrome started with --remote-debugging-port, with the
client list open and logged in, and renew every client on the roster.

While the run is in progress type p (pause), r (resume), n (skip the
current client), s (stop) or status, followed by enter.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runRenewal(ctx, runOpts)
	},
}

func init() {
	runCmd.Flags().StringVar(&runOpts.configFile, "config", "", "run configuration file (YAML)")
	runCmd.Flags().StringVar(&runOpts.profile, "profile", "", "operator profile (default: last used)")
	runCmd.Flags().StringSliceVar(&runOpts.carriers, "carriers", nil, "approved carriers, overriding the profile (e.g. oscar,aetna)")
	runCmd.Flags().StringVar(&runOpts.file, "file", "", "reference file, overriding the profile")
	runCmd.Flags().StringVar(&runOpts.cdpURL, "cdp-url", "", "Chrome DevTools endpoint (default "+browser.DefaultCDPURL+")")
	runCmd.Flags().StringVar(&runOpts.listURL, "list-url", "", "client list URL, overriding the configuration")
	runCmd.Flags().StringVar(&runOpts.logLevel, "log-level", "", "console verbosity: quiet, normal, verbose or debug")
	runCmd.Flags().BoolVar(&runOpts.noPrompt, "no-prompt", false, "take profile, carriers and file from flags and the store")
}

func runRenewal(ctx context.Context, opts runOptions) error {
	cfg, err := loadRunConfig(opts)
	if err != nil {
		return err
	}

	store, err := openStore(os.Stderr)
	if err != nil {
		return err
	}
	profiles := store.Profiles()

	var sel prompt.Result
	if !opts.noPrompt && term.IsTerminal(int(os.Stdin.Fd())) {
		sel, err = prompt.Run(ctx, profiles, os.Stdin, os.Stdout)
		if errors.Is(err, prompt.ErrCancelled) {
			fmt.Println("Cancelled.")
			return nil
		}
		if err != nil {
			return err
		}
	} else {
		sel, err = selectionFromFlags(profiles, opts)
		if err != nil {
			return err
		}
		if err := prompt.Remember(profiles, sel); err != nil {
			return err
		}
	}

	ref, err := config.CheckReferenceFile(sel.FilePath)
	if err != nil {
		return fmt.Errorf("reference file: %w", err)
	}

	if err := store.SaveAll(); err != nil {
		return fmt.Errorf("failed to save profile store: %w", err)
	}

	console := headless.NewLogger(headless.ParseLogLevel(cfg.LogLevel))
	if ref.Warning != "" {
		console.Warningf("%s: %s", ref.Path, ref.Warning)
	}

	logger, err := logging.NewLogger("renewbot")
	if err != nil {
		console.Warningf("debug log unavailable: %v", err)
	}
	defer logger.Close()
	if path := logger.LogPath(); path != "" {
		console.Verbosef("Debug log: %s", path)
	}

	approved := plan.NewApprovalSet(sel.Carriers...)

	mgr := browser.NewManager()
	if err := mgr.Initialize(); err != nil {
		return err
	}
	defer func() {
		if err := mgr.Shutdown(); err != nil {
			logger.Warnf("browser shutdown: %v", err)
		}
	}()

	session, err := mgr.Attach(cfg.AttachOptions())
	if err != nil {
		return err
	}

	executor, err := headless.NewExecutor(session, cfg, approved,
		headless.WithProfile(sel.Profile),
		headless.WithReferenceFile(ref.Path),
		headless.WithConsole(console),
		headless.WithDebugLogger(logger),
		headless.WithCommands(os.Stdin, os.Stdout),
	)
	if err != nil {
		return err
	}
	return executor.Run(ctx)
}

// loadRunConfig reads the YAML configuration and applies flag overrides.
func loadRunConfig(opts runOptions) (*headless.Config, error) {
	cfg := headless.DefaultConfig()
	if opts.configFile != "" {
		loaded, err := headless.LoadConfig(opts.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if opts.cdpURL != "" {
		cfg.CDPURL = opts.cdpURL
	}
	if opts.listURL != "" {
		cfg.ListURL = opts.listURL
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// selectionFromFlags resolves profile, carriers and file without a prompt.
// Flags override what the profile remembers.
func selectionFromFlags(profiles *config.ProfilesSection, opts runOptions) (prompt.Result, error) {
	name := strings.TrimSpace(opts.profile)
	if name == "" {
		name = profiles.LastProfile()
	}
	p, _ := profiles.Profile(name)

	sel := prompt.Result{
		Profile:  name,
		Carriers: p.Carriers,
		FilePath: p.LastFilePath,
	}

	if len(opts.carriers) > 0 {
		approved, err := plan.ParseApprovalSet(opts.carriers)
		if err != nil {
			return prompt.Result{}, err
		}
		if approved.Len() == 0 {
			return prompt.Result{}, fmt.Errorf("--carriers names no carrier")
		}
		sel.Carriers = approved.Carriers()
	}
	if opts.file != "" {
		sel.FilePath = opts.file
	}
	return sel, nil
}
