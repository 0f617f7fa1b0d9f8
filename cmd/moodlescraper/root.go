package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"moodlescraper/pkg/config"
	"moodlescraper/pkg/logger"
	"moodlescraper/pkg/ui"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	configFile    string
	logLevel      string
	notifications bool
	quiet         bool
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "moodlescraper",
	Short: "Download and organize course files from a Moodle portal",
	Long: `moodlescraper logs into a Moodle portal, walks the course listing, downloads
every assignment attachment and course resource into a staging directory and
then sorts the staged files into one directory per course.

The catalog of a run is saved so the staging area can be organized again
later with 'moodlescraper organize'.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			ui.SetQuietMode(true)
		}
		if cmd.Name() != "version" && cmd.Name() != "help" {
			ui.PrintLogo()
		}
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.moodlescraper.yaml or ~/.config/moodlescraper/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", true, "notify when a run finishes or fails")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print every entry and file instead of a progress line")

	rootCmd.SetVersionTemplate(`moodlescraper {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig loads the configuration with overrides collected from flags
// and applies the global flags. Offline commands skip validation.
func loadConfig(cmd *cobra.Command, overrides *config.Config, validate bool) (*config.Config, error) {
	if overrides == nil {
		overrides = &config.Config{}
	}
	if logLevel != "" {
		overrides.Logging.Level = logLevel
	}

	load := config.LoadUnvalidated
	if validate {
		load = config.Load
	}
	cfg, err := load(configFile, overrides)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("notifications") {
		cfg.Notifications.Enabled = notifications
	}
	if quiet && logLevel == "" {
		cfg.Logging.Level = "error"
	}
	return cfg, nil
}

// setupLogger installs the global logger; console output goes to out
func setupLogger(cfg *config.Config, out io.Writer) (logger.Logger, error) {
	log, err := logger.NewWithWriter(&cfg.Logging, out)
	if err != nil {
		return nil, err
	}
	logger.SetLogger(log)
	return log, nil
}
