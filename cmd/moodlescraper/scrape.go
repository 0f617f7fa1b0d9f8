package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"moodlescraper/internal/downloader"
	"moodlescraper/pkg/auth"
	"moodlescraper/pkg/browser"
	"moodlescraper/pkg/checkpoint"
	"moodlescraper/pkg/config"
	"moodlescraper/pkg/logger"
	"moodlescraper/pkg/organizer"
	"moodlescraper/pkg/portal"
	"moodlescraper/pkg/ratelimit"
	"moodlescraper/pkg/retry"
	"moodlescraper/pkg/scraper"
	"moodlescraper/pkg/staging"
	"moodlescraper/pkg/transfer"
	"moodlescraper/pkg/ui"
	"moodlescraper/pkg/ui/tui"
)

var (
	baseURL        string
	stagingDir     string
	maxPages       int
	fuzzyThreshold float64
	skipLogin      bool
	savePassword   bool
	cloudflare     bool
	useTUI         bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape <account> [password]",
	Short: "Download every course's files and organize them",
	Long: `Log in as <account>, list all courses, download assignment attachments and
course resources into the staging directory, then move them into one
directory per course.

When no password is given, the stored credentials for the account are used;
failing that, the password is prompted for without echo.`,
	Example: `  # Scrape with a prompted password
  moodlescraper scrape jdoe --base-url https://moodle.example.edu

  # Store the password in the system keychain for next time
  moodlescraper scrape jdoe --save-password

  # Follow progress in the terminal UI
  moodlescraper scrape jdoe --tui`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
			return errors.New("an account identifier is required")
		}
		return cobra.RangeArgs(1, 2)(cmd, args)
	},
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVar(&baseURL, "base-url", "", "portal base URL")
	scrapeCmd.Flags().StringVarP(&stagingDir, "output", "o", "", "staging directory downloads are written to")
	scrapeCmd.Flags().IntVar(&maxPages, "max-pages", 0, "stop discovery after this many listing pages (0 for no limit)")
	scrapeCmd.Flags().Float64Var(&fuzzyThreshold, "fuzzy-threshold", 0, "similarity needed to recover a renamed file (0 disables)")
	scrapeCmd.Flags().BoolVar(&skipLogin, "skip-login", false, "reuse an anonymous session instead of logging in")
	scrapeCmd.Flags().BoolVar(&savePassword, "save-password", false, "store the password for the account")
	scrapeCmd.Flags().BoolVar(&cloudflare, "cloudflare-bypass", false, "use browser-like TLS settings for portals behind Cloudflare")
	scrapeCmd.Flags().BoolVar(&useTUI, "tui", false, "use the interactive terminal UI")
}

func scrapeOverrides() *config.Config {
	o := &config.Config{}
	o.Portal.BaseURL = baseURL
	o.Portal.MaxPages = maxPages
	o.Portal.SkipLogin = skipLogin
	o.Portal.CloudflareBypass = cloudflare
	o.Download.StagingDirectory = stagingDir
	o.Organize.FuzzyThreshold = fuzzyThreshold
	return o
}

func runScrape(cmd *cobra.Command, args []string) error {
	account := strings.TrimSpace(args[0])

	cfg, err := loadConfig(cmd, scrapeOverrides(), true)
	if err != nil {
		return err
	}

	// the terminal UI owns the screen; logs only go to the log file then
	var console io.Writer = os.Stderr
	if useTUI {
		console = io.Discard
	}
	log, err := setupLogger(cfg, console)
	if err != nil {
		return err
	}
	log = log.WithField("account", account)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := portal.NewClient(cfg.Portal, cfg.Download.DownloadTimeout, ratelimit.FromSettings(cfg.RateLimit), log)
	if err != nil {
		return err
	}

	var display ui.Reporter = ui.NopReporter{}
	if !quiet {
		display = ui.NewProgressDisplay(os.Stdout, account, ui.NewNotifier(os.Stdout, cfg.Notifications), verbose)
	}

	if !cfg.Portal.SkipLogin {
		password, err := resolvePassword(account, args)
		if err != nil {
			client.Close()
			return err
		}
		if err := login(ctx, client, account, password, cfg.Selectors.LoginFailure, display, log); err != nil {
			return err
		}
		if savePassword {
			storePassword(account, password, cfg.Portal.BaseURL, log)
		}
	}

	fs := afero.NewOsFs()
	area := staging.NewArea(fs, cfg.Download, log)
	opener := transfer.NewHTTPTransfer(client.Downloads(), retry.FromSettings(cfg.Retry, log), log)
	resolver := downloader.NewResolver(area, opener, cfg.Download.MaxAttempts, log)
	org := organizer.New(area, cfg.Organize, log)

	opts := []scraper.Option{scraper.WithLogger(log), scraper.WithAccount(account)}
	if cps, err := checkpointManager(fs, cfg, account, log); err != nil {
		log.WithError(err).Warn("Catalog checkpoints disabled")
	} else {
		opts = append(opts, scraper.WithCheckpoints(cps))
	}

	if useTUI {
		return runWithTUI(ctx, account, func(r ui.Reporter) *scraper.Scraper {
			return scraper.New(browser.NewSession(client, cfg, log), area, resolver, org, cfg,
				append(opts, scraper.WithReporter(r))...)
		})
	}

	s := scraper.New(browser.NewSession(client, cfg, log), area, resolver, org, cfg,
		append(opts, scraper.WithReporter(display))...)

	_, err = s.Run(ctx)
	return err
}

// authenticator is the part of the portal client login needs
type authenticator interface {
	Login(ctx context.Context, username, password, failureSelector string) error
	Close()
}

// login signs in to the portal. A failure is reported the way an aborted run
// is, then the session is closed.
func login(ctx context.Context, client authenticator, account, password, failureSelector string, reporter ui.Reporter, log logger.Logger) error {
	if err := client.Login(ctx, account, password, failureSelector); err != nil {
		err = fmt.Errorf("login failed: %w", err)
		log.WithError(err).Error("Login failed")
		reporter.Failure(err)
		client.Close()
		return err
	}
	return nil
}

// runWithTUI runs the pipeline next to the terminal UI. Quitting the UI
// cancels the run; the UI stays up after the run to show its summary.
func runWithTUI(ctx context.Context, account string, build func(ui.Reporter) *scraper.Scraper) error {
	terminal := tui.NewTUI(account)
	s := build(terminal)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var runErr error
	var g errgroup.Group
	g.Go(func() error {
		defer cancel()
		return terminal.Start()
	})
	g.Go(func() error {
		_, runErr = s.Run(runCtx)
		return nil
	})
	go func() {
		<-ctx.Done()
		terminal.Stop()
	}()

	if err := g.Wait(); err != nil {
		return fmt.Errorf("terminal UI failed: %w", err)
	}
	return runErr
}

// resolvePassword takes the password from the arguments, the credential
// store, or an interactive prompt, in that order
func resolvePassword(account string, args []string) (string, error) {
	if len(args) > 1 && args[1] != "" {
		return args[1], nil
	}

	if manager, err := auth.NewManager(); err == nil {
		if stored, err := manager.Retrieve(account); err == nil {
			return stored.Password, nil
		}
	}

	password, err := auth.ReadPassword(os.Stdin, os.Stderr, fmt.Sprintf("Password for %s: ", account))
	if err != nil {
		return "", err
	}
	if password == "" {
		return "", errors.New("a password is required")
	}
	return password, nil
}

func storePassword(account, password, portalURL string, log logger.Logger) {
	manager, err := auth.NewManager()
	if err == nil {
		err = manager.Store(&auth.Account{Username: account, Password: password, BaseURL: portalURL})
	}
	if err != nil {
		log.WithError(err).Warn("Failed to store credentials")
		return
	}
	log.Info("Credentials stored")
}

// checkpointManager returns the checkpoint location for account, or the
// configured checkpoint file when one is set
func checkpointManager(fs afero.Fs, cfg *config.Config, account string, log logger.Logger) (*checkpoint.Manager, error) {
	if cfg.Organize.CheckpointFile != "" {
		return checkpoint.NewManagerAt(fs, cfg.Organize.CheckpointFile, log), nil
	}
	return checkpoint.NewManager(fs, account, log)
}
