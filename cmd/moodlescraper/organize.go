package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"moodlescraper/pkg/organizer"
	"moodlescraper/pkg/staging"
	"moodlescraper/pkg/ui"
)

var (
	checkpointFile string
	organizeDir    string
)

var organizeCmd = &cobra.Command{
	Use:   "organize <account>",
	Short: "Organize the staging area again from the last saved catalog",
	Long: `Load the catalog saved by the last scrape of <account> and move the staged
files into one directory per course. Files already in place are left alone,
so the command can be repeated after a partial run.`,
	Args: cobra.ExactArgs(1),
	RunE: runOrganize,
}

func init() {
	rootCmd.AddCommand(organizeCmd)

	organizeCmd.Flags().StringVar(&checkpointFile, "checkpoint", "", "catalog checkpoint file (default: the account's saved catalog)")
	organizeCmd.Flags().StringVarP(&organizeDir, "output", "o", "", "staging directory (default: the one recorded in the catalog)")
}

func runOrganize(cmd *cobra.Command, args []string) error {
	account := args[0]

	cfg, err := loadConfig(cmd, nil, false)
	if err != nil {
		return err
	}
	if checkpointFile != "" {
		cfg.Organize.CheckpointFile = checkpointFile
	}
	log, err := setupLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	fs := afero.NewOsFs()
	cps, err := checkpointManager(fs, cfg, account, log)
	if err != nil {
		return err
	}
	cp, err := cps.Load()
	if err != nil {
		return err
	}
	if cp == nil {
		return fmt.Errorf("no saved catalog for %s at %s", account, cps.Path())
	}

	switch {
	case organizeDir != "":
		cfg.Download.StagingDirectory = organizeDir
	case cp.StagingDirectory != "":
		cfg.Download.StagingDirectory = cp.StagingDirectory
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	area := staging.NewArea(fs, cfg.Download, log)
	report, err := organizer.New(area, cfg.Organize, log).Organize(ctx, cp.Catalog)
	if !quiet {
		printReport(os.Stdout, area.Dir(), report)
	}
	return err
}

func printReport(out io.Writer, dir string, r organizer.Report) {
	t := ui.NewTable(out)
	t.SetTitle("Organized " + dir)
	t.AppendRows([]table.Row{
		{"Moved", r.Moved},
		{"Recovered", r.Recovered},
		{"Already in place", r.AlreadyPlaced},
		{"Missing", r.Missing},
	})
	for _, name := range r.MissingFiles {
		t.AppendFooter(table.Row{"Missing", name})
	}
	t.Render()
}
