package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"moodlescraper/pkg/auth"
	"moodlescraper/pkg/ui"
)

var loginBaseURL string

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored portal credentials",
	Long: `Store portal passwords so 'moodlescraper scrape <account>' can log in without
prompting. Credentials go to the system keychain when available, otherwise to
an encrypted file in the config directory. MOODLESCRAPER_USERNAME and
MOODLESCRAPER_PASSWORD are read as a fallback.`,
}

var loginCmd = &cobra.Command{
	Use:   "login [account]",
	Short: "Store the password for an account",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout <account>",
	Short: "Remove stored credentials",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd, logoutCmd, listCmd)

	loginCmd.Flags().StringVar(&loginBaseURL, "base-url", "", "portal the account belongs to")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var username string
	if len(args) > 0 {
		username = strings.TrimSpace(args[0])
	}
	if username == "" {
		fmt.Fprint(os.Stderr, "Account: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read account: %w", err)
		}
		username = strings.TrimSpace(line)
	}
	if username == "" {
		return errors.New("an account identifier is required")
	}

	password, err := auth.ReadPassword(os.Stdin, os.Stderr, fmt.Sprintf("Password for %s: ", username))
	if err != nil {
		return err
	}

	account := &auth.Account{Username: username, Password: password, BaseURL: loginBaseURL}
	if err := manager.Store(account); err != nil {
		return err
	}
	ui.PrintSuccess("Credentials stored for " + username)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	if err := manager.Delete(args[0]); err != nil {
		return err
	}
	ui.PrintSuccess("Credentials removed for " + args[0])
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	accounts, err := manager.List()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		ui.PrintWarning("No stored accounts")
		return nil
	}

	t := ui.NewTable(os.Stdout)
	t.AppendHeader(table.Row{"Account", "Password", "Portal", "Updated"})
	for _, a := range accounts {
		masked := auth.SanitizeAccount(a)
		t.AppendRow(table.Row{masked.Username, masked.Password, masked.BaseURL, masked.LastModified.Format("2006-01-02 15:04")})
	}
	t.Render()
	return nil
}
