package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ArionMiles/spendlog/internal/plugins"
	"github.com/ArionMiles/spendlog/pkg/client"
)

func newSetupCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Authorize spendlog with Google for the Sheets mirror",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSetup(a, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "re-authenticate even if a token exists")
	return cmd
}

// runSetup handles the OAuth setup flow.
func runSetup(a *app, force bool) error {
	secretsPath, tokenFile := a.cfg.ClientSecret, a.cfg.TokenFile

	pterm.DefaultSection.Println("spendlog setup")

	if _, err := os.Stat(secretsPath); os.IsNotExist(err) {
		return fmt.Errorf("credentials file not found: %s\n\nTo get your credentials:\n"+
			"1. Go to https://console.cloud.google.com/apis/credentials\n"+
			"2. Create an OAuth 2.0 Client ID (Desktop application)\n"+
			"3. Download the JSON file and save it as '%s'", secretsPath, secretsPath)
	}

	if !force {
		if _, err := os.Stat(tokenFile); err == nil {
			pterm.Success.Printf("Already authenticated, token file exists: %s\n", tokenFile)
			pterm.Info.Println("To re-authenticate, run: spendlog setup --force")
			return nil
		}
	}

	if force {
		if err := os.Remove(tokenFile); err != nil && !os.IsNotExist(err) {
			a.logger.Warn("failed to remove existing token", "error", err)
		}
		pterm.Info.Println("Forcing re-authentication...")
	}

	scopes := allScopes(a.registry)
	pterm.Info.Println("Required permissions:")
	for _, s := range scopes {
		pterm.Println("  - " + s)
	}

	if _, err := client.Authorize(secretsPath, tokenFile, scopes...); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	pterm.Success.Printf("Token saved to: %s\n", tokenFile)
	pterm.Info.Println("Set SPENDLOG_MIRROR=sheets and SPENDLOG_MIRROR_CONFIG, then run 'spendlog serve'.")
	return nil
}

// allScopes returns the OAuth scopes any registered plugin may need.
func allScopes(r *plugins.Registry) []string {
	set := make(map[string]struct{})
	for _, p := range r.ListWriters() {
		for _, s := range p.RequiredScopes() {
			set[s] = struct{}{}
		}
	}

	scopes := make([]string, 0, len(set))
	for s := range set {
		scopes = append(scopes, s)
	}
	sort.Strings(scopes)
	return scopes
}
