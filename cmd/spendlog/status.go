package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ArionMiles/spendlog/internal/plugins"
	"github.com/ArionMiles/spendlog/pkg/client"
	"github.com/ArionMiles/spendlog/pkg/config"
	"github.com/ArionMiles/spendlog/pkg/ledger"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the configuration, transaction log and mirror setup",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !runStatus(cmd, a) {
				return errors.New("configuration issues detected")
			}
			return nil
		},
	}
}

type check struct {
	name string
	ok   bool
	note string
}

// runStatus prints one line per check and reports whether all passed.
func runStatus(cmd *cobra.Command, a *app) bool {
	cfg := a.cfg
	checks := []check{
		{name: "Listen address", ok: true, note: cfg.Addr},
		checkLogFile(cmd, cfg.LogFile),
	}

	if cfg.MirrorPlugin == "" {
		checks = append(checks, check{name: "Mirror", ok: true, note: "disabled"})
	} else {
		checks = append(checks, checkMirror(a)...)
	}

	pterm.DefaultSection.Println("spendlog status")

	data := pterm.TableData{{"Check", "", "Details"}}
	allGood := true
	for _, c := range checks {
		mark := pterm.Green("ok")
		if !c.ok {
			mark = pterm.Red("fail")
			allGood = false
		}
		data = append(data, []string{c.name, mark, c.note})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		pterm.Error.Println(err)
	}

	if allGood {
		pterm.Success.Println("Ready to run. Start with 'spendlog serve'.")
	}
	return allGood
}

func checkLogFile(cmd *cobra.Command, path string) check {
	c := check{name: "Transaction log"}

	l, err := ledger.NewStore(path, nil).Load(cmd.Context())
	switch {
	case errors.Is(err, ledger.ErrMalformed):
		c.note = fmt.Sprintf("%s is unreadable and will be replaced on the next submission: %v", path, err)
	case err != nil:
		c.note = err.Error()
	default:
		c.ok = true
		if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
			c.note = fmt.Sprintf("%s (not created yet)", path)
		} else {
			c.note = fmt.Sprintf("%s (%d rows)", path, l.Len())
		}
	}
	return c
}

func checkMirrorConfig(plugin plugins.WriterPlugin, cfg config.Config) check {
	c := check{name: "Mirror config"}
	required := "required keys: none"
	if keys := plugins.RequiredKeys(plugin); len(keys) > 0 {
		required = "required keys: " + strings.Join(keys, ", ")
	}

	raw, err := cfg.MirrorConfig()
	if err == nil {
		err = plugins.ValidateConfig(plugin, raw)
	}
	if err != nil {
		c.note = fmt.Sprintf("%v (%s)", err, required)
		return c
	}
	c.ok = true
	c.note = required
	return c
}

func checkMirror(a *app) []check {
	cfg := a.cfg
	checks := []check{}

	plugin, err := a.registry.GetWriter(cfg.MirrorPlugin)
	if err != nil {
		return append(checks, check{name: "Mirror", note: err.Error()})
	}
	checks = append(checks, check{name: "Mirror", ok: true, note: plugin.Name() + ": " + plugin.Description()})

	checks = append(checks, checkMirrorConfig(plugin, cfg))

	if len(plugin.RequiredScopes()) == 0 {
		return checks
	}

	secret := check{name: "Credentials file", note: cfg.ClientSecret}
	if _, err := os.Stat(cfg.ClientSecret); err == nil {
		secret.ok = true
	} else {
		secret.note += " (not found)"
	}
	checks = append(checks, secret)

	token := check{name: "OAuth token", note: cfg.TokenFile}
	tok, err := client.TokenFromFile(cfg.TokenFile)
	switch {
	case err != nil:
		token.note = fmt.Sprintf("%s: %v (run 'spendlog setup')", cfg.TokenFile, err)
	case !tok.Expiry.IsZero() && tok.Expiry.Before(time.Now()):
		token.ok = true
		token.note = "expired, will refresh on next run"
	default:
		token.ok = true
		token.note = fmt.Sprintf("valid (expires: %s)", tok.Expiry.Format(time.RFC3339))
	}
	return append(checks, token)
}
