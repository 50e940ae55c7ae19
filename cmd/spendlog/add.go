package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ArionMiles/spendlog/pkg/ledger"
	"github.com/ArionMiles/spendlog/pkg/parser"
)

func newAddCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "add MESSAGE",
		Short: "Record one transaction message",
		Long: `Record one transaction message, for example:

  spendlog add "I spent 50 on groceries"
  spendlog add received 1000 as salary

With --file the given CSV is used as the log to append to, and the result
replaces the transaction log file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			message := strings.Join(args, " ")

			rec, err := a.runner().Recorder(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := rec.Close(); err != nil {
					pterm.Warning.Printf("Mirror: %v\n", err)
				}
			}()

			var base *ledger.Log
			if file != "" {
				l, err := rec.Store().LoadSource(ctx, ledger.FileSource(file))
				if err != nil {
					pterm.Warning.Printf("%v, starting from an empty log\n", err)
				}
				base = l
			}

			res, err := rec.Submit(ctx, base, message)
			switch {
			case errors.Is(err, parser.ErrNoAmount):
				return fmt.Errorf("invalid message format, please include a valid amount in your message")
			case errors.Is(err, parser.ErrUnclassified):
				return fmt.Errorf("unable to classify the transaction, use spent/buy or received/income")
			case err != nil:
				return err
			}

			pterm.Success.Printf("Transaction added: %s of $%s (%d rows in %s)\n",
				res.Record.Type, ledger.FormatAmount(res.Record.Amount), res.Log.Len(), rec.Store().Path())
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV file to append to instead of the current log")
	return cmd
}
