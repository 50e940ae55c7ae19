package main

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ArionMiles/spendlog/pkg/ledger"
)

func newListCmd(a *app) *cobra.Command {
	var (
		file  string
		limit int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show the transaction log and its totals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := ledger.NewStore(a.cfg.LogFile, a.logger.With("component", "store"))

			var src *ledger.Source
			if file != "" {
				src = ledger.FileSource(file)
			}

			l, err := store.LoadSource(cmd.Context(), src)
			if err != nil {
				pterm.Warning.Printf("%v, showing an empty log\n", err)
			}

			renderLog(l, limit)
			renderSummary(ledger.Summarize(l))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV file to show instead of the current log")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "show only the last N rows (0 shows all)")
	return cmd
}

func renderLog(l *ledger.Log, limit int) {
	pterm.DefaultSection.Println("Transactions Log")

	if l.Len() == 0 {
		pterm.Info.Println("No transactions yet.")
		return
	}

	rows := l.Rows
	if limit > 0 && len(rows) > limit {
		pterm.Info.Printf("Showing the last %d of %d rows\n", limit, len(rows))
		rows = rows[len(rows)-limit:]
	}

	data := pterm.TableData{l.Columns}
	data = append(data, rows...)
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		pterm.Error.Println(err)
	}
}

func renderSummary(sum ledger.Summary) {
	pterm.DefaultSection.Println("Summary")

	data := pterm.TableData{
		{"Rows", fmt.Sprint(sum.Count)},
		{"Spent", ledger.FormatAmount(sum.Debits)},
		{"Received", ledger.FormatAmount(sum.Credits)},
		{"Net", ledger.FormatAmount(sum.Net)},
	}
	if sum.Skipped > 0 {
		data = append(data, []string{"Unreadable rows", fmt.Sprint(sum.Skipped)})
	}
	if err := pterm.DefaultTable.WithData(data).Render(); err != nil {
		pterm.Error.Println(err)
	}
}
