// Command spendlog records expenses and income typed as free text.
package main

import (
	"log/slog"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ArionMiles/spendlog/internal/daemon"
	"github.com/ArionMiles/spendlog/internal/plugins"
	"github.com/ArionMiles/spendlog/pkg/config"
	"github.com/ArionMiles/spendlog/pkg/logging"
)

// app holds what every subcommand needs once flags are parsed.
type app struct {
	envFile  string
	logJSON  bool
	cfg      config.Config
	logger   *slog.Logger
	registry *plugins.Registry
}

func (a *app) runner() *daemon.Runner {
	return daemon.New(a.registry, a.logger)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{registry: plugins.Builtin()}

	rootCmd := &cobra.Command{
		Use:   "spendlog",
		Short: "Track expenses and income from plain-text messages",
		Long: `spendlog turns messages like "spent 50 on groceries" or "received 1000 as salary"
into rows of a CSV transaction log, through a small web page or the command line.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// LOG_* may come from the dotenv file.
			if err := config.LoadDotEnv(a.envFile); err != nil {
				return err
			}

			logCfg := logging.DefaultConfig()
			if a.logJSON {
				logCfg.JSON = true
			}
			a.logger = logging.Setup(logCfg)

			cfg, err := config.Load(a.envFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", config.DefaultDotEnvFile, "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().BoolVar(&a.logJSON, "log-json", false, "write logs as JSON lines")

	rootCmd.AddCommand(
		newServeCmd(a),
		newAddCmd(a),
		newListCmd(a),
		newSetupCmd(a),
		newStatusCmd(a),
	)

	return rootCmd
}
