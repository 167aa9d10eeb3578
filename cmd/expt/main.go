// Command expt checks, compares, stores and serves experiment result reports.
package main

import (
	"fmt"
	"github.com/jnb666/trafficsigns/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"os"
)

// state shared by the sub commands, set up in PersistentPreRunE
type app struct {
	configPath string
	verbose    bool
	settings   config.Settings
	log        *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{log: zap.NewNop()}
	root := &cobra.Command{
		Use:   "expt",
		Short: "Experiment results ledger",
		Long: `expt reads Markdown reports holding a table of CNN training experiments.

It checks the results are in range and that the experiment named as best in the
conclusion really has the highest accuracy and lowest loss, compares reports,
keeps a history of imported reports and plans new hyperparameter sweeps.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			explicit := cmd.Flags().Changed("config")
			if a.settings, err = config.Load(a.configPath, explicit); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if a.log, err = a.settings.Logger(a.verbose); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.log.Debug("config loaded", zap.String("path", a.configPath), zap.Bool("explicit", explicit))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.log.Sync()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.DefaultPath, "settings file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		a.checkCmd(),
		a.bestCmd(),
		a.diffCmd(),
		a.showCmd(),
		a.renderCmd(),
		a.summaryCmd(),
		a.planCmd(),
		a.importCmd(),
		a.historyCmd(),
		a.forgetCmd(),
		a.serveCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
