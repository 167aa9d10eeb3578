package main

import (
	"fmt"
	"github.com/jnb666/trafficsigns/stats"
	"github.com/jnb666/trafficsigns/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"strconv"
)

func (a *app) openStore() (*store.Store, error) {
	return store.Open(a.settings.Database, a.log)
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [FILE...]",
		Short: "Record reports in the results database",
		Long:  "Imports each report once, keyed by the digest of its contents. Re-importing an unchanged file is a no-op.",
		RunE: func(cmd *cobra.Command, args []string) error {
			reports, err := a.loadReports(cmd, args)
			if err != nil {
				return err
			}
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()
			list, err := db.ImportAll(cmd.Context(), reports)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, imp := range list {
				status := dimStyle.Render("unchanged")
				if imp.Created {
					status = passStyle.Render("imported")
				}
				fmt.Fprintf(out, "%-9s %s %s\n", status, imp.Digest, imp.Source)
			}
			a.log.Debug("import done", zap.Int("documents", len(list)))
			return nil
		},
	}
}

func (a *app) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history ID",
		Short: "Show one experiment as recorded by each imported report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("experiment id %q: %w", args[0], err)
			}
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()
			entries, err := db.History(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			var acc, loss stats.Average
			for _, e := range entries {
				fmt.Fprintf(out, "%s  %-50s  acc=%.4f loss=%.4f  %s\n",
					e.Document.ImportedAt.Format("2006-01-02 15:04:05"), e.Document.Title,
					e.Experiment.Accuracy, e.Experiment.Loss, e.Experiment.Remarks)
				acc.Add(e.Experiment.Accuracy)
				loss.Add(e.Experiment.Loss)
			}
			fmt.Fprintf(out, "mean over %d reports: acc=%s loss=%s\n", len(entries), acc, loss)
			return nil
		},
	}
}

func (a *app) forgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget DIGEST...",
		Short: "Remove imported reports and their results from the database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()
			for _, digest := range args {
				if err := db.Delete(cmd.Context(), digest); err != nil {
					return err
				}
				a.log.Info("forgot report", zap.String("digest", digest))
				fmt.Fprintf(cmd.OutOrStdout(), "%-9s %s\n", dimStyle.Render("removed"), digest)
			}
			return nil
		},
	}
}
