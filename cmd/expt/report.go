package main

import (
	"bytes"
	"errors"
	"fmt"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/jnb666/trafficsigns/expt"
	"github.com/jnb666/trafficsigns/report"
	"github.com/jnb666/trafficsigns/stats"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"os"
)

var (
	passStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

var errCheckFailed = errors.New("check failed")

// reports named on the command line, or the configured list if there are none
func (a *app) loadReports(cmd *cobra.Command, args []string) ([]*expt.Report, error) {
	paths := args
	if len(paths) == 0 {
		paths = a.settings.Reports
	}
	if len(paths) == 0 {
		return nil, errors.New("no report files given")
	}
	return report.LoadAll(cmd.Context(), a.log, paths)
}

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [FILE...]",
		Short: "Validate reports and the best experiment claim",
		Long: `Checks each accuracy is in [0,1] and each loss is >= 0, the experiment ids run 1..n,
and that the experiment named in the conclusion holds both the max accuracy and the min loss.
When several reports are given their tables must agree row for row.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reports, err := a.loadReports(cmd, args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			failed := 0
			for _, r := range reports {
				err := multierr.Combine(r.Validate(), r.CheckClaim())
				if err == nil {
					fmt.Fprintf(out, "%s %s\n", passStyle.Render("PASS"), r.Source)
					continue
				}
				failed++
				fmt.Fprintf(out, "%s %s\n", failStyle.Render("FAIL"), r.Source)
				for _, e := range multierr.Errors(err) {
					fmt.Fprintf(out, "     %s\n", e)
				}
			}
			for i := 1; i < len(reports); i++ {
				diffs := expt.Compare(reports[0], reports[i])
				if len(diffs) == 0 {
					continue
				}
				failed++
				fmt.Fprintf(out, "%s %s differs from %s\n", failStyle.Render("FAIL"), reports[i].Source, reports[0].Source)
				for _, d := range diffs {
					fmt.Fprintf(out, "     %s\n", d)
				}
			}
			a.log.Debug("check done", zap.Int("reports", len(reports)), zap.Int("failed", failed))
			if failed > 0 {
				return fmt.Errorf("%w: %d problems", errCheckFailed, failed)
			}
			return nil
		},
	}
}

func (a *app) bestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "best FILE",
		Short: "Show the experiments with the best accuracy and loss",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := report.ParseFile(args[0])
			if err != nil {
				return err
			}
			best, err := r.Best()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := report.RenderTable(out, []expt.Experiment{best.Accuracy}); err != nil {
				return err
			}
			if !best.Consistent() {
				fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("lowest loss is experiment %d", best.Loss.ID)))
				return report.RenderTable(out, []expt.Experiment{best.Loss})
			}
			return nil
		},
	}
}

func (a *app) diffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff A B",
		Short: "Compare the result tables of two reports",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reports, err := report.LoadAll(cmd.Context(), a.log, args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			diffs := expt.Compare(reports[0], reports[1])
			if len(diffs) == 0 {
				fmt.Fprintln(out, passStyle.Render("tables are identical"))
				if reports[0].Title != reports[1].Title {
					fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("titles differ: %q, %q", reports[0].Title, reports[1].Title)))
				}
				return nil
			}
			for _, d := range diffs {
				fmt.Fprintln(out, d)
			}
			fmt.Fprint(out, expt.Diff(reports[0], reports[1]))
			return fmt.Errorf("%w: %d differences", errCheckFailed, len(diffs))
		},
	}
}

func (a *app) showCmd() *cobra.Command {
	var width int
	cmd := &cobra.Command{
		Use:   "show FILE",
		Short: "Display a report in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := report.ParseFile(args[0])
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := report.Render(&buf, r); err != nil {
				return err
			}
			tr, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
			if err != nil {
				return err
			}
			text, err := tr.Render(buf.String())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().IntVarP(&width, "width", "w", 100, "word wrap width")
	return cmd
}

func (a *app) renderCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "render FILE",
		Short: "Write a report as normalised Markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := report.ParseFile(args[0])
			if err != nil {
				return err
			}
			if output == "" {
				return report.Render(cmd.OutOrStdout(), r)
			}
			var buf bytes.Buffer
			if err := report.Render(&buf, r); err != nil {
				return err
			}
			a.log.Info("writing report", zap.String("path", output))
			return os.WriteFile(output, buf.Bytes(), 0o644)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func (a *app) summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary FILE",
		Short: "Show statistics of the accuracy and loss columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := report.ParseFile(args[0])
			if err != nil {
				return err
			}
			sum, err := stats.Summarize(r.Experiments)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d experiments\n", r.Name(), sum.Count)
			fmt.Fprintf(out, "accuracy  %s\n", sum.Accuracy)
			fmt.Fprintf(out, "loss      %s\n", sum.Loss)
			fmt.Fprintf(out, "by accuracy %v\n", stats.Rank(r.Experiments, expt.FieldAccuracy))
			fmt.Fprintf(out, "by loss     %v\n", stats.Rank(r.Experiments, expt.FieldLoss))
			return nil
		},
	}
}
