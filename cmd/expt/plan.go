package main

import (
	"errors"
	"fmt"
	"github.com/jnb666/trafficsigns/expt"
	"github.com/jnb666/trafficsigns/report"
	"github.com/jnb666/trafficsigns/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"os"
)

func (a *app) planCmd() *cobra.Command {
	var (
		tune    []string
		runs    int
		results string
		save    bool
	)
	cmd := &cobra.Command{
		Use:   "plan [CONFIG]",
		Short: "Plan a hyperparameter sweep",
		Long: `Lists a planned results row for each combination of the tuned values, repeated for
each run. CONFIG is a JSON config under the data directory, default ` + web.PlanConfig + `.

Example:
  expt plan --tune Hidden=128,256,512 --tune Dropout=0.3,0.5 --runs 2`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expt.DataDir = a.settings.DataDir
			name := web.PlanConfig
			if len(args) > 0 {
				name = args[0]
			}
			conf, err := expt.LoadConfig(name)
			if errors.Is(err, os.ErrNotExist) && len(args) == 0 {
				conf = web.DefaultPlan()
			} else if err != nil {
				return err
			}
			var params []expt.TuneParams
			for _, s := range tune {
				p, err := expt.ParseTune(s)
				if err != nil {
					return err
				}
				params = append(params, p)
			}
			configs, err := expt.Plan(conf, params, runs)
			if err != nil {
				return err
			}
			var rep *expt.Report
			if results != "" {
				if rep, err = report.ParseFile(results); err != nil {
					return err
				}
			}
			a.log.Info("planned sweep", zap.String("config", name), zap.Int("runs", len(configs)), zap.Stringers("params", params))
			out := cmd.OutOrStdout()
			if a.verbose {
				fmt.Fprintln(out, conf)
			}
			if err := report.RenderTable(out, expt.Pending(rep, configs)); err != nil {
				return err
			}
			if save {
				return conf.Save(name)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&tune, "tune", "t", nil, "name=v1,v2,... values to sweep (repeatable)")
	cmd.Flags().IntVarP(&runs, "runs", "n", 1, "repeats of each combination")
	cmd.Flags().StringVarP(&results, "results", "r", "", "report whose experiment ids the plan continues")
	cmd.Flags().BoolVar(&save, "save", false, "save the base config")
	return cmd
}
