package main

import (
	"github.com/spf13/cobra"

	"github.com/meikuraledutech/workflow/run"
)

func newRunsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Evaluate run records against a workflow",
		Long: `Runs normalizes every run document, decides whether the output listing
of the workflow would show it and labels the shown ones.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			wfPath, err := flags.GetString("workflow")
			if err != nil {
				return err
			}
			runsPath, err := flags.GetString("runs")
			if err != nil {
				return err
			}
			all, err := flags.GetBool("all")
			if err != nil {
				return err
			}
			debug, err := flags.GetBool("debug")
			if err != nil {
				return err
			}

			w, err := loadWorkflow(wfPath)
			if err != nil {
				return err
			}
			docs, err := loadRuns(runsPath)
			if err != nil {
				return err
			}

			defs := run.DefinitionKinds{}
			for id, kind := range a.cfg.Listing.OutputKinds {
				defs[id] = run.OutputKind(kind)
			}
			res := run.List(docs, w, run.ListOptions{
				ListingOptions:      run.ListingOptions{AllStatuses: all, Definitions: defs},
				LowQualityThreshold: a.cfg.Listing.LowQualityThreshold,
			})
			a.logger.Debug("runs evaluated",
				"included", len(res.Included), "excluded", len(res.Excluded), "dropped", res.Dropped)

			if !debug {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"included": res.Included})
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringP("workflow", "w", "", "Path to the workflow JSON file")
	cmd.Flags().String("runs", "", "Path to run documents (JSON array or JSON Lines)")
	cmd.Flags().Bool("all", false, "Include runs that ended in error")
	cmd.Flags().Bool("debug", false, "Also print excluded runs with their reasons")
	_ = cmd.MarkFlagRequired("workflow")
	_ = cmd.MarkFlagRequired("runs")
	return cmd
}
