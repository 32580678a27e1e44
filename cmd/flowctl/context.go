package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meikuraledutech/workflow/execctx"
)

func newContextCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Build the execution context of an agent node",
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			wfPath, err := flags.GetString("workflow")
			if err != nil {
				return err
			}
			recordsPath, err := flags.GetString("records")
			if err != nil {
				return err
			}
			agentID, err := flags.GetString("agent")
			if err != nil {
				return err
			}
			summary, err := flags.GetBool("summary")
			if err != nil {
				return err
			}

			w, err := loadWorkflow(wfPath)
			if err != nil {
				return err
			}
			resolver := execctx.NewMemoryResolver()
			if recordsPath != "" {
				if resolver, err = execctx.LoadRecords(recordsPath); err != nil {
					return err
				}
			}

			b := execctx.NewBuilder(execctx.BuilderConfig{
				Resolver:     resolver,
				Logger:       a.logger,
				PreviewLimit: a.cfg.Context.PreviewLimit,
			})
			ec, err := b.Build(cmd.Context(), w, agentID)
			if err != nil {
				return err
			}

			if summary {
				_, err := fmt.Fprint(cmd.OutOrStdout(), ec.Summary())
				return err
			}
			return writeJSON(cmd.OutOrStdout(), ec)
		},
	}
	cmd.Flags().StringP("workflow", "w", "", "Path to the workflow JSON file")
	cmd.Flags().StringP("records", "r", "", "Path to a YAML or JSON records file")
	cmd.Flags().StringP("agent", "a", "", "Agent node id")
	cmd.Flags().Bool("summary", false, "Print a text summary instead of JSON")
	_ = cmd.MarkFlagRequired("workflow")
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}
