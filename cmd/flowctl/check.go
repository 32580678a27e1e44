package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meikuraledutech/workflow"
)

func newCheckCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a workflow graph file",
		Long: `Validate replays every node and edge of the graph through the same
connection rules and cycle check the server applies, and prints the
topological order of the nodes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString("workflow")
			if err != nil {
				return err
			}
			w, err := loadWorkflow(path)
			if err != nil {
				return err
			}
			a.logger.Debug("workflow valid", "workflow_id", w.ID, "nodes", len(w.Nodes), "edges", len(w.Edges))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "workflow %s: %d nodes, %d edges, ok\n", w.ID, len(w.Nodes), len(w.Edges))
			for i, id := range workflow.TopoSort(w.Nodes, w.Edges) {
				n, _ := w.Node(id)
				fmt.Fprintf(out, "%d. %s (%s)\n", i+1, id, n.Type)
			}
			return nil
		},
	}
	cmd.Flags().StringP("workflow", "w", "", "Path to the workflow JSON file")
	_ = cmd.MarkFlagRequired("workflow")
	return cmd
}
