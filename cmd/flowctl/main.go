package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/internal/config"
	"github.com/meikuraledutech/workflow/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

// newRootCmd creates the root command for flowctl
func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "flowctl",
		Short: "Inspect marketing workflow graphs offline",
		Long: `flowctl works on workflow files without a database.

It validates graphs, builds the execution context an agent node would
receive, and evaluates run records the way the output listing does.

Example:
  flowctl context -w graph.json -r records.yaml -a Agent1 --summary`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			level, err := cmd.Flags().GetString("log-level")
			if err != nil {
				return err
			}
			if level == "" {
				level = cfg.Log.Level
			}
			a.cfg = cfg
			a.logger = logging.New(cmd.ErrOrStderr(), level, "text")
			return nil
		},
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file (YAML)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newCheckCmd(a), newContextCmd(a), newRunsCmd(a))
	return rootCmd
}

// loadWorkflow reads a graph file and replays it through the mutation gates.
func loadWorkflow(path string) (workflow.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return workflow.Workflow{}, fmt.Errorf("read workflow %s: %w", path, err)
	}
	var w workflow.Workflow
	if err := json.Unmarshal(data, &w); err != nil {
		return workflow.Workflow{}, fmt.Errorf("parse workflow %s: %w", path, err)
	}
	if err := w.Validate(); err != nil {
		return workflow.Workflow{}, fmt.Errorf("invalid workflow %s: %w", path, err)
	}
	return w, nil
}

// loadRuns reads run documents from a JSON array or from JSON Lines.
func loadRuns(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read runs %s: %w", path, err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var docs []json.RawMessage
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, fmt.Errorf("parse runs %s: %w", path, err)
		}
		return docs, nil
	}

	docs := []json.RawMessage{}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	for {
		var doc json.RawMessage
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse runs %s: %w", path, err)
		}
		docs = append(docs, doc)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
