package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/multy/internal/state"
	"github.com/muurk/multy/internal/ui"
)

var showCmd = &cobra.Command{
	Use:   "show [resource...]",
	Short: "Read resources once and print them",
	Long: `Poll the selected resources once and print the flattened snapshots.

With no arguments every configured resource is read. Resources that fail
are reported with troubleshooting tips; the command fails only when every
read failed.`,
	Example: `  # Everything
  multy-cli show

  # Connected clients and mesh nodes as JSON
  multy-cli show network-devices mesh-nodes --json`,
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		resourcesFlag = args
	}
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	result := eng.scheduler.Tick(cmd.Context())

	snaps := make([]*state.Snapshot, 0, len(result.Polled))
	for _, name := range eng.resourceNames() {
		if snap, ok := eng.cache.Snapshot(name); ok {
			snaps = append(snaps, snap)
		}
	}

	if jsonOutput {
		out := struct {
			Snapshots []*state.Snapshot `json:"snapshots"`
			Errors    map[string]string `json:"errors,omitempty"`
		}{Snapshots: snaps}
		if len(result.Failed) > 0 {
			out.Errors = make(map[string]string, len(result.Failed))
			for name, err := range result.Failed {
				out.Errors[name] = err.Error()
			}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else {
		for _, snap := range snaps {
			fmt.Println(ui.RenderSnapshot(snap, true))
		}
		for _, name := range eng.resourceNames() {
			if err, failed := result.Failed[name]; failed {
				fmt.Println(ui.RenderFailure("Reading "+name, err))
			}
		}
	}

	if result.AllFailed() {
		return fmt.Errorf("every read failed: %w", result.Err())
	}
	return nil
}
