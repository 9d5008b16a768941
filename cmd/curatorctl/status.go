package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/potooio/curator/internal/module"
)

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon state, pending detections and recent installs",
		Long: `Show a summary of the running curatord.

Examples:
  # Show status
  curator status

  # Output as JSON
  curator status -o json`,
		RunE: runStatus,
	}

	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	var snap module.Snapshot
	if err := getJSON(cmd.Context(), "/api/v1/status", nil, &snap); err != nil {
		return err
	}
	return outputResult(cmd.OutOrStdout(), buildStatusResult(snap), outputFmt)
}

func buildStatusResult(snap module.Snapshot) StatusResult {
	result := StatusResult{
		State:      snap.State,
		EnabledAt:  snap.EnabledAt,
		Stats:      snap.Stats,
		Installs:   make([]InstallInfo, 0, len(snap.Installs)),
		InProgress: len(snap.InFlight),
	}
	for _, b := range snap.Buckets {
		result.ProcessCount++
		for _, d := range b.Detections {
			result.PendingDetections++
			if d.Installing {
				result.Installing++
			}
		}
	}
	for _, o := range snap.Installs {
		result.Installs = append(result.Installs, InstallInfo{
			EntryID:     o.EntryID,
			EntryName:   o.EntryName,
			Version:     o.Version,
			ProcessName: o.ProcessName,
			Status:      string(o.Status),
			Error:       o.Error,
			Duration:    o.Duration().Round(time.Millisecond).String(),
		})
	}
	return result
}
