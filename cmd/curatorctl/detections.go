package main

import (
	"net/url"

	"github.com/spf13/cobra"

	"github.com/potooio/curator/internal/api"
)

var detectionsProcess string

func detectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detections",
		Short: "List pending detections by process name",
		Long: `List the detections that are still waiting for their trigger process.

Examples:
  # All pending detections
  curator detections

  # Only detections triggered by one process (case-sensitive)
  curator detections --process Game.exe`,
		RunE: runDetections,
	}

	cmd.Flags().StringVarP(&detectionsProcess, "process", "p", "", "Only show detections for this process name")

	return cmd
}

func runDetections(cmd *cobra.Command, args []string) error {
	query := url.Values{}
	if detectionsProcess != "" {
		query.Set("process", detectionsProcess)
	}

	var resp api.DetectionsResponse
	if err := getJSON(cmd.Context(), "/api/v1/detections", query, &resp); err != nil {
		return err
	}

	result := DetectionsResult{Total: resp.Total, Detections: []DetectionInfo{}}
	for _, b := range resp.Buckets {
		for _, d := range b.Detections {
			result.Detections = append(result.Detections, DetectionInfo{
				ProcessName: b.ProcessName,
				WorkshopID:  d.WorkshopID,
				EntryName:   d.EntryName,
				Version:     d.Version,
				Predicate:   d.Predicate,
				Installing:  d.Installing,
			})
		}
	}
	return outputResult(cmd.OutOrStdout(), result, outputFmt)
}
