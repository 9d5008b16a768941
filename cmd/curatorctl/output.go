package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/potooio/curator/internal/indexer"
)

// StatusResult is the result of a status command.
type StatusResult struct {
	State             string             `json:"state"`
	EnabledAt         *time.Time         `json:"enabledAt,omitempty"`
	Stats             indexer.BuildStats `json:"stats"`
	ProcessCount      int                `json:"processCount"`
	PendingDetections int                `json:"pendingDetections"`
	Installing        int                `json:"installing"`
	InProgress        int                `json:"inProgress"`
	Installs          []InstallInfo      `json:"installs"`
}

// InstallInfo summarizes one finished install.
type InstallInfo struct {
	EntryID     int64  `json:"entryId"`
	EntryName   string `json:"entryName,omitempty"`
	Version     string `json:"version,omitempty"`
	ProcessName string `json:"processName,omitempty"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	Duration    string `json:"duration"`
}

// DetectionsResult is the result of a detections command.
type DetectionsResult struct {
	Detections []DetectionInfo `json:"detections"`
	Total      int             `json:"total"`
}

// DetectionInfo is one pending detection.
type DetectionInfo struct {
	ProcessName string `json:"processName"`
	WorkshopID  int64  `json:"workshopId"`
	EntryName   string `json:"entryName,omitempty"`
	Version     string `json:"version,omitempty"`
	Predicate   string `json:"predicate"`
	Installing  bool   `json:"installing"`
}

// CheckResult is the result of a check command.
type CheckResult struct {
	Valid bool        `json:"valid"`
	Files []FileCheck `json:"files"`
}

// FileCheck reports on one curation document.
type FileCheck struct {
	Path         string   `json:"path"`
	Format       string   `json:"format"`
	Valid        bool     `json:"valid"`
	Profiles     int      `json:"profiles"`
	Triggers     int      `json:"triggers"`
	ProcessNames []string `json:"processNames,omitempty"`
	Errors       []string `json:"errors,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

// outputResult writes the result to w in the specified format.
func outputResult(w io.Writer, result interface{}, format string) error {
	switch format {
	case "json":
		return outputJSON(w, result)
	case "yaml":
		return outputYAML(w, result)
	default:
		return outputTable(w, result)
	}
}

func outputJSON(w io.Writer, result interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputYAML(w io.Writer, result interface{}) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func outputTable(out io.Writer, result interface{}) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	switch r := result.(type) {
	case StatusResult:
		return outputStatusTable(w, r)
	case DetectionsResult:
		return outputDetectionsTable(w, r)
	case CheckResult:
		return outputCheckTable(w, r)
	default:
		// Fall back to JSON for unknown types
		return outputJSON(out, result)
	}
}

func outputStatusTable(w *tabwriter.Writer, r StatusResult) error {
	fmt.Fprintf(w, "STATE:\t%s\n", r.State)
	if r.EnabledAt != nil {
		fmt.Fprintf(w, "ENABLED AT:\t%s\n", r.EnabledAt.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "TRIGGERS:\t%d\n", r.Stats.Triggers)
	fmt.Fprintf(w, "PROCESSES:\t%d\n", r.ProcessCount)
	fmt.Fprintf(w, "PENDING:\t%d\n", r.PendingDetections)
	fmt.Fprintf(w, "INSTALLING:\t%d\n\n", r.Installing)

	if len(r.Installs) > 0 {
		fmt.Fprintln(w, "ENTRY\tNAME\tVERSION\tPROCESS\tSTATUS\tDURATION")
		for _, i := range r.Installs {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s%s%s\t%s\n",
				i.EntryID, i.EntryName, i.Version, i.ProcessName,
				statusColor(i.Status), i.Status, colorReset(i.Status), i.Duration)
		}
	}

	return nil
}

func outputDetectionsTable(w *tabwriter.Writer, r DetectionsResult) error {
	fmt.Fprintf(w, "TOTAL\t%d\n\n", r.Total)

	fmt.Fprintln(w, "PROCESS\tWORKSHOP ID\tNAME\tVERSION\tPREDICATE\tINSTALLING")
	for _, d := range r.Detections {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%t\n",
			d.ProcessName, d.WorkshopID, d.EntryName, d.Version, d.Predicate, d.Installing)
	}

	return nil
}

func outputCheckTable(w *tabwriter.Writer, r CheckResult) error {
	for _, f := range r.Files {
		status := "PASS"
		if !f.Valid {
			status = "FAIL"
		}
		fmt.Fprintf(w, "FILE:\t%s (%s)\n", f.Path, f.Format)
		fmt.Fprintf(w, "STATUS:\t%s\n", status)
		fmt.Fprintf(w, "PROFILES:\t%d\n", f.Profiles)
		fmt.Fprintf(w, "TRIGGERS:\t%d\n", f.Triggers)
		if len(f.ProcessNames) > 0 {
			fmt.Fprintf(w, "PROCESSES:\t%s\n", strings.Join(f.ProcessNames, ", "))
		}

		if len(f.Errors) > 0 {
			fmt.Fprintln(w, "\nERRORS:")
			for _, e := range f.Errors {
				fmt.Fprintf(w, "- %s\n", e)
			}
		}
		if len(f.Warnings) > 0 {
			fmt.Fprintln(w, "\nWARNINGS:")
			for _, warn := range f.Warnings {
				fmt.Fprintf(w, "- %s\n", warn)
			}
		}
		fmt.Fprintln(w)
	}

	return nil
}

// statusColor returns ANSI color code for an install status (used in table output).
func statusColor(status string) string {
	switch strings.ToLower(status) {
	case "failed":
		return "\033[31m" // Red
	case "cancelled":
		return "\033[33m" // Yellow
	case "succeeded":
		return "\033[32m" // Green
	default:
		return ""
	}
}

func colorReset(status string) string {
	if statusColor(status) == "" {
		return ""
	}
	return "\033[0m"
}
