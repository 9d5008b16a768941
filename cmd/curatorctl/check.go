package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/potooio/curator/internal/curation"
	"github.com/potooio/curator/internal/detection"
	"github.com/potooio/curator/internal/procmon"
	"github.com/potooio/curator/internal/util"
)

var checkFiles []string

// errCheckFailed is returned after the report is printed so the exit code is non-zero.
var errCheckFailed = errors.New("curation check failed")

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate curation documents without contacting the catalog",
		Long: `Parse one or more curation documents and report structural problems and
window-title patterns that would be skipped at index time.

Examples:
  # Check a curation file
  curator check -f curation.yaml

  # Check several files and output as JSON
  curator check -f base.json -f extra.toml -o json`,
		RunE: runCheck,
	}

	cmd.Flags().StringArrayVarP(&checkFiles, "filename", "f", nil, "Curation file to check (required, repeatable)")
	_ = cmd.MarkFlagRequired("filename")

	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	result := CheckResult{Valid: true}
	for _, path := range checkFiles {
		fc := checkFile(path)
		if !fc.Valid {
			result.Valid = false
		}
		result.Files = append(result.Files, fc)
	}

	if err := outputResult(cmd.OutOrStdout(), result, outputFmt); err != nil {
		return err
	}
	if !result.Valid {
		return errCheckFailed
	}
	return nil
}

// checkFile loads one document and inspects every trigger predicate.
func checkFile(path string) FileCheck {
	fc := FileCheck{Path: path, Format: string(curation.FormatFromPath(path))}

	doc, err := curation.LoadFile(path)
	if err != nil {
		fc.Errors = splitErrors(err)
		return fc
	}

	fc.Profiles = len(doc.Profiles)
	fc.Triggers = doc.TriggerCount()
	fc.ProcessNames = util.ProcessNames(doc.ProcessNames())

	titles := procmon.ReportsWindowTitles(&procmon.ProcfsScanner{})
	for i, p := range doc.Profiles {
		for j, t := range p.ProfileTriggers {
			at := fmt.Sprintf("profiles[%d].profileTriggers[%d]", i, j)
			if _, err := detection.ForTrigger(t); err != nil {
				// The daemon skips these triggers, so they are warnings, not errors.
				fc.Warnings = append(fc.Warnings, fmt.Sprintf("%s: %v", at, err))
				continue
			}
			if t.WindowTitle != "" && !titles {
				fc.Warnings = append(fc.Warnings,
					fmt.Sprintf("%s: windowTitle %q never matches, the process scanner does not report window titles", at, t.WindowTitle))
			}
		}
	}

	// The daemon skips these triggers too; check is strict about them.
	if err := curation.Validate(doc); err != nil {
		fc.Errors = splitErrors(err)
		return fc
	}
	fc.Valid = true
	return fc
}

func splitErrors(err error) []string {
	var out []string
	for _, line := range strings.Split(err.Error(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
