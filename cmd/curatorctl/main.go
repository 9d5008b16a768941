// curatorctl is a CLI tool for inspecting a running curatord and checking
// curation documents.
//
// Usage:
//
//	curator status
//	curator detections --process Game.exe
//	curator check -f curation.yaml
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	outputFmt string
	serverURL string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "curator",
		Short: "Inspect curatord and validate curation documents",
		Long: `curator is a CLI tool for interacting with curatord.

It reads the daemon's status API and prints pending detections and recent
installs. The check command validates curation documents offline.`,
		Version:      version,
		SilenceUsage: true,
	}

	defaultServer := os.Getenv("CURATOR_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "curatord status API base URL")

	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(detectionsCmd())
	rootCmd.AddCommand(checkCmd())

	return rootCmd
}
