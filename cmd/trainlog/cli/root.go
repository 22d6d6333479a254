package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose    bool
	jsonLogs   bool
	backend    string
	sqlitePath string
	configPath string
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "trainlog",
	Short: "Training-run telemetry recorder",
	Long: `trainlog records training-run telemetry (step logs, metric snapshots,
checkpoint inventories) into a shared document store so a distributed
training job can be monitored and audited externally.`,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	RootCmd.PersistentFlags().BoolVar(&jsonLogs, "json", false, "JSON log output, non-interactive")
	RootCmd.PersistentFlags().StringVar(&backend, "backend", "mongo", "Document store backend (mongo, sqlite)")
	RootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite-path", "", "Path to the SQLite database (sqlite backend)")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (.yaml or .json)")
}
