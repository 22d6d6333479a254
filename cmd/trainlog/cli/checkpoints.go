package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints [output-dir]",
	Short: "Discover and persist the checkpoint inventory for the current task",
	Long: `Checkpoints scans the output directory for entries named checkpoint-*,
renames any lacking a step marker (checkpoint-100 becomes
checkpoint-step100), and stores the inventory once per task.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		saver, cleanup, err := newSaver(ctx)
		if err != nil {
			fmt.Printf("Failed to init recorder: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		saver.ListCheckpoints(ctx, args[0])
	},
}

func init() {
	RootCmd.AddCommand(checkpointsCmd)
}
