package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var isEval bool

var recordCmd = &cobra.Command{
	Use:   "record [entries.json]",
	Short: "Append a training-step log document",
	Long: `Record reads one JSON object (from the given file, or stdin) and appends
it to the metrics collection, tagged with the current task identity.
Without a TASK_ID in the environment the command records nothing.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}

		entries, err := readEntries(path)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		ctx := context.Background()
		saver, cleanup, err := newSaver(ctx)
		if err != nil {
			fmt.Printf("Failed to init recorder: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		saver.SaveLogs(ctx, entries)
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics [data.json]",
	Short: "Append an evaluation summary or custom metric snapshot",
	Long: `Metrics reads one JSON object (from the given file, or stdin) and records
it. With --eval each value is a list of per-item correctness indicators and
the stored value per category is the percentage of correct items; the
document goes to the general collection. Without --eval the object is
recorded as-is into the custom collection.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}

		data, err := readEntries(path)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		ctx := context.Background()
		saver, cleanup, err := newSaver(ctx)
		if err != nil {
			fmt.Printf("Failed to init recorder: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		saver.SaveMetrics(ctx, data, isEval)
	},
}

func init() {
	RootCmd.AddCommand(recordCmd)
	RootCmd.AddCommand(metricsCmd)
	metricsCmd.Flags().BoolVar(&isEval, "eval", false, "Treat values as correctness indicators and record percentage scores")
}
