package cmd

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/facegraph/internal/constants"
	"github.com/kozaktomas/facegraph/internal/simgraph"
)

var similaritiesCmd = &cobra.Command{
	Use:   "similarities",
	Short: "Manage the face similarity graph",
}

var similaritiesRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Recompute every similarity edge",
	Long: `Compute the Euclidean distance between every pair of stored faces and
replace the stored graph with the pairs closer than --threshold.

Memory grows with the square of the face count. The previous graph stays
in place if anything fails.

Examples:
  facegraph similarities rebuild
  facegraph similarities rebuild --threshold 0.45 --workers 4`,
	Args: cobra.NoArgs,
	RunE: runSimilaritiesRebuild,
}

func init() {
	rootCmd.AddCommand(similaritiesCmd)
	similaritiesCmd.AddCommand(similaritiesRebuildCmd)

	similaritiesRebuildCmd.Flags().Float64("threshold", 0, "Maximum Euclidean distance of an edge (default from profile)")
	similaritiesRebuildCmd.Flags().Int("workers", constants.WorkerPoolSize, "Concurrent row bands")
	similaritiesRebuildCmd.Flags().Bool("json", false, "Output result as JSON")
}

func runSimilaritiesRebuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	jsonOutput := mustGetBool(cmd, "json")

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	threshold := floatFlagOr(cmd, "threshold", a.cfg.Profile.Defaults.SimilarityThreshold)

	opts := []simgraph.Option{
		simgraph.WithLogger(a.logger),
		simgraph.WithWorkers(mustGetInt(cmd, "workers")),
	}

	var (
		mu  sync.Mutex
		bar *progressbar.ProgressBar
	)
	if !jsonOutput {
		opts = append(opts, simgraph.WithProgress(func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("Comparing faces"),
					progressbar.OptionShowCount(),
					progressbar.OptionSetItsString("rows"),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionSetPredictTime(true),
					progressbar.OptionFullWidth(),
					progressbar.OptionSetWriter(os.Stderr),
				)
			}
			bar.Set(done)
		}))
	}

	res, err := simgraph.NewBuilder(a.store, a.store, opts...).Rebuild(ctx, threshold)
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(res)
	}
	fmt.Printf("Rebuilt similarity graph %s\n", res.RunID)
	fmt.Printf("  Threshold: %.3f\n", res.Threshold)
	fmt.Printf("  Faces:     %d\n", res.Faces)
	fmt.Printf("  Edges:     %d\n", res.Edges)
	fmt.Printf("  Took:      %s\n", res.Duration.Round(time.Millisecond))
	return nil
}
