package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show corpus counts",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().Bool("json", false, "Output as JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.store.Stats(ctx)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(stats)
	}
	fmt.Printf("Backend:        %s\n", a.store.Dialect())
	fmt.Printf("Images:         %d\n", stats.Images)
	fmt.Printf("Faces:          %d\n", stats.Faces)
	fmt.Printf("Labelled faces: %d\n", stats.LabelledFaces)
	fmt.Printf("Similarities:   %d\n", stats.Similarities)
	if stats.EmbeddingDim > 0 {
		fmt.Printf("Embedding dim:  %d\n", stats.EmbeddingDim)
	}
	return nil
}
