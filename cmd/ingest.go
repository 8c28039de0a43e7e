package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/facegraph/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [records.jsonl]",
	Short: "Load detector output into the store",
	Long: `Read face detector output, one JSON object per image or video frame,
and store images and faces. Reads stdin when no file is given.

Files already present in the store are skipped. Video files keep at most
--max-frames frames.

Examples:
  facegraph ingest detections.jsonl
  detector ./photos | facegraph ingest --probe`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().Bool("probe", false, "Read dimensions and EXIF from files that exist locally")
	ingestCmd.Flags().Int("max-frames", 0, "Frames kept per video file (default from profile)")
	ingestCmd.Flags().Bool("json", false, "Output summary as JSON")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	jsonOutput := mustGetBool(cmd, "json")

	var in io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open records: %w", err)
		}
		defer f.Close()
		in = f
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	maxFrames := intFlagOr(cmd, "max-frames", a.cfg.Profile.Defaults.VideoMaxFrames)
	if maxFrames <= 0 {
		return fmt.Errorf("--max-frames must be positive, got %d", maxFrames)
	}

	opts := []ingest.Option{
		ingest.WithLogger(a.logger),
		ingest.WithMaxFrames(maxFrames),
		ingest.WithProbe(mustGetBool(cmd, "probe")),
	}

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Ingesting"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("records"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetWriter(os.Stderr),
		)
		opts = append(opts, ingest.WithRecordCallback(func(int) { bar.Add(1) }))
	}

	sum, err := ingest.New(a.store, opts...).Ingest(ctx, in)
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	if jsonOutput {
		return outputJSON(sum)
	}
	fmt.Printf("Records:    %d\n", sum.Records)
	fmt.Printf("Images:     %d\n", sum.Images)
	fmt.Printf("Faces:      %d\n", sum.Faces)
	fmt.Printf("Skipped:    %d (already ingested)\n", sum.Skipped)
	fmt.Printf("Duplicates: %d\n", sum.Duplicates)
	fmt.Printf("Capped:     %d (video frame limit)\n", sum.Capped)
	fmt.Printf("Invalid:    %d\n", sum.Invalid)
	return nil
}
