package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facegraph/internal/database"
)

var facesCmd = &cobra.Command{
	Use:   "faces",
	Short: "Inspect and export stored faces",
}

var facesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write face embeddings as JSON lines for an external clusterer",
	Long: `Write one {"face_id": N, "embedding": [...]} line per face whose image
comes from one of --sources.

Example:
  facegraph faces export --sources phone,photobooth > embeddings.jsonl`,
	Args: cobra.NoArgs,
	RunE: runFacesExport,
}

var facesShowCmd = &cobra.Command{
	Use:   "show <face-id>",
	Short: "Show a face with its image",
	Args:  cobra.ExactArgs(1),
	RunE:  runFacesShow,
}

func init() {
	rootCmd.AddCommand(facesCmd)
	facesCmd.AddCommand(facesExportCmd)
	facesCmd.AddCommand(facesShowCmd)

	facesExportCmd.Flags().StringSlice("sources", []string{string(database.SourcePhone)}, "Image sources to export")
}

type exportedFace struct {
	FaceID    int64     `json:"face_id"`
	Embedding []float64 `json:"embedding"`
}

func parseFaceID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid face id %q", arg)
	}
	return id, nil
}

func runFacesExport(cmd *cobra.Command, args []string) error {
	var sources []database.Source
	for _, s := range mustGetStringSlice(cmd, "sources") {
		src := database.Source(s)
		if !src.Valid() {
			return fmt.Errorf("unknown source %q", s)
		}
		sources = append(sources, src)
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	embeddings, err := a.store.ClusterableEmbeddings(ctx, sources)
	if err != nil {
		return err
	}

	out := bufio.NewWriter(os.Stdout)
	enc := json.NewEncoder(out)
	for _, e := range embeddings {
		if err := enc.Encode(exportedFace{FaceID: e.FaceID, Embedding: e.Embedding}); err != nil {
			return fmt.Errorf("encoding face %d: %w", e.FaceID, err)
		}
	}
	if err := out.Flush(); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Exported %d faces\n", len(embeddings))
	return nil
}

func runFacesShow(cmd *cobra.Command, args []string) error {
	faceID, err := parseFaceID(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	face, err := a.store.GetFace(ctx, faceID)
	if err != nil {
		return fmt.Errorf("face %d: %w", faceID, err)
	}
	return outputJSON(face)
}

// printFaces prints face details as a table.
func printFaces(out io.Writer, faces []database.FaceDetail) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FACE\tCONFIDENCE\tPOSE\tSOURCE\tGEO\tFILE")
	for _, f := range faces {
		fmt.Fprintf(w, "%d\t%.3f\t%s\t%s\t%s\t%s\n",
			f.ID, f.Confidence, formatPose(f.PoseCoef), f.Image.Source, formatGeotag(&f.Image), imageLabel(&f.Image))
	}
	return w.Flush()
}

// printMatches prints match candidates as a table.
func printMatches(out io.Writer, matches []database.FaceMatch) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FROM\tFACE\tDISTANCE\tCONFIDENCE\tPOSE\tSOURCE\tGEO\tFILE")
	for _, m := range matches {
		fmt.Fprintf(w, "%d\t%d\t%.4f\t%.3f\t%s\t%s\t%s\t%s\n",
			m.SourceFaceID, m.ID, m.Distance, m.Confidence, formatPose(m.PoseCoef), m.Image.Source,
			formatGeotag(&m.Image), imageLabel(&m.Image))
	}
	return w.Flush()
}

// formatGeotag renders the image coordinates, "-" when the image has none.
func formatGeotag(img *database.Image) string {
	if !img.HasGeotag() {
		return "-"
	}
	return fmt.Sprintf("%.5f,%.5f", *img.GPSLat, *img.GPSLon)
}

func formatPose(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *p)
}

// imageLabel is the file path, with the frame number for video frames.
func imageLabel(img *database.Image) string {
	if img.FrameNum != nil {
		return fmt.Sprintf("%s#%d", img.FilePath, *img.FrameNum)
	}
	return img.FilePath
}
