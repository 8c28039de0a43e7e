package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facegraph/internal/database"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Find faces connected to a face in the similarity graph",
	Long: `Match queries read the graph built by 'similarities rebuild'; a match
distance can never exceed the threshold that graph was built with.`,
}

var matchNearestCmd = &cobra.Command{
	Use:   "nearest [face-id]",
	Short: "List faces closest to a face",
	Long: `List faces closer than --threshold to the given face. Without a face id
the first face of a reference-source still image is used.

Examples:
  facegraph match nearest 1234 --threshold 0.45
  facegraph match nearest --limit 20`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMatchNearest,
}

var matchWatchlistCmd = &cobra.Command{
	Use:   "watchlist [face-id]",
	Short: "List watchlist faces close to a face",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMatchWatchlist,
}

var matchSelfCmd = &cobra.Command{
	Use:   "self",
	Short: "List secondary-source faces of the reference person",
	Long: `List secondary-source faces that share a cluster with a reference face
and are directly connected to it in the similarity graph.`,
	Args: cobra.NoArgs,
	RunE: runMatchSelf,
}

func init() {
	rootCmd.AddCommand(matchCmd)
	matchCmd.AddCommand(matchNearestCmd)
	matchCmd.AddCommand(matchWatchlistCmd)
	matchCmd.AddCommand(matchSelfCmd)

	for _, c := range []*cobra.Command{matchNearestCmd, matchWatchlistCmd} {
		c.Flags().Float64("threshold", 0, "Maximum distance, exclusive (default from profile)")
	}
	for _, c := range []*cobra.Command{matchNearestCmd, matchWatchlistCmd, matchSelfCmd} {
		c.Flags().Int("limit", 0, "Maximum results (default from profile)")
		c.Flags().Bool("json", false, "Output as JSON")
	}
}

// resolveFaceID returns the face id argument, or the reference face when none is given.
func resolveFaceID(cmd *cobra.Command, a *app, args []string) (int64, error) {
	if len(args) == 1 {
		return parseFaceID(args[0])
	}
	ref, err := a.store.ReferenceFace(cmd.Context())
	if errors.Is(err, database.ErrNotFound) {
		return 0, fmt.Errorf("no face id given and no %s reference face stored", a.store.Roles().Reference)
	}
	if err != nil {
		return 0, err
	}
	return ref.ID, nil
}

type matchQuery func(a *app, faceID int64, threshold float64, limit int) ([]database.FaceMatch, error)

func runMatch(cmd *cobra.Command, args []string, query matchQuery) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	faceID, err := resolveFaceID(cmd, a, args)
	if err != nil {
		return err
	}
	threshold := floatFlagOr(cmd, "threshold", a.cfg.Profile.Defaults.MatchThreshold)

	matches, err := query(a, faceID, threshold, a.limitFlag(cmd))
	if err != nil {
		return err
	}
	return reportMatches(cmd, matches)
}

func reportMatches(cmd *cobra.Command, matches []database.FaceMatch) error {
	if mustGetBool(cmd, "json") {
		return outputJSON(matches)
	}
	if len(matches) == 0 {
		fmt.Println("No matches found")
		return nil
	}
	return printMatches(os.Stdout, matches)
}

func runMatchNearest(cmd *cobra.Command, args []string) error {
	return runMatch(cmd, args, func(a *app, faceID int64, threshold float64, limit int) ([]database.FaceMatch, error) {
		return a.store.NearestMatches(cmd.Context(), faceID, threshold, limit)
	})
}

func runMatchWatchlist(cmd *cobra.Command, args []string) error {
	return runMatch(cmd, args, func(a *app, faceID int64, threshold float64, limit int) ([]database.FaceMatch, error) {
		return a.store.WatchlistMatches(cmd.Context(), faceID, threshold, limit)
	})
}

func runMatchSelf(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	matches, err := a.store.SelfMatches(ctx, a.limitFlag(cmd))
	if err != nil {
		return err
	}
	return reportMatches(cmd, matches)
}
