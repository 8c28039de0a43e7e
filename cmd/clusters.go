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

var clustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "Query and label face clusters",
}

var clustersRankCmd = &cobra.Command{
	Use:   "rank",
	Short: "List the largest confident clusters of primary-source faces",
	Long: `List clusters of primary-source faces whose mean detection confidence
exceeds --confidence, largest first.

Examples:
  facegraph clusters rank --limit 10
  facegraph clusters rank --geotag --confidence 0.9`,
	Args: cobra.NoArgs,
	RunE: runClustersRank,
}

var clustersMembersCmd = &cobra.Command{
	Use:   "members <cluster-id>",
	Short: "List the most confident faces of a cluster",
	Args:  cobra.ExactArgs(1),
	RunE:  runClustersMembers,
}

var clustersClearCmd = &cobra.Command{
	Use:   "clear <cluster-id>",
	Short: "Remove a cluster label from every face carrying it",
	Args:  cobra.ExactArgs(1),
	RunE:  runClustersClear,
}

var clustersAssignCmd = &cobra.Command{
	Use:   "assign [labels.jsonl]",
	Short: "Write cluster labels produced by an external clusterer",
	Long: `Read JSON lines of {"face_id": N, "cluster_id": M} and store the labels
in one transaction. Reads stdin when no file is given.

Example:
  facegraph faces export --sources phone | clusterer | facegraph clusters assign`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClustersAssign,
}

var clustersWatchlistCmd = &cobra.Command{
	Use:   "watchlist",
	Short: "List clusters where the watchlist source exceeds a share of members",
	Args:  cobra.NoArgs,
	RunE:  runClustersWatchlist,
}

func init() {
	rootCmd.AddCommand(clustersCmd)
	clustersCmd.AddCommand(clustersRankCmd)
	clustersCmd.AddCommand(clustersMembersCmd)
	clustersCmd.AddCommand(clustersClearCmd)
	clustersCmd.AddCommand(clustersAssignCmd)
	clustersCmd.AddCommand(clustersWatchlistCmd)

	clustersRankCmd.Flags().Float64("confidence", 0, "Minimum mean confidence, exclusive (default from profile)")
	clustersRankCmd.Flags().Bool("geotag", false, "Only count faces from geotagged images")
	clustersRankCmd.Flags().Int("limit", 0, "Maximum clusters (default from profile)")
	clustersRankCmd.Flags().Bool("json", false, "Output as JSON")

	clustersMembersCmd.Flags().Bool("geotag", false, "Only faces from geotagged images")
	clustersMembersCmd.Flags().Int("limit", 0, "Maximum faces (default from profile)")
	clustersMembersCmd.Flags().Bool("json", false, "Output as JSON")

	clustersWatchlistCmd.Flags().Float64("fraction", 0, "Minimum watchlist share, exclusive (default from profile)")
	clustersWatchlistCmd.Flags().Bool("json", false, "Output as JSON")
}

func parseClusterID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid cluster id %q", arg)
	}
	return id, nil
}

func runClustersRank(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	confidence := floatFlagOr(cmd, "confidence", a.cfg.Profile.Defaults.ConfidenceThreshold)
	clusters, err := a.store.RankClusters(ctx, confidence, mustGetBool(cmd, "geotag"), a.limitFlag(cmd))
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(clusters)
	}
	if len(clusters) == 0 {
		fmt.Println("No clusters found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CLUSTER\tFACES\tMEAN CONFIDENCE")
	for _, c := range clusters {
		fmt.Fprintf(w, "%d\t%d\t%.3f\n", c.ClusterID, c.Count, c.MeanConfidence)
	}
	return w.Flush()
}

func runClustersMembers(cmd *cobra.Command, args []string) error {
	clusterID, err := parseClusterID(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	faces, err := a.store.ClusterMembers(ctx, clusterID, mustGetBool(cmd, "geotag"), a.limitFlag(cmd))
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(faces)
	}
	if len(faces) == 0 {
		fmt.Printf("Cluster %d has no primary-source faces\n", clusterID)
		return nil
	}
	return printFaces(os.Stdout, faces)
}

func runClustersClear(cmd *cobra.Command, args []string) error {
	clusterID, err := parseClusterID(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.store.ClearCluster(ctx, clusterID)
	if err != nil {
		return err
	}
	fmt.Printf("Cleared cluster %d from %d faces\n", clusterID, n)
	return nil
}

// readLabels parses one ClusterLabel per non-empty line.
func readLabels(r io.Reader) ([]database.ClusterLabel, error) {
	var labels []database.ClusterLabel
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var l database.ClusterLabel
		if err := json.Unmarshal(sc.Bytes(), &l); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		labels = append(labels, l)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	return labels, nil
}

func runClustersAssign(cmd *cobra.Command, args []string) error {
	var in io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open labels: %w", err)
		}
		defer f.Close()
		in = f
	}

	labels, err := readLabels(in)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.store.AssignClusters(ctx, labels)
	if err != nil {
		return err
	}
	fmt.Printf("Labelled %d of %d faces\n", n, len(labels))
	return nil
}

func runClustersWatchlist(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	fraction := floatFlagOr(cmd, "fraction", a.cfg.Profile.Defaults.DominanceFraction)
	rows, err := a.store.ClustersWithWatchlistDominance(ctx, fraction)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(rows)
	}
	if len(rows) == 0 {
		fmt.Printf("No cluster exceeds a watchlist share of %.2f\n", fraction)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CLUSTER\tTOTAL\tWATCHLIST\tOTHER\tRATE")
	for _, r := range rows {
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%.3f\n", r.ClusterID, r.TotalCount, r.WatchlistCount, r.OtherCount, r.WatchlistRate)
	}
	return w.Flush()
}
