package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var profilePath string

var rootCmd = &cobra.Command{
	Use:   "facegraph",
	Short: "Face similarity graph over a corpus of photos and video frames",
	Long: `facegraph stores face embeddings produced by an external detector,
builds a similarity graph over every pair of faces and answers cluster
and match queries against it.

Configuration is read from the environment (and an optional .env file):
DATABASE_DRIVER (postgres, sqlite or mariadb), DATABASE_URL, LOG_MODE and
FACEGRAPH_PROFILE for source roles and default thresholds.`,
	SilenceUsage: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&profilePath, "profile", "", "Profile YAML overriding source roles and defaults (overrides FACEGRAPH_PROFILE)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
