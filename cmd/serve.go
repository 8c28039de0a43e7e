package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/facegraph/internal/simgraph"
	"github.com/kozaktomas/facegraph/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the JSON query API",
	Long: `Start the HTTP API serving cluster and match queries and graph rebuilds.
Host and port come from WEB_HOST and WEB_PORT unless set by flags.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if port := mustGetInt(cmd, "port"); port != 0 {
		a.cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		a.cfg.Web.Host = host
	}

	builder := simgraph.NewBuilder(a.store, a.store, simgraph.WithLogger(a.logger))
	server := web.NewServer(a.cfg, a.store, builder, a.logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	fmt.Printf("Serving facegraph API on http://%s\n", a.cfg.Web.Addr())
	fmt.Println("Press Ctrl+C to stop")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("starting server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("error during shutdown", zap.Error(err))
		return err
	}
	return <-errCh
}
