package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage the database schema",
}

var schemaInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create or upgrade the schema",
	Long: `Apply every pending migration of the configured backend.
Every command does this on start; this one only reports the result.`,
	Args: cobra.NoArgs,
	RunE: runSchemaInit,
}

var schemaStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List applied migrations",
	Args:  cobra.NoArgs,
	RunE:  runSchemaStatus,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.AddCommand(schemaInitCmd)
	schemaCmd.AddCommand(schemaStatusCmd)
}

func runSchemaInit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	versions, err := a.store.MigrationsApplied(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Schema ready (%s, %d migrations applied)\n", a.store.Dialect(), len(versions))
	return nil
}

func runSchemaStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	versions, err := a.store.MigrationsApplied(ctx)
	if err != nil {
		return err
	}
	for _, v := range versions {
		fmt.Println(v)
	}
	return nil
}
