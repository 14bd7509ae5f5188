package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sqlstress/internal/dummy"
	"sqlstress/internal/pool"
)

// --- Dummy Subcommand ---
var dummyCmd = &cobra.Command{
	Use:   "dummy",
	Short: "Create a seeded SQLite demo database",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		rows, _ := cmd.Flags().GetInt("rows")
		logger := settings.NewLogger(os.Stderr)

		db, err := pool.Open(cmd.Context(), pool.Settings{
			Name:    "sqlstress-dummy",
			Driver:  pool.DriverSQLite,
			DSN:     path,
			MaxPool: 1,
			Logger:  logger,
		})
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer db.Close()

		n, err := dummy.Seed(cmd.Context(), db.SQL(), rows)
		if err != nil {
			return err
		}
		logger.Info("demo database ready", "path", path, "inserted", n)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✅ %s ready (%d products inserted)\n\nTry:\n", path, n)
		for _, q := range dummy.SampleQueries {
			fmt.Fprintf(out, "  sqlstress --dsn %s --sql %q\n", path, q)
		}
		return nil
	},
}

func init() {
	dummyCmd.Flags().String("path", "sqlstress.db", "SQLite file to create or top up")
	dummyCmd.Flags().Int("rows", 1000, "Number of demo products")
}
