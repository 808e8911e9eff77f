package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/linguaflow/linguaflow/internal/core/config"
	"github.com/linguaflow/linguaflow/internal/core/db"
	"github.com/linguaflow/linguaflow/internal/store"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List tables in the configured database",
	RunE:  runTables,
}

func init() {
	rootCmd.AddCommand(tablesCmd)
}

func runTables(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := newLogger(cfg.LogLevel, cfg.LogFormat)

	explicitURL := dbURL
	if explicitURL == "" {
		explicitURL = cfg.DatabaseURL
	}
	dbCfg, err := config.ResolveDatabase(explicitURL, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to resolve database: %w", err)
	}

	factory := db.NewFactory(db.Options{
		Backend:    dbCfg.Backend,
		Params:     dbCfg.Params,
		Production: dbCfg.Production,
		Policy:     db.DefaultFallbackPolicy(dbCfg.Production),
		Schema:     store.Schema(),
		Logger:     log,
	})

	return factory.WithHandle(context.Background(), func(h *db.Handle) error {
		rows, err := h.Execute("SELECT name FROM sqlite_master WHERE type='table'")
		if err != nil {
			return err
		}
		names := make([]string, 0, rows.Len())
		for _, row := range rows.FetchAll() {
			names = append(names, row.String("name"))
		}
		sort.Strings(names)

		fmt.Printf("%s database, %d tables:\n", factory.Backend(), len(names))
		for _, name := range names {
			fmt.Printf("  %s\n", name)
		}
		return nil
	})
}
