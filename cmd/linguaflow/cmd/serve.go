package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/linguaflow/linguaflow/internal/core/config"
	"github.com/linguaflow/linguaflow/internal/core/db"
	"github.com/linguaflow/linguaflow/internal/store"
	"github.com/linguaflow/linguaflow/internal/web"
)

const Version = "0.1.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "HTTP server host")
	serveCmd.Flags().Int("port", 0, "HTTP server port")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("host") {
		host, _ := cmd.Flags().GetString("host")
		cfg.Host = host
	}
	if cmd.Flags().Changed("port") {
		port, _ := cmd.Flags().GetInt("port")
		cfg.Port = port
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
	log.Info("database backend selected",
		"backend", dbCfg.Backend.String(),
		"production", dbCfg.Production,
	)

	factory := db.NewFactory(db.Options{
		Backend:      dbCfg.Backend,
		Params:       dbCfg.Params,
		Production:   dbCfg.Production,
		Policy:       db.DefaultFallbackPolicy(dbCfg.Production),
		Schema:       store.Schema(),
		FallbackPath: filepath.Join(cfg.DataDir, config.DefaultDatabaseFile),
		Logger:       log,
	})

	queries, err := store.New()
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	err = factory.WithHandle(ctx, func(h *db.Handle) error {
		created, err := queries.EnsureAdminUser(h)
		if err != nil {
			return err
		}
		if created {
			log.Warn("default admin account created, change its password")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to bootstrap admin user: %w", err)
	}

	server := web.New(web.Options{
		Addr:           fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		RequestTimeout: cfg.RequestTimeout,
		Factory:        factory,
		Store:          queries,
		Logger:         log,
	})

	log.Info("starting LinguaFlow", "version", Version, "host", cfg.Host, "port", cfg.Port)
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		log.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
