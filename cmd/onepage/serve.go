package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonathan/resume-onepage/internal/config"
	"github.com/jonathan/resume-onepage/internal/server"
	"github.com/jonathan/resume-onepage/internal/server/ratelimit"
	"github.com/spf13/cobra"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes the export endpoints: GET /export/{loadout}, POST /export and GET /export/{loadout}/history.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	srvCfg, err := serverConfig(cfg, a.logger)
	if err != nil {
		return err
	}

	deps := server.Deps{Exporter: a.service}
	if a.database != nil {
		deps.History = a.database
		deps.Database = a.database
	}

	return server.New(srvCfg, deps).Run(ctx)
}

// serverConfig derives the HTTP server settings, including token
// verification unless auth is disabled.
func serverConfig(cfg *config.Config, logger *slog.Logger) (server.Config, error) {
	srvCfg := server.Config{
		Addr:          cfg.Address(),
		ExportTimeout: time.Duration(cfg.ExportTimeout),
		RateLimit:     ratelimit.LoadConfig(os.Getenv),
		Logger:        logger,
	}
	if cfg.AuthDisabled {
		return srvCfg, nil
	}

	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return server.Config{}, fmt.Errorf("failed to load JWT config (set AUTH_DISABLED=true for local use): %w", err)
	}
	srvCfg.Validator = server.NewJWTVerifier(jwtCfg).AsTokenValidator()
	return srvCfg, nil
}
