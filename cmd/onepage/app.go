package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jonathan/resume-onepage/internal/browser"
	"github.com/jonathan/resume-onepage/internal/config"
	"github.com/jonathan/resume-onepage/internal/db"
	"github.com/jonathan/resume-onepage/internal/export"
	"github.com/jonathan/resume-onepage/internal/latex"
	"github.com/jonathan/resume-onepage/internal/logging"
	"github.com/jonathan/resume-onepage/internal/oracle"
)

// app holds the long-lived dependencies shared by serve and export.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	database *db.DB
	pool     *browser.Pool
	service  *export.Service
}

// newApp loads configuration and wires the export service. The database
// is optional; without one only inline documents can be exported.
func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	logger, err := logging.New(logging.Config{Format: cfg.LogFormat, Level: cfg.LogLevel, Output: logOut})
	if err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}

	var store export.Store
	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.database = database
		store = database
	} else {
		logger.Warn("DATABASE_URL not set; stored loadouts and export history are unavailable")
	}

	compiler := latex.NewCompiler(cfg.PDFLaTeXPath)
	if err := compiler.Available(); err != nil {
		logger.Warn("pdflatex unavailable; ats-classic exports will fail", slog.String("error", err.Error()))
	}
	pages := oracle.NewLaTeXOracle(compiler, nil, logger)

	a.pool = browser.NewPool(browser.Config{
		ExecPath:    cfg.ChromePath,
		MaxSessions: cfg.MaxBrowserSessions,
		Logger:      logger,
	})
	chrome := oracle.NewChromeOracle(oracle.FromBrowserPool(a.pool), logger)

	a.service = export.NewService(export.Config{
		ProbeTimeout:  time.Duration(cfg.ProbeTimeout),
		ExportTimeout: time.Duration(cfg.ExportTimeout),
		Logger:        logger,
	}, store, pages, export.ChromeOverflow(chrome))

	return a, nil
}

// Close releases the browser and the database pool.
func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.database != nil {
		a.database.Close()
	}
}
