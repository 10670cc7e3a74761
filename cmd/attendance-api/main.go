package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "attendance-reconciler/docs"
	"attendance-reconciler/internal/api"
	"attendance-reconciler/internal/api/handler"
	"attendance-reconciler/internal/config"
	"attendance-reconciler/internal/service"
	"attendance-reconciler/internal/store"
	"attendance-reconciler/pkg/router"
	"attendance-reconciler/pkg/utils"

	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("attendance-api", pflag.ContinueOnError)
	configPath := flagSet.String("config", os.Getenv("ATTENDANCE_CONFIG"), "path to YAML config file")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger := cfg.Logger()

	// Init output dir and DB
	outputs := utils.NewOutputManager(cfg.Storage.OutputDir, cfg.Server.APIPrefix)
	if err := outputs.EnsureOutputDirExists(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
		return err
	}
	history, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer history.Close()

	svc := service.NewAttendanceService(history, outputs, logger)
	h := handler.NewAttendanceHandler(svc, cfg.AppName, cfg.Server.APIPrefix, cfg.RequestTimeout(), logger)

	// Create router and register API routes
	r := router.New(logger)
	r.AllowOrigins(cfg.Server.AllowedOrigins...)
	api.RegisterRoutes(r, h, cfg.Server.APIPrefix)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting", "app", cfg.AppName, "output_dir", cfg.Storage.OutputDir, "database", cfg.Storage.DatabasePath)
	return r.Start(ctx, cfg.Server.Addr)
}
