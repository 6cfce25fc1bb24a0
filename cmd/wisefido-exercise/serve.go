package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wisefido-exercise/internal/httpapi"
	"wisefido-exercise/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// shutdownTimeout 关闭时等待进行中上传的上限
const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Follow the wearable and serve the control API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.Info("Starting wisefido-exercise",
		zap.String("version", version),
		zap.String("config", configPath),
		zap.String("source", cfg.Exercise.Source),
	)

	svc, err := service.NewExerciseService(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create exercise service: %w", err)
	}

	router := httpapi.NewRouter(log)
	router.RegisterHealthRoutes(httpapi.NewHealthHandler(svc.HealthChecks(), log))
	router.RegisterExerciseRoutes(httpapi.NewExerciseHandler(svc.Controller(), log))
	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start exercise service: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-sigCh:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case serveErr = <-errCh:
		if serveErr != nil {
			log.Error("HTTP server failed", zap.Error(serveErr))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping HTTP server", zap.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping exercise service", zap.Error(err))
	}

	log.Info("wisefido-exercise stopped")
	return serveErr
}
