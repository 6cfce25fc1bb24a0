package main

import (
	"fmt"
	"os"

	"wisefido-exercise/internal/common/logger"
	"wisefido-exercise/internal/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const serviceName = "wisefido-exercise"

var (
	version    = "dev"
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   serviceName,
	Short: "Exercise session aggregator and training backend uploader",
	Long: `wisefido-exercise follows a wearable's exercise updates, aggregates heart-rate
and step-rate series for the running session and uploads the session summary
to the training backend when the user ends the exercise.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (optional, env overrides)")
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig 加载配置并创建 logger
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, log, nil
}
