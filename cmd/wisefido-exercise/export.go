package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"wisefido-exercise/internal/export"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export <events.jsonl>",
	Short: "Replay a recorded exercise and write its series to an xlsx workbook",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "session.xlsx", "Workbook path")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 导出不结束运动，不需要训练后台
	run, err := replayEvents(ctx, cfg, args[0], nil, log)
	if err != nil {
		return err
	}
	defer run.controller.Stop(context.Background())

	session, err := run.controller.CurrentSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to snapshot session: %w", err)
	}
	if err := export.SaveWorkbook(exportOutput, session, time.Now()); err != nil {
		return err
	}

	log.Info("Session workbook written",
		zap.String("session_id", session.ID),
		zap.String("path", exportOutput),
		zap.Int("pulse_points", len(session.PulseSeries)),
		zap.Int("step_points", len(session.StepSeries)),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "%s: session %s, %d pulse / %d step points\n",
		exportOutput, session.ID, len(session.PulseSeries), len(session.StepSeries))
	return nil
}
