package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wisefido-exercise/internal/config"
	"wisefido-exercise/internal/consumer"
	"wisefido-exercise/internal/display"
	"wisefido-exercise/internal/export"
	"wisefido-exercise/internal/models"
	"wisefido-exercise/internal/service"
	"wisefido-exercise/internal/uploader"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var replayXLSX string

var replayCmd = &cobra.Command{
	Use:   "replay <events.jsonl>",
	Short: "Replay a recorded exercise, end it and upload the session",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayXLSX, "xlsx", "", "Also write the session workbook to this path")
	rootCmd.AddCommand(replayCmd)
}

// replayRun 一次回放：控制器已处理完文件中的全部事件
type replayRun struct {
	controller *service.ExerciseController
	surface    *display.MemorySurface
}

// replayEvents 把录制文件送入新的控制器，等待全部事件处理完
// submitter 为 nil 时不能结束运动
func replayEvents(ctx context.Context, cfg *config.Config, path string, submitter service.Submitter, log *zap.Logger) (*replayRun, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open events file: %w", err)
	}
	defer f.Close()

	events := make(chan *models.ExerciseEvent, cfg.Exercise.EventBuffer)
	surface := display.NewMemorySurface()
	controller := service.NewExerciseController(
		cfg,
		events,
		submitter,
		service.NewLogCommandPublisher(log),
		nil,
		display.MultiSurface{display.NewLogSurface(log), surface},
		log,
	)
	if err := controller.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start exercise controller: %w", err)
	}

	source := consumer.NewFileSource(f, events, log)
	srcErr := source.Start(ctx)
	close(events)
	if srcErr != nil {
		_ = controller.Stop(ctx)
		return nil, srcErr
	}

	select {
	case <-controller.Drained():
	case <-ctx.Done():
		_ = controller.Stop(context.Background())
		return nil, ctx.Err()
	}
	return &replayRun{controller: controller, surface: surface}, nil
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	if !cfg.BackendConfigured() {
		return errors.New("replay requires BACKEND_BASE_URL, BACKEND_USERNAME and BACKEND_PASSWORD")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run, err := replayEvents(ctx, cfg, args[0], service.NewUploader(cfg, log), log)
	if err != nil {
		return err
	}
	defer run.controller.Stop(context.Background())

	view := run.controller.Snapshot()
	if view.State.IsEnded() {
		return fmt.Errorf("recording leaves no running exercise to end (state %s)", view.State)
	}

	session, err := run.controller.CurrentSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to snapshot session: %w", err)
	}
	if replayXLSX != "" {
		if err := export.SaveWorkbook(replayXLSX, session, time.Now()); err != nil {
			return err
		}
	}

	if _, err := run.controller.Intent(ctx, models.ActionEnd); err != nil {
		return fmt.Errorf("failed to end exercise: %w", err)
	}
	task := run.controller.UploadTask()
	res, err := task.Wait(ctx)
	if err != nil {
		task.Cancel()
		return fmt.Errorf("upload interrupted: %w", err)
	}

	printResult(cmd.OutOrStdout(), res, run.surface.Current())
	if !res.OK() {
		return fmt.Errorf("upload failed: %w", res.Err)
	}
	return nil
}

func printResult(w io.Writer, res uploader.Result, readouts display.Readouts) {
	fmt.Fprintf(w, "session:   %s\n", res.SessionID)
	fmt.Fprintf(w, "outcome:   %s\n", uploader.Outcome(res.Err))
	fmt.Fprintf(w, "elapsed:   %s\n", res.Duration.Round(time.Millisecond))
	if res.Summary != nil {
		fmt.Fprintf(w, "date:      %s\n", res.Summary.Date)
		fmt.Fprintf(w, "duration:  %ds\n", res.Summary.DurationInSeconds)
		fmt.Fprintf(w, "points:    pulse=%d speed=%d\n", len(res.Summary.PulseData), len(res.Summary.SpeedData))
	}
	fmt.Fprintf(w, "readouts:  hr=%s cal=%s dist=%s laps=%s time=%s\n",
		readouts.HeartRate, readouts.Calories, readouts.Distance, readouts.Laps, readouts.Elapsed)
	if res.Err != nil {
		fmt.Fprintf(w, "error:     %v\n", res.Err)
	}
}
