package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	rediscommon "wisefido-exercise/internal/common/redis"
	"wisefido-exercise/internal/uploader"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// UploadReport 一次上传的结果，写入结果流供下游消费
type UploadReport struct {
	SessionID         string `json:"session_id"`
	DeviceID          string `json:"device_id,omitempty"`
	Outcome           string `json:"outcome"`
	Error             string `json:"error,omitempty"`
	StatusCode        int    `json:"status_code,omitempty"`
	Date              string `json:"date,omitempty"`
	DurationInSeconds int64  `json:"duration_in_seconds"`
	PulsePoints       int    `json:"pulse_points"`
	SpeedPoints       int    `json:"speed_points"`
	ElapsedMs         int64  `json:"elapsed_ms"`
	FinishedAt        int64  `json:"finished_at"` // unix 毫秒
}

// NewUploadReport 由任务结果生成报告
func NewUploadReport(res uploader.Result, deviceID string, finishedAt time.Time) UploadReport {
	report := UploadReport{
		SessionID:  res.SessionID,
		DeviceID:   deviceID,
		Outcome:    uploader.Outcome(res.Err),
		ElapsedMs:  res.Duration.Milliseconds(),
		FinishedAt: finishedAt.UnixMilli(),
	}
	if res.Err != nil {
		report.Error = res.Err.Error()
		var f *uploader.Failure
		if errors.As(res.Err, &f) {
			report.StatusCode = f.StatusCode
		}
	}
	if res.Summary != nil {
		report.Date = res.Summary.Date
		report.DurationInSeconds = res.Summary.DurationInSeconds
		report.PulsePoints = len(res.Summary.PulseData)
		report.SpeedPoints = len(res.Summary.SpeedData)
	}
	return report
}

// ResultPublisher 发布上传结果
type ResultPublisher interface {
	PublishResult(ctx context.Context, report UploadReport) error
}

// RedisResultPublisher 把上传结果写入 Redis Stream
type RedisResultPublisher struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

// NewRedisResultPublisher 创建结果流发布者
func NewRedisResultPublisher(client *redis.Client, stream string, logger *zap.Logger) *RedisResultPublisher {
	return &RedisResultPublisher{
		client: client,
		stream: stream,
		logger: logger.With(zap.String("component", "result_publisher")),
	}
}

// PublishResult 写入结果流
func (p *RedisResultPublisher) PublishResult(ctx context.Context, report UploadReport) error {
	streamID, err := rediscommon.PublishJSONToStream(ctx, p.client, p.stream, report)
	if err != nil {
		return fmt.Errorf("failed to publish upload result: %w", err)
	}

	p.logger.Debug("Published upload result",
		zap.String("stream", p.stream),
		zap.String("stream_id", streamID),
		zap.String("session_id", report.SessionID),
		zap.String("outcome", report.Outcome),
	)
	return nil
}
