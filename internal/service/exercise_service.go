package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"wisefido-exercise/internal/common/mqtt"
	rediscommon "wisefido-exercise/internal/common/redis"
	"wisefido-exercise/internal/config"
	"wisefido-exercise/internal/consumer"
	"wisefido-exercise/internal/display"
	"wisefido-exercise/internal/models"
	"wisefido-exercise/internal/uploader"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ExerciseService 运动会话服务：事件来源 + 控制器 + 上传
type ExerciseService struct {
	config      *config.Config
	logger      *zap.Logger
	redisClient *redis.Client
	mqttClient  *mqtt.Client
	source      consumer.Source
	controller  *ExerciseController

	cancelSource context.CancelFunc
	wg           sync.WaitGroup
}

// NewExerciseService 创建运动会话服务
func NewExerciseService(cfg *config.Config, logger *zap.Logger) (*ExerciseService, error) {
	s := &ExerciseService{
		config: cfg,
		logger: logger,
	}

	// 初始化Redis（结果流、Streams 来源）
	if cfg.Redis.Enabled() {
		client, err := rediscommon.Connect(context.Background(), &cfg.Redis)
		if err != nil {
			return nil, err
		}
		s.redisClient = client
	}

	// 初始化MQTT（更新订阅、命令下发）
	if cfg.MQTT.Enabled() {
		client, err := mqtt.NewClient(&cfg.MQTT, logger)
		if err != nil {
			_ = rediscommon.Close(s.redisClient)
			return nil, err
		}
		s.mqttClient = client
	}

	events := make(chan *models.ExerciseEvent, cfg.Exercise.EventBuffer)

	// 事件来源
	switch cfg.Exercise.Source {
	case config.SourceMQTT:
		if s.mqttClient == nil {
			s.closeClients()
			return nil, errors.New("mqtt source requires an MQTT broker")
		}
		s.source = consumer.NewMQTTSource(cfg, s.mqttClient, events, logger)
	case config.SourceStream:
		if s.redisClient == nil {
			s.closeClients()
			return nil, errors.New("stream source requires redis")
		}
		s.source = consumer.NewStreamSource(cfg, s.redisClient, events, logger)
	}

	// 命令下发
	var commands CommandPublisher = NewLogCommandPublisher(logger)
	if s.mqttClient != nil {
		commands = NewMQTTCommandPublisher(cfg, s.mqttClient, logger)
	}

	// 上传结果流
	var results ResultPublisher
	if s.redisClient != nil && cfg.Exercise.ResultStream != "" {
		results = NewRedisResultPublisher(s.redisClient, cfg.Exercise.ResultStream, logger)
	}

	s.controller = NewExerciseController(
		cfg,
		events,
		NewUploader(cfg, logger),
		commands,
		results,
		display.NewLogSurface(logger),
		logger,
	)
	return s, nil
}

// NewUploader 由配置创建训练后台客户端
func NewUploader(cfg *config.Config, logger *zap.Logger) *uploader.Client {
	return uploader.NewClient(uploader.Config{
		BaseURL: cfg.Backend.BaseURL,
		Credentials: models.Credentials{
			Username: cfg.Backend.Username,
			Password: cfg.Backend.Password,
		},
		LoginPath:  cfg.Backend.LoginPath,
		UploadPath: cfg.Backend.UploadPath,
		Timeout:    cfg.Backend.Timeout,
	}, logger)
}

// Controller 运动控制器
func (s *ExerciseService) Controller() *ExerciseController {
	return s.controller
}

// HealthChecks 依赖连接检查
func (s *ExerciseService) HealthChecks() map[string]func(ctx context.Context) error {
	checks := make(map[string]func(ctx context.Context) error)
	if s.redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return rediscommon.Ping(ctx, s.redisClient)
		}
	}
	if s.mqttClient != nil {
		checks["mqtt"] = func(context.Context) error {
			if !s.mqttClient.IsConnected() {
				return errors.New("not connected")
			}
			return nil
		}
	}
	return checks
}

// Start 启动服务
func (s *ExerciseService) Start(ctx context.Context) error {
	s.logger.Info("Starting exercise service components",
		zap.String("source", s.config.Exercise.Source),
	)

	// 启动控制器
	if err := s.controller.Start(ctx); err != nil {
		return fmt.Errorf("failed to start exercise controller: %w", err)
	}

	// 启动事件来源
	if s.source != nil {
		sourceCtx, cancel := context.WithCancel(ctx)
		s.cancelSource = cancel
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.source.Start(sourceCtx); err != nil {
				s.logger.Error("Exercise source stopped with error",
					zap.String("source", s.source.Name()),
					zap.Error(err),
				)
			}
		}()
	}

	s.logger.Info("Exercise service started successfully")
	return nil
}

// Stop 停止服务：先停来源，再等待上传，最后关闭连接
func (s *ExerciseService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping exercise service")

	if s.source != nil {
		if err := s.source.Stop(ctx); err != nil {
			s.logger.Error("Error stopping exercise source", zap.Error(err))
		}
	}
	if s.cancelSource != nil {
		s.cancelSource()
	}
	s.wg.Wait()

	if err := s.controller.Stop(ctx); err != nil {
		s.logger.Error("Error stopping exercise controller", zap.Error(err))
	}

	s.closeClients()
	s.logger.Info("Exercise service stopped")
	return nil
}

func (s *ExerciseService) closeClients() {
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if err := rediscommon.Close(s.redisClient); err != nil {
		s.logger.Error("Error closing Redis client", zap.Error(err))
	}
}
