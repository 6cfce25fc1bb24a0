package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"wisefido-exercise/internal/common/mqtt"
	"wisefido-exercise/internal/config"
	"wisefido-exercise/internal/metrics"
	"wisefido-exercise/internal/models"

	"go.uber.org/zap"
)

const sourceMQTT = "mqtt"

// mqttDeliverTimeout 回调中等待事件通道的上限，需小于 MQTT keepalive
const mqttDeliverTimeout = 5 * time.Second

// Subscriber MQTT 订阅能力（*mqtt.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// MQTTSource 订阅穿戴设备更新主题，解码为 ExerciseEvent
type MQTTSource struct {
	config     *config.Config
	subscriber Subscriber
	out        chan<- *models.ExerciseEvent
	logger     *zap.Logger

	deliverTimeout time.Duration

	mu  sync.RWMutex
	ctx context.Context
}

// NewMQTTSource 创建 MQTT 事件来源
func NewMQTTSource(cfg *config.Config, subscriber Subscriber, out chan<- *models.ExerciseEvent, logger *zap.Logger) *MQTTSource {
	return &MQTTSource{
		config:     cfg,
		subscriber: subscriber,
		out:        out,
		logger:     logger.With(zap.String("component", "mqtt_source")),

		deliverTimeout: mqttDeliverTimeout,
	}
}

// Name 来源名称
func (s *MQTTSource) Name() string {
	return sourceMQTT
}

// Start 订阅更新主题并等待 ctx 取消
func (s *MQTTSource) Start(ctx context.Context) error {
	topic := s.config.Exercise.UpdateTopic
	if topic == "" {
		return errors.New("exercise update topic not configured")
	}

	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	if err := s.subscriber.Subscribe(topic, s.config.MQTT.QoS, s.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to exercise updates: %w", err)
	}

	s.logger.Info("MQTT source started", zap.String("topic", topic))

	<-ctx.Done()
	return nil
}

// Stop 取消订阅
func (s *MQTTSource) Stop(ctx context.Context) error {
	if topic := s.config.Exercise.UpdateTopic; topic != "" {
		if err := s.subscriber.Unsubscribe(topic); err != nil {
			s.logger.Error("Failed to unsubscribe", zap.Error(err))
		}
	}
	s.logger.Info("MQTT source stopped")
	return nil
}

// handleMessage 处理一条更新消息
func (s *MQTTSource) handleMessage(topic string, payload []byte) error {
	s.logger.Debug("Received MQTT message",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	// 1. 解析事件
	ev, err := models.ParseExerciseEvent(payload)
	if err != nil {
		metrics.EventsDropped.WithLabelValues(sourceMQTT, "invalid").Inc()
		return fmt.Errorf("failed to parse exercise event: %w", err)
	}

	// 2. 补全设备 ID
	if ev.DeviceID == "" {
		ev.DeviceID = deviceFromTopic(topic)
	}

	// 3. 投递
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()
	if ctx == nil {
		ctx = context.Background()
	}
	// 阻塞 paho 回调会拖住入站路由，等待有上限
	if err := deliverWithin(ctx, s.out, sourceMQTT, ev, s.deliverTimeout); err != nil {
		return fmt.Errorf("failed to deliver %s event: %w", ev.Type, err)
	}
	return nil
}
