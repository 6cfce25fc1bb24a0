package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"wisefido-exercise/internal/config"
	"wisefido-exercise/internal/models"

	"go.uber.org/zap"
)

// commandQoS 命令至少送达一次
const commandQoS byte = 1

const deviceIDPlaceholder = "{device_id}"

// ErrNoTargetDevice 命令主题需要设备 ID，但还不知道目标设备
var ErrNoTargetDevice = errors.New("no target device for command")

// CommandPublisher 向穿戴设备下发命令
type CommandPublisher interface {
	Publish(ctx context.Context, cmd models.Command) error
}

// MQTTPublisher MQTT 发布能力（*mqtt.Client 实现）
type MQTTPublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTCommandPublisher 通过 MQTT 下发命令
type MQTTCommandPublisher struct {
	client MQTTPublisher
	topic  string
	logger *zap.Logger
}

// NewMQTTCommandPublisher 创建 MQTT 命令发布者
func NewMQTTCommandPublisher(cfg *config.Config, client MQTTPublisher, logger *zap.Logger) *MQTTCommandPublisher {
	return &MQTTCommandPublisher{
		client: client,
		topic:  cfg.Exercise.CommandTopic,
		logger: logger.With(zap.String("component", "command_publisher")),
	}
}

// Publish 序列化并发布命令
func (p *MQTTCommandPublisher) Publish(ctx context.Context, cmd models.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	topic := p.topic
	if strings.Contains(topic, deviceIDPlaceholder) {
		if cmd.DeviceID == "" {
			return ErrNoTargetDevice
		}
		topic = strings.ReplaceAll(topic, deviceIDPlaceholder, cmd.DeviceID)
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}
	if err := p.client.Publish(topic, commandQoS, false, payload); err != nil {
		return err
	}

	p.logger.Info("Command relayed",
		zap.String("action", string(cmd.Action)),
		zap.String("device_id", cmd.DeviceID),
		zap.String("topic", topic),
	)
	return nil
}

// LogCommandPublisher 没有设备连接时只记录命令（replay、离线调试）
type LogCommandPublisher struct {
	logger *zap.Logger
}

// NewLogCommandPublisher 创建日志命令发布者
func NewLogCommandPublisher(logger *zap.Logger) *LogCommandPublisher {
	return &LogCommandPublisher{logger: logger.With(zap.String("component", "command_publisher"))}
}

// Publish 记录命令
func (p *LogCommandPublisher) Publish(_ context.Context, cmd models.Command) error {
	p.logger.Info("Command not relayed, no wearable connection",
		zap.String("action", string(cmd.Action)),
		zap.String("device_id", cmd.DeviceID),
	)
	return nil
}
