package consumer

import (
	"context"
	"fmt"
	"time"

	rediscommon "wisefido-exercise/internal/common/redis"
	"wisefido-exercise/internal/config"
	"wisefido-exercise/internal/metrics"
	"wisefido-exercise/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const sourceStream = "stream"

// StreamSource Redis Streams 事件来源（消费者组），投递后 XACK
type StreamSource struct {
	config      *config.Config
	redisClient *redis.Client
	out         chan<- *models.ExerciseEvent
	logger      *zap.Logger

	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewStreamSource 创建 Streams 事件来源
func NewStreamSource(cfg *config.Config, redisClient *redis.Client, out chan<- *models.ExerciseEvent, logger *zap.Logger) *StreamSource {
	return &StreamSource{
		config:         cfg,
		redisClient:    redisClient,
		out:            out,
		logger:         logger.With(zap.String("component", "stream_source")),
		initialBackoff: time.Second,
		maxBackoff:     30 * time.Second,
	}
}

// Name 来源名称
func (s *StreamSource) Name() string {
	return sourceStream
}

// Start 创建消费者组并循环读取，直到 ctx 取消
func (s *StreamSource) Start(ctx context.Context) error {
	ex := s.config.Exercise
	if err := rediscommon.CreateConsumerGroup(ctx, s.redisClient, ex.UpdateStream, ex.ConsumerGroup); err != nil {
		return fmt.Errorf("failed to create consumer group for %s: %w", ex.UpdateStream, err)
	}

	s.logger.Info("Stream source started",
		zap.String("stream", ex.UpdateStream),
		zap.String("consumer_group", ex.ConsumerGroup),
		zap.String("consumer_name", ex.ConsumerName),
	)

	// 先重新投递上次关闭时留下的待确认消息
	if err := s.recoverPending(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Error("Failed to recover pending messages", zap.Error(err))
	}

	backoff := s.initialBackoff
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := s.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error("Failed to consume stream",
				zap.Error(err),
				zap.Duration("backoff", backoff),
			)

			// 指数退避
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
				backoff *= 2
				if backoff > s.maxBackoff {
					backoff = s.maxBackoff
				}
			}
			continue
		}
		backoff = s.initialBackoff
	}
}

// Stop Streams 来源随 ctx 退出，无需额外清理
func (s *StreamSource) Stop(ctx context.Context) error {
	s.logger.Info("Stream source stopped")
	return nil
}

// consume 读取一批消息并逐条处理
func (s *StreamSource) consume(ctx context.Context) error {
	ex := s.config.Exercise
	messages, err := rediscommon.ReadFromStream(ctx, s.redisClient, rediscommon.ReadArgs{
		Stream:   ex.UpdateStream,
		Group:    ex.ConsumerGroup,
		Consumer: ex.ConsumerName,
		Count:    ex.BatchSize,
		Block:    ex.ReadBlock,
	})
	if err != nil {
		return fmt.Errorf("failed to read from stream %s: %w", ex.UpdateStream, err)
	}

	for _, msg := range messages {
		if !s.processMessage(ctx, msg) {
			// 关闭中，未确认的消息留给下次消费
			return nil
		}
	}
	return nil
}

// recoverPending 按 ID 顺序读取本消费者的待确认消息并投递，直到读空
func (s *StreamSource) recoverPending(ctx context.Context) error {
	ex := s.config.Exercise
	cursor := rediscommon.PendingFrom
	recovered := 0
	for {
		messages, err := rediscommon.ReadFromStream(ctx, s.redisClient, rediscommon.ReadArgs{
			Stream:   ex.UpdateStream,
			Group:    ex.ConsumerGroup,
			Consumer: ex.ConsumerName,
			Count:    ex.BatchSize,
			Block:    -1,
			ID:       cursor,
		})
		if err != nil {
			return fmt.Errorf("failed to read pending messages from %s: %w", ex.UpdateStream, err)
		}
		if len(messages) == 0 {
			break
		}
		for _, msg := range messages {
			if !s.processMessage(ctx, msg) {
				return ctx.Err()
			}
			cursor = msg.ID
			recovered++
		}
	}

	if recovered > 0 {
		s.logger.Info("Recovered pending messages",
			zap.String("stream", ex.UpdateStream),
			zap.Int("count", recovered),
		)
	}
	return nil
}

// processMessage 解析并投递；返回 false 表示因关闭而未投递
func (s *StreamSource) processMessage(ctx context.Context, msg rediscommon.StreamMessage) bool {
	ex := s.config.Exercise

	ev, err := parseStreamMessage(msg)
	if err != nil {
		// 无法解析的消息直接确认，避免反复投递
		metrics.EventsDropped.WithLabelValues(sourceStream, "invalid").Inc()
		s.logger.Error("Failed to process message",
			zap.String("stream", msg.Stream),
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
		s.ack(ctx, msg.ID)
		return true
	}

	if !deliver(ctx, s.out, sourceStream, ev) {
		return false
	}
	s.ack(ctx, msg.ID)

	s.logger.Debug("Delivered exercise event",
		zap.String("stream", ex.UpdateStream),
		zap.String("message_id", msg.ID),
		zap.String("type", string(ev.Type)),
	)
	return true
}

func (s *StreamSource) ack(ctx context.Context, id string) {
	ex := s.config.Exercise
	if err := rediscommon.Ack(ctx, s.redisClient, ex.UpdateStream, ex.ConsumerGroup, id); err != nil {
		s.logger.Warn("Failed to ack message", zap.String("message_id", id), zap.Error(err))
	}
}

func parseStreamMessage(msg rediscommon.StreamMessage) (*models.ExerciseEvent, error) {
	data, ok := msg.Data()
	if !ok {
		return nil, fmt.Errorf("%w: message %s has no data field", models.ErrInvalidEvent, msg.ID)
	}
	return models.ParseExerciseEvent([]byte(data))
}
