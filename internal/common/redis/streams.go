package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// StreamMessage Redis Streams 消息
type StreamMessage struct {
	Stream string
	ID     string
	Values map[string]interface{}
}

// Data 返回消息中的 data 字段（JSON 字符串）
func (m StreamMessage) Data() (string, bool) {
	s, ok := m.Values["data"].(string)
	return s, ok
}

// ReadArgs XREADGROUP 参数
type ReadArgs struct {
	Stream   string
	Group    string
	Consumer string
	Count    int64
	Block    time.Duration // <0 不阻塞
	// ID 为空时读取新消息（">"）；"0" 等具体 ID 读取本消费者在该 ID 之后的待确认消息
	ID string
}

// PendingFrom 本消费者待确认消息的起始 ID
const PendingFrom = "0"


// PublishJSONToStream 序列化 data 并以 data/timestamp 两个字段写入 Stream
func PublishJSONToStream(ctx context.Context, client *redis.Client, stream string, data interface{}) (string, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stream payload: %w", err)
	}

	return client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"data":      string(jsonBytes),
			"timestamp": fmt.Sprintf("%d", time.Now().Unix()),
		},
	}).Result()
}

// ReadFromStream 通过消费者组读取消息；无消息时返回空切片
func ReadFromStream(ctx context.Context, client *redis.Client, args ReadArgs) ([]StreamMessage, error) {
	block := args.Block
	if block == 0 {
		// 0 在 Redis 中表示永久阻塞
		block = -1
	}
	id := args.ID
	if id == "" {
		id = ">"
	}

	streams, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    args.Group,
		Consumer: args.Consumer,
		Streams:  []string{args.Stream, id},
		Count:    args.Count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []StreamMessage{}, nil
		}
		return nil, err
	}

	var messages []StreamMessage
	for _, s := range streams {
		for _, msg := range s.Messages {
			messages = append(messages, StreamMessage{
				Stream: s.Stream,
				ID:     msg.ID,
				Values: msg.Values,
			})
		}
	}
	return messages, nil
}

// Ack 确认消息已处理
func Ack(ctx context.Context, client *redis.Client, stream, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return client.XAck(ctx, stream, group, ids...).Err()
}

// CreateConsumerGroup 创建消费者组（Stream 不存在时一并创建），组已存在视为成功
func CreateConsumerGroup(ctx context.Context, client *redis.Client, stream string, groupName string) error {
	err := client.XGroupCreateMkStream(ctx, stream, groupName, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}
