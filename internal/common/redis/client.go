package redis

import (
	"context"
	"fmt"
	"time"

	"wisefido-exercise/internal/common/config"

	"github.com/go-redis/redis/v8"
)

// connectTimeout 建连时 PING 的超时
const connectTimeout = 5 * time.Second

// Client Redis客户端类型别名
type Client = redis.Client

// Connect 创建客户端并 PING 确认可用；失败时关闭客户端
func Connect(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := Ping(pingCtx, client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Ping 健康检查
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// Close 关闭连接，nil 客户端直接返回
func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
