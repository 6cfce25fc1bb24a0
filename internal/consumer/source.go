package consumer

import (
	"context"
	"errors"
	"strings"
	"time"

	"wisefido-exercise/internal/metrics"
	"wisefido-exercise/internal/models"
)

// Source 设备事件来源，Start 阻塞直到 ctx 取消
type Source interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// deliver 把事件送入有界通道；通道满时阻塞（背压），ctx 取消时放弃
func deliver(ctx context.Context, out chan<- *models.ExerciseEvent, source string, ev *models.ExerciseEvent) bool {
	select {
	case out <- ev:
		metrics.EventsReceived.WithLabelValues(source, string(ev.Type)).Inc()
		return true
	case <-ctx.Done():
		metrics.EventsDropped.WithLabelValues(source, "shutdown").Inc()
		return false
	}
}

// errEventBufferFull 事件通道在限定时间内一直是满的
var errEventBufferFull = errors.New("exercise event buffer full")

// deliverWithin 与 deliver 相同，但最多等待 timeout；超时丢弃事件
func deliverWithin(ctx context.Context, out chan<- *models.ExerciseEvent, source string, ev *models.ExerciseEvent, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out <- ev:
		metrics.EventsReceived.WithLabelValues(source, string(ev.Type)).Inc()
		return nil
	case <-timer.C:
		metrics.EventsDropped.WithLabelValues(source, "full").Inc()
		return errEventBufferFull
	case <-ctx.Done():
		metrics.EventsDropped.WithLabelValues(source, "shutdown").Inc()
		return ctx.Err()
	}
}

// deviceFromTopic 从 exercise/{device_id}/update 中取设备 ID
func deviceFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[len(parts)-2]
}
