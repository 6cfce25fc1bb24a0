package display

import (
	"sync"

	"go.uber.org/zap"
)

// Readouts 当前展示给用户的读数
type Readouts struct {
	HeartRate string `json:"heart_rate"`
	Calories  string `json:"calories"`
	Distance  string `json:"distance"`
	Laps      string `json:"laps"`
	Elapsed   string `json:"elapsed"`
}

// EmptyReadouts 会话开始时的读数
func EmptyReadouts() Readouts {
	return Readouts{
		HeartRate: EmptyMetric,
		Calories:  EmptyMetric,
		Distance:  EmptyMetric,
		Laps:      "0",
		Elapsed:   FormatElapsed(0, true),
	}
}

// Surface 读数展示面
type Surface interface {
	Render(r Readouts)
}

// LogSurface 把读数变化写入日志（无界面部署）
type LogSurface struct {
	logger *zap.Logger

	mu   sync.Mutex
	last Readouts
}

// NewLogSurface 创建日志展示面
func NewLogSurface(logger *zap.Logger) *LogSurface {
	return &LogSurface{logger: logger.With(zap.String("component", "display"))}
}

// Render 只有读数变化时才记录，每 200ms 的计时刷新不会刷屏
func (s *LogSurface) Render(r Readouts) {
	s.mu.Lock()
	prev := s.last
	s.last = r
	s.mu.Unlock()

	if r == prev {
		return
	}
	// 仅计时变化时用 Debug
	level := s.logger.Info
	if onlyElapsedChanged(prev, r) {
		level = s.logger.Debug
	}
	level("Readouts updated",
		zap.String("heart_rate", r.HeartRate),
		zap.String("calories", r.Calories),
		zap.String("distance", r.Distance),
		zap.String("laps", r.Laps),
		zap.String("elapsed", r.Elapsed),
	)
}

func onlyElapsedChanged(prev, next Readouts) bool {
	prev.Elapsed = next.Elapsed
	return prev == next
}

// MemorySurface 保存最近一次读数，供 HTTP 快照和测试使用
type MemorySurface struct {
	mu      sync.RWMutex
	current Readouts
	renders int
}

// NewMemorySurface 创建内存展示面
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{current: EmptyReadouts()}
}

// Render 保存读数
func (s *MemorySurface) Render(r Readouts) {
	s.mu.Lock()
	s.current = r
	s.renders++
	s.mu.Unlock()
}

// Current 最近一次读数
func (s *MemorySurface) Current() Readouts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Renders 累计渲染次数
func (s *MemorySurface) Renders() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.renders
}

// MultiSurface 同时渲染到多个展示面
type MultiSurface []Surface

// Render 依次渲染
func (m MultiSurface) Render(r Readouts) {
	for _, s := range m {
		s.Render(r)
	}
}
