package aggregator

import (
	"time"

	"wisefido-exercise/internal/models"

	"github.com/google/uuid"
)

const (
	// minPointGap 与上一个保留点的最小间隔（秒），不超过该间隔的采样被推到 last+declusterStep
	minPointGap = 0.5
	// declusterStep 过密采样的时间偏移（秒）
	declusterStep = 1.0
)

// SessionAggregator 会话指标聚合器
// 把不规则的传感器采样转成降采样的心率/步频序列，并保存设备下发的统计摘要。
// 不做 I/O，也不加锁：只允许在单个投递 goroutine 中调用。
type SessionAggregator struct {
	newID func() string

	sessionID   string
	started     bool
	startEpoch  time.Duration
	pulseSeries []models.TimeSeriesPoint
	stepSeries  []models.TimeSeriesPoint
	stats       models.SessionStats
}

// NewSessionAggregator 创建聚合器，并开启第一个会话
func NewSessionAggregator() *SessionAggregator {
	a := &SessionAggregator{newID: uuid.NewString}
	a.Reset()
	return a
}

// Reset 清空序列与统计，下一次采样将重新确定会话起点
func (a *SessionAggregator) Reset() {
	a.sessionID = a.newID()
	a.started = false
	a.startEpoch = 0
	a.pulseSeries = nil
	a.stepSeries = nil
	a.stats = models.SessionStats{}
}

// SessionID 当前会话 ID
func (a *SessionAggregator) SessionID() string {
	return a.sessionID
}

// Observe 记录一个采样
func (a *SessionAggregator) Observe(sample models.SensorSample) {
	if !a.started {
		a.started = true
		a.startEpoch = sample.DeviceTimestamp
	}

	elapsed := float64((sample.DeviceTimestamp - a.startEpoch).Milliseconds()) / 1000.0

	switch sample.Kind {
	case models.HeartRate:
		a.pulseSeries = appendDownsampled(a.pulseSeries, elapsed, sample.Value)
	case models.StepRate:
		a.stepSeries = appendDownsampled(a.stepSeries, elapsed, sample.Value)
	}
}

// appendDownsampled 最小间隔降采样：间隔不超过 minPointGap 的点仍然保留，
// 但时间坐标取上一个点 + declusterStep，保证序列在高采样率下严格递增
func appendDownsampled(series []models.TimeSeriesPoint, elapsed, value float64) []models.TimeSeriesPoint {
	if len(series) == 0 {
		return append(series, models.TimeSeriesPoint{Time: elapsed, Value: value})
	}
	last := series[len(series)-1]
	if elapsed-last.Time > minPointGap {
		return append(series, models.TimeSeriesPoint{Time: elapsed, Value: value})
	}
	return append(series, models.TimeSeriesPoint{Time: last.Time + declusterStep, Value: value})
}

// ApplyStatsSummary 用设备统计摘要覆盖对应的标量（截断取整，不做校验）
func (a *SessionAggregator) ApplyStatsSummary(summary models.StatsSummary) {
	switch summary.Kind {
	case models.HeartRateStats:
		a.stats.AvgPulse = int(summary.Average)
		a.stats.MaxPulse = int(summary.Max)
		a.stats.MinPulse = int(summary.Min)
	case models.StepRateStats:
		a.stats.AvgStepRate = int64(summary.Average)
	case models.StepsTotal:
		a.stats.TotalSteps = int(summary.Total)
	}
}

// Stats 当前统计
func (a *SessionAggregator) Stats() models.SessionStats {
	return a.stats
}

// PointCounts 心率/步频序列的点数
func (a *SessionAggregator) PointCounts() (pulse, step int) {
	return len(a.pulseSeries), len(a.stepSeries)
}

// CurrentSession 返回当前会话快照（切片为副本）
func (a *SessionAggregator) CurrentSession() models.Session {
	return models.Session{
		ID:          a.sessionID,
		StartEpoch:  a.startEpoch,
		PulseSeries: clonePoints(a.pulseSeries),
		StepSeries:  clonePoints(a.stepSeries),
		Stats:       a.stats,
	}
}

func clonePoints(src []models.TimeSeriesPoint) []models.TimeSeriesPoint {
	dst := make([]models.TimeSeriesPoint, len(src))
	copy(dst, src)
	return dst
}
