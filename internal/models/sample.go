package models

import "time"

// SampleKind 传感器采样类型
type SampleKind int

const (
	HeartRate SampleKind = iota
	StepRate
)

func (k SampleKind) String() string {
	switch k {
	case HeartRate:
		return "heart_rate"
	case StepRate:
		return "step_rate"
	default:
		return "unknown"
	}
}

// SensorSample 带设备时间戳（开机以来时长）的单个读数
type SensorSample struct {
	Kind            SampleKind
	Value           float64
	DeviceTimestamp time.Duration
}

// TimeSeriesPoint 降采样后的时间序列点，Time 为距会话起点的秒数
type TimeSeriesPoint struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// StatsKind 统计摘要类型
type StatsKind int

const (
	HeartRateStats StatsKind = iota
	StepRateStats
	StepsTotal
)

func (k StatsKind) String() string {
	switch k {
	case HeartRateStats:
		return "heart_rate_stats"
	case StepRateStats:
		return "step_rate_stats"
	case StepsTotal:
		return "steps_total"
	default:
		return "unknown"
	}
}

// StatsSummary 设备端周期性下发的统计摘要
// HeartRateStats 使用 Average/Min/Max，StepRateStats 使用 Average，StepsTotal 使用 Total
type StatsSummary struct {
	Kind    StatsKind
	Average float64
	Min     float64
	Max     float64
	Total   float64
}
