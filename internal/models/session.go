package models

import "time"

// SessionStats 会话标量统计，收到统计摘要时整体覆盖
type SessionStats struct {
	AvgPulse    int   `json:"avg_pulse"`
	MinPulse    int   `json:"min_pulse"`
	MaxPulse    int   `json:"max_pulse"`
	AvgStepRate int64 `json:"avg_step_rate"`
	TotalSteps  int   `json:"total_steps"`
}

// Session 一次运动的聚合数据
type Session struct {
	ID          string            `json:"session_id"`
	StartEpoch  time.Duration     `json:"-"`
	PulseSeries []TimeSeriesPoint `json:"pulse_series"`
	StepSeries  []TimeSeriesPoint `json:"step_series"`
	Stats       SessionStats      `json:"stats"`
}

// LastPulse 返回最后一个心率点
func (s *Session) LastPulse() (TimeSeriesPoint, bool) {
	if len(s.PulseSeries) == 0 {
		return TimeSeriesPoint{}, false
	}
	return s.PulseSeries[len(s.PulseSeries)-1], true
}

// SessionSummary 上传到训练后台的会话摘要（字段名与后台接口一致）
type SessionSummary struct {
	Date              string            `json:"date"`
	DurationInSeconds int64             `json:"durationInSeconds"`
	AvgPulse          int               `json:"avgPulse"`
	MaxPulse          int               `json:"maxPulse"`
	MinPulse          int               `json:"minPulse"`
	AvgSpeed          int64             `json:"avgSpeed"`
	SumSteps          int               `json:"sumSteps"`
	PulseData         []TimeSeriesPoint `json:"pulseData"`
	SpeedData         []TimeSeriesPoint `json:"speedData"`
}

// Credentials 登录凭据
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthToken 登录返回的 Bearer token，只在一次提交内有效
type AuthToken string
