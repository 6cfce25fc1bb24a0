package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ExerciseState 穿戴设备运动服务上报的运动状态
type ExerciseState string

const (
	StatePreparing    ExerciseState = "PREPARING"
	StateActive       ExerciseState = "ACTIVE"
	StateUserPausing  ExerciseState = "USER_PAUSING"
	StateUserPaused   ExerciseState = "USER_PAUSED"
	StateAutoPaused   ExerciseState = "AUTO_PAUSED"
	StateUserResuming ExerciseState = "USER_RESUMING"
	StateUserEnding   ExerciseState = "USER_ENDING"
	StateUserEnded    ExerciseState = "USER_ENDED"
	StateAutoEnded    ExerciseState = "AUTO_ENDED"
	StateTerminated   ExerciseState = "TERMINATED"
	StateEnded        ExerciseState = "ENDED"
)

// IsEnded 是否处于结束（含结束中）状态；零值视为结束
func (s ExerciseState) IsEnded() bool {
	switch s {
	case "", StateUserEnding, StateEnded, StateUserEnded, StateAutoEnded, StateTerminated:
		return true
	}
	return false
}

// IsPaused 是否处于暂停（含暂停中）状态
func (s ExerciseState) IsPaused() bool {
	switch s {
	case StateUserPausing, StateUserPaused, StateAutoPaused:
		return true
	}
	return false
}

// EventType 事件类型
type EventType string

const (
	EventState    EventType = "state"
	EventMetrics  EventType = "metrics"
	EventLaps     EventType = "laps"
	EventDuration EventType = "duration"
)

// ErrInvalidEvent 事件格式错误
var ErrInvalidEvent = errors.New("invalid exercise event")

// DataPoint 设备批量上报中的单个采样点
type DataPoint struct {
	Value  float64 `json:"value"`
	BootMs int64   `json:"boot_ms"`
}

// DeviceTimestamp 开机以来时长
func (p DataPoint) DeviceTimestamp() time.Duration {
	return time.Duration(p.BootMs) * time.Millisecond
}

// StatsPayload 平均/最小/最大统计
type StatsPayload struct {
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// TotalPayload 累计值
type TotalPayload struct {
	Total float64 `json:"total"`
}

// MetricsBatch 一次指标推送（对应设备端的最新指标容器）
type MetricsBatch struct {
	HeartRate           []DataPoint   `json:"heart_rate,omitempty"`
	StepsPerMinute      []DataPoint   `json:"steps_per_minute,omitempty"`
	HeartRateStats      *StatsPayload `json:"heart_rate_stats,omitempty"`
	StepsPerMinuteStats *StatsPayload `json:"steps_per_minute_stats,omitempty"`
	StepsTotal          *TotalPayload `json:"steps_total,omitempty"`
	DistanceTotal       *float64      `json:"distance_total,omitempty"` // 米
	CaloriesTotal       *float64      `json:"calories_total,omitempty"`
}

// LatestSamples 每种类型只取批次中的最后一个点（心率在前，步频在后）
func (b *MetricsBatch) LatestSamples() []SensorSample {
	var out []SensorSample
	if n := len(b.HeartRate); n > 0 {
		p := b.HeartRate[n-1]
		out = append(out, SensorSample{Kind: HeartRate, Value: p.Value, DeviceTimestamp: p.DeviceTimestamp()})
	}
	if n := len(b.StepsPerMinute); n > 0 {
		p := b.StepsPerMinute[n-1]
		out = append(out, SensorSample{Kind: StepRate, Value: p.Value, DeviceTimestamp: p.DeviceTimestamp()})
	}
	return out
}

// StatsSummaries 批次中携带的统计摘要
func (b *MetricsBatch) StatsSummaries() []StatsSummary {
	var out []StatsSummary
	if b.StepsPerMinuteStats != nil {
		out = append(out, StatsSummary{Kind: StepRateStats, Average: b.StepsPerMinuteStats.Average})
	}
	if b.HeartRateStats != nil {
		out = append(out, StatsSummary{
			Kind:    HeartRateStats,
			Average: b.HeartRateStats.Average,
			Min:     b.HeartRateStats.Min,
			Max:     b.HeartRateStats.Max,
		})
	}
	if b.StepsTotal != nil {
		out = append(out, StatsSummary{Kind: StepsTotal, Total: b.StepsTotal.Total})
	}
	return out
}

// DurationCheckpoint 活动时长检查点：在 CheckpointTime 时刻已累计的活动时长
type DurationCheckpoint struct {
	ActiveDurationMs int64 `json:"active_duration_ms"`
	CheckpointTime   int64 `json:"checkpoint_time"` // unix 毫秒
}

// DisplayDuration 计算显示用的已用时长；ACTIVE 时加上检查点之后流逝的时间
func (c DurationCheckpoint) DisplayDuration(now time.Time, state ExerciseState) time.Duration {
	active := time.Duration(c.ActiveDurationMs) * time.Millisecond
	if state != StateActive {
		return active
	}
	since := now.Sub(time.UnixMilli(c.CheckpointTime))
	if since < 0 {
		since = 0
	}
	return active + since
}

// ExerciseEvent 设备推送的事件信封
type ExerciseEvent struct {
	Type     EventType           `json:"type"`
	DeviceID string              `json:"device_id,omitempty"`
	State    ExerciseState       `json:"state,omitempty"`
	Metrics  *MetricsBatch       `json:"metrics,omitempty"`
	Laps     *int                `json:"laps,omitempty"`
	Duration *DurationCheckpoint `json:"duration,omitempty"`
}

// ParseExerciseEvent 解析并校验事件
func ParseExerciseEvent(payload []byte) (*ExerciseEvent, error) {
	var ev ExerciseEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Validate 检查事件类型与载荷是否匹配
func (e *ExerciseEvent) Validate() error {
	switch e.Type {
	case EventState:
		if e.State == "" {
			return fmt.Errorf("%w: state event without state", ErrInvalidEvent)
		}
	case EventMetrics:
		if e.Metrics == nil {
			return fmt.Errorf("%w: metrics event without metrics", ErrInvalidEvent)
		}
	case EventLaps:
		if e.Laps == nil {
			return fmt.Errorf("%w: laps event without laps", ErrInvalidEvent)
		}
	case EventDuration:
		if e.Duration == nil {
			return fmt.Errorf("%w: duration event without checkpoint", ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	return nil
}

// Action 用户意图
type Action string

const (
	ActionStart  Action = "start"
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
	ActionEnd    Action = "end"
	ActionLap    Action = "lap"
)

// ErrUnknownAction 未知的用户意图
var ErrUnknownAction = errors.New("unknown exercise action")

// ParseAction 解析用户意图
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionStart, ActionPause, ActionResume, ActionEnd, ActionLap:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Command 下发给穿戴设备运动服务的命令
type Command struct {
	Action   Action `json:"action"`
	DeviceID string `json:"device_id,omitempty"`
	IssuedAt int64  `json:"issued_at"` // unix 毫秒
}
