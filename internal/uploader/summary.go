package uploader

import (
	"time"

	"wisefido-exercise/internal/models"
)

// summaryDateLayout 后台要求的 dd.mm.yyyy
const summaryDateLayout = "02.01.2006"

// DeriveSummary 由会话快照生成上传摘要
// 时长为最后一个心率点的时间坐标截断取整；没有心率点时返回 ErrEmptyPulseSeries
func DeriveSummary(session models.Session, now time.Time) (models.SessionSummary, error) {
	last, ok := session.LastPulse()
	if !ok {
		return models.SessionSummary{}, ErrEmptyPulseSeries
	}

	pulse := session.PulseSeries
	if pulse == nil {
		pulse = []models.TimeSeriesPoint{}
	}
	speed := session.StepSeries
	if speed == nil {
		speed = []models.TimeSeriesPoint{}
	}

	return models.SessionSummary{
		Date:              now.Format(summaryDateLayout),
		DurationInSeconds: int64(last.Time),
		AvgPulse:          session.Stats.AvgPulse,
		MaxPulse:          session.Stats.MaxPulse,
		MinPulse:          session.Stats.MinPulse,
		AvgSpeed:          session.Stats.AvgStepRate,
		SumSteps:          session.Stats.TotalSteps,
		PulseData:         pulse,
		SpeedData:         speed,
	}, nil
}
