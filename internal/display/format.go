package display

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// EmptyMetric 尚无数据时显示的占位符
const EmptyMetric = "--"

// FormatHeartRate 心率取整显示
func FormatHeartRate(bpm float64) string {
	return fmt.Sprintf("%d", int64(math.Round(bpm)))
}

// FormatCalories 卡路里，例如 "312 cal"
func FormatCalories(kcal float64) string {
	return fmt.Sprintf("%d cal", int64(math.Round(kcal)))
}

// FormatDistance 距离（米）转为公里，保留两位小数
func FormatDistance(meters float64) string {
	return fmt.Sprintf("%.2f km", meters/1000)
}

// FormatLaps 圈数
func FormatLaps(laps int) string {
	return fmt.Sprintf("%d", laps)
}

// FormatElapsed 已用时长，例如 "1h02m03s"；不足一小时省略小时，withSeconds 为 false 时省略秒
func FormatElapsed(d time.Duration, withSeconds bool) string {
	if d < 0 {
		d = 0
	}
	hours := int64(d / time.Hour)
	minutes := int64(d/time.Minute) % 60
	seconds := int64(d/time.Second) % 60

	var sb strings.Builder
	if hours > 0 {
		fmt.Fprintf(&sb, "%dh", hours)
	}
	fmt.Fprintf(&sb, "%02dm", minutes)
	if withSeconds {
		fmt.Fprintf(&sb, "%02ds", seconds)
	}
	return sb.String()
}
