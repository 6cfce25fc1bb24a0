package consumer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"wisefido-exercise/internal/metrics"
	"wisefido-exercise/internal/models"

	"go.uber.org/zap"
)

const sourceFile = "file"

// maxLineSize 单行事件的最大长度
const maxLineSize = 1 << 20

// FileSource 从 JSON Lines 录制文件回放设备事件
// 读完后 Start 返回，不关闭输出通道
type FileSource struct {
	reader io.Reader
	out    chan<- *models.ExerciseEvent
	logger *zap.Logger

	// 解析失败的行数
	Skipped int
}

// NewFileSource 创建文件回放来源
func NewFileSource(reader io.Reader, out chan<- *models.ExerciseEvent, logger *zap.Logger) *FileSource {
	return &FileSource{
		reader: reader,
		out:    out,
		logger: logger.With(zap.String("component", "file_source")),
	}
}

// Name 来源名称
func (s *FileSource) Name() string {
	return sourceFile
}

// Start 逐行解析并投递，空行跳过，无效行记录后跳过
func (s *FileSource) Start(ctx context.Context) error {
	scanner := bufio.NewScanner(s.reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	delivered := 0
	for scanner.Scan() {
		line++
		payload := bytes.TrimSpace(scanner.Bytes())
		if len(payload) == 0 {
			continue
		}

		ev, err := models.ParseExerciseEvent(payload)
		if err != nil {
			s.Skipped++
			metrics.EventsDropped.WithLabelValues(sourceFile, "invalid").Inc()
			s.logger.Warn("Skipping invalid event line", zap.Int("line", line), zap.Error(err))
			continue
		}
		if !deliver(ctx, s.out, sourceFile, ev) {
			return ctx.Err()
		}
		delivered++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read events at line %d: %w", line+1, err)
	}

	s.logger.Info("Event file replayed",
		zap.Int("delivered", delivered),
		zap.Int("skipped", s.Skipped),
	)
	return nil
}

// Stop 无需清理
func (s *FileSource) Stop(ctx context.Context) error {
	return nil
}
