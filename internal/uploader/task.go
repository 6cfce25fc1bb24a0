package uploader

import (
	"context"
	"time"

	"wisefido-exercise/internal/metrics"
	"wisefido-exercise/internal/models"

	"go.uber.org/zap"
)

// Result 一次提交的结果；Err 为 nil 表示上传成功
type Result struct {
	SessionID string
	Summary   *models.SessionSummary
	Body      string
	Err       error
	Duration  time.Duration
}

// OK 是否上传成功
func (r Result) OK() bool {
	return r.Err == nil
}

// Task 后台提交任务句柄，调用方可以等待或取消
type Task struct {
	sessionID string
	cancel    context.CancelFunc
	done      chan struct{}
	result    Result
}

// SessionID 任务对应的会话
func (t *Task) SessionID() string {
	return t.sessionID
}

// Done 任务结束时关闭
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Result 非阻塞读取结果；任务未结束时第二个返回值为 false
func (t *Task) Result() (Result, bool) {
	select {
	case <-t.done:
		return t.result, true
	default:
		return Result{}, false
	}
}

// Wait 等待任务结束或 ctx 到期
func (t *Task) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Cancel 取消进行中的 HTTP 请求
func (t *Task) Cancel() {
	t.cancel()
}

// Submit 在后台依次执行 生成摘要 -> 登录 -> 上传
// 登录失败时不会请求上传接口。任务生命周期受 ctx 约束。
func (c *Client) Submit(ctx context.Context, session models.Session) *Task {
	taskCtx, cancel := context.WithCancel(ctx)
	t := &Task{
		sessionID: session.ID,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	metrics.UploadsInFlight.Inc()
	go func() {
		defer cancel()
		defer metrics.UploadsInFlight.Dec()

		start := time.Now()
		res := c.run(taskCtx, session)
		res.Duration = time.Since(start)

		metrics.UploadsTotal.WithLabelValues(Outcome(res.Err)).Inc()
		metrics.UploadDuration.Observe(res.Duration.Seconds())

		t.result = res
		close(t.done)
	}()

	return t
}

func (c *Client) run(ctx context.Context, session models.Session) Result {
	res := Result{SessionID: session.ID}
	log := c.logger.With(zap.String("session_id", session.ID))

	// 1. 生成摘要
	summary, err := DeriveSummary(session, c.now())
	if err != nil {
		log.Warn("Session not uploaded", zap.Error(err))
		res.Err = &Failure{Stage: StageDerive, Kind: KindPrecondition, Message: err.Error(), Err: err}
		return res
	}
	res.Summary = &summary

	// 2. 登录；失败则跳过上传
	token, err := c.Authenticate(ctx)
	if err != nil {
		log.Error("Authentication failed, upload skipped", zap.Error(err))
		res.Err = err
		return res
	}

	// 3. 上传
	body, err := c.Upload(ctx, summary, token)
	if err != nil {
		log.Error("Session upload failed", zap.Error(err))
		res.Err = err
		return res
	}
	res.Body = body

	log.Info("Session uploaded",
		zap.String("date", summary.Date),
		zap.Int64("duration_in_seconds", summary.DurationInSeconds),
		zap.Int("pulse_points", len(summary.PulseData)),
		zap.Int("speed_points", len(summary.SpeedData)),
	)
	return res
}
