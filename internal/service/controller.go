package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"wisefido-exercise/internal/aggregator"
	"wisefido-exercise/internal/config"
	"wisefido-exercise/internal/display"
	"wisefido-exercise/internal/metrics"
	"wisefido-exercise/internal/models"
	"wisefido-exercise/internal/uploader"

	"go.uber.org/zap"
)

var (
	// ErrUploadInFlight 上一次会话仍在上传
	ErrUploadInFlight = errors.New("previous session upload still in flight")
	// ErrExerciseNotActive 当前没有进行中的运动
	ErrExerciseNotActive = errors.New("no exercise in progress")
	// ErrControllerStopped 控制器未运行
	ErrControllerStopped = errors.New("exercise controller is not running")
)

// 上传状态
const (
	UploadInFlight = "in_flight"
)

// resultPublishTimeout 写结果流的超时
const resultPublishTimeout = 2 * time.Second

// Submitter 会话上传（*uploader.Client 实现）
type Submitter interface {
	Submit(ctx context.Context, session models.Session) *uploader.Task
}

// IntentResult 用户意图的处理结果
type IntentResult struct {
	Action          models.Action        `json:"action"`
	Applied         bool                 `json:"applied"` // false 表示当前状态下无需操作
	State           models.ExerciseState `json:"state"`
	SessionID       string               `json:"session_id,omitempty"`
	UploadSubmitted bool                 `json:"upload_submitted"`
}

// UploadStatus 最近一次上传的状态
type UploadStatus struct {
	SessionID   string    `json:"session_id"`
	Status      string    `json:"status"` // in_flight / success / <stage>_<kind>
	Error       string    `json:"error,omitempty"`
	ElapsedMs   int64     `json:"elapsed_ms,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// SessionView 会话只读视图
type SessionView struct {
	SessionID   string               `json:"session_id"`
	DeviceID    string               `json:"device_id,omitempty"`
	State       models.ExerciseState `json:"state"`
	Laps        int                  `json:"laps"`
	Readouts    display.Readouts     `json:"readouts"`
	Stats       models.SessionStats  `json:"stats"`
	PulsePoints int                  `json:"pulse_points"`
	StepPoints  int                  `json:"step_points"`
	Upload      *UploadStatus        `json:"upload,omitempty"`
}

// ExerciseController 运动控制器
// 单个 goroutine 依次处理设备事件、用户意图、计时刷新和上传完成，
// 聚合器只在该 goroutine 中访问。
type ExerciseController struct {
	config     *config.Config
	events     <-chan *models.ExerciseEvent
	requests   chan func()
	aggregator *aggregator.SessionAggregator
	uploader   Submitter
	commands   CommandPublisher
	results    ResultPublisher
	surface    display.Surface
	logger     *zap.Logger
	now        func() time.Time

	// 以下字段只在 run goroutine 中访问
	state      models.ExerciseState
	deviceID   string
	laps       int
	checkpoint *models.DurationCheckpoint
	heartRate  *float64
	calories   *float64
	distance   *float64
	readouts   display.Readouts
	task       *uploader.Task
	upload     *UploadStatus
	chrono     *time.Ticker

	mu       sync.RWMutex
	view     SessionView
	lastTask *uploader.Task

	uploadCtx    context.Context
	uploadCancel context.CancelFunc
	drained      chan struct{}
	stopCh       chan struct{}
	doneCh       chan struct{}
	startOnce    sync.Once
	stopOnce     sync.Once
	started      bool
}

// NewExerciseController 创建运动控制器
// results 可以为 nil（不发布上传结果）
func NewExerciseController(
	cfg *config.Config,
	events <-chan *models.ExerciseEvent,
	submitter Submitter,
	commands CommandPublisher,
	results ResultPublisher,
	surface display.Surface,
	logger *zap.Logger,
) *ExerciseController {
	uploadCtx, uploadCancel := context.WithCancel(context.Background())
	c := &ExerciseController{
		config:       cfg,
		events:       events,
		requests:     make(chan func()),
		aggregator:   aggregator.NewSessionAggregator(),
		uploader:     submitter,
		commands:     commands,
		results:      results,
		surface:      surface,
		logger:       logger.With(zap.String("component", "exercise_controller")),
		now:          time.Now,
		state:        models.StateEnded,
		deviceID:     cfg.Exercise.DeviceID,
		readouts:     display.EmptyReadouts(),
		uploadCtx:    uploadCtx,
		uploadCancel: uploadCancel,
		drained:      make(chan struct{}),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	c.publishView()
	return c
}

// Start 启动事件循环（不阻塞）
func (c *ExerciseController) Start(ctx context.Context) error {
	c.startOnce.Do(func() {
		c.mu.Lock()
		c.started = true
		c.mu.Unlock()

		sessionID := c.aggregator.SessionID()
		c.surface.Render(c.readouts)
		go c.run(ctx)
		c.logger.Info("Exercise controller started",
			zap.String("session_id", sessionID),
			zap.Duration("chrono_tick", c.config.Exercise.ChronoTick),
		)
	})
	return nil
}

// Stop 停止事件循环，并等待进行中的上传；ctx 到期后取消上传
func (c *ExerciseController) Stop(ctx context.Context) error {
	c.mu.RLock()
	started := c.started
	c.mu.RUnlock()

	c.stopOnce.Do(func() { close(c.stopCh) })
	if started {
		<-c.doneCh
	}
	defer c.uploadCancel()

	// 事件循环已退出，此后可以直接访问 c.task
	task := c.task
	if task == nil {
		c.logger.Info("Exercise controller stopped")
		return nil
	}

	if _, err := task.Wait(ctx); err != nil {
		c.logger.Warn("Upload still in flight at shutdown, cancelling",
			zap.String("session_id", task.SessionID()),
		)
		task.Cancel()
		<-task.Done()
	}
	c.finishUpload()
	c.publishView()

	c.logger.Info("Exercise controller stopped", zap.String("session_id", task.SessionID()))
	return nil
}

// Drained 事件通道关闭且已全部处理后关闭
func (c *ExerciseController) Drained() <-chan struct{} {
	return c.drained
}

// Snapshot 当前会话视图
func (c *ExerciseController) Snapshot() SessionView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v := c.view
	if v.Upload != nil {
		u := *v.Upload
		v.Upload = &u
	}
	return v
}

// UploadTask 最近一次提交的上传任务，没有时为 nil
func (c *ExerciseController) UploadTask() *uploader.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastTask
}

// CurrentSession 在事件循环中读取当前会话快照
func (c *ExerciseController) CurrentSession(ctx context.Context) (models.Session, error) {
	var session models.Session
	err := c.do(ctx, func() {
		session = c.aggregator.CurrentSession()
	})
	return session, err
}

// Intent 处理用户意图
func (c *ExerciseController) Intent(ctx context.Context, action models.Action) (IntentResult, error) {
	var (
		result IntentResult
		ierr   error
	)
	if err := c.do(ctx, func() {
		result, ierr = c.handleIntent(ctx, action)
	}); err != nil {
		return IntentResult{}, err
	}
	return result, ierr
}

// do 把 fn 交给事件循环执行并等待完成
func (c *ExerciseController) do(ctx context.Context, fn func()) error {
	c.mu.RLock()
	started := c.started
	c.mu.RUnlock()
	if !started {
		return ErrControllerStopped
	}

	done := make(chan struct{})
	req := func() {
		defer close(done)
		fn()
	}

	select {
	case c.requests <- req:
	case <-c.doneCh:
		return ErrControllerStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *ExerciseController) run(ctx context.Context) {
	defer close(c.doneCh)
	defer c.stopChrono()

	events := c.events
	if events == nil {
		close(c.drained)
	}

	for {
		var taskDone <-chan struct{}
		if c.task != nil {
			taskDone = c.task.Done()
		}
		var tick <-chan time.Time
		if c.chrono != nil {
			tick = c.chrono.C
		}

		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				close(c.drained)
				continue
			}
			c.handleEvent(ev)
		case req := <-c.requests:
			req()
		case <-tick:
			c.render()
		case <-taskDone:
			c.finishUpload()
		}
		c.publishView()
	}
}

// handleEvent 处理一条设备事件
func (c *ExerciseController) handleEvent(ev *models.ExerciseEvent) {
	if err := ev.Validate(); err != nil {
		c.logger.Warn("Dropping exercise event", zap.Error(err))
		return
	}
	if ev.DeviceID != "" && c.config.Exercise.DeviceID == "" {
		c.deviceID = ev.DeviceID
	}

	switch ev.Type {
	case models.EventState:
		c.applyState(ev.State)
	case models.EventMetrics:
		c.applyMetrics(ev.Metrics)
	case models.EventLaps:
		c.laps = *ev.Laps
	case models.EventDuration:
		cp := *ev.Duration
		c.checkpoint = &cp
	}
	c.render()
}

// applyState 状态切换：结束 -> 未结束时开启新会话；ACTIVE 时计时
func (c *ExerciseController) applyState(next models.ExerciseState) {
	prev := c.state
	if prev == next {
		return
	}
	if prev.IsEnded() && !next.IsEnded() {
		c.resetSession()
	}
	c.state = next

	if next == models.StateActive {
		c.startChrono()
	} else {
		c.stopChrono()
	}

	c.logger.Info("Exercise state changed",
		zap.String("session_id", c.aggregator.SessionID()),
		zap.String("from", string(prev)),
		zap.String("to", string(next)),
	)
}

// resetSession 开启新会话；时长检查点保留，可能先于状态到达
func (c *ExerciseController) resetSession() {
	c.aggregator.Reset()
	c.laps = 0
	c.heartRate = nil
	c.calories = nil
	c.distance = nil
	metrics.SessionsStarted.Inc()

	c.logger.Info("Exercise session started", zap.String("session_id", c.aggregator.SessionID()))
}

// applyMetrics 每种采样只取批次中的最后一个点
func (c *ExerciseController) applyMetrics(batch *models.MetricsBatch) {
	for _, sample := range batch.LatestSamples() {
		c.aggregator.Observe(sample)
		metrics.SamplesObserved.WithLabelValues(sample.Kind.String()).Inc()
		if sample.Kind == models.HeartRate {
			hr := sample.Value
			c.heartRate = &hr
		}
	}
	for _, summary := range batch.StatsSummaries() {
		c.aggregator.ApplyStatsSummary(summary)
	}
	if batch.CaloriesTotal != nil {
		v := *batch.CaloriesTotal
		c.calories = &v
	}
	if batch.DistanceTotal != nil {
		v := *batch.DistanceTotal
		c.distance = &v
	}
}

// render 生成读数并推送到展示面
func (c *ExerciseController) render() {
	r := display.EmptyReadouts()
	if c.heartRate != nil {
		r.HeartRate = display.FormatHeartRate(*c.heartRate)
	}
	if c.calories != nil {
		r.Calories = display.FormatCalories(*c.calories)
	}
	if c.distance != nil {
		r.Distance = display.FormatDistance(*c.distance)
	}
	r.Laps = display.FormatLaps(c.laps)
	if c.checkpoint != nil {
		r.Elapsed = display.FormatElapsed(c.checkpoint.DisplayDuration(c.now(), c.state), true)
	}

	c.readouts = r
	c.surface.Render(r)
}

func (c *ExerciseController) startChrono() {
	if c.chrono == nil {
		c.chrono = time.NewTicker(c.config.Exercise.ChronoTick)
	}
}

func (c *ExerciseController) stopChrono() {
	if c.chrono != nil {
		c.chrono.Stop()
		c.chrono = nil
	}
}

// handleIntent 处理用户意图（在事件循环中执行）
func (c *ExerciseController) handleIntent(ctx context.Context, action models.Action) (IntentResult, error) {
	result := IntentResult{Action: action, State: c.state, SessionID: c.aggregator.SessionID()}

	switch action {
	case models.ActionStart:
		if !c.state.IsEnded() {
			return result, nil
		}
	case models.ActionPause:
		if c.state.IsEnded() {
			return result, ErrExerciseNotActive
		}
		if c.state.IsPaused() {
			return result, nil
		}
	case models.ActionResume:
		if c.state.IsEnded() {
			return result, ErrExerciseNotActive
		}
		if !c.state.IsPaused() {
			return result, nil
		}
	case models.ActionLap:
		if c.state.IsEnded() {
			return result, ErrExerciseNotActive
		}
	case models.ActionEnd:
		return c.endExercise(ctx)
	default:
		return result, fmt.Errorf("%w: %q", models.ErrUnknownAction, action)
	}

	if err := c.relay(ctx, action); err != nil {
		return result, err
	}
	result.Applied = true
	return result, nil
}

// endExercise 提交上传，再下发结束命令；无论上传结果如何状态都进入 ENDED
func (c *ExerciseController) endExercise(ctx context.Context) (IntentResult, error) {
	result := IntentResult{Action: models.ActionEnd, State: c.state, SessionID: c.aggregator.SessionID()}

	if c.state.IsEnded() {
		return result, ErrExerciseNotActive
	}
	if c.task != nil {
		select {
		case <-c.task.Done():
			c.finishUpload()
		default:
			return result, ErrUploadInFlight
		}
	}

	// 1. 快照并提交上传
	session := c.aggregator.CurrentSession()
	task := c.uploader.Submit(c.uploadCtx, session)
	c.task = task
	c.upload = &UploadStatus{
		SessionID:   session.ID,
		Status:      UploadInFlight,
		SubmittedAt: c.now(),
	}
	c.mu.Lock()
	c.lastTask = task
	c.mu.Unlock()

	c.logger.Info("Session submitted for upload",
		zap.String("session_id", session.ID),
		zap.Int("pulse_points", len(session.PulseSeries)),
		zap.Int("step_points", len(session.StepSeries)),
	)

	// 2. 下发结束命令；失败只记录
	if err := c.relay(ctx, models.ActionEnd); err != nil {
		c.logger.Warn("Failed to relay end command", zap.Error(err))
	}

	// 3. 本地进入结束状态
	c.applyState(models.StateEnded)
	c.render()

	result.Applied = true
	result.State = c.state
	result.UploadSubmitted = true
	return result, nil
}

// relay 下发命令
func (c *ExerciseController) relay(ctx context.Context, action models.Action) error {
	cmd := models.Command{
		Action:   action,
		DeviceID: c.deviceID,
		IssuedAt: c.now().UnixMilli(),
	}
	if err := c.commands.Publish(ctx, cmd); err != nil {
		metrics.CommandsSent.WithLabelValues(string(action), "error").Inc()
		return fmt.Errorf("failed to relay %s command: %w", action, err)
	}
	metrics.CommandsSent.WithLabelValues(string(action), "ok").Inc()
	return nil
}

// finishUpload 记录上传结果并写入结果流
func (c *ExerciseController) finishUpload() {
	res, done := c.task.Result()
	if !done {
		return
	}
	c.task = nil

	outcome := uploader.Outcome(res.Err)
	if c.upload != nil && c.upload.SessionID == res.SessionID {
		c.upload.Status = outcome
		c.upload.ElapsedMs = res.Duration.Milliseconds()
		if res.Err != nil {
			c.upload.Error = res.Err.Error()
		}
	}

	if c.results == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), resultPublishTimeout)
	defer cancel()
	if err := c.results.PublishResult(ctx, NewUploadReport(res, c.deviceID, c.now())); err != nil {
		c.logger.Warn("Failed to publish upload result",
			zap.String("session_id", res.SessionID),
			zap.Error(err),
		)
	}
}

// publishView 刷新只读视图
func (c *ExerciseController) publishView() {
	pulse, step := c.aggregator.PointCounts()
	v := SessionView{
		SessionID:   c.aggregator.SessionID(),
		DeviceID:    c.deviceID,
		State:       c.state,
		Laps:        c.laps,
		Readouts:    c.readouts,
		Stats:       c.aggregator.Stats(),
		PulsePoints: pulse,
		StepPoints:  step,
	}
	if c.upload != nil {
		u := *c.upload
		v.Upload = &u
	}

	c.mu.Lock()
	c.view = v
	c.mu.Unlock()
}
