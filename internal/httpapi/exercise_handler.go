package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"wisefido-exercise/internal/models"
	"wisefido-exercise/internal/service"

	"go.uber.org/zap"
)

// intentTimeout 意图在控制器中排队处理的上限
const intentTimeout = 5 * time.Second

// ExerciseController 控制器能力（*service.ExerciseController 实现）
type ExerciseController interface {
	Snapshot() service.SessionView
	Intent(ctx context.Context, action models.Action) (service.IntentResult, error)
}

// ExerciseHandler 运动会话 API
type ExerciseHandler struct {
	controller ExerciseController
	logger     *zap.Logger
}

func NewExerciseHandler(controller ExerciseController, logger *zap.Logger) *ExerciseHandler {
	return &ExerciseHandler{controller: controller, logger: logger}
}

// GET /api/v1/exercise/session
func (h *ExerciseHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.controller.Snapshot()))
}

// POST /api/v1/exercise/{start|pause|resume|end|lap}
// 结束意图只报告是否已提交上传，不等待上传结果
func (h *ExerciseHandler) PostIntent(w http.ResponseWriter, r *http.Request, rawAction string) {
	action, err := models.ParseAction(rawAction)
	if err != nil {
		writeJSON(w, http.StatusNotFound, Fail(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), intentTimeout)
	defer cancel()

	result, err := h.controller.Intent(ctx, action)
	if err != nil {
		h.logger.Warn("Exercise intent rejected",
			zap.String("action", string(action)),
			zap.Error(err),
		)
		writeJSON(w, intentStatus(err), Fail(err.Error()))
		return
	}

	h.logger.Info("Exercise intent handled",
		zap.String("action", string(action)),
		zap.Bool("applied", result.Applied),
		zap.String("session_id", result.SessionID),
	)
	writeJSON(w, http.StatusOK, Ok(result))
}

// intentStatus 按错误类型选择 HTTP 状态码
func intentStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrExerciseNotActive), errors.Is(err, service.ErrUploadInFlight):
		return http.StatusConflict
	case errors.Is(err, service.ErrNoTargetDevice):
		// 还没有收到设备事件，也没有配置 EXERCISE_DEVICE_ID
		return http.StatusConflict
	case errors.Is(err, service.ErrControllerStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
