package uploader

import (
	"errors"
	"fmt"
)

// ErrEmptyPulseSeries 会话没有任何心率点，无法计算时长
var ErrEmptyPulseSeries = errors.New("session has no pulse data")

// Stage 失败所在步骤
type Stage string

const (
	StageDerive Stage = "derive"
	StageLogin  Stage = "login"
	StageUpload Stage = "upload"
)

// FailureKind 失败类型
type FailureKind string

const (
	KindPrecondition FailureKind = "precondition"
	KindAuth         FailureKind = "auth"
	KindRejected     FailureKind = "rejected"
	KindTransport    FailureKind = "transport"
)

// Failure 提交过程中的类型化失败
type Failure struct {
	Stage      Stage
	Kind       FailureKind
	StatusCode int    // HTTP 状态码，传输错误时为 0
	Message    string // 状态行或异常信息
	Err        error
}

func (f *Failure) Error() string {
	if f.StatusCode != 0 {
		return fmt.Sprintf("%s failed (%s, status %d): %s", f.Stage, f.Kind, f.StatusCode, f.Message)
	}
	return fmt.Sprintf("%s failed (%s): %s", f.Stage, f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// IsAuthFailure 是否为登录被拒
func IsAuthFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.Stage == StageLogin && f.Kind == KindAuth
}

// Outcome 用于日志和指标的结果标签
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	var f *Failure
	if errors.As(err, &f) {
		return string(f.Stage) + "_" + string(f.Kind)
	}
	return "error"
}
