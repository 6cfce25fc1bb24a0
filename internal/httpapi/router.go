package httpapi

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const exercisePrefix = "/api/v1/exercise/"

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口（用于 promhttp 等）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterHealthRoutes 注册健康检查与指标路由
func (r *Router) RegisterHealthRoutes(health *HealthHandler) {
	r.Handle("/health", health.HealthCheck)
	r.Handle("/healthz", health.HealthCheck)
	r.HandleHandler("/metrics", promhttp.Handler())
}

// RegisterExerciseRoutes 注册运动会话路由
func (r *Router) RegisterExerciseRoutes(h *ExerciseHandler) {
	// session snapshot
	r.Handle(exercisePrefix+"session", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetSession(w, req)
	})

	// {start|pause|resume|end|lap}
	r.Handle(exercisePrefix, func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		action := strings.TrimPrefix(req.URL.Path, exercisePrefix)
		if action == "" || strings.Contains(action, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.PostIntent(w, req, action)
	})
}
