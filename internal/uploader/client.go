package uploader

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"wisefido-exercise/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	DefaultLoginPath  = "/auth/login"
	DefaultUploadPath = "/app/trainings"

	contentTypeJSON = "application/json; charset=utf-8"
)

// Config 训练后台配置
type Config struct {
	BaseURL     string
	Credentials models.Credentials
	LoginPath   string
	UploadPath  string
	Timeout     time.Duration // 0 表示使用传输层默认值
}

// Client 训练后台客户端：登录换取 token，再上传会话摘要
// 不做重试
type Client struct {
	httpClient *resty.Client
	config     Config
	logger     *zap.Logger
	now        func() time.Time
}

type tokenResponse struct {
	Token string `json:"token"`
}

// NewClient 创建训练后台客户端
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.LoginPath == "" {
		cfg.LoginPath = DefaultLoginPath
	}
	if cfg.UploadPath == "" {
		cfg.UploadPath = DefaultUploadPath
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", contentTypeJSON).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return &Client{
		httpClient: client,
		config:     cfg,
		logger:     logger.With(zap.String("component", "uploader")),
		now:        time.Now,
	}
}

// Authenticate 登录并返回 Bearer token
func (c *Client) Authenticate(ctx context.Context) (models.AuthToken, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(c.config.Credentials).
		Post(c.config.LoginPath)
	if err != nil {
		c.logger.Error("Login request failed", zap.Error(err))
		return "", &Failure{Stage: StageLogin, Kind: KindTransport, Message: err.Error(), Err: err}
	}

	if resp.StatusCode() != http.StatusOK {
		c.logger.Error("Login rejected",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("status", resp.Status()),
		)
		return "", &Failure{Stage: StageLogin, Kind: KindAuth, StatusCode: resp.StatusCode(), Message: resp.Status()}
	}

	var body tokenResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		c.logger.Error("Failed to decode login response", zap.Error(err))
		return "", &Failure{Stage: StageLogin, Kind: KindTransport, StatusCode: resp.StatusCode(), Message: "malformed login response", Err: err}
	}
	if body.Token == "" {
		c.logger.Error("Login response carried no token")
		return "", &Failure{Stage: StageLogin, Kind: KindAuth, StatusCode: resp.StatusCode(), Message: "empty token"}
	}

	return models.AuthToken(body.Token), nil
}

// Upload 使用 token 上传会话摘要，成功时返回响应体
func (c *Client) Upload(ctx context.Context, summary models.SessionSummary, token models.AuthToken) (string, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+string(token)).
		SetBody(summary).
		Post(c.config.UploadPath)
	if err != nil {
		c.logger.Error("Upload request failed", zap.Error(err))
		return "", &Failure{Stage: StageUpload, Kind: KindTransport, Message: err.Error(), Err: err}
	}

	if resp.StatusCode() != http.StatusOK {
		c.logger.Error("Upload rejected",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("status", resp.Status()),
		)
		return "", &Failure{Stage: StageUpload, Kind: KindRejected, StatusCode: resp.StatusCode(), Message: resp.Status()}
	}

	return resp.String(), nil
}
