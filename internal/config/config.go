package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"wisefido-exercise/internal/common/config"

	"github.com/spf13/viper"
)

// 事件来源
const (
	SourceMQTT   = "mqtt"
	SourceStream = "stream"
	SourceNone   = "none"
)

// Config 运动会话服务配置
type Config struct {
	Redis config.RedisConfig `mapstructure:"redis"`
	MQTT  config.MQTTConfig  `mapstructure:"mqtt"`

	// 穿戴设备侧配置
	Exercise struct {
		Source        string        `mapstructure:"source"`         // mqtt / stream / none
		DeviceID      string        `mapstructure:"device_id"`      // 命令下发的目标设备
		UpdateTopic   string        `mapstructure:"update_topic"`   // 如 "exercise/+/update"
		CommandTopic  string        `mapstructure:"command_topic"`  // 如 "exercise/{device_id}/command"
		UpdateStream  string        `mapstructure:"update_stream"`  // 如 "exercise:update:stream"
		ConsumerGroup string        `mapstructure:"consumer_group"` // 消费者组名称
		ConsumerName  string        `mapstructure:"consumer_name"`  // 消费者名称
		BatchSize     int64         `mapstructure:"batch_size"`     // 批量读取大小
		ReadBlock     time.Duration `mapstructure:"read_block"`     // XREADGROUP 阻塞时长
		ResultStream  string        `mapstructure:"result_stream"`  // 上传结果输出流
		EventBuffer   int           `mapstructure:"event_buffer"`   // 事件通道容量
		ChronoTick    time.Duration `mapstructure:"chrono_tick"`    // 计时刷新间隔
	} `mapstructure:"exercise"`

	// 训练后台配置
	Backend struct {
		BaseURL    string        `mapstructure:"base_url"`
		Username   string        `mapstructure:"username"`
		Password   string        `mapstructure:"password"`
		LoginPath  string        `mapstructure:"login_path"`
		UploadPath string        `mapstructure:"upload_path"`
		Timeout    time.Duration `mapstructure:"timeout"` // 0 表示不额外限制
	} `mapstructure:"backend"`

	HTTP struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"http"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

// envBindings 配置键与环境变量名
var envBindings = map[string]string{
	"redis.addr":     "REDIS_ADDR",
	"redis.password": "REDIS_PASSWORD",
	"redis.db":       "REDIS_DB",

	"mqtt.broker":    "MQTT_BROKER",
	"mqtt.client_id": "MQTT_CLIENT_ID",
	"mqtt.username":  "MQTT_USERNAME",
	"mqtt.password":  "MQTT_PASSWORD",
	"mqtt.qos":       "MQTT_QOS",

	"exercise.source":         "EXERCISE_SOURCE",
	"exercise.device_id":      "EXERCISE_DEVICE_ID",
	"exercise.update_topic":   "EXERCISE_UPDATE_TOPIC",
	"exercise.command_topic":  "EXERCISE_COMMAND_TOPIC",
	"exercise.update_stream":  "EXERCISE_UPDATE_STREAM",
	"exercise.consumer_group": "EXERCISE_CONSUMER_GROUP",
	"exercise.consumer_name":  "EXERCISE_CONSUMER_NAME",
	"exercise.batch_size":     "EXERCISE_BATCH_SIZE",
	"exercise.read_block":     "EXERCISE_READ_BLOCK",
	"exercise.result_stream":  "EXERCISE_RESULT_STREAM",
	"exercise.event_buffer":   "EVENT_BUFFER",
	"exercise.chrono_tick":    "CHRONO_TICK",

	"backend.base_url":    "BACKEND_BASE_URL",
	"backend.username":    "BACKEND_USERNAME",
	"backend.password":    "BACKEND_PASSWORD",
	"backend.login_path":  "BACKEND_LOGIN_PATH",
	"backend.upload_path": "BACKEND_UPLOAD_PATH",
	"backend.timeout":     "UPLOAD_TIMEOUT",

	"http.addr": "HTTP_ADDR",

	"log.level":  "LOG_LEVEL",
	"log.format": "LOG_FORMAT",
}

// Load 加载配置：默认值 < 配置文件 < 环境变量
// configPath 为空时只读取环境变量
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Redis / MQTT（为空表示不启用）
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "wisefido-exercise")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.qos", 1)

	// 穿戴设备
	v.SetDefault("exercise.source", SourceMQTT)
	v.SetDefault("exercise.device_id", "")
	v.SetDefault("exercise.update_topic", "exercise/+/update")
	v.SetDefault("exercise.command_topic", "exercise/{device_id}/command")
	v.SetDefault("exercise.update_stream", "exercise:update:stream")
	v.SetDefault("exercise.consumer_group", "exercise-group")
	v.SetDefault("exercise.consumer_name", "exercise-1")
	v.SetDefault("exercise.batch_size", 10)
	v.SetDefault("exercise.read_block", "2s")
	v.SetDefault("exercise.result_stream", "exercise:upload:stream")
	v.SetDefault("exercise.event_buffer", 64)
	v.SetDefault("exercise.chrono_tick", "200ms")

	// 训练后台，凭据没有默认值
	v.SetDefault("backend.base_url", "")
	v.SetDefault("backend.username", "")
	v.SetDefault("backend.password", "")
	v.SetDefault("backend.login_path", "/auth/login")
	v.SetDefault("backend.upload_path", "/app/trainings")
	v.SetDefault("backend.timeout", "0s")

	v.SetDefault("http.addr", ":8090")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate 校验配置
func (c *Config) Validate() error {
	var errs []error

	if c.Backend.BaseURL == "" {
		errs = append(errs, errors.New("backend base URL is required (BACKEND_BASE_URL)"))
	} else if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid backend base URL: %q", c.Backend.BaseURL))
	}
	if c.Backend.Username == "" || c.Backend.Password == "" {
		errs = append(errs, errors.New("backend credentials are required (BACKEND_USERNAME, BACKEND_PASSWORD)"))
	}
	if c.Backend.Timeout < 0 {
		errs = append(errs, errors.New("upload timeout must not be negative"))
	}

	switch c.Exercise.Source {
	case SourceMQTT:
		if !c.MQTT.Enabled() {
			errs = append(errs, errors.New("mqtt source requires MQTT_BROKER"))
		}
		if c.Exercise.UpdateTopic == "" {
			errs = append(errs, errors.New("mqtt source requires an update topic"))
		}
	case SourceStream:
		if !c.Redis.Enabled() {
			errs = append(errs, errors.New("stream source requires REDIS_ADDR"))
		}
		if c.Exercise.UpdateStream == "" || c.Exercise.ConsumerGroup == "" || c.Exercise.ConsumerName == "" {
			errs = append(errs, errors.New("stream source requires stream, consumer group and consumer name"))
		}
		// 0 或负数会让读取循环不阻塞地空转
		if c.Exercise.ReadBlock <= 0 {
			errs = append(errs, errors.New("stream read block must be positive (EXERCISE_READ_BLOCK)"))
		}
	case SourceNone:
	default:
		errs = append(errs, fmt.Errorf("unknown exercise source: %q", c.Exercise.Source))
	}

	if c.Exercise.EventBuffer <= 0 {
		errs = append(errs, errors.New("event buffer must be positive"))
	}
	if c.Exercise.ChronoTick <= 0 {
		errs = append(errs, errors.New("chronometer tick must be positive"))
	}
	if c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("invalid MQTT QoS: %d", c.MQTT.QoS))
	}

	return errors.Join(errs...)
}

// BackendConfigured 是否配置了训练后台（export 可以在没有后台时运行）
func (c *Config) BackendConfigured() bool {
	return c.Backend.BaseURL != "" && c.Backend.Username != "" && c.Backend.Password != ""
}
