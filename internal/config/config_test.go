package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.MQTT.Broker = "tcp://broker:1883"
	cfg.Backend.BaseURL = "http://backend:3001"
	cfg.Backend.Username = "athlete"
	cfg.Backend.Password = "pw"
	return cfg
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "", cfg.Redis.Addr)
	assert.Equal(t, "", cfg.MQTT.Broker)
	assert.Equal(t, "wisefido-exercise", cfg.MQTT.ClientID)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)

	assert.Equal(t, SourceMQTT, cfg.Exercise.Source)
	assert.Equal(t, "exercise/+/update", cfg.Exercise.UpdateTopic)
	assert.Equal(t, "exercise/{device_id}/command", cfg.Exercise.CommandTopic)
	assert.Equal(t, "exercise:update:stream", cfg.Exercise.UpdateStream)
	assert.Equal(t, "exercise-group", cfg.Exercise.ConsumerGroup)
	assert.Equal(t, "exercise-1", cfg.Exercise.ConsumerName)
	assert.Equal(t, int64(10), cfg.Exercise.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Exercise.ReadBlock)
	assert.Equal(t, "exercise:upload:stream", cfg.Exercise.ResultStream)
	assert.Equal(t, 64, cfg.Exercise.EventBuffer)
	assert.Equal(t, 200*time.Millisecond, cfg.Exercise.ChronoTick)

	assert.Equal(t, "/auth/login", cfg.Backend.LoginPath)
	assert.Equal(t, "/app/trainings", cfg.Backend.UploadPath)
	assert.Equal(t, time.Duration(0), cfg.Backend.Timeout)
	assert.Empty(t, cfg.Backend.Username)
	assert.Empty(t, cfg.Backend.Password)

	assert.Equal(t, ":8090", cfg.HTTP.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("REDIS_ADDR", "test-redis:6380")
	t.Setenv("MQTT_BROKER", "tcp://test-broker:1883")
	t.Setenv("MQTT_QOS", "0")
	t.Setenv("EXERCISE_SOURCE", "stream")
	t.Setenv("EXERCISE_DEVICE_ID", "watch-7")
	t.Setenv("EXERCISE_BATCH_SIZE", "25")
	t.Setenv("EVENT_BUFFER", "16")
	t.Setenv("CHRONO_TICK", "1s")
	t.Setenv("BACKEND_BASE_URL", "http://backend:3001")
	t.Setenv("BACKEND_USERNAME", "athlete")
	t.Setenv("BACKEND_PASSWORD", "secret")
	t.Setenv("UPLOAD_TIMEOUT", "15s")
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "test-redis:6380", cfg.Redis.Addr)
	assert.Equal(t, "tcp://test-broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, byte(0), cfg.MQTT.QoS)
	assert.Equal(t, SourceStream, cfg.Exercise.Source)
	assert.Equal(t, "watch-7", cfg.Exercise.DeviceID)
	assert.Equal(t, int64(25), cfg.Exercise.BatchSize)
	assert.Equal(t, 16, cfg.Exercise.EventBuffer)
	assert.Equal(t, time.Second, cfg.Exercise.ChronoTick)
	assert.Equal(t, "http://backend:3001", cfg.Backend.BaseURL)
	assert.Equal(t, "athlete", cfg.Backend.Username)
	assert.Equal(t, "secret", cfg.Backend.Password)
	assert.Equal(t, 15*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	require.NoError(t, cfg.Validate())
}

func TestLoad_ConfigFileOverriddenByEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exercise.yaml")
	content := `
exercise:
  source: none
  device_id: file-watch
backend:
  base_url: http://file-backend:3001
http:
  addr: ":7000"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("HTTP_ADDR", ":7100")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, SourceNone, cfg.Exercise.Source)
	assert.Equal(t, "file-watch", cfg.Exercise.DeviceID)
	assert.Equal(t, "http://file-backend:3001", cfg.Backend.BaseURL)
	assert.Equal(t, ":7100", cfg.HTTP.Addr)
	// 文件中未出现的键保持默认值
	assert.Equal(t, 64, cfg.Exercise.EventBuffer)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, validConfig(t).Validate())
	})

	t.Run("missing backend", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Backend.BaseURL = ""
		cfg.Backend.Password = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "BACKEND_BASE_URL")
		assert.Contains(t, err.Error(), "BACKEND_PASSWORD")
		assert.False(t, cfg.BackendConfigured())
	})

	t.Run("invalid backend url", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Backend.BaseURL = "backend-without-scheme"
		assert.ErrorContains(t, cfg.Validate(), "invalid backend base URL")
	})

	t.Run("unknown source", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Exercise.Source = "bluetooth"
		assert.ErrorContains(t, cfg.Validate(), "unknown exercise source")
	})

	t.Run("stream source needs redis", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Exercise.Source = SourceStream
		assert.ErrorContains(t, cfg.Validate(), "REDIS_ADDR")

		cfg.Redis.Addr = "localhost:6379"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("stream source needs blocking reads", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Exercise.Source = SourceStream
		cfg.Redis.Addr = "localhost:6379"
		cfg.Exercise.ReadBlock = 0
		assert.ErrorContains(t, cfg.Validate(), "EXERCISE_READ_BLOCK")

		// 其他来源不读取 Streams
		cfg.Exercise.Source = SourceNone
		assert.NoError(t, cfg.Validate())
	})

	t.Run("mqtt source needs broker", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.MQTT.Broker = ""
		assert.ErrorContains(t, cfg.Validate(), "MQTT_BROKER")
	})

	t.Run("non-positive buffer and tick", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Exercise.EventBuffer = 0
		cfg.Exercise.ChronoTick = 0
		err := cfg.Validate()
		assert.ErrorContains(t, err, "event buffer")
		assert.ErrorContains(t, err, "chronometer tick")
	})
}
