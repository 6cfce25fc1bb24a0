package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"wisefido-exercise/internal/config"
	"wisefido-exercise/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const activeRecording = `{"type":"state","device_id":"watch-1","state":"ACTIVE"}
{"type":"metrics","metrics":{"heart_rate":[{"value":110,"boot_ms":1000}],"steps_per_minute":[{"value":140,"boot_ms":1000}]}}
{"type":"metrics","metrics":{"heart_rate":[{"value":118,"boot_ms":2000},{"value":121,"boot_ms":3000}],"steps_total":{"total":900}}}
{"type":"laps","laps":2}
`

func writeRecording(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReplayEvents(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	run, err := replayEvents(context.Background(), cfg, writeRecording(t, activeRecording), nil, zap.NewNop())
	require.NoError(t, err)
	defer run.controller.Stop(context.Background())

	view := run.controller.Snapshot()
	assert.Equal(t, models.StateActive, view.State)
	assert.Equal(t, "watch-1", view.DeviceID)
	assert.Equal(t, 2, view.PulsePoints)
	assert.Equal(t, 1, view.StepPoints)
	assert.Equal(t, 900, view.Stats.TotalSteps)
	assert.Equal(t, "2", run.surface.Current().Laps)
	assert.Equal(t, "121", run.surface.Current().HeartRate)
}

func TestReplayEvents_MissingFile(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	_, err = replayEvents(context.Background(), cfg, filepath.Join(t.TempDir(), "missing.jsonl"), nil, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open events file")
}

// backend 最小训练后台
type backend struct {
	mu      sync.Mutex
	summary models.SessionSummary
	auth    string
}

func newBackend(t *testing.T) (*backend, *httptest.Server) {
	t.Helper()
	b := &backend{}
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"tok-replay"}`))
	})
	mux.HandleFunc("/app/trainings", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&b.summary)
		_, _ = w.Write([]byte(`{}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return b, srv
}

func setBackendEnv(t *testing.T, baseURL string) {
	t.Helper()
	t.Setenv("BACKEND_BASE_URL", baseURL)
	t.Setenv("BACKEND_USERNAME", "runner")
	t.Setenv("BACKEND_PASSWORD", "from-env")
	t.Setenv("LOG_LEVEL", "error")
}

func TestReplayCommand_UploadsSession(t *testing.T) {
	b, srv := newBackend(t)
	setBackendEnv(t, srv.URL)

	xlsx := filepath.Join(t.TempDir(), "replay.xlsx")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"replay", writeRecording(t, activeRecording), "--xlsx", xlsx})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), "outcome:   success")
	assert.Contains(t, out.String(), "duration:  2s")

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Equal(t, "Bearer tok-replay", b.auth)
	assert.Equal(t, int64(2), b.summary.DurationInSeconds)
	assert.Len(t, b.summary.PulseData, 2)
	assert.Equal(t, 900, b.summary.SumSteps)

	_, err := os.Stat(xlsx)
	assert.NoError(t, err)
}

func TestReplayCommand_EndedRecording(t *testing.T) {
	_, srv := newBackend(t)
	setBackendEnv(t, srv.URL)

	ended := activeRecording + `{"type":"state","state":"ENDED"}` + "\n"
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"replay", writeRecording(t, ended), "--xlsx", ""})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no running exercise")
}

func TestReplayCommand_RequiresBackend(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "")
	t.Setenv("LOG_LEVEL", "error")

	rootCmd.SetArgs([]string{"replay", writeRecording(t, activeRecording), "--xlsx", ""})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replay requires")
}

func TestExportCommand(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")

	path := filepath.Join(t.TempDir(), "out.xlsx")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"export", writeRecording(t, activeRecording), "-o", path})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "2 pulse / 1 step points")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Pulse")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}
