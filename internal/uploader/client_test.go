package uploader

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"wisefido-exercise/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeBackend 训练后台替身，统计各接口被调用的次数
type fakeBackend struct {
	loginStatus  int
	loginBody    string
	uploadStatus int

	loginHits  atomic.Int32
	uploadHits atomic.Int32

	gotCredentials models.Credentials
	gotAuth        string
	gotContentType string
	gotSummary     models.SessionSummary
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	b := &fakeBackend{
		loginStatus:  http.StatusOK,
		loginBody:    `{"token":"jwt-abc"}`,
		uploadStatus: http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		b.loginHits.Add(1)
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		b.gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&b.gotCredentials)
		w.WriteHeader(b.loginStatus)
		_, _ = w.Write([]byte(b.loginBody))
	})
	mux.HandleFunc("/app/trainings", func(w http.ResponseWriter, r *http.Request) {
		b.uploadHits.Add(1)
		b.gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&b.gotSummary)
		w.WriteHeader(b.uploadStatus)
		_, _ = w.Write([]byte(`{"id":"training-1"}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return b, srv
}

func newTestClient(baseURL string) *Client {
	c := NewClient(Config{
		BaseURL:     baseURL,
		Credentials: models.Credentials{Username: "athlete@example.com", Password: "secret"},
	}, zap.NewNop())
	c.now = func() time.Time { return time.Date(2026, time.October, 19, 9, 0, 0, 0, time.Local) }
	return c
}

func testSession() models.Session {
	return models.Session{
		ID:          "session-1",
		PulseSeries: []models.TimeSeriesPoint{{Time: 0, Value: 60}, {Time: 1, Value: 62}, {Time: 42.7, Value: 90}},
		StepSeries:  []models.TimeSeriesPoint{{Time: 0.8, Value: 110}},
		Stats:       models.SessionStats{AvgPulse: 75, MinPulse: 60, MaxPulse: 90, AvgStepRate: 110, TotalSteps: 80},
	}
}

func TestAuthenticate_Success(t *testing.T) {
	backend, srv := newFakeBackend(t)
	c := newTestClient(srv.URL)

	token, err := c.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.AuthToken("jwt-abc"), token)
	assert.Equal(t, "application/json; charset=utf-8", backend.gotContentType)
	assert.Equal(t, models.Credentials{Username: "athlete@example.com", Password: "secret"}, backend.gotCredentials)
}

func TestAuthenticate_Rejected(t *testing.T) {
	backend, srv := newFakeBackend(t)
	backend.loginStatus = http.StatusUnauthorized
	backend.loginBody = `{"message":"bad credentials"}`
	c := newTestClient(srv.URL)

	_, err := c.Authenticate(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthFailure(err))

	var f *Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, http.StatusUnauthorized, f.StatusCode)
	assert.Contains(t, f.Message, "401")
}

func TestAuthenticate_MalformedResponse(t *testing.T) {
	backend, srv := newFakeBackend(t)
	backend.loginBody = `<html>`
	c := newTestClient(srv.URL)

	_, err := c.Authenticate(context.Background())
	var f *Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, StageLogin, f.Stage)
	assert.Equal(t, KindTransport, f.Kind)
}

func TestAuthenticate_EmptyToken(t *testing.T) {
	backend, srv := newFakeBackend(t)
	backend.loginBody = `{"token":""}`
	c := newTestClient(srv.URL)

	_, err := c.Authenticate(context.Background())
	assert.True(t, IsAuthFailure(err))
}

func TestAuthenticate_TransportError(t *testing.T) {
	_, srv := newFakeBackend(t)
	url := srv.URL
	srv.Close()
	c := newTestClient(url)

	_, err := c.Authenticate(context.Background())
	var f *Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, KindTransport, f.Kind)
	assert.Equal(t, 0, f.StatusCode)
}

func TestUpload_SendsBearerAndSummary(t *testing.T) {
	backend, srv := newFakeBackend(t)
	c := newTestClient(srv.URL)

	summary, err := DeriveSummary(testSession(), c.now())
	require.NoError(t, err)

	body, err := c.Upload(context.Background(), summary, "jwt-abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"training-1"}`, body)
	assert.Equal(t, "Bearer jwt-abc", backend.gotAuth)
	assert.Equal(t, summary, backend.gotSummary)
	assert.Equal(t, int64(42), backend.gotSummary.DurationInSeconds)
	assert.Equal(t, "19.10.2026", backend.gotSummary.Date)
}

func TestUpload_Rejected(t *testing.T) {
	backend, srv := newFakeBackend(t)
	backend.uploadStatus = http.StatusBadRequest
	c := newTestClient(srv.URL)

	_, err := c.Upload(context.Background(), models.SessionSummary{}, "jwt-abc")
	var f *Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, StageUpload, f.Stage)
	assert.Equal(t, KindRejected, f.Kind)
	assert.Equal(t, "400 Bad Request", f.Message)
}

func TestSubmit_Success(t *testing.T) {
	backend, srv := newFakeBackend(t)
	c := newTestClient(srv.URL)

	task := c.Submit(context.Background(), testSession())
	assert.Equal(t, "session-1", task.SessionID())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := task.Wait(ctx)
	require.NoError(t, err)

	assert.True(t, res.OK())
	assert.Equal(t, "session-1", res.SessionID)
	require.NotNil(t, res.Summary)
	assert.Equal(t, int64(42), res.Summary.DurationInSeconds)
	assert.EqualValues(t, 1, backend.loginHits.Load())
	assert.EqualValues(t, 1, backend.uploadHits.Load())
	assert.Equal(t, "Bearer jwt-abc", backend.gotAuth)

	again, done := task.Result()
	assert.True(t, done)
	assert.Equal(t, res, again)
}

func TestSubmit_AuthFailureSkipsUpload(t *testing.T) {
	backend, srv := newFakeBackend(t)
	backend.loginStatus = http.StatusForbidden
	c := newTestClient(srv.URL)

	task := c.Submit(context.Background(), testSession())
	<-task.Done()

	res, done := task.Result()
	require.True(t, done)
	assert.False(t, res.OK())
	assert.True(t, IsAuthFailure(res.Err))
	assert.Equal(t, "login_auth", Outcome(res.Err))
	assert.EqualValues(t, 1, backend.loginHits.Load())
	assert.EqualValues(t, 0, backend.uploadHits.Load())
}

func TestSubmit_EmptySessionMakesNoRequests(t *testing.T) {
	backend, srv := newFakeBackend(t)
	c := newTestClient(srv.URL)

	task := c.Submit(context.Background(), models.Session{ID: "empty"})
	<-task.Done()

	res, _ := task.Result()
	assert.ErrorIs(t, res.Err, ErrEmptyPulseSeries)
	assert.Equal(t, "derive_precondition", Outcome(res.Err))
	assert.Nil(t, res.Summary)
	assert.EqualValues(t, 0, backend.loginHits.Load())
	assert.EqualValues(t, 0, backend.uploadHits.Load())
}

func TestTask_CancelAbortsInFlightRequest(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	defer close(release)

	c := newTestClient(srv.URL)
	task := c.Submit(context.Background(), testSession())

	_, done := task.Result()
	assert.False(t, done)

	// 未结束时 Wait 随 ctx 超时返回
	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	_, err := task.Wait(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	task.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := task.Wait(ctx)
	require.NoError(t, err)

	var f *Failure
	require.True(t, errors.As(res.Err, &f))
	assert.Equal(t, StageLogin, f.Stage)
	assert.Equal(t, KindTransport, f.Kind)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", Outcome(nil))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
	assert.Equal(t, "upload_rejected", Outcome(&Failure{Stage: StageUpload, Kind: KindRejected}))
}
