package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/2beens/fitdash/internal/config"
	"github.com/2beens/fitdash/pkg"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBackendResponse = `{"bucket":[{"dataset":[
	{"dataSourceId":"derived:com.google.step_count.delta:merged","point":[{"value":[{"intVal":8120}]}]},
	{"dataSourceId":"derived:com.google.heart_rate.bpm:merged","point":[{"value":[{"fpVal":64.5}]}]},
	{"dataSourceId":"derived:com.google.calories.expended:merged","point":[{"value":[{"fpVal":1870.25}]}]},
	{"dataSourceId":"derived:com.google.active_minutes:merged","point":[{"value":[{"intVal":42}]}]}
]}]}`

type activityResponse struct {
	State struct {
		Phase   string `json:"phase"`
		Message string `json:"message"`
	} `json:"state"`
	Card struct {
		Steps     string `json:"steps"`
		HeartRate string `json:"heartRate"`
	} `json:"card"`
}

func newTestServer(t *testing.T, backendURL string) *Server {
	t.Helper()
	cfg := &config.Config{
		Host:                 "localhost",
		Port:                 9090,
		MetricsPort:          2112,
		BackendURL:           backendURL,
		SessionTTL:           config.Duration{Duration: time.Hour},
		SessionCheckInterval: config.Duration{Duration: time.Minute},
		RateLimitPerMinute:   10,
		AllowedOrigins:       []string{"http://localhost:3000"},
	}
	require.NoError(t, cfg.Validate())

	server, err := NewServer(context.Background(), NewServerParams{
		Config:      cfg,
		VersionInfo: "test",
	})
	require.NoError(t, err)
	return server
}

func getActivity(t *testing.T, baseURL string) activityResponse {
	t.Helper()
	resp, err := http.Get(baseURL + "/activity")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var a activityResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&a))
	return a
}

func TestServer_ActivityFlow(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer valid-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		pkg.WriteJSONResponseOK(w, testBackendResponse)
	}))
	defer backend.Close()

	server := newTestServer(t, backend.URL)
	server.startBackground(context.Background())
	api := httptest.NewServer(server.routerSetup())
	defer api.Close()
	defer func() {
		assert.NoError(t, server.GracefulShutdown())
	}()

	// nobody logged in yet
	assert.Eventually(t, func() bool {
		return getActivity(t, api.URL).State.Phase == "error"
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Please log in to view your activity data", getActivity(t, api.URL).State.Message)

	resp, err := http.Post(api.URL+"/session", pkg.ContentType.JSON, strings.NewReader(`{"accessToken":"valid-token"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var a activityResponse
	assert.Eventually(t, func() bool {
		a = getActivity(t, api.URL)
		return a.State.Phase == "ready"
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "8,120", a.Card.Steps)
	assert.Equal(t, "64.5 bpm", a.Card.HeartRate)
	assert.Equal(t, 1.0, testutil.ToFloat64(server.metricsManager.CounterFetches.WithLabelValues("ready")))

	// a token the backend rejects
	resp, err = http.Post(api.URL+"/session", pkg.ContentType.JSON, strings.NewReader(`{"accessToken":"other-token"}`))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Eventually(t, func() bool {
		a = getActivity(t, api.URL)
		return a.State.Phase == "error"
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "HTTP error! status: 401", a.State.Message)
	assert.Equal(t, "N/A", a.Card.HeartRate)

	req, err := http.NewRequest(http.MethodDelete, api.URL+"/session", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Eventually(t, func() bool {
		a = getActivity(t, api.URL)
		return a.State.Message == "Please log in to view your activity data"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServer_Router(t *testing.T) {
	server := newTestServer(t, "http://localhost:1")
	defer func() {
		assert.NoError(t, server.GracefulShutdown())
	}()

	api := httptest.NewServer(server.routerSetup())
	defer api.Close()

	resp, err := http.Get(api.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(api.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, api.URL+"/activity", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example.com")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	assert.Equal(t, 1.0, testutil.ToFloat64(server.metricsManager.CounterRequests.WithLabelValues("GET", "200")))
}
