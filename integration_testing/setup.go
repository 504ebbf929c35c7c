//go:build integration

package integration_testing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/2beens/fitdash/internal"
	"github.com/2beens/fitdash/internal/config"
	"github.com/2beens/fitdash/pkg"
	testingpkg "github.com/2beens/fitdash/pkg/testing"
)

const (
	serverPort  = 9000
	metricsPort = 9001
	serverHost  = "localhost"
	validToken  = "integration-token"
)

var serverEndpoint = fmt.Sprintf("http://%s:%d", serverHost, serverPort)

const backendResponse = `{"bucket":[{"dataset":[
	{"point":[{"value":[{"intVal":10250}]}]},
	{"point":[{"value":[{"fpVal":58}]}]},
	{"point":[{"value":[{"fpVal":2210.5}]}]},
	{"point":[{"value":[{"intVal":75}]}]}
]}]}`

type Suite struct {
	server       *internal.Server
	backend      *httptest.Server
	backendCalls atomic.Int32
	teardown     []func()
}

func newSuite(ctx context.Context) (*Suite, error) {
	suite := &Suite{}

	redisPort, redisCleanup, err := testingpkg.RunRedis()
	if err != nil {
		return nil, fmt.Errorf("setup redis: %w", err)
	}
	suite.teardown = append(suite.teardown, redisCleanup)

	suite.backend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		suite.backendCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer "+validToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		pkg.WriteJSONResponseOK(w, backendResponse)
	}))
	suite.teardown = append(suite.teardown, suite.backend.Close)

	cfg := getTestConfig(redisPort, suite.backend.URL)
	suite.server, err = internal.NewServer(ctx, internal.NewServerParams{
		Config:      cfg,
		VersionInfo: "test-version-info",
	})
	if err != nil {
		suite.cleanup()
		return nil, fmt.Errorf("new server: %w", err)
	}

	suite.server.Serve(ctx, cfg.Host, cfg.Port)

	return suite, nil
}

func (s *Suite) cleanup() {
	if s.server != nil {
		_ = s.server.GracefulShutdown()
	}
	for i := len(s.teardown) - 1; i >= 0; i-- {
		s.teardown[i]()
	}
}

func getTestConfig(redisPort, backendURL string) *config.Config {
	return &config.Config{
		Environment:          "development",
		Host:                 serverHost,
		Port:                 serverPort,
		MetricsPort:          metricsPort,
		BackendURL:           backendURL,
		RedisEnabled:         true,
		RedisHost:            "localhost",
		RedisPort:            redisPort,
		SessionTTL:           config.Duration{Duration: time.Hour},
		SessionCheckInterval: config.Duration{Duration: time.Second},
		RateLimitPerMinute:   100,
	}
}
