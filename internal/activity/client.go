package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/2beens/fitdash/internal/telemetry/metrics"
	"github.com/2beens/fitdash/internal/telemetry/tracing"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/net/publicsuffix"
)

const DashboardDataPath = "/api/dashboard-data"

type Client struct {
	baseURL        string
	httpClient     *http.Client
	metricsManager *metrics.Manager
}

// NewHTTPClient returns a traced client whose cookie jar sends the backend's
// cookies along with every request.
func NewHTTPClient() (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("new cookie jar: %w", err)
	}

	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Jar:       jar,
	}, nil
}

func NewClient(baseURL string, httpClient *http.Client, metricsManager *metrics.Manager) *Client {
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     httpClient,
		metricsManager: metricsManager,
	}
}

// Aggregate makes exactly one POST to the dashboard data endpoint.
func (c *Client) Aggregate(ctx context.Context, credential string, query MetricQuery) (aggResp *AggregationResponse, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "activityClient.aggregate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if credential == "" {
		return nil, ErrNotAuthenticated
	}
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	reqBody, err := json.Marshal(query.body())
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	url := c.baseURL + DashboardDataPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	span.SetAttributes(
		attribute.String("request.id", requestID),
		attribute.Int64("window.start", query.WindowStart),
		attribute.Int64("window.end", query.WindowEnd),
	)
	log.Debugf("calling aggregation api [%s]: %s", requestID, url)

	begin := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metricsManager != nil {
		c.metricsManager.HistFetchDuration.Observe(time.Since(begin).Seconds())
	}
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &TransportError{StatusCode: resp.StatusCode}
	}

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read aggregation response: %w", err)}
	}

	aggResp = &AggregationResponse{}
	if err := json.Unmarshal(respBytes, aggResp); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("unmarshal aggregation response: %w", err)}
	}

	log.Tracef("aggregation api [%s] returned %d buckets", requestID, len(aggResp.Buckets))

	return aggResp, nil
}
