package activity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/2beens/fitdash/internal/telemetry/metrics"
	"github.com/2beens/fitdash/pkg"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
)

var fixedNow = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// idle keep-alive connections of the shared default transport
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
	)
}

func newTestTracker(t *testing.T, agg aggregator) (*Tracker, *metrics.Manager) {
	t.Helper()
	metricsManager := metrics.NewTestManager()
	tracker := NewTracker(agg, metricsManager)
	tracker.nowFunc = func() time.Time { return fixedNow }
	t.Cleanup(tracker.Close)
	return tracker, metricsManager
}

func TestTracker_InitialStateIsIdle(t *testing.T) {
	ctrl := gomock.NewController(t)
	tracker, _ := newTestTracker(t, NewMockaggregator(ctrl))
	assert.Equal(t, IdleState(), tracker.State())
}

// Scenario A: no credential, no request.
func TestTracker_NoCredential(t *testing.T) {
	ctrl := gomock.NewController(t)
	agg := NewMockaggregator(ctrl)
	agg.EXPECT().Aggregate(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	tracker, metricsManager := newTestTracker(t, agg)
	tracker.Trigger(context.Background(), "")
	tracker.Wait()

	assert.Equal(t, ErrorState("Please log in to view your activity data"), tracker.State())
	assert.Equal(t, 1.0, testutil.ToFloat64(metricsManager.CounterFetches.WithLabelValues("not_authenticated")))
	assert.Equal(t, float64(PhaseError), testutil.ToFloat64(metricsManager.GaugeFetchPhase))
}

func TestTracker_SendsDailyQuery(t *testing.T) {
	ctrl := gomock.NewController(t)
	agg := NewMockaggregator(ctrl)
	agg.EXPECT().
		Aggregate(gomock.Any(), "token-1", NewDailyQuery(fixedNow)).
		Return(&AggregationResponse{}, nil).
		Times(1)

	tracker, _ := newTestTracker(t, agg)
	tracker.Trigger(context.Background(), "token-1")
	tracker.Wait()

	assert.Equal(t, ReadyState(ActivityMetrics{}), tracker.State())
}

// Scenario B: server error.
func TestTracker_ServerError(t *testing.T) {
	var apiCallsCount atomic.Int32
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiCallsCount.Add(1)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer testServer.Close()

	tracker, metricsManager := newTestTracker(t, newTestClient(t, testServer.URL))
	tracker.Trigger(context.Background(), "valid-token")
	tracker.Wait()

	state := tracker.State()
	assert.Equal(t, PhaseError, state.Phase)
	assert.Contains(t, state.Message, "status: 500")
	assert.Nil(t, state.Metrics)
	assert.Equal(t, int32(1), apiCallsCount.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(metricsManager.CounterFetches.WithLabelValues("transport_error")))
}

// Scenario C: full response.
func TestTracker_FullResponse(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer valid-token", r.Header.Get("Authorization"))
		pkg.WriteJSONResponseOK(w, fullDayResponse)
	}))
	defer testServer.Close()

	tracker, metricsManager := newTestTracker(t, newTestClient(t, testServer.URL))
	tracker.Trigger(context.Background(), "valid-token")
	tracker.Wait()

	assert.Equal(t, ReadyState(ActivityMetrics{
		Steps:         4200,
		HeartRate:     72.5,
		Calories:      310,
		ActiveMinutes: 25,
	}), tracker.State())
	assert.Equal(t, 1.0, testutil.ToFloat64(metricsManager.CounterFetches.WithLabelValues("ready")))
	assert.Equal(t, float64(PhaseReady), testutil.ToFloat64(metricsManager.GaugeFetchPhase))
}

// Scenario D: partial response.
func TestTracker_PartialResponse(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pkg.WriteJSONResponseOK(w, `{"bucket":[{"dataset":[{"point":[{"value":[{"intVal":100}]}]}]}]}`)
	}))
	defer testServer.Close()

	tracker, _ := newTestTracker(t, newTestClient(t, testServer.URL))
	tracker.Trigger(context.Background(), "valid-token")
	tracker.Wait()

	assert.Equal(t, ReadyState(ActivityMetrics{Steps: 100}), tracker.State())
}

func TestTracker_NetworkErrorClearsMetrics(t *testing.T) {
	var failing atomic.Bool
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		pkg.WriteJSONResponseOK(w, fullDayResponse)
	}))
	defer testServer.Close()

	tracker, _ := newTestTracker(t, newTestClient(t, testServer.URL))
	tracker.Trigger(context.Background(), "token-1")
	tracker.Wait()
	require.Equal(t, PhaseReady, tracker.State().Phase)

	failing.Store(true)
	tracker.Trigger(context.Background(), "token-2")
	tracker.Wait()

	assert.Equal(t, ErrorState("HTTP error! status: 503"), tracker.State())
}

// Scenario E: the credential goes away while a fetch is in flight.
func TestTracker_StaleResponseDiscarded(t *testing.T) {
	ctrl := gomock.NewController(t)
	agg := NewMockaggregator(ctrl)

	fullResp := decodeResponse(t, fullDayResponse)
	started := make(chan struct{})
	release := make(chan struct{})
	agg.EXPECT().
		Aggregate(gomock.Any(), "token-1", gomock.Any()).
		DoAndReturn(func(ctx context.Context, credential string, query MetricQuery) (*AggregationResponse, error) {
			close(started)
			<-release
			return fullResp, nil
		}).
		Times(1)

	tracker, metricsManager := newTestTracker(t, agg)
	tracker.Trigger(context.Background(), "token-1")
	<-started
	assert.Equal(t, LoadingState(), tracker.State())

	tracker.Trigger(context.Background(), "")
	close(release)
	tracker.Wait()

	assert.Equal(t, ErrorState(notAuthenticatedMessage), tracker.State())
	assert.Equal(t, 1.0, testutil.ToFloat64(metricsManager.CounterStaleResponses))
	assert.Zero(t, testutil.ToFloat64(metricsManager.CounterFetches.WithLabelValues("ready")))
}

func TestTracker_RetriggerCancelsPreviousFetch(t *testing.T) {
	ctrl := gomock.NewController(t)
	agg := NewMockaggregator(ctrl)

	started := make(chan struct{})
	firstCanceled := make(chan struct{})
	agg.EXPECT().
		Aggregate(gomock.Any(), "token-1", gomock.Any()).
		DoAndReturn(func(ctx context.Context, credential string, query MetricQuery) (*AggregationResponse, error) {
			close(started)
			<-ctx.Done()
			close(firstCanceled)
			return nil, &TransportError{Err: ctx.Err()}
		})
	agg.EXPECT().
		Aggregate(gomock.Any(), "token-2", gomock.Any()).
		Return(decodeResponse(t, `{"bucket":[{"dataset":[{"point":[{"value":[{"intVal":9000}]}]}]}]}`), nil)

	tracker, metricsManager := newTestTracker(t, agg)
	tracker.Trigger(context.Background(), "token-1")
	<-started
	tracker.Trigger(context.Background(), "token-2")

	select {
	case <-firstCanceled:
	case <-time.After(5 * time.Second):
		t.Fatal("first fetch was not canceled")
	}
	tracker.Wait()

	assert.Equal(t, ReadyState(ActivityMetrics{Steps: 9000}), tracker.State())
	assert.Equal(t, 1.0, testutil.ToFloat64(metricsManager.CounterStaleResponses))
	assert.Zero(t, testutil.ToFloat64(metricsManager.CounterFetches.WithLabelValues("transport_error")))
}

func TestTracker_CallerContextDoesNotCancelFetch(t *testing.T) {
	ctrl := gomock.NewController(t)
	agg := NewMockaggregator(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	agg.EXPECT().
		Aggregate(gomock.Any(), "token-1", gomock.Any()).
		DoAndReturn(func(fetchCtx context.Context, credential string, query MetricQuery) (*AggregationResponse, error) {
			cancel()
			assert.NoError(t, fetchCtx.Err())
			return &AggregationResponse{}, nil
		})

	tracker, _ := newTestTracker(t, agg)
	tracker.Trigger(ctx, "token-1")
	tracker.Wait()

	assert.Equal(t, PhaseReady, tracker.State().Phase)
}

func TestTracker_OnChange(t *testing.T) {
	ctrl := gomock.NewController(t)
	agg := NewMockaggregator(ctrl)
	agg.EXPECT().Aggregate(gomock.Any(), gomock.Any(), gomock.Any()).Return(&AggregationResponse{}, nil)

	tracker, _ := newTestTracker(t, agg)

	var phases []Phase
	tracker.OnChange(func(s FetchState) {
		phases = append(phases, s.Phase)
	})

	tracker.Trigger(context.Background(), "token-1")
	tracker.Wait()
	tracker.Trigger(context.Background(), "")

	assert.Equal(t, []Phase{PhaseLoading, PhaseReady, PhaseError}, phases)
}

func TestTracker_Watch(t *testing.T) {
	ctrl := gomock.NewController(t)
	agg := NewMockaggregator(ctrl)
	agg.EXPECT().
		Aggregate(gomock.Any(), "token-1", gomock.Any()).
		Return(decodeResponse(t, fullDayResponse), nil)

	changes := make(chan string)
	var unsubscribed atomic.Bool
	source := NewMockcredentialSource(ctrl)
	source.EXPECT().Credential().Return("")
	source.EXPECT().Subscribe().DoAndReturn(func() (<-chan string, func()) {
		return changes, func() { unsubscribed.Store(true) }
	})

	tracker, _ := newTestTracker(t, agg)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		tracker.Watch(ctx, source)
	}()

	changes <- "token-1"
	assert.Eventually(t, func() bool {
		return tracker.State().Phase == PhaseReady
	}, 5*time.Second, 10*time.Millisecond)

	changes <- ""
	assert.Eventually(t, func() bool {
		return tracker.State() == ErrorState(notAuthenticatedMessage)
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	wg.Wait()
	assert.True(t, unsubscribed.Load())
}

func TestTracker_WatchStopsWhenSourceCloses(t *testing.T) {
	ctrl := gomock.NewController(t)
	agg := NewMockaggregator(ctrl)

	changes := make(chan string)
	close(changes)
	source := NewMockcredentialSource(ctrl)
	source.EXPECT().Credential().Return("")
	source.EXPECT().Subscribe().DoAndReturn(func() (<-chan string, func()) {
		return changes, func() {}
	})

	tracker, _ := newTestTracker(t, agg)

	done := make(chan struct{})
	go func() {
		defer close(done)
		tracker.Watch(context.Background(), source)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not return after the source closed")
	}
	assert.Equal(t, ErrorState(notAuthenticatedMessage), tracker.State())
}

func TestTracker_Close(t *testing.T) {
	ctrl := gomock.NewController(t)
	agg := NewMockaggregator(ctrl)

	started := make(chan struct{})
	agg.EXPECT().
		Aggregate(gomock.Any(), "token-1", gomock.Any()).
		DoAndReturn(func(ctx context.Context, credential string, query MetricQuery) (*AggregationResponse, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		})

	tracker, _ := newTestTracker(t, agg)
	tracker.Trigger(context.Background(), "token-1")
	<-started

	tracker.Close()
	assert.Equal(t, LoadingState(), tracker.State())

	// no more fetches after close
	tracker.Trigger(context.Background(), "token-2")
	tracker.Wait()
	assert.Equal(t, LoadingState(), tracker.State())
}
