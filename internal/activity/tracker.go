package activity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/2beens/fitdash/internal/telemetry/metrics"
	"github.com/2beens/fitdash/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=tracker.go -destination=aggregator_mock_test.go -package=activity

type aggregator interface {
	Aggregate(ctx context.Context, credential string, query MetricQuery) (*AggregationResponse, error)
}

type credentialSource interface {
	Credential() string
	Subscribe() (<-chan string, func())
}

// Tracker owns the single FetchState cell. Every Trigger starts a new
// generation and cancels the fetch of the previous one; a completion is only
// applied while its generation is still the current one.
type Tracker struct {
	aggregator     aggregator
	metricsManager *metrics.Manager
	nowFunc        func() time.Time

	mu         sync.Mutex
	state      FetchState
	generation uint64
	cancel     context.CancelFunc
	closed     bool
	onChange   []func(FetchState)

	wg sync.WaitGroup
}

func NewTracker(aggregator aggregator, metricsManager *metrics.Manager) *Tracker {
	return &Tracker{
		aggregator:     aggregator,
		metricsManager: metricsManager,
		nowFunc:        time.Now,
		state:          IdleState(),
	}
}

func (t *Tracker) State() FetchState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// OnChange registers fn to be called with every new state. fn runs with the
// tracker lock held and must not call back into the tracker.
func (t *Tracker) OnChange(fn func(FetchState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = append(t.onChange, fn)
}

// Trigger re-arms the fetch for credential. An empty credential settles the
// state to the log-in error without any network call.
func (t *Tracker) Trigger(ctx context.Context, credential string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	t.generation++
	gen := t.generation
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}

	if credential == "" {
		log.Debugf("activity tracker [gen %d]: no credential", gen)
		t.countFetch("not_authenticated")
		t.setState(ErrorState(ErrNotAuthenticated.Error()))
		return
	}

	// context.WithoutCancel: the fetch lives until the next trigger or Close,
	// not until the caller's request ends
	fetchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t.cancel = cancel
	query := NewDailyQuery(t.nowFunc())
	t.setState(LoadingState())

	t.wg.Add(1)
	go t.fetch(fetchCtx, cancel, gen, credential, query)
}

func (t *Tracker) fetch(ctx context.Context, cancel context.CancelFunc, gen uint64, credential string, query MetricQuery) {
	defer t.wg.Done()
	defer cancel()

	ctx, span := tracing.GlobalTracer.Start(ctx, "activityTracker.fetch")
	span.SetAttributes(attribute.Int64("generation", int64(gen)))
	resp, err := t.aggregator.Aggregate(ctx, credential, query)
	tracing.EndSpanWithErrCheck(span, err)

	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.generation {
		log.Debugf("activity tracker: dropping stale response of gen %d, current gen %d", gen, t.generation)
		if t.metricsManager != nil {
			t.metricsManager.CounterStaleResponses.Inc()
		}
		return
	}
	t.cancel = nil

	if err != nil {
		log.Errorf("activity tracker [gen %d]: fetch dashboard data: %s", gen, err)
		var transportErr *TransportError
		switch {
		case errors.As(err, &transportErr):
			t.countFetch("transport_error")
		case errors.Is(err, ErrNotAuthenticated):
			t.countFetch("not_authenticated")
		default:
			t.countFetch("error")
		}
		t.setState(ErrorState(err.Error()))
		return
	}

	metricsRecord := Normalize(resp)
	log.Debugf("activity tracker [gen %d]: ready %+v", gen, metricsRecord)
	t.countFetch("ready")
	t.setState(ReadyState(metricsRecord))
}

// Watch triggers once with the current credential and again on every change
// published by source, until ctx is done or the source closes its channel.
func (t *Tracker) Watch(ctx context.Context, source credentialSource) {
	changes, unsubscribe := source.Subscribe()
	defer unsubscribe()

	t.Trigger(ctx, source.Credential())
	for {
		select {
		case <-ctx.Done():
			return
		case credential, ok := <-changes:
			if !ok {
				return
			}
			t.Trigger(ctx, credential)
		}
	}
}

// Wait blocks until no fetch is in flight.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

// Close cancels the in-flight fetch, waits for it and rejects later triggers.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.generation++
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.mu.Unlock()

	t.wg.Wait()
}

func (t *Tracker) setState(s FetchState) {
	t.state = s
	if t.metricsManager != nil {
		t.metricsManager.GaugeFetchPhase.Set(float64(s.Phase))
	}
	for _, fn := range t.onChange {
		fn(s)
	}
}

func (t *Tracker) countFetch(outcome string) {
	if t.metricsManager != nil {
		t.metricsManager.CounterFetches.WithLabelValues(outcome).Inc()
	}
}
