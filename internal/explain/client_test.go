package explain

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/saferoute/internal/model"
)

// fakeClock is a manual clock whose Sleep advances time instantly.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 17, 21, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	f.sleeps = append(f.sleeps, d)
	return nil
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fakeClock) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}

// countingTransport answers every prompt with reply (or err) and counts calls.
type countingTransport struct {
	calls atomic.Int32
	reply string
	err   error
}

func (t *countingTransport) Complete(_ context.Context, _ string) (string, error) {
	t.calls.Add(1)
	if t.err != nil {
		return "", t.err
	}
	return t.reply, nil
}

// fakeRecorder tallies Recorder events.
type fakeRecorder struct {
	mu       sync.Mutex
	served   map[model.Provenance]int
	outcomes map[string]int
	mockMode int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{served: map[model.Provenance]int{}, outcomes: map[string]int{}}
}

func (r *fakeRecorder) ExplanationServed(p model.Provenance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.served[p]++
}

func (r *fakeRecorder) LiveCall(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[outcome]++
}

func (r *fakeRecorder) MockModeEntered() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mockMode++
}

func testRoute(id string, score int, inf model.Infrastructure) model.ScoredRoute {
	return model.ScoredRoute{
		Route:       model.Route{ID: id, Name: "Route " + id, Infrastructure: inf},
		BaseScore:   score,
		SafetyScore: score,
	}
}

var route2 = testRoute("route2", 43, model.Infrastructure{PoliceStation: 1, PoliceBooth: 2, CCTV: 4, Streetlight: 5, ATM: 1})

func newTestClient(t *testing.T, tr Transport, opts Options) (*Client, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	opts.Now = clock.Now
	opts.Sleep = clock.Sleep
	if opts.Model == "" {
		opts.Model = "test-model"
	}
	return New(tr, opts), clock
}

func TestExplainRoute_Disabled(t *testing.T) {
	c, clock := newTestClient(t, nil, Options{MaxCalls: 2, MinInterval: 3 * time.Second})

	exp := c.ExplainRoute(context.Background(), route2)
	assert.Equal(t, model.ProvenanceFallback, exp.Provenance)
	assert.NotEmpty(t, exp.Text)
	assert.Equal(t, "AI provider not configured", exp.Note)
	assert.Nil(t, exp.RemainingCalls)
	assert.Empty(t, clock.Sleeps())

	stats := c.Stats()
	assert.False(t, stats.Enabled)
	assert.Equal(t, 0, stats.CallCount)
	assert.Equal(t, 2, stats.Remaining)
}

func TestExplainRoute_UseMockSkipsTransport(t *testing.T) {
	tr := &countingTransport{reply: "live"}
	c, clock := newTestClient(t, tr, Options{MaxCalls: 2, UseMock: true})

	for range 3 {
		exp := c.ExplainRoute(context.Background(), route2)
		assert.Equal(t, model.ProvenanceFallback, exp.Provenance)
	}
	assert.Zero(t, tr.calls.Load())
	assert.Empty(t, clock.Sleeps())

	stats := c.Stats()
	assert.True(t, stats.UseMock)
	assert.False(t, stats.MockMode)
	assert.Equal(t, 0, stats.CallCount)
}

func TestExplainRoute_LiveCallAnnotated(t *testing.T) {
	tr := &countingTransport{reply: "  Police presence is good.  "}
	c, clock := newTestClient(t, tr, Options{MaxCalls: 2})

	exp := c.ExplainRoute(context.Background(), route2)
	assert.Equal(t, model.ProvenanceLive, exp.Provenance)
	assert.Equal(t, "Police presence is good.", exp.Text)
	assert.Equal(t, "test-model", exp.Model)
	assert.Equal(t, 1, exp.CallNumber)
	require.NotNil(t, exp.RemainingCalls)
	assert.Equal(t, 1, *exp.RemainingCalls)
	assert.Equal(t, clock.Now(), exp.GeneratedAt)

	stats := c.Stats()
	require.NotNil(t, stats.LastCallAt)
	assert.Equal(t, clock.Now(), *stats.LastCallAt)
}

func TestExplainRoute_BudgetExhaustion(t *testing.T) {
	tr := &countingTransport{reply: "live text"}
	rec := newFakeRecorder()
	c, _ := newTestClient(t, tr, Options{MaxCalls: 2, MinInterval: 3 * time.Second, Recorder: rec})
	ctx := context.Background()

	first := c.ExplainRoute(ctx, route2)
	second := c.ExplainRoute(ctx, route2)
	third := c.ExplainRoute(ctx, route2)

	assert.Equal(t, model.ProvenanceLive, first.Provenance)
	assert.Equal(t, 1, first.CallNumber)
	assert.Equal(t, model.ProvenanceLive, second.Provenance)
	assert.Equal(t, 2, second.CallNumber)
	assert.Equal(t, 0, *second.RemainingCalls)

	assert.Equal(t, model.ProvenanceFallback, third.Provenance)
	assert.Equal(t, int32(2), tr.calls.Load())

	stats := c.Stats()
	assert.True(t, stats.MockMode)
	assert.Equal(t, 2, stats.CallCount, "budget+1 request must not increment the counter")
	assert.Equal(t, 0, stats.Remaining)

	// Mock mode is permanent: no further network or pacing.
	fourth := c.ExplainRoute(ctx, route2)
	assert.Equal(t, model.ProvenanceFallback, fourth.Provenance)
	assert.Equal(t, 2, c.Stats().CallCount)

	assert.Equal(t, 2, rec.served[model.ProvenanceLive])
	assert.Equal(t, 2, rec.served[model.ProvenanceFallback])
	assert.Equal(t, 2, rec.outcomes[OutcomeSuccess])
	assert.Equal(t, 1, rec.mockMode)
}

func TestExplainRoute_ZeroBudget(t *testing.T) {
	tr := &countingTransport{reply: "live"}
	c, _ := newTestClient(t, tr, Options{MaxCalls: 0})

	exp := c.ExplainRoute(context.Background(), route2)
	assert.Equal(t, model.ProvenanceFallback, exp.Provenance)
	assert.Zero(t, tr.calls.Load())
	assert.True(t, c.Stats().MockMode)
	assert.Equal(t, 0, c.Stats().Remaining)
}

func TestExplainRoute_MinIntervalPacing(t *testing.T) {
	tr := &countingTransport{reply: "ok"}
	c, clock := newTestClient(t, tr, Options{MaxCalls: 5, MinInterval: 3 * time.Second})
	ctx := context.Background()

	c.ExplainRoute(ctx, route2)
	assert.Empty(t, clock.Sleeps(), "first call must not wait")

	c.ExplainRoute(ctx, route2)
	require.Len(t, clock.Sleeps(), 1)
	assert.InDelta(t, float64(3*time.Second), float64(clock.Sleeps()[0]), float64(time.Millisecond))

	// One second later only the remaining two seconds are waited out.
	clock.Advance(time.Second)
	c.ExplainRoute(ctx, route2)
	require.Len(t, clock.Sleeps(), 2)
	assert.InDelta(t, float64(2*time.Second), float64(clock.Sleeps()[1]), float64(time.Millisecond))

	clock.Advance(10 * time.Second)
	c.ExplainRoute(ctx, route2)
	assert.Len(t, clock.Sleeps(), 2, "call after the interval elapsed must not wait")
	assert.Equal(t, int32(4), tr.calls.Load())
}

func TestExplainRoute_QuotaErrorEntersMockMode(t *testing.T) {
	tr := &countingTransport{err: &TransportError{Err: errors.New("429"), StatusCode: 429, QuotaExhausted: true}}
	rec := newFakeRecorder()
	c, _ := newTestClient(t, tr, Options{MaxCalls: 5, Recorder: rec})
	ctx := context.Background()

	exp := c.ExplainRoute(ctx, route2)
	assert.Equal(t, model.ProvenanceFallback, exp.Provenance)
	assert.Contains(t, exp.Note, "quota")

	stats := c.Stats()
	assert.True(t, stats.MockMode)
	assert.Equal(t, 1, stats.CallCount)
	assert.Equal(t, 4, stats.Remaining)

	c.ExplainRoute(ctx, route2)
	assert.Equal(t, int32(1), tr.calls.Load(), "no network calls after mock mode")
	assert.Equal(t, 1, rec.outcomes[OutcomeQuota])
	assert.Equal(t, 1, rec.mockMode)
}

func TestExplainRoute_TransportErrorKeepsLiveMode(t *testing.T) {
	tr := &countingTransport{err: &TransportError{Err: errors.New("503 overloaded"), StatusCode: 503}}
	c, _ := newTestClient(t, tr, Options{MaxCalls: 5})
	ctx := context.Background()

	exp := c.ExplainRoute(ctx, route2)
	assert.Equal(t, model.ProvenanceFallback, exp.Provenance)
	assert.False(t, c.Stats().MockMode)

	tr.err = nil
	tr.reply = "recovered"
	exp = c.ExplainRoute(ctx, route2)
	assert.Equal(t, model.ProvenanceLive, exp.Provenance)
	assert.Equal(t, 2, exp.CallNumber)
}

func TestExplainRoute_Timeout(t *testing.T) {
	rec := newFakeRecorder()
	tr := TransportFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	c, _ := newTestClient(t, tr, Options{MaxCalls: 2, Timeout: 20 * time.Millisecond, Recorder: rec})

	start := time.Now()
	exp := c.ExplainRoute(context.Background(), route2)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, model.ProvenanceFallback, exp.Provenance)
	assert.Contains(t, exp.Note, "timed out")
	assert.Equal(t, 1, rec.outcomes[OutcomeTimeout])
	assert.False(t, c.Stats().MockMode)
}

func TestExplainRoute_EmptyCompletion(t *testing.T) {
	tr := &countingTransport{reply: "   "}
	c, _ := newTestClient(t, tr, Options{MaxCalls: 2})

	exp := c.ExplainRoute(context.Background(), route2)
	assert.Equal(t, model.ProvenanceFallback, exp.Provenance)
	assert.NotEmpty(t, exp.Text)
}

func TestExplainRoute_CancelledWhileWaiting(t *testing.T) {
	tr := &countingTransport{reply: "ok"}
	c, _ := newTestClient(t, tr, Options{MaxCalls: 5, MinInterval: time.Minute})

	c.ExplainRoute(context.Background(), route2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exp := c.ExplainRoute(ctx, route2)
	assert.Equal(t, model.ProvenanceFallback, exp.Provenance)
	assert.Equal(t, 1, c.Stats().CallCount)
	assert.Equal(t, int32(1), tr.calls.Load())
}

func TestExplainRoute_ConcurrentCallersRespectBudget(t *testing.T) {
	tr := &countingTransport{reply: "ok"}
	c := New(tr, Options{MaxCalls: 3})

	var (
		wg   sync.WaitGroup
		live atomic.Int32
	)
	for range 25 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.ExplainRoute(context.Background(), route2).Provenance == model.ProvenanceLive {
				live.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), live.Load())
	assert.Equal(t, int32(3), tr.calls.Load())
	stats := c.Stats()
	assert.Equal(t, 3, stats.CallCount)
	assert.Equal(t, 0, stats.Remaining)
	assert.True(t, stats.MockMode)
}

func TestNew_Defaults(t *testing.T) {
	c := New(nil, Options{MaxCalls: -4, MinInterval: -time.Second})
	assert.False(t, c.Enabled())
	assert.Equal(t, 0, c.Stats().Budget)
	assert.Equal(t, DefaultTimeout, c.opts.Timeout)
	assert.NotNil(t, c.opts.Now)
	assert.NotNil(t, c.opts.Sleep)
}

func TestStats_RemainingNeverNegative(t *testing.T) {
	c, _ := newTestClient(t, &countingTransport{reply: "ok"}, Options{MaxCalls: 1})
	for range 5 {
		c.ExplainRoute(context.Background(), route2)
	}
	stats := c.Stats()
	assert.Equal(t, 1, stats.CallCount)
	assert.Equal(t, 0, stats.Remaining)
}

func TestTestConnection(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		c, _ := newTestClient(t, nil, Options{MaxCalls: 2})
		status := c.TestConnection(context.Background())
		assert.False(t, status.Success)
		assert.Equal(t, "disabled", status.Mode)
	})

	t.Run("mock configured", func(t *testing.T) {
		tr := &countingTransport{reply: "OK"}
		c, _ := newTestClient(t, tr, Options{MaxCalls: 2, UseMock: true})
		status := c.TestConnection(context.Background())
		assert.True(t, status.Success)
		assert.Equal(t, "mock", status.Mode)
		assert.Zero(t, tr.calls.Load())
	})

	t.Run("live", func(t *testing.T) {
		tr := &countingTransport{reply: "OK"}
		c, _ := newTestClient(t, tr, Options{MaxCalls: 2})
		status := c.TestConnection(context.Background())
		assert.True(t, status.Success)
		assert.Equal(t, "live", status.Mode)
		assert.Equal(t, "OK", status.Message)
		assert.Equal(t, 1, c.Stats().CallCount)
	})

	t.Run("failure switches to mock", func(t *testing.T) {
		tr := &countingTransport{err: &TransportError{Err: errors.New("dial tcp: refused")}}
		c, _ := newTestClient(t, tr, Options{MaxCalls: 2})
		status := c.TestConnection(context.Background())
		assert.False(t, status.Success)
		assert.Equal(t, "mock", status.Mode)
		assert.True(t, c.Stats().MockMode)
	})
}

func TestIsQuotaExhausted(t *testing.T) {
	quota := &TransportError{Err: errors.New("429"), QuotaExhausted: true}
	assert.True(t, IsQuotaExhausted(quota))
	assert.True(t, IsQuotaExhausted(errors.Join(errors.New("wrapped"), quota)))
	assert.False(t, IsQuotaExhausted(&TransportError{Err: errors.New("500")}))
	assert.False(t, IsQuotaExhausted(errors.New("quota exceeded")), "message text alone is not a quota signal")
	assert.False(t, IsQuotaExhausted(nil))
}
