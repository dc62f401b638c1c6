// Package explain produces natural-language safety explanations for scored
// routes. Live explanations come from a generative text provider under a
// fixed per-process call budget and a minimum call interval; once the budget
// is spent or the provider reports quota exhaustion the client serves
// deterministic templates for the rest of the process lifetime.
package explain

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/saferoute/internal/model"
)

// Defaults applied by New when an option is left at its zero value.
const (
	DefaultMaxCalls    = 2
	DefaultMinInterval = 3 * time.Second
	DefaultTimeout     = 10 * time.Second
)

var (
	// ErrBudgetExhausted is returned by a live call attempted after the
	// session budget has been spent.
	ErrBudgetExhausted = errors.New("explain: call budget exhausted")
	// ErrMockMode is returned by a live call attempted after mock mode was
	// entered.
	ErrMockMode = errors.New("explain: mock mode active")
	// ErrEmptyCompletion is returned when the provider answers with no text.
	ErrEmptyCompletion = errors.New("explain: empty completion")
)

// Live call outcomes reported to the Recorder.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeQuota   = "quota"
	OutcomeTimeout = "timeout"
	OutcomeEmpty   = "empty"
)

// Recorder observes explanation traffic. Implementations must be safe for
// concurrent use.
type Recorder interface {
	ExplanationServed(p model.Provenance)
	LiveCall(outcome string)
	MockModeEntered()
}

type nopRecorder struct{}

func (nopRecorder) ExplanationServed(model.Provenance) {}
func (nopRecorder) LiveCall(string)                    {}
func (nopRecorder) MockModeEntered()                   {}

// Options configures a Client.
type Options struct {
	Model       string
	MaxCalls    int
	MinInterval time.Duration
	Timeout     time.Duration
	UseMock     bool

	// Now and Sleep default to the wall clock and a context-aware sleep.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error

	Recorder Recorder
}

// Client is the quota-managed explanation generator. One Client is shared by
// every caller in the process; it is safe for concurrent use.
type Client struct {
	transport Transport
	opts      Options
	limiter   *rate.Limiter
	recorder  Recorder

	mu        sync.Mutex
	mockMode  bool
	callCount int
	lastCall  time.Time
}

// New creates a Client. A nil transport disables live calls entirely.
func New(transport Transport, opts Options) *Client {
	if opts.MaxCalls < 0 {
		opts.MaxCalls = 0
	}
	if opts.MinInterval < 0 {
		opts.MinInterval = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	rec := opts.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}

	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}

	return &Client{
		transport: transport,
		opts:      opts,
		limiter:   rate.NewLimiter(limit, 1),
		recorder:  rec,
	}
}

// Enabled reports whether a provider transport is configured.
func (c *Client) Enabled() bool {
	return c.transport != nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.opts.Model
}

// ExplainRoute returns an explanation for a scored route. It never fails:
// every problem on the live path degrades to the templated fallback.
func (c *Client) ExplainRoute(ctx context.Context, route model.ScoredRoute) model.Explanation {
	if reason, ok := c.fallbackOnly(); ok {
		return c.serveFallback(route, reason)
	}

	text, n, err := c.callWithRateLimit(ctx, routePrompt(route))
	if err != nil {
		zap.L().Info("explain: serving fallback explanation",
			zap.String("route_id", route.ID),
			zap.Error(err),
		)
		return c.serveFallback(route, fallbackNote(err))
	}

	remaining := max(0, c.opts.MaxCalls-n)
	c.recorder.ExplanationServed(model.ProvenanceLive)
	return model.Explanation{
		Text:           text,
		Provenance:     model.ProvenanceLive,
		Model:          c.opts.Model,
		CallNumber:     n,
		RemainingCalls: &remaining,
		GeneratedAt:    c.opts.Now(),
	}
}

// Stats reports the state of the call budget.
func (c *Client) Stats() model.QuotaStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := model.QuotaStats{
		Enabled:   c.Enabled(),
		MockMode:  c.mockMode,
		UseMock:   c.opts.UseMock,
		CallCount: c.callCount,
		Budget:    c.opts.MaxCalls,
		Remaining: max(0, c.opts.MaxCalls-c.callCount),
		Model:     c.opts.Model,
	}
	if !c.lastCall.IsZero() {
		last := c.lastCall
		stats.LastCallAt = &last
	}
	return stats
}

// TestConnection probes the provider with a trivial prompt. The probe spends
// one unit of the call budget; a failed probe switches the client to mock
// mode.
func (c *Client) TestConnection(ctx context.Context) model.ConnectionStatus {
	status := model.ConnectionStatus{Model: c.opts.Model}

	if !c.Enabled() {
		status.Mode = "disabled"
		status.Message = "no AI provider configured; templated explanations in use"
		return status
	}
	if reason, ok := c.fallbackOnly(); ok {
		status.Success = true
		status.Mode = "mock"
		status.Message = reason
		return status
	}

	text, _, err := c.callWithRateLimit(ctx, "Say OK")
	if err != nil {
		c.enterMockMode("connection test failed")
		status.Mode = "mock"
		status.Message = "connection test failed, switched to mock mode: " + err.Error()
		return status
	}

	status.Success = true
	status.Mode = "live"
	status.Message = text
	return status
}

// fallbackOnly reports whether live calls are currently ruled out and why.
func (c *Client) fallbackOnly() (string, bool) {
	if !c.Enabled() {
		return "AI provider not configured", true
	}
	if c.opts.UseMock {
		return "mock responses configured", true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mockMode {
		return "mock mode active to conserve API quota", true
	}
	return "", false
}

// callWithRateLimit performs one budgeted live call. It waits out the
// minimum call interval, then atomically checks and spends one unit of
// budget. The mutex is not held during the provider call.
func (c *Client) callWithRateLimit(ctx context.Context, prompt string) (string, int, error) {
	now := c.opts.Now()
	r := c.limiter.ReserveN(now, 1)
	if d := r.DelayFrom(now); d > 0 {
		zap.L().Debug("explain: waiting for call interval", zap.Duration("delay", d))
		if err := c.opts.Sleep(ctx, d); err != nil {
			r.CancelAt(c.opts.Now())
			return "", 0, eris.Wrap(err, "explain: wait for call interval")
		}
	}

	c.mu.Lock()
	if c.mockMode {
		c.mu.Unlock()
		return "", 0, ErrMockMode
	}
	if c.callCount >= c.opts.MaxCalls {
		c.mockMode = true
		c.mu.Unlock()
		zap.L().Warn("explain: call budget exhausted, switching to mock mode",
			zap.Int("max_calls", c.opts.MaxCalls),
		)
		c.recorder.MockModeEntered()
		return "", 0, ErrBudgetExhausted
	}
	c.callCount++
	n := c.callCount
	c.lastCall = c.opts.Now()
	c.mu.Unlock()

	zap.L().Info("explain: live call",
		zap.Int("call_number", n),
		zap.Int("max_calls", c.opts.MaxCalls),
	)

	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	text, err := c.transport.Complete(callCtx, prompt)
	if err != nil {
		switch {
		case IsQuotaExhausted(err):
			c.recorder.LiveCall(OutcomeQuota)
			c.enterMockMode("provider reported quota exhaustion")
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
			c.recorder.LiveCall(OutcomeTimeout)
		default:
			c.recorder.LiveCall(OutcomeError)
		}
		return "", n, eris.Wrapf(err, "explain: live call %d", n)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		c.recorder.LiveCall(OutcomeEmpty)
		return "", n, ErrEmptyCompletion
	}
	c.recorder.LiveCall(OutcomeSuccess)
	return text, n, nil
}

// enterMockMode performs the one-way switch to mock mode.
func (c *Client) enterMockMode(reason string) {
	c.mu.Lock()
	already := c.mockMode
	c.mockMode = true
	c.mu.Unlock()

	if !already {
		zap.L().Warn("explain: switching to mock mode", zap.String("reason", reason))
		c.recorder.MockModeEntered()
	}
}

func (c *Client) serveFallback(route model.ScoredRoute, note string) model.Explanation {
	c.recorder.ExplanationServed(model.ProvenanceFallback)
	exp := Fallback(route)
	exp.Model = c.opts.Model
	exp.Note = note
	exp.GeneratedAt = c.opts.Now()
	return exp
}

func fallbackNote(err error) string {
	switch {
	case errors.Is(err, ErrBudgetExhausted), IsQuotaExhausted(err):
		return "API quota conserved; templated explanation served"
	case errors.Is(err, context.DeadlineExceeded):
		return "AI provider timed out; templated explanation served"
	default:
		return "AI provider unavailable; templated explanation served"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
