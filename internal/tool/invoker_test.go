// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/niche-engine/internal/httputil"
	"github.com/pdiddy/niche-engine/internal/metrics"
	"github.com/pdiddy/niche-engine/pkg/types"
)

// fastPolicy keeps retries in the millisecond range.
func fastPolicy(retries int) types.ToolPolicy {
	return types.ToolPolicy{
		MaxRetries:  retries,
		BackoffBase: time.Millisecond,
		BackoffCap:  4 * time.Millisecond,
		Timeout:     time.Second,
	}
}

// countingTool fails with errs in order, then succeeds with `{"ok":true}`.
func countingTool(name string, calls *int32, errs ...error) Tool {
	return Func(name, func(context.Context, json.RawMessage) (json.RawMessage, error) {
		n := atomic.AddInt32(calls, 1)
		if int(n) <= len(errs) {
			return nil, errs[n-1]
		}
		return json.RawMessage(`{"ok":true}`), nil
	})
}

func alwaysFailing(name string, calls *int32, err error) Tool {
	return Func(name, func(context.Context, json.RawMessage) (json.RawMessage, error) {
		atomic.AddInt32(calls, 1)
		return nil, err
	})
}

func TestInvoke_ExhaustsAfterMaxRetries(t *testing.T) {
	var calls int32
	inv := NewInvoker()
	require.NoError(t, inv.Register(alwaysFailing("flaky", &calls, Transient(errors.New("upstream hiccup"))), fastPolicy(2)))

	_, err := inv.Invoke(context.Background(), "flaky", nil)

	var te *Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, KindExhausted, te.Kind)
	assert.Equal(t, 3, te.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "1 initial + 2 retries")

	log := inv.Log()
	require.Len(t, log, 1)
	assert.Equal(t, "exhausted", log[0].Outcome)
	assert.Equal(t, 3, log[0].Attempts)
}

func TestInvoke_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	inv := NewInvoker()
	tl := countingTool("search", &calls,
		&httputil.StatusError{StatusCode: http.StatusServiceUnavailable},
		&httputil.StatusError{StatusCode: http.StatusTooManyRequests},
	)
	require.NoError(t, inv.Register(tl, fastPolicy(3)))

	out, err := inv.Invoke(context.Background(), "search", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(out))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, OutcomeOK, inv.Log()[0].Outcome)
}

func TestInvoke_PermanentIsNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"not found", &httputil.StatusError{StatusCode: http.StatusNotFound}},
		{"unauthorized", &httputil.StatusError{StatusCode: http.StatusUnauthorized}},
		{"marked permanent", Permanent(errors.New("bad query"))},
		{"unknown error", errors.New("something odd")},
		{"permanent wins over transient", Permanent(Transient(errors.New("x")))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			inv := NewInvoker()
			require.NoError(t, inv.Register(alwaysFailing("api", &calls, tt.err), fastPolicy(5)))

			_, err := inv.Invoke(context.Background(), "api", nil)
			var te *Error
			require.True(t, errors.As(err, &te))
			assert.Equal(t, KindPermanent, te.Kind)
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		})
	}
}

func TestInvoke_AttemptTimeoutIsTransient(t *testing.T) {
	var calls int32
	slow := Func("slow", func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
		atomic.AddInt32(&calls, 1)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	inv := NewInvoker()
	p := fastPolicy(1)
	p.Timeout = 10 * time.Millisecond
	require.NoError(t, inv.Register(slow, p))

	_, err := inv.Invoke(context.Background(), "slow", nil)
	var te *Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, KindExhausted, te.Kind)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInvoke_RateLimited(t *testing.T) {
	var calls int32
	inv := NewInvoker()
	p := fastPolicy(0)
	p.RateLimitPerMinute = 1
	p.Timeout = 20 * time.Millisecond
	require.NoError(t, inv.Register(countingTool("trends", &calls), p))

	_, err := inv.Invoke(context.Background(), "trends", nil)
	require.NoError(t, err)

	start := time.Now()
	_, err = inv.Invoke(context.Background(), "trends", nil)
	var te *Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, KindRateLimited, te.Kind)
	assert.Equal(t, 0, te.Attempts)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, p.Timeout, "an over-budget call blocks for the timeout before failing")
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestInvoke_RateLimitWaitsForRefill(t *testing.T) {
	var calls int32
	inv := NewInvoker()
	p := fastPolicy(0)
	p.RateLimitPerMinute = 60 // one token a second
	p.Timeout = 3 * time.Second
	require.NoError(t, inv.Register(countingTool("search", &calls), p))

	for i := 0; i < p.RateLimitPerMinute; i++ {
		_, err := inv.Invoke(context.Background(), "search", nil)
		require.NoError(t, err)
	}

	start := time.Now()
	_, err := inv.Invoke(context.Background(), "search", nil)
	require.NoError(t, err, "a token that refills within the timeout is waited for")
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, int32(p.RateLimitPerMinute+1), atomic.LoadInt32(&calls))
}

func TestInvoke_CancelledWhileWaitingForBudget(t *testing.T) {
	var calls int32
	inv := NewInvoker()
	p := fastPolicy(0)
	p.RateLimitPerMinute = 1
	p.Timeout = time.Hour
	require.NoError(t, inv.Register(countingTool("trends", &calls), p))
	_, err := inv.Invoke(context.Background(), "trends", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = inv.Invoke(ctx, "trends", nil)
	var te *Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, KindPermanent, te.Kind)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestInvoke_UnlimitedRate(t *testing.T) {
	var calls int32
	inv := NewInvoker()
	require.NoError(t, inv.Register(countingTool("llm", &calls), fastPolicy(0)))
	for i := 0; i < 100; i++ {
		_, err := inv.Invoke(context.Background(), "llm", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(100), atomic.LoadInt32(&calls))
}

func TestInvoke_CancelledDuringBackoff(t *testing.T) {
	var calls int32
	inv := NewInvoker()
	p := fastPolicy(5)
	p.BackoffBase = time.Hour
	p.BackoffCap = time.Hour
	require.NoError(t, inv.Register(alwaysFailing("flaky", &calls, Transient(errors.New("503"))), p))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := inv.Invoke(ctx, "flaky", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestInvoke_UnknownTool(t *testing.T) {
	inv := NewInvoker()
	_, err := inv.Invoke(context.Background(), "nope", nil)
	var te *Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, KindPermanent, te.Kind)
	assert.Len(t, inv.Log(), 1)
}

func TestRegister_Duplicate(t *testing.T) {
	var calls int32
	inv := NewInvoker()
	require.NoError(t, inv.Register(countingTool("x", &calls), types.ToolPolicy{}))
	assert.Error(t, inv.Register(countingTool("x", &calls), types.ToolPolicy{}))
	assert.Equal(t, []string{"x"}, inv.Names())
}

func TestCaller_OnlyDeclaredTools(t *testing.T) {
	var searchCalls, llmCalls int32
	inv := NewInvoker()
	require.NoError(t, inv.Register(countingTool("web_search", &searchCalls), fastPolicy(0)))
	require.NoError(t, inv.Register(countingTool("llm", &llmCalls), fastPolicy(0)))

	c := inv.Scope("market_research", []string{"web_search"})
	_, err := c.Invoke(context.Background(), "web_search", nil)
	require.NoError(t, err)

	_, err = c.Invoke(context.Background(), "llm", nil)
	var te *Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, KindPermanent, te.Kind)
	assert.Equal(t, int32(0), atomic.LoadInt32(&llmCalls))

	log := c.Log()
	require.Len(t, log, 2)
	assert.Equal(t, "market_research", log[0].NodeID)

	log[0].Tool = "mutated"
	assert.Equal(t, "web_search", inv.Log()[0].Tool, "Log returns a copy")
}

func TestInvoke_RecordsMetrics(t *testing.T) {
	var calls int32
	m := metrics.NewCollector(prometheus.NewRegistry(), nil)
	inv := NewInvoker(WithMetrics(m))
	require.NoError(t, inv.Register(countingTool("llm", &calls), fastPolicy(0)))
	_, err := inv.Invoke(context.Background(), "llm", nil)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m2 := metrics.NewCollector(reg, nil)
	inv2 := NewInvoker(WithMetrics(m2))
	require.NoError(t, inv2.Register(alwaysFailing("llm", &calls, errors.New("bad")), fastPolicy(0)))
	_, _ = inv2.Invoke(context.Background(), "llm", nil)

	n, err := testutil.GatherAndCount(reg, "niche_engine_tool_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCall_Typed(t *testing.T) {
	type query struct {
		Q string `json:"q"`
	}
	type result struct {
		Hits []string `json:"hits"`
	}
	inv := NewInvoker()
	require.NoError(t, inv.Register(Typed("web_search", func(_ context.Context, q query) (result, error) {
		return result{Hits: []string{q.Q + " one", q.Q + " two"}}, nil
	}), fastPolicy(0)))

	got, err := Call[query, result](context.Background(), inv, "web_search", query{Q: "crm"})
	require.NoError(t, err)
	assert.Equal(t, []string{"crm one", "crm two"}, got.Hits)

	_, err = inv.Invoke(context.Background(), "web_search", json.RawMessage(`{"q": 7}`))
	var te *Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, KindPermanent, te.Kind)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("plain"), false},
		{context.Canceled, false},
		{context.DeadlineExceeded, true},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), true},
		{timeoutErr{}, true},
		{&httputil.StatusError{StatusCode: 500}, true},
		{&httputil.StatusError{StatusCode: 429}, true},
		{&httputil.StatusError{StatusCode: 400}, false},
		{fmt.Errorf("call: %w", &httputil.StatusError{StatusCode: 502}), true},
		{Transient(errors.New("x")), true},
		{Permanent(&httputil.StatusError{StatusCode: 503}), false},
	}
	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestBackoff(t *testing.T) {
	p := types.ToolPolicy{BackoffBase: 100 * time.Millisecond, BackoffCap: time.Second}
	tests := []struct {
		n    int
		want time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{60, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Backoff(p, tt.n), "attempt %d", tt.n)
	}
}

func TestBackoffProperties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	properties.Property("bounded by cap and non-decreasing", prop.ForAll(
		func(baseMs, capMs, n int) bool {
			p := types.ToolPolicy{
				BackoffBase: time.Duration(baseMs) * time.Millisecond,
				BackoffCap:  time.Duration(capMs) * time.Millisecond,
			}.WithDefaults()
			d1, d2 := Backoff(p, n), Backoff(p, n+1)
			return d1 <= p.BackoffCap && d1 <= d2 && d1 >= min(p.BackoffBase, p.BackoffCap)
		},
		gen.IntRange(1, 5000),
		gen.IntRange(1, 60000),
		gen.IntRange(1, 100),
	))

	properties.TestingRun(t)
}
