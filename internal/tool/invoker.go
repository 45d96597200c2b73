// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/niche-engine/internal/metrics"
	"github.com/pdiddy/niche-engine/pkg/types"
)

// OutcomeOK is the audit outcome of a successful invocation. Failures use
// the Kind string.
const OutcomeOK = "ok"

// Record is one entry of the invocation audit log.
type Record struct {
	Tool      string        `json:"tool" yaml:"tool"`
	NodeID    string        `json:"node_id,omitempty" yaml:"node_id,omitempty"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Latency   time.Duration `json:"latency" yaml:"latency"`
	Attempts  int           `json:"attempts" yaml:"attempts"`
	Outcome   string        `json:"outcome" yaml:"outcome"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
}

type entry struct {
	tool    Tool
	policy  types.ToolPolicy
	limiter *rate.Limiter
}

// Invoker owns the registered tools, their policies, and the audit log.
// It is safe for concurrent use.
type Invoker struct {
	mu    sync.RWMutex
	tools map[string]*entry

	logMu sync.Mutex
	log   []Record

	logger  *zap.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(inv *Invoker) {
		if l != nil {
			inv.logger = l
		}
	}
}

// WithMetrics records every invocation on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(inv *Invoker) { inv.metrics = c }
}

// NewInvoker creates an Invoker with no tools registered.
func NewInvoker(opts ...Option) *Invoker {
	inv := &Invoker{
		tools:  map[string]*entry{},
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(inv)
	}
	inv.logger = inv.logger.With(zap.String("component", "tool"))
	return inv
}

// Register adds a tool under its name with the given policy. Zero policy
// fields take defaults; a zero rate limit means unlimited.
func (inv *Invoker) Register(t Tool, p types.ToolPolicy) error {
	name := t.Name()
	if name == "" {
		return errors.New("tool has an empty name")
	}
	p = p.WithDefaults()

	limit, burst := rate.Inf, 0
	if p.RateLimitPerMinute > 0 {
		limit = rate.Limit(float64(p.RateLimitPerMinute) / 60)
		burst = p.RateLimitPerMinute
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()
	if _, dup := inv.tools[name]; dup {
		return fmt.Errorf("tool %q already registered", name)
	}
	inv.tools[name] = &entry{tool: t, policy: p, limiter: rate.NewLimiter(limit, burst)}
	return nil
}

// Has reports whether a tool is registered.
func (inv *Invoker) Has(name string) bool {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	_, ok := inv.tools[name]
	return ok
}

// Names returns the registered tool names, sorted.
func (inv *Invoker) Names() []string {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	names := make([]string, 0, len(inv.tools))
	for n := range inv.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Invoke calls a tool outside any node.
func (inv *Invoker) Invoke(ctx context.Context, name string, req json.RawMessage) (json.RawMessage, error) {
	return inv.invoke(ctx, "", name, req)
}

// Log returns a copy of the audit log.
func (inv *Invoker) Log() []Record {
	inv.logMu.Lock()
	defer inv.logMu.Unlock()
	return slices.Clone(inv.log)
}

func (inv *Invoker) invoke(ctx context.Context, nodeID, name string, req json.RawMessage) (json.RawMessage, error) {
	inv.mu.RLock()
	e, ok := inv.tools[name]
	inv.mu.RUnlock()
	if !ok {
		err := &Error{Tool: name, Kind: KindPermanent, Err: errors.New("tool is not registered")}
		inv.audit(Record{Tool: name, NodeID: nodeID, StartedAt: inv.now()}, err)
		return nil, err
	}

	rec := Record{Tool: name, NodeID: nodeID, StartedAt: inv.now()}
	out, err := inv.attempt(ctx, e, nodeID, req, &rec)
	rec.Latency = inv.now().Sub(rec.StartedAt)
	inv.audit(rec, err)
	return out, err
}

// attempt runs the retry loop. It returns nil error or an *Error.
func (inv *Invoker) attempt(ctx context.Context, e *entry, nodeID string, req json.RawMessage, rec *Record) (json.RawMessage, error) {
	p := e.policy
	name := e.tool.Name()
	log := inv.logger.With(zap.String("tool", name), zap.String("node", nodeID))

	for {
		if err := waitForBudget(ctx, e.limiter, p.Timeout); err != nil {
			if ctx.Err() != nil {
				return nil, &Error{Tool: name, Kind: KindPermanent, Attempts: rec.Attempts, Err: ctx.Err()}
			}
			return nil, &Error{Tool: name, Kind: KindRateLimited, Attempts: rec.Attempts,
				Err: fmt.Errorf("no rate budget within %v: %w", p.Timeout, err)}
		}

		rec.Attempts++
		actx, cancel := context.WithTimeout(ctx, p.Timeout)
		out, err := e.tool.Call(actx, req)
		cancel()
		if err == nil {
			return out, nil
		}

		if ctx.Err() != nil {
			return nil, &Error{Tool: name, Kind: KindPermanent, Attempts: rec.Attempts, Err: err}
		}
		if !IsTransient(err) {
			return nil, &Error{Tool: name, Kind: KindPermanent, Attempts: rec.Attempts, Err: err}
		}
		if rec.Attempts > p.MaxRetries {
			return nil, &Error{Tool: name, Kind: KindExhausted, Attempts: rec.Attempts, Err: err}
		}

		delay := Backoff(p, rec.Attempts)
		log.Debug("transient tool failure, retrying",
			zap.Int("attempt", rec.Attempts),
			zap.Duration("backoff", delay),
			zap.Error(err))

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, &Error{Tool: name, Kind: KindPermanent, Attempts: rec.Attempts, Err: ctx.Err()}
		case <-t.C:
		}
	}
}

// waitForBudget blocks until the limiter grants a token or timeout passes.
// A reservation that would arrive after timeout is held for the full timeout
// and then returned, so an over-budget call still waits before failing.
func waitForBudget(ctx context.Context, l *rate.Limiter, timeout time.Duration) error {
	r := l.Reserve()
	if !r.OK() {
		return errors.New("rate limit admits no calls")
	}
	delay := r.Delay()
	if delay == 0 {
		return nil
	}

	t := time.NewTimer(min(delay, timeout))
	defer t.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-t.C:
	}
	if delay > timeout {
		r.Cancel()
		return fmt.Errorf("next token in %v", delay)
	}
	return nil
}

// Backoff returns the delay after the n-th failed attempt (n >= 1):
// min(base * 2^(n-1), cap).
func Backoff(p types.ToolPolicy, n int) time.Duration {
	d := p.BackoffBase
	for i := 1; i < n && d < p.BackoffCap; i++ {
		d *= 2
	}
	return min(d, p.BackoffCap)
}

func (inv *Invoker) audit(rec Record, err error) {
	rec.Outcome = OutcomeOK
	if err != nil {
		rec.Error = err.Error()
		var te *Error
		if errors.As(err, &te) {
			rec.Outcome = string(te.Kind)
			rec.Attempts = te.Attempts
		}
		inv.logger.Warn("tool call failed",
			zap.String("tool", rec.Tool),
			zap.String("node", rec.NodeID),
			zap.String("outcome", rec.Outcome),
			zap.Int("attempts", rec.Attempts),
			zap.Error(err))
	}

	inv.logMu.Lock()
	inv.log = append(inv.log, rec)
	inv.logMu.Unlock()

	inv.metrics.RecordToolCall(rec.Tool, rec.Outcome, rec.Attempts, rec.Latency)
}
