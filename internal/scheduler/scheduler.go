// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scheduler executes a workflow graph against a research state.
//
// The executor keeps a ready set: a node whose predecessors have all
// resolved either runs (every predecessor succeeded and every incoming
// predicate holds), is skipped (a predicate failed or a predecessor was
// skipped or had insufficient input), or is blocked (a predecessor failed
// or was blocked). Ready nodes run concurrently up to MaxParallel and are
// launched in graph declaration order. Every node gets exactly one phase
// record. Committed artifacts are never rolled back.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pdiddy/niche-engine/internal/graph"
	"github.com/pdiddy/niche-engine/internal/metrics"
	"github.com/pdiddy/niche-engine/internal/node"
	"github.com/pdiddy/niche-engine/internal/state"
	"github.com/pdiddy/niche-engine/internal/tool"
	"github.com/pdiddy/niche-engine/pkg/types"
)

const tracerName = "github.com/pdiddy/niche-engine/internal/scheduler"

// Result is everything a run produced. It is returned even when the run
// failed; partial results are preserved.
type Result struct {
	Status   types.RunStatus
	Snapshot *state.Snapshot
	Metadata types.RunMetadata

	// Errors holds node failures in graph declaration order.
	Errors []*node.Error

	// ToolLog is the audit log of every tool invocation in the run.
	ToolLog []tool.Record
}

// Executor runs graphs. One Executor may run many graphs, one state each.
type Executor struct {
	harness *node.Harness
	cfg     types.SchedulerConfig
	logger  *zap.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer
	now     func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records node and run outcomes on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Executor) { e.metrics = c }
}

// WithTracerProvider sets where node spans go. The default is the global
// provider, which discards spans unless the process installs one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Executor) { e.tracer = tp.Tracer(tracerName) }
}

// WithClock overrides time.Now for phase records.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// New returns an Executor that runs nodes through h.
func New(h *node.Harness, cfg types.SchedulerConfig, opts ...Option) *Executor {
	e := &Executor{
		harness: h,
		cfg:     cfg.WithDefaults(),
		logger:  zap.NewNop(),
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	e.logger = e.logger.With(zap.String("component", "scheduler"))
	return e
}

type finished struct {
	id        string
	startedAt time.Time
	endedAt   time.Time
	res       node.Result
}

// run holds the bookkeeping of one Run call.
type run struct {
	e        *Executor
	g        *graph.Graph
	st       *state.State
	outcomes map[string]types.Outcome
	running  map[string]bool
	errs     map[string]*node.Error
}

// Run executes g against st until every node has resolved or the run is
// cancelled. Cancelling ctx stops new launches; in-flight nodes finish
// under their own and the run's deadlines. The error is non-nil only when
// the run could not start.
func (e *Executor) Run(ctx context.Context, g *graph.Graph, st *state.State) (*Result, error) {
	if g == nil {
		return nil, errors.New("nil graph")
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	if err := st.SetStatus(types.RunRunning); err != nil {
		return nil, fmt.Errorf("starting run: %w", err)
	}

	runCtx, cancelRun := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.RunTimeout)
	defer cancelRun()

	meta := st.Metadata()
	log := e.logger.With(zap.String("run", meta.RunID), zap.String("graph", g.Name()))
	log.Info("run started", zap.Int("nodes", len(g.Vertices())))

	r := &run{
		e:        e,
		g:        g,
		st:       st,
		outcomes: map[string]types.Outcome{},
		running:  map[string]bool{},
		errs:     map[string]*node.Error{},
	}

	results := make(chan finished)
	cancelCh := ctx.Done()
	deadlineCh := runCtx.Done()
	cancelled := false

	for {
		if !cancelled {
			for _, v := range r.schedule() {
				r.running[v.ID()] = true
				go e.execute(runCtx, st, v, results)
			}
		}
		if len(r.running) == 0 {
			break
		}

		select {
		case f := <-results:
			delete(r.running, f.id)
			r.finish(f)
		case <-cancelCh:
			log.Warn("run cancelled, waiting for in-flight nodes", zap.Int("in_flight", len(r.running)))
			cancelled, cancelCh = true, nil
		case <-deadlineCh:
			log.Warn("run timeout reached", zap.Duration("timeout", e.cfg.RunTimeout))
			cancelled, deadlineCh = true, nil
		}
	}

	if cancelled {
		for _, v := range g.Vertices() {
			if _, done := r.outcomes[v.ID()]; !done {
				r.resolve(v.ID(), types.OutcomeCancelled, "run cancelled before node started")
			}
		}
	}

	status := r.status(cancelled)
	if err := st.SetStatus(status); err != nil {
		log.Error("setting final status", zap.Error(err))
	}
	snap := st.Freeze(e.now())
	e.metrics.RecordRun(string(status))

	res := &Result{
		Status:   status,
		Snapshot: snap,
		Metadata: st.Metadata(),
		ToolLog:  e.harness.ToolLog(),
	}
	for _, v := range g.Vertices() {
		if ne, ok := r.errs[v.ID()]; ok {
			res.Errors = append(res.Errors, ne)
		}
	}
	log.Info("run finished",
		zap.String("status", string(status)),
		zap.Int("ideas", len(snap.Ideas)),
		zap.Int("failures", len(res.Errors)))
	return res, nil
}

// schedule resolves skipped and blocked nodes until nothing changes, then
// returns the nodes to launch now in declaration order.
func (r *run) schedule() []graph.Vertex {
	var launch []graph.Vertex
	capacity := r.e.cfg.MaxParallel - len(r.running)

	for changed := true; changed; {
		changed = false
		launch = launch[:0]
		for _, v := range r.g.Vertices() {
			id := v.ID()
			if _, done := r.outcomes[id]; done || r.running[id] {
				continue
			}
			switch d := r.decide(id); d {
			case decisionWait:
			case decisionRun:
				if len(launch) < capacity {
					launch = append(launch, v)
				}
			case decisionBlock:
				r.resolve(id, types.OutcomeBlocked, "upstream node failed")
				changed = true
			case decisionSkip:
				r.resolve(id, types.OutcomeSkipped, "branch predicate not satisfied")
				changed = true
			}
		}
	}
	return launch
}

type decision int

const (
	decisionWait decision = iota
	decisionRun
	decisionSkip
	decisionBlock
)

func (r *run) decide(id string) decision {
	in := r.g.Incoming(id)
	blocked, skipped := false, false
	for _, e := range in {
		o, done := r.outcomes[e.From]
		if !done {
			return decisionWait
		}
		switch o {
		case types.OutcomeFailed, types.OutcomeBlocked, types.OutcomeCancelled:
			blocked = true
		case types.OutcomeSkipped, types.OutcomeInputInsufficient:
			skipped = true
		}
	}
	if blocked {
		return decisionBlock
	}
	if skipped {
		return decisionSkip
	}
	snap := r.st.Snapshot()
	for _, e := range in {
		if !e.Holds(snap) {
			r.e.logger.Debug("edge predicate false",
				zap.String("from", e.From), zap.String("to", e.To), zap.String("when", e.When))
			return decisionSkip
		}
	}
	return decisionRun
}

// resolve records a node that will not run.
func (r *run) resolve(id string, o types.Outcome, reason string) {
	r.outcomes[id] = o
	now := r.e.now()
	r.record(types.PhaseRecord{NodeID: id, StartedAt: now, EndedAt: now, Outcome: o, Error: reason})
}

func (r *run) finish(f finished) {
	r.outcomes[f.id] = f.res.Outcome
	rec := types.PhaseRecord{NodeID: f.id, StartedAt: f.startedAt, EndedAt: f.endedAt, Outcome: f.res.Outcome}
	if f.res.Err != nil {
		rec.Error = f.res.Err.Error()
		if f.res.Err.Fatal() {
			r.errs[f.id] = f.res.Err
		}
	}
	r.record(rec)
}

func (r *run) record(rec types.PhaseRecord) {
	if err := r.st.RecordPhase(rec); err != nil {
		r.e.logger.Error("recording phase", zap.String("node", rec.NodeID), zap.Error(err))
	}
	r.e.metrics.RecordNode(rec.NodeID, string(rec.Outcome), rec.Duration())
	r.e.logger.Info("node resolved",
		zap.String("node", rec.NodeID),
		zap.String("outcome", string(rec.Outcome)),
		zap.Duration("duration", rec.Duration()),
		zap.String("error", rec.Error))
}

// status computes the final run status. A run with failures is partially
// completed when some node independent of every failed node succeeded.
func (r *run) status(cancelled bool) types.RunStatus {
	if cancelled {
		return types.RunPartiallyCompleted
	}
	var failed []string
	anyBlocked := false
	for id, o := range r.outcomes {
		switch o {
		case types.OutcomeFailed:
			failed = append(failed, id)
		case types.OutcomeBlocked:
			anyBlocked = true
		}
	}
	if len(failed) == 0 && !anyBlocked {
		return types.RunCompleted
	}
	for id, o := range r.outcomes {
		if o != types.OutcomeSucceeded {
			continue
		}
		independent := true
		for _, f := range failed {
			if !r.g.Independent(id, f) {
				independent = false
				break
			}
		}
		if independent {
			return types.RunPartiallyCompleted
		}
	}
	return types.RunFailed
}

// execute runs one node under its deadline and reports on results. A
// panicking node is reported as an unexpected failure.
func (e *Executor) execute(runCtx context.Context, st *state.State, v graph.Vertex, results chan<- finished) {
	id := v.ID()
	timeout := v.Timeout
	if timeout <= 0 {
		timeout = e.cfg.NodeTimeout
	}
	ctx, cancel := context.WithTimeout(runCtx, timeout)
	defer cancel()

	ctx, span := e.tracer.Start(ctx, "node "+id, trace.WithAttributes(attribute.String("node.id", id)))
	started := e.now()
	res := e.safeExecute(ctx, st, v)
	ended := e.now()

	span.SetAttributes(
		attribute.String("node.outcome", string(res.Outcome)),
		attribute.Int("node.ideas_approved", res.Approved),
		attribute.Int("node.ideas_rejected", res.Rejected),
	)
	if res.Err != nil && res.Err.Fatal() {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, string(res.Err.Kind))
	}
	span.End()

	results <- finished{id: id, startedAt: started, endedAt: ended, res: res}
}

func (e *Executor) safeExecute(ctx context.Context, st *state.State, v graph.Vertex) (res node.Result) {
	defer func() {
		if p := recover(); p != nil {
			res = node.Result{
				Outcome: types.OutcomeFailed,
				Err:     &node.Error{NodeID: v.ID(), Kind: node.KindUnexpected, Err: fmt.Errorf("panic: %v", p)},
			}
		}
	}()
	return e.harness.Execute(ctx, st, v.Node)
}
