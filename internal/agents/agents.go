// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package agents implements the pipeline's nodes: market research, pain
// point discovery, persona analysis, niche scanning, idea generation,
// competition scanning, validation, and launch planning.
//
// Agents are stateless. Everything they learn comes from the view the
// harness hands them and from tool calls; everything they produce is
// returned as artifacts for the harness to gate and commit. Identifiers
// are content hashes, so identical evidence and tool responses yield
// identical artifacts.
package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/niche-engine/internal/evidence"
	"github.com/pdiddy/niche-engine/internal/graph"
	"github.com/pdiddy/niche-engine/internal/node"
	"github.com/pdiddy/niche-engine/internal/tool"
	"github.com/pdiddy/niche-engine/pkg/types"
)

// Node kinds registered by Registry.
const (
	KindMarketResearch  = "market_research"
	KindPainPoints      = "pain_point_discovery"
	KindPersonas        = "user_persona_analysis"
	KindNicheScanner    = "niche_opportunity_scanner"
	KindIdeaGenerator   = "business_model_generator"
	KindCompetitionScan = "competition_scan"
	KindValidation      = "business_model_validation"
	KindLaunchPlanning  = "launch_planning"
)

// Deps is what every agent shares within a run.
type Deps struct {
	Input types.RunInput
	Gate  *evidence.Gate

	// Fanout bounds concurrent tool calls inside one agent (default 4).
	Fanout int

	// SearchLimit is the number of hits requested per search (default 5).
	SearchLimit int

	Logger *zap.Logger
	Now    func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Fanout <= 0 {
		d.Fanout = 4
	}
	if d.SearchLimit <= 0 {
		d.SearchLimit = 5
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Gate == nil {
		d.Gate = evidence.NewGate(types.DefaultEvidenceConfig())
	}
	return d
}

// Registry returns a graph.Factory per agent kind.
func Registry(d Deps) map[string]graph.Factory {
	d = d.withDefaults()
	base := func(id string) agent {
		return agent{id: id, deps: d, log: d.Logger.With(zap.String("component", "agents"), zap.String("node", id))}
	}
	return map[string]graph.Factory{
		KindMarketResearch:  func(id string) (node.Node, error) { return &marketResearch{base(id)}, nil },
		KindPainPoints:      func(id string) (node.Node, error) { return &painPoints{base(id)}, nil },
		KindPersonas:        func(id string) (node.Node, error) { return &personas{base(id)}, nil },
		KindNicheScanner:    func(id string) (node.Node, error) { return &nicheScanner{base(id)}, nil },
		KindIdeaGenerator:   func(id string) (node.Node, error) { return &ideaGenerator{base(id)}, nil },
		KindCompetitionScan: func(id string) (node.Node, error) { return &competitionScan{base(id)}, nil },
		KindValidation:      func(id string) (node.Node, error) { return &validation{base(id)}, nil },
		KindLaunchPlanning:  func(id string) (node.Node, error) { return &launchPlanning{base(id)}, nil },
	}
}

// agent carries what every node implementation needs.
type agent struct {
	id   string
	deps Deps
	log  *zap.Logger
}

func (a agent) ID() string { return a.id }

// searchAll runs one search per query with bounded concurrency. Results
// keep query order; failed queries leave a zero response and an error in
// the same slot.
func (a agent) searchAll(ctx context.Context, tools tool.Client, toolName string, queries []string) ([]types.SearchResponse, []error) {
	out := make([]types.SearchResponse, len(queries))
	errs := make([]error, len(queries))

	var g errgroup.Group
	g.SetLimit(a.deps.Fanout)
	for i, q := range queries {
		g.Go(func() error {
			resp, err := tool.Call[types.SearchRequest, types.SearchResponse](ctx, tools, toolName,
				types.SearchRequest{Query: q, Limit: a.deps.SearchLimit})
			if err != nil {
				a.log.Warn("search failed", zap.String("tool", toolName), zap.String("query", q), zap.Error(err))
				errs[i] = err
				return nil
			}
			if resp.Query == "" {
				resp.Query = q
			}
			out[i] = resp
			return nil
		})
	}
	_ = g.Wait()
	return out, errs
}

// ask renders a prompt, calls the llm tool, and decodes its JSON answer
// into out.
func (a agent) ask(ctx context.Context, tools tool.Client, task string, prompt string, out any) error {
	resp, err := tool.Call[types.LLMRequest, types.LLMResponse](ctx, tools, types.ToolLLM,
		types.LLMRequest{Task: task, Prompt: prompt, JSON: true})
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(stripFences(resp.Text)), out); err != nil {
		return &malformedError{task: task, err: err}
	}
	return nil
}

// malformedError is an LLM answer that is not the requested JSON.
type malformedError struct {
	task string
	err  error
}

func (e *malformedError) Error() string {
	return fmt.Sprintf("malformed %s response from llm: %v", e.task, e.err)
}

func (e *malformedError) Unwrap() error { return e.err }

// degradable reports whether an llm failure allows a heuristic answer:
// the tool gave up after retries, ran out of rate budget, or answered with
// something other than the requested JSON.
func degradable(err error) bool {
	var me *malformedError
	if errors.As(err, &me) {
		return true
	}
	var te *tool.Error
	return errors.As(err, &te) && (te.Kind == tool.KindExhausted || te.Kind == tool.KindRateLimited)
}

// stripFences removes a Markdown code fence around a JSON answer.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// firstError returns the first non-nil error.
func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func clamp(v float64) float64 {
	return min(max(v, 0), 10)
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
