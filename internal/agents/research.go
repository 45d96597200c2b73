// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/niche-engine/internal/node"
	"github.com/pdiddy/niche-engine/internal/state"
	"github.com/pdiddy/niche-engine/internal/tool"
	"github.com/pdiddy/niche-engine/pkg/types"
)

const trendSource = "google_trends"

// marketQueries are the trend queries for an industry.
func marketQueries(industry string) []string {
	return []string{
		industry + " automation AI",
		industry + " machine learning",
		industry + " software tools",
		industry + " productivity",
		industry + " workflow automation",
	}
}

// forumQueries are the complaint queries for an industry.
func forumQueries(industry string) []string {
	return []string{
		industry + " problems",
		industry + " automation challenges",
		industry + " manual work issues",
	}
}

// marketResearch records one trend per market query.
type marketResearch struct{ agent }

func (a *marketResearch) Contract() node.Contract {
	return node.Contract{
		Writes: []types.Field{types.FieldTrends},
		Tools:  []string{types.ToolTrends},
	}
}

func (a *marketResearch) Run(ctx context.Context, _ *state.Snapshot, tools tool.Client) (state.Artifacts, error) {
	queries := marketQueries(a.deps.Input.Industry)
	resps := make([]*types.TrendResponse, len(queries))
	errs := make([]error, len(queries))

	var g errgroup.Group
	g.SetLimit(a.deps.Fanout)
	for i, q := range queries {
		g.Go(func() error {
			resp, err := tool.Call[types.TrendRequest, types.TrendResponse](ctx, tools, types.ToolTrends,
				types.TrendRequest{Query: q, Region: a.deps.Input.Region})
			if err != nil {
				a.log.Warn("trend query failed", zap.String("query", q), zap.Error(err))
				errs[i] = err
				return nil
			}
			resps[i] = &resp
			return nil
		})
	}
	_ = g.Wait()

	now := a.deps.Now().UTC()
	var out state.Artifacts
	for i, resp := range resps {
		if resp == nil {
			continue
		}
		desc := fmt.Sprintf("Search interest in %q", queries[i])
		if len(resp.Rising) > 0 {
			desc += "; rising: " + strings.Join(resp.Rising, ", ")
		}
		out.Trends = append(out.Trends, types.Trend{
			ID:             types.StableID("trend", queries[i]),
			Source:         trendSource,
			Description:    desc,
			SignalStrength: round1(clamp(resp.Interest / 10)),
			CapturedAt:     now,
		})
	}
	if len(out.Trends) == 0 {
		return state.Artifacts{}, firstError(errs)
	}
	a.log.Info("market trends captured", zap.Int("trends", len(out.Trends)))
	return out, nil
}

// painPoints mines forum discussions for recurring complaints.
type painPoints struct{ agent }

func (a *painPoints) Contract() node.Contract {
	return node.Contract{
		Reads:  []types.Field{types.FieldTrends},
		Writes: []types.Field{types.FieldPainPoints},
		Tools:  []string{types.ToolForumSearch, types.ToolLLM},
	}
}

type discussion struct {
	Query      string `json:"query"`
	Title      string `json:"title"`
	Snippet    string `json:"snippet,omitempty"`
	Engagement int    `json:"engagement,omitempty"`
}

type painAnswer struct {
	PainPoints []struct {
		QuoteOrSummary    string   `json:"quote_or_summary"`
		Source            string   `json:"source"`
		FrequencyEstimate float64  `json:"frequency_estimate"`
		RelatedTrendIDs   []string `json:"related_trend_ids"`
	} `json:"pain_points"`
}

func (a *painPoints) Run(ctx context.Context, view *state.Snapshot, tools tool.Client) (state.Artifacts, error) {
	queries := forumQueries(a.deps.Input.Industry)
	resps, errs := a.searchAll(ctx, tools, types.ToolForumSearch, queries)

	var discussions []discussion
	for _, r := range resps {
		for _, h := range r.Hits {
			discussions = append(discussions, discussion{Query: r.Query, Title: h.Title, Snippet: h.Snippet, Engagement: h.Engagement})
		}
	}
	if len(discussions) == 0 {
		if err := firstError(errs); err != nil && countErrors(errs) == len(queries) {
			return state.Artifacts{}, err
		}
		return state.Artifacts{}, node.InputInsufficient("no forum discussions for %q", a.deps.Input.Industry)
	}

	prompt, err := render(painPointsPrompt, map[string]any{
		"Input":       a.deps.Input,
		"Trends":      view.Trends,
		"Discussions": discussions,
	})
	if err != nil {
		return state.Artifacts{}, node.Unexpected(err)
	}
	var ans painAnswer
	if err := a.ask(ctx, tools, "pain_points", prompt, &ans); err != nil {
		return state.Artifacts{}, err
	}

	var out state.Artifacts
	seen := map[string]bool{}
	for _, p := range ans.PainPoints {
		quote := strings.TrimSpace(p.QuoteOrSummary)
		if quote == "" {
			continue
		}
		id := types.StableID("pain", quote)
		if seen[id] {
			continue
		}
		seen[id] = true
		source := p.Source
		if source == "" {
			source = types.ToolForumSearch
		}
		var related []string
		for _, ref := range p.RelatedTrendIDs {
			if _, ok := view.Trend(ref); ok {
				related = append(related, ref)
			}
		}
		out.PainPoints = append(out.PainPoints, types.PainPoint{
			ID:                id,
			Source:            source,
			QuoteOrSummary:    quote,
			FrequencyEstimate: round1(clamp(p.FrequencyEstimate)),
			RelatedTrendIDs:   dedupe(related),
		})
	}
	if len(out.PainPoints) == 0 {
		return state.Artifacts{}, node.InputInsufficient("no pain points found in %d discussions", len(discussions))
	}
	a.log.Info("pain points found", zap.Int("pain_points", len(out.PainPoints)), zap.Int("discussions", len(discussions)))
	return out, nil
}

func countErrors(errs []error) int {
	n := 0
	for _, err := range errs {
		if err != nil {
			n++
		}
	}
	return n
}

// dedupe drops repeated ids, keeping first occurrences.
func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
