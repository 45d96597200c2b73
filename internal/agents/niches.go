// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/niche-engine/internal/node"
	"github.com/pdiddy/niche-engine/internal/state"
	"github.com/pdiddy/niche-engine/internal/tool"
	"github.com/pdiddy/niche-engine/pkg/types"
)

func nicheQueries(industry string) []string {
	return []string{
		industry + " unmet needs",
		industry + " alternatives",
		industry + " competitors",
		"best tools for " + industry,
		industry + " gaps in market",
	}
}

// nicheScanner proposes niches backed by recorded evidence.
type nicheScanner struct{ agent }

func (a *nicheScanner) Contract() node.Contract {
	return node.Contract{
		Reads:  []types.Field{types.FieldTrends, types.FieldPainPoints, types.FieldPersonas},
		Writes: []types.Field{types.FieldNiches},
		Tools:  []string{types.ToolForumSearch, types.ToolLLM},
	}
}

type nicheAnswer struct {
	Niches []struct {
		Description string   `json:"description"`
		EvidenceIDs []string `json:"evidence_ids"`
	} `json:"niches"`
}

func (a *nicheScanner) Run(ctx context.Context, view *state.Snapshot, tools tool.Client) (state.Artifacts, error) {
	if len(view.Trends)+len(view.PainPoints)+len(view.Personas) == 0 {
		return state.Artifacts{}, node.InputInsufficient("no recorded evidence to scan for niches")
	}

	// Forum signals only enrich the prompt; failed queries are tolerated.
	resps, _ := a.searchAll(ctx, tools, types.ToolForumSearch, nicheQueries(a.deps.Input.Industry))
	var signals []discussion
	for _, r := range resps {
		for _, h := range r.Hits {
			signals = append(signals, discussion{Query: r.Query, Title: h.Title, Snippet: h.Snippet, Engagement: h.Engagement})
		}
	}

	prompt, err := render(nichesPrompt, map[string]any{
		"Input":      a.deps.Input,
		"Trends":     view.Trends,
		"PainPoints": view.PainPoints,
		"Personas":   view.Personas,
		"Signals":    signals,
	})
	if err != nil {
		return state.Artifacts{}, node.Unexpected(err)
	}

	var ans nicheAnswer
	err = a.ask(ctx, tools, "niches", prompt, &ans)
	switch {
	case err != nil && degradable(err):
		a.log.Warn("niche scan degraded to heuristic", zap.Error(err))
		return state.Artifacts{Niches: a.heuristic(view)}, nil
	case err != nil:
		return state.Artifacts{}, err
	}

	var out state.Artifacts
	seen := map[string]bool{}
	for _, n := range ans.Niches {
		desc := strings.TrimSpace(n.Description)
		if desc == "" {
			continue
		}
		var ev []string
		for _, id := range n.EvidenceIDs {
			if view.ResolvesEvidence(id) {
				ev = append(ev, id)
			}
		}
		if len(ev) == 0 {
			a.log.Info("dropping niche without recorded evidence", zap.String("niche", desc))
			continue
		}
		id := types.StableID("niche", desc)
		if seen[id] {
			continue
		}
		seen[id] = true
		out.Niches = append(out.Niches, types.Niche{ID: id, Description: desc, EvidenceIDs: dedupe(ev)})
	}
	if len(out.Niches) == 0 {
		a.log.Warn("llm proposed no evidenced niches, using heuristic")
		out.Niches = a.heuristic(view)
	}
	if len(out.Niches) == 0 {
		return state.Artifacts{}, node.InputInsufficient("no niche could be tied to recorded evidence")
	}
	a.log.Info("niches identified", zap.Int("niches", len(out.Niches)))
	return out, nil
}

// heuristic proposes one niche per frequent pain point, citing the pain
// point, its related trends, and the personas that suffer from it.
func (a *nicheScanner) heuristic(view *state.Snapshot) []types.Niche {
	var out []types.Niche
	for _, p := range topPains(view.PainPoints, 3) {
		ev := []string{p.ID}
		for _, t := range p.RelatedTrendIDs {
			if _, ok := view.Trend(t); ok {
				ev = append(ev, t)
			}
		}
		for _, persona := range view.Personas {
			for _, ref := range persona.RelatedPainPointIDs {
				if ref == p.ID {
					ev = append(ev, persona.ID)
					break
				}
			}
		}
		desc := fmt.Sprintf("Automation for %s teams struggling with: %s", a.deps.Input.Industry, summarize(p.QuoteOrSummary, 120))
		out = append(out, types.Niche{
			ID:          types.StableID("niche", desc),
			Description: desc,
			EvidenceIDs: dedupe(ev),
		})
	}
	return out
}

// summarize cuts s to at most n bytes on a word boundary.
func summarize(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	cut := strings.LastIndexByte(s[:n], ' ')
	if cut <= 0 {
		cut = n
	}
	return s[:cut] + "..."
}
