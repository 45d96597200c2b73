// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/niche-engine/internal/node"
	"github.com/pdiddy/niche-engine/internal/state"
	"github.com/pdiddy/niche-engine/internal/tool"
	"github.com/pdiddy/niche-engine/pkg/types"
)

// personas derives buyer personas from pain points.
type personas struct{ agent }

func (a *personas) Contract() node.Contract {
	return node.Contract{
		Reads:  []types.Field{types.FieldPainPoints},
		Writes: []types.Field{types.FieldPersonas},
		Tools:  []string{types.ToolLLM},
	}
}

type personaAnswer struct {
	Personas []struct {
		DemographicProfile  string   `json:"demographic_profile"`
		BuyingBehavior      string   `json:"buying_behavior"`
		RelatedPainPointIDs []string `json:"related_pain_point_ids"`
	} `json:"personas"`
}

func (a *personas) Run(ctx context.Context, view *state.Snapshot, tools tool.Client) (state.Artifacts, error) {
	if len(view.PainPoints) == 0 {
		return state.Artifacts{}, node.InputInsufficient("no pain points to derive personas from")
	}

	prompt, err := render(personasPrompt, map[string]any{
		"Input":      a.deps.Input,
		"PainPoints": view.PainPoints,
	})
	if err != nil {
		return state.Artifacts{}, node.Unexpected(err)
	}

	var ans personaAnswer
	err = a.ask(ctx, tools, "personas", prompt, &ans)
	switch {
	case err != nil && degradable(err):
		a.log.Warn("persona analysis degraded to heuristic", zap.Error(err))
		return state.Artifacts{Personas: []types.Persona{a.heuristic(view)}}, nil
	case err != nil:
		return state.Artifacts{}, err
	}

	var out state.Artifacts
	seen := map[string]bool{}
	for _, p := range ans.Personas {
		profile := strings.TrimSpace(p.DemographicProfile)
		if profile == "" {
			continue
		}
		id := types.StableID("persona", profile)
		if seen[id] {
			continue
		}
		seen[id] = true
		var related []string
		for _, ref := range p.RelatedPainPointIDs {
			if _, ok := view.PainPoint(ref); ok {
				related = append(related, ref)
			}
		}
		out.Personas = append(out.Personas, types.Persona{
			ID:                  id,
			DemographicProfile:  profile,
			BuyingBehavior:      p.BuyingBehavior,
			RelatedPainPointIDs: dedupe(related),
		})
	}
	if len(out.Personas) == 0 {
		a.log.Warn("llm returned no personas, using heuristic")
		out.Personas = []types.Persona{a.heuristic(view)}
	}
	a.log.Info("personas built", zap.Int("personas", len(out.Personas)))
	return out, nil
}

// heuristic builds one persona from the run input and the most frequent
// pain points.
func (a *personas) heuristic(view *state.Snapshot) types.Persona {
	in := a.deps.Input
	profile := fmt.Sprintf("%s operators in %s", marketAudience(in.MarketType), in.Industry)
	behavior := defaultBuying(in.MarketType)
	if aud := in.Audience; aud != nil {
		if aud.Demographic != "" {
			profile = fmt.Sprintf("%s in %s", aud.Demographic, in.Industry)
		}
		if aud.TechLiteracy != "" {
			profile += fmt.Sprintf(" (tech literacy: %s)", aud.TechLiteracy)
		}
		if aud.BuyingBehavior != "" {
			behavior = aud.BuyingBehavior
		}
	}
	if in.Region != "" {
		profile += ", " + in.Region
	}

	var related []string
	for _, p := range topPains(view.PainPoints, 3) {
		related = append(related, p.ID)
	}
	return types.Persona{
		ID:                  types.StableID("persona", profile),
		DemographicProfile:  profile,
		BuyingBehavior:      behavior,
		RelatedPainPointIDs: related,
	}
}

func marketAudience(m types.MarketType) string {
	switch m {
	case types.MarketB2C:
		return "Individual consumers and prosumers"
	case types.MarketB2B2C:
		return "Businesses serving consumers, and their customers,"
	default:
		return "Small business"
	}
}

func defaultBuying(m types.MarketType) string {
	if m == types.MarketB2C {
		return "Discovers apps through search and social proof; prefers free tiers and low monthly plans"
	}
	return "Evaluates tools on time saved; buys monthly SaaS subscriptions after a free trial"
}

// topPains returns up to n pain points by descending frequency. Ties keep
// commit order.
func topPains(pains []types.PainPoint, n int) []types.PainPoint {
	sorted := slices.Clone(pains)
	slices.SortStableFunc(sorted, func(x, y types.PainPoint) int {
		return cmp.Compare(y.FrequencyEstimate, x.FrequencyEstimate)
	})
	return sorted[:min(n, len(sorted))]
}
