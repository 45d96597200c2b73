// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/niche-engine/internal/node"
	"github.com/pdiddy/niche-engine/internal/state"
	"github.com/pdiddy/niche-engine/internal/tool"
	"github.com/pdiddy/niche-engine/pkg/types"
)

// ideaGenerator proposes micro-SaaS ideas for every eligible niche. It
// never invents ideas when the llm fails; the harness gates whatever it
// returns.
type ideaGenerator struct{ agent }

func (a *ideaGenerator) Contract() node.Contract {
	return node.Contract{
		Reads:  []types.Field{types.FieldTrends, types.FieldPainPoints, types.FieldPersonas, types.FieldNiches},
		Writes: []types.Field{types.FieldIdeas},
		Tools:  []string{types.ToolLLM},
	}
}

type ideaAnswer struct {
	Ideas []struct {
		ProblemStatement  string   `json:"problem_statement"`
		EvidenceRefs      []string `json:"evidence_refs"`
		WorkflowDesign    string   `json:"workflow_design"`
		ValueProposition  string   `json:"value_proposition"`
		TargetPersonaID   string   `json:"target_persona_id"`
		MonetizationModel string   `json:"monetization_model"`
		FeasibilityScore  float64  `json:"feasibility_score"`
	} `json:"ideas"`
}

func (a *ideaGenerator) Run(ctx context.Context, view *state.Snapshot, tools tool.Client) (state.Artifacts, error) {
	niches := a.deps.Gate.EligibleNiches(view)
	if len(niches) == 0 {
		return state.Artifacts{}, node.InputInsufficient("no niche has strong enough evidence")
	}

	answers := make([]ideaAnswer, len(niches))
	errs := make([]error, len(niches))
	var g errgroup.Group
	g.SetLimit(a.deps.Fanout)
	for i, n := range niches {
		g.Go(func() error {
			prompt, err := render(ideasPrompt, nicheEvidence(n, view))
			if err != nil {
				errs[i] = node.Unexpected(err)
				return nil
			}
			if err := a.ask(ctx, tools, "ideas", prompt, &answers[i]); err != nil {
				a.log.Warn("idea generation failed for niche", zap.String("niche", n.ID), zap.Error(err))
				errs[i] = err
			}
			return nil
		})
	}
	_ = g.Wait()

	if countErrors(errs) == len(niches) {
		return state.Artifacts{}, firstError(errs)
	}

	var out state.Artifacts
	seen := map[string]bool{}
	for i, n := range niches {
		for _, c := range answers[i].Ideas {
			problem := strings.TrimSpace(c.ProblemStatement)
			if problem == "" {
				continue
			}
			id := types.StableID("idea", n.ID, problem)
			if seen[id] {
				continue
			}
			seen[id] = true
			persona := c.TargetPersonaID
			if _, ok := view.Persona(persona); !ok {
				persona = ""
			}
			out.Ideas = append(out.Ideas, types.Idea{
				ID:                id,
				NicheID:           n.ID,
				ProblemStatement:  problem,
				EvidenceRefs:      dedupe(c.EvidenceRefs),
				WorkflowDesign:    c.WorkflowDesign,
				ValueProposition:  c.ValueProposition,
				TargetPersonaID:   persona,
				MonetizationModel: c.MonetizationModel,
				FeasibilityScore:  round1(clamp(c.FeasibilityScore)),
				Status:            types.IdeaDraft,
			})
		}
	}
	a.log.Info("ideas proposed", zap.Int("ideas", len(out.Ideas)), zap.Int("niches", len(niches)))
	return out, nil
}

// nicheEvidence collects the prompt data for one niche: its cited evidence
// plus the personas linked to its cited pain points.
func nicheEvidence(n types.Niche, view *state.Snapshot) map[string]any {
	var (
		trends   []types.Trend
		pains    []types.PainPoint
		personas []types.Persona
	)
	cited := map[string]bool{}
	for _, id := range n.EvidenceIDs {
		cited[id] = true
		if t, ok := view.Trend(id); ok {
			trends = append(trends, t)
		}
		if p, ok := view.PainPoint(id); ok {
			pains = append(pains, p)
		}
	}
	for _, p := range view.Personas {
		linked := cited[p.ID]
		for _, ref := range p.RelatedPainPointIDs {
			linked = linked || cited[ref]
		}
		if linked {
			personas = append(personas, p)
		}
	}
	return map[string]any{
		"Niche":      n,
		"Trends":     trends,
		"PainPoints": pains,
		"Personas":   personas,
	}
}
