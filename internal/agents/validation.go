// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"

	"go.uber.org/zap"

	"github.com/pdiddy/niche-engine/internal/node"
	"github.com/pdiddy/niche-engine/internal/state"
	"github.com/pdiddy/niche-engine/internal/tool"
	"github.com/pdiddy/niche-engine/pkg/types"
)

// MinFeasibility is the lowest feasibility score a viable idea may have to
// be promoted to validated.
const MinFeasibility = 5

// validation reviews draft ideas and promotes the viable ones. The harness
// re-gates every promotion.
type validation struct{ agent }

func (a *validation) Contract() node.Contract {
	return node.Contract{
		Reads:  []types.Field{types.FieldTrends, types.FieldPainPoints, types.FieldPersonas, types.FieldIdeas},
		Writes: []types.Field{types.FieldIdeas},
		Tools:  []string{types.ToolLLM},
	}
}

type verdictAnswer struct {
	Verdicts []struct {
		IdeaID  string `json:"idea_id"`
		Viable  bool   `json:"viable"`
		Concern string `json:"concern"`
	} `json:"verdicts"`
}

func (a *validation) Run(ctx context.Context, view *state.Snapshot, tools tool.Client) (state.Artifacts, error) {
	drafts := view.IdeasWithStatus(types.IdeaDraft)
	if len(drafts) == 0 {
		return state.Artifacts{}, node.InputInsufficient("no draft ideas to validate")
	}

	prompt, err := render(validationPrompt, map[string]any{"Input": a.deps.Input, "Ideas": drafts})
	if err != nil {
		return state.Artifacts{}, node.Unexpected(err)
	}
	var ans verdictAnswer
	if err := a.ask(ctx, tools, "validation", prompt, &ans); err != nil {
		return state.Artifacts{}, err
	}

	viable := map[string]bool{}
	for _, v := range ans.Verdicts {
		if v.Viable {
			viable[v.IdeaID] = true
		} else {
			a.log.Info("idea judged not viable", zap.String("idea", v.IdeaID), zap.String("concern", v.Concern))
		}
	}

	var out state.Artifacts
	for _, idea := range drafts {
		if !viable[idea.ID] || idea.FeasibilityScore < MinFeasibility {
			continue
		}
		out.IdeaUpdates = append(out.IdeaUpdates, state.IdeaUpdate{IdeaID: idea.ID, Status: types.IdeaValidated})
	}
	a.log.Info("ideas validated", zap.Int("validated", len(out.IdeaUpdates)), zap.Int("drafts", len(drafts)))
	return out, nil
}
