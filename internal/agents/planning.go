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

// launchPlanning writes a launch plan for every validated idea.
type launchPlanning struct{ agent }

func (a *launchPlanning) Contract() node.Contract {
	return node.Contract{
		Reads:  []types.Field{types.FieldNiches, types.FieldIdeas},
		Writes: []types.Field{types.FieldPlans},
		Tools:  []string{types.ToolLLM},
	}
}

type planAnswer struct {
	MVPScope    string   `json:"mvp_scope"`
	Milestones  []string `json:"milestones"`
	PricingTest string   `json:"pricing_test"`
}

func (a *launchPlanning) Run(ctx context.Context, view *state.Snapshot, tools tool.Client) (state.Artifacts, error) {
	ideas := view.IdeasWithStatus(types.IdeaValidated)
	if len(ideas) == 0 {
		return state.Artifacts{}, node.InputInsufficient("no validated ideas to plan")
	}

	answers := make([]planAnswer, len(ideas))
	errs := make([]error, len(ideas))
	var g errgroup.Group
	g.SetLimit(a.deps.Fanout)
	for i, idea := range ideas {
		g.Go(func() error {
			data := map[string]any{"Idea": idea, "Niche": nil}
			if n, ok := view.Niche(idea.NicheID); ok {
				data["Niche"] = &n
			}
			prompt, err := render(planPrompt, data)
			if err != nil {
				errs[i] = node.Unexpected(err)
				return nil
			}
			if err := a.ask(ctx, tools, "launch_plan", prompt, &answers[i]); err != nil {
				a.log.Warn("launch planning failed for idea", zap.String("idea", idea.ID), zap.Error(err))
				errs[i] = err
			}
			return nil
		})
	}
	_ = g.Wait()

	if countErrors(errs) == len(ideas) {
		return state.Artifacts{}, firstError(errs)
	}

	var out state.Artifacts
	for i, idea := range ideas {
		if errs[i] != nil || strings.TrimSpace(answers[i].MVPScope) == "" {
			continue
		}
		out.Plans = append(out.Plans, types.LaunchPlan{
			ID:          types.StableID("plan", idea.ID),
			IdeaID:      idea.ID,
			MVPScope:    strings.TrimSpace(answers[i].MVPScope),
			Milestones:  answers[i].Milestones,
			PricingTest: answers[i].PricingTest,
		})
	}
	a.log.Info("launch plans written", zap.Int("plans", len(out.Plans)))
	return out, nil
}
