// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/niche-engine/internal/node"
	"github.com/pdiddy/niche-engine/internal/state"
	"github.com/pdiddy/niche-engine/internal/tool"
	"github.com/pdiddy/niche-engine/pkg/types"
)

// productMarkers mark a search hit as an existing product rather than an
// article or discussion.
var productMarkers = []string{"pricing", "free trial", "software", "platform", "app", "saas", "sign up", "tool"}

// competitionScan scores how saturated each niche is by counting product
// pages among web results.
type competitionScan struct{ agent }

func (a *competitionScan) Contract() node.Contract {
	return node.Contract{
		Reads:  []types.Field{types.FieldTrends, types.FieldPainPoints, types.FieldPersonas, types.FieldNiches},
		Writes: []types.Field{types.FieldNiches},
		Tools:  []string{types.ToolWebSearch},
	}
}

func (a *competitionScan) Run(ctx context.Context, view *state.Snapshot, tools tool.Client) (state.Artifacts, error) {
	if len(view.Niches) == 0 {
		return state.Artifacts{}, node.InputInsufficient("no niches to scan")
	}

	queries := make([]string, len(view.Niches))
	for i, n := range view.Niches {
		queries[i] = summarize(n.Description, 80) + " software"
	}
	resps, errs := a.searchAll(ctx, tools, types.ToolWebSearch, queries)
	if countErrors(errs) == len(queries) {
		return state.Artifacts{}, firstError(errs)
	}

	var out state.Artifacts
	for i, n := range view.Niches {
		if errs[i] != nil {
			continue
		}
		score := saturation(resps[i].Hits)
		if n.SaturationScore != nil && *n.SaturationScore > score {
			score = *n.SaturationScore
		}
		u := state.NicheScore{NicheID: n.ID, Score: score}
		if res := a.deps.Gate.CheckNicheScore(u, view); !res.Approved {
			a.log.Info("niche score refused", zap.String("niche", n.ID), zap.String("reason", res.Reason))
			continue
		}
		out.NicheScores = append(out.NicheScores, u)
	}
	a.log.Info("niches scored", zap.Int("scored", len(out.NicheScores)), zap.Int("niches", len(view.Niches)))
	return out, nil
}

// saturation is the share of product pages among hits on a 0-10 scale.
func saturation(hits []types.SearchHit) float64 {
	if len(hits) == 0 {
		return 0
	}
	products := 0
	for _, h := range hits {
		text := strings.ToLower(h.Title + " " + h.Snippet)
		for _, m := range productMarkers {
			if strings.Contains(text, m) {
				products++
				break
			}
		}
	}
	return round1(clamp(10 * float64(products) / float64(len(hits))))
}
