// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package state

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/pdiddy/niche-engine/pkg/types"
)

// genBatch draws a batch that mixes valid and invalid entries over a small
// id space so duplicates and dangling references are common.
func genBatch(t *rapid.T) Artifacts {
	id := func(prefix string) *rapid.Generator[string] {
		return rapid.Custom(func(t *rapid.T) string {
			return fmt.Sprintf("%s-%d", prefix, rapid.IntRange(0, 5).Draw(t, prefix))
		})
	}
	score := rapid.Float64Range(-1, 11)

	var a Artifacts
	for range rapid.IntRange(0, 3).Draw(t, "trends") {
		a.Trends = append(a.Trends, types.Trend{
			ID: id("trend").Draw(t, "trend_id"), Description: "t", SignalStrength: score.Draw(t, "signal"),
		})
	}
	for range rapid.IntRange(0, 2).Draw(t, "pains") {
		a.PainPoints = append(a.PainPoints, types.PainPoint{
			ID: id("pain").Draw(t, "pain_id"), QuoteOrSummary: "p", FrequencyEstimate: score.Draw(t, "freq"),
			RelatedTrendIDs: rapid.SliceOfN(id("trend"), 0, 2).Draw(t, "related"),
		})
	}
	for range rapid.IntRange(0, 2).Draw(t, "ideas") {
		refs := rapid.SliceOfN(rapid.OneOf(id("trend"), id("pain")), 0, 3).Draw(t, "refs")
		a.Ideas = append(a.Ideas, types.Idea{
			ID: id("idea").Draw(t, "idea_id"), ProblemStatement: "x", EvidenceRefs: refs,
			FeasibilityScore: score.Draw(t, "feasibility"), Status: types.IdeaDraft,
		})
	}
	return a
}

func TestCommitAllOrNothingProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := New("run-prop", t0)
		for i := range rapid.IntRange(1, 6).Draw(t, "commits") {
			before := s.Snapshot()
			batch := genBatch(t)
			res, err := s.Commit(fmt.Sprintf("node-%d", i), batch)
			after := s.Snapshot()

			switch {
			case err != nil:
				if after != before {
					t.Fatalf("failed commit changed state: %v", err)
				}
			case batch.IsEmpty():
				if after.Version != before.Version {
					t.Fatalf("empty batch bumped version")
				}
			default:
				if after.Version != before.Version+1 || res.Version != after.Version {
					t.Fatalf("version %d -> %d, result %d", before.Version, after.Version, res.Version)
				}
				if got, want := len(after.Trends), len(before.Trends)+len(batch.Trends); got != want {
					t.Fatalf("trends: got %d want %d", got, want)
				}
				if got, want := len(after.Ideas), len(before.Ideas)+len(batch.Ideas); got != want {
					t.Fatalf("ideas: got %d want %d", got, want)
				}
			}
			assertNoDanglingRefs(t, after)
		}
	})
}

func assertNoDanglingRefs(t *rapid.T, s *Snapshot) {
	for _, p := range s.PainPoints {
		for _, ref := range p.RelatedTrendIDs {
			if _, ok := s.Trend(ref); !ok {
				t.Fatalf("pain point %s references missing trend %s", p.ID, ref)
			}
		}
	}
	for _, idea := range s.Ideas {
		if len(idea.EvidenceRefs) == 0 {
			t.Fatalf("idea %s committed without evidence", idea.ID)
		}
		for _, ref := range idea.EvidenceRefs {
			if !s.ResolvesEvidence(ref) {
				t.Fatalf("idea %s references missing evidence %s", idea.ID, ref)
			}
		}
	}
}
