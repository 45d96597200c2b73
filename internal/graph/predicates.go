// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package graph

import (
	"github.com/pdiddy/niche-engine/internal/evidence"
	"github.com/pdiddy/niche-engine/internal/state"
	"github.com/pdiddy/niche-engine/pkg/types"
)

// Built-in predicate names usable in graph definitions.
const (
	HasTrends         = "has_trends"
	HasPainPoints     = "has_pain_points"
	HasPersonas       = "has_personas"
	HasNiches         = "has_niches"
	HasEligibleNiches = "has_eligible_niches"
	HasApprovedIdeas  = "has_approved_ideas"
	HasValidatedIdeas = "has_validated_ideas"
)

// Predicates returns the built-in predicate registry. has_eligible_niches
// applies gate's evidence rule to each niche.
func Predicates(gate *evidence.Gate) map[string]Predicate {
	return map[string]Predicate{
		HasTrends:     func(s *state.Snapshot) bool { return len(s.Trends) > 0 },
		HasPainPoints: func(s *state.Snapshot) bool { return len(s.PainPoints) > 0 },
		HasPersonas:   func(s *state.Snapshot) bool { return len(s.Personas) > 0 },
		HasNiches:     func(s *state.Snapshot) bool { return len(s.Niches) > 0 },
		HasEligibleNiches: func(s *state.Snapshot) bool {
			return len(gate.EligibleNiches(s)) > 0
		},
		HasApprovedIdeas: func(s *state.Snapshot) bool {
			return len(s.ApprovedIdeas()) > 0
		},
		HasValidatedIdeas: func(s *state.Snapshot) bool {
			return len(s.IdeasWithStatus(types.IdeaValidated)) > 0
		},
	}
}
