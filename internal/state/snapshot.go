// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package state

import (
	"slices"

	"github.com/pdiddy/niche-engine/pkg/types"
)

// Snapshot is an immutable view of the research state at one version.
// Callers must not modify the slices it exposes. Views and lookups hand out
// copies, so nodes may.
type Snapshot struct {
	Version uint64

	Trends     []types.Trend
	PainPoints []types.PainPoint
	Personas   []types.Persona
	Niches     []types.Niche
	Ideas      []types.Idea
	Plans      []types.LaunchPlan

	// Rejected holds gate-rejected candidates with unresolvable references.
	Rejected []types.RejectedCandidate

	visible map[types.Field]bool // nil means every field is visible

	trendIdx   map[string]int
	painIdx    map[string]int
	personaIdx map[string]int
	nicheIdx   map[string]int
	ideaIdx    map[string]int
	planIdx    map[string]int
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		trendIdx:   map[string]int{},
		painIdx:    map[string]int{},
		personaIdx: map[string]int{},
		nicheIdx:   map[string]int{},
		ideaIdx:    map[string]int{},
		planIdx:    map[string]int{},
	}
}

// Visible reports whether the field is part of this view.
func (s *Snapshot) Visible(f types.Field) bool {
	return s.visible == nil || s.visible[f]
}

// Len returns the number of entries in a collection.
func (s *Snapshot) Len(f types.Field) int {
	switch f {
	case types.FieldTrends:
		return len(s.Trends)
	case types.FieldPainPoints:
		return len(s.PainPoints)
	case types.FieldPersonas:
		return len(s.Personas)
	case types.FieldNiches:
		return len(s.Niches)
	case types.FieldIdeas:
		return len(s.Ideas)
	case types.FieldPlans:
		return len(s.Plans)
	}
	return 0
}

// Trend looks up a trend by id.
func (s *Snapshot) Trend(id string) (types.Trend, bool) {
	if i, ok := s.trendIdx[id]; ok {
		return s.Trends[i], true
	}
	return types.Trend{}, false
}

// PainPoint looks up a pain point by id.
func (s *Snapshot) PainPoint(id string) (types.PainPoint, bool) {
	if i, ok := s.painIdx[id]; ok {
		return clonePainPoint(s.PainPoints[i]), true
	}
	return types.PainPoint{}, false
}

// Persona looks up a persona by id.
func (s *Snapshot) Persona(id string) (types.Persona, bool) {
	if i, ok := s.personaIdx[id]; ok {
		return clonePersona(s.Personas[i]), true
	}
	return types.Persona{}, false
}

// Niche looks up a niche by id.
func (s *Snapshot) Niche(id string) (types.Niche, bool) {
	if i, ok := s.nicheIdx[id]; ok {
		return cloneNiche(s.Niches[i]), true
	}
	return types.Niche{}, false
}

// Idea looks up an idea by id.
func (s *Snapshot) Idea(id string) (types.Idea, bool) {
	if i, ok := s.ideaIdx[id]; ok {
		return cloneIdea(s.Ideas[i]), true
	}
	return types.Idea{}, false
}

// ResolvesEvidence reports whether id names a trend, pain point, or persona.
func (s *Snapshot) ResolvesEvidence(id string) bool {
	if _, ok := s.trendIdx[id]; ok {
		return true
	}
	if _, ok := s.painIdx[id]; ok {
		return true
	}
	_, ok := s.personaIdx[id]
	return ok
}

// ApprovedIdeas returns the ideas that passed the evidence gate.
func (s *Snapshot) ApprovedIdeas() []types.Idea {
	var out []types.Idea
	for _, idea := range s.Ideas {
		if idea.Approved() {
			out = append(out, cloneIdea(idea))
		}
	}
	return out
}

// IdeasWithStatus returns the ideas in the given status, in commit order.
func (s *Snapshot) IdeasWithStatus(status types.IdeaStatus) []types.Idea {
	var out []types.Idea
	for _, idea := range s.Ideas {
		if idea.Status == status {
			out = append(out, cloneIdea(idea))
		}
	}
	return out
}

// View returns a deep copy of the snapshot restricted to the given fields.
// Hidden collections are nil and their lookups miss. Writing to a view never
// reaches committed state; changes go through Commit.
func (s *Snapshot) View(fields ...types.Field) *Snapshot {
	v := Snapshot{
		Version:    s.Version,
		Trends:     slices.Clone(s.Trends),
		PainPoints: cloneEach(s.PainPoints, clonePainPoint),
		Personas:   cloneEach(s.Personas, clonePersona),
		Niches:     cloneEach(s.Niches, cloneNiche),
		Ideas:      cloneEach(s.Ideas, cloneIdea),
		Plans:      cloneEach(s.Plans, clonePlan),
		Rejected:   cloneEach(s.Rejected, cloneRejected),
		trendIdx:   s.trendIdx,
		painIdx:    s.painIdx,
		personaIdx: s.personaIdx,
		nicheIdx:   s.nicheIdx,
		ideaIdx:    s.ideaIdx,
		planIdx:    s.planIdx,
	}
	v.visible = make(map[types.Field]bool, len(fields))
	for _, f := range fields {
		if s.Visible(f) {
			v.visible[f] = true
		}
	}
	if !v.visible[types.FieldTrends] {
		v.Trends, v.trendIdx = nil, nil
	}
	if !v.visible[types.FieldPainPoints] {
		v.PainPoints, v.painIdx = nil, nil
	}
	if !v.visible[types.FieldPersonas] {
		v.Personas, v.personaIdx = nil, nil
	}
	if !v.visible[types.FieldNiches] {
		v.Niches, v.nicheIdx = nil, nil
	}
	if !v.visible[types.FieldIdeas] {
		v.Ideas, v.ideaIdx, v.Rejected = nil, nil, nil
	}
	if !v.visible[types.FieldPlans] {
		v.Plans, v.planIdx = nil, nil
	}
	return &v
}

// clone returns a shallow copy whose collections and indexes may be
// appended to without affecting s.
func (s *Snapshot) clone() *Snapshot {
	return &Snapshot{
		Version:    s.Version,
		Trends:     slices.Clone(s.Trends),
		PainPoints: slices.Clone(s.PainPoints),
		Personas:   slices.Clone(s.Personas),
		Niches:     slices.Clone(s.Niches),
		Ideas:      slices.Clone(s.Ideas),
		Plans:      slices.Clone(s.Plans),
		Rejected:   slices.Clone(s.Rejected),
		trendIdx:   cloneIndex(s.trendIdx),
		painIdx:    cloneIndex(s.painIdx),
		personaIdx: cloneIndex(s.personaIdx),
		nicheIdx:   cloneIndex(s.nicheIdx),
		ideaIdx:    cloneIndex(s.ideaIdx),
		planIdx:    cloneIndex(s.planIdx),
	}
}

func cloneIndex(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Indexes are never written after a snapshot is published, so views share
// them. Entries are copied down to their id slices.

func cloneEach[T any](in []T, clone func(T) T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = clone(v)
	}
	return out
}

func clonePainPoint(p types.PainPoint) types.PainPoint {
	p.RelatedTrendIDs = cloneStrings(p.RelatedTrendIDs)
	return p
}

func clonePersona(p types.Persona) types.Persona {
	p.RelatedPainPointIDs = cloneStrings(p.RelatedPainPointIDs)
	return p
}

func cloneNiche(n types.Niche) types.Niche {
	n.EvidenceIDs = cloneStrings(n.EvidenceIDs)
	if n.SaturationScore != nil {
		score := *n.SaturationScore
		n.SaturationScore = &score
	}
	return n
}

func cloneIdea(i types.Idea) types.Idea {
	i.EvidenceRefs = cloneStrings(i.EvidenceRefs)
	return i
}

func clonePlan(p types.LaunchPlan) types.LaunchPlan {
	p.Milestones = cloneStrings(p.Milestones)
	return p
}

func cloneRejected(r types.RejectedCandidate) types.RejectedCandidate {
	r.Idea = cloneIdea(r.Idea)
	return r
}
