// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package state

import (
	"fmt"

	"github.com/pdiddy/niche-engine/pkg/types"
)

// IdeaUpdate moves a committed idea to a new status.
type IdeaUpdate struct {
	IdeaID string           `json:"idea_id" yaml:"idea_id"`
	Status types.IdeaStatus `json:"status" yaml:"status"`
	Reason string           `json:"reason,omitempty" yaml:"reason,omitempty"`

	// Gate is the evidence gate verdict. Required for validated.
	Gate *types.GateResult `json:"gate,omitempty" yaml:"gate,omitempty"`
}

// NicheScore attaches or raises the saturation score of a committed niche.
type NicheScore struct {
	NicheID string  `json:"niche_id" yaml:"niche_id"`
	Score   float64 `json:"score" yaml:"score"`
}

// Artifacts is the batch of new entries and in-place updates a node commits
// in one call.
type Artifacts struct {
	Trends     []types.Trend
	PainPoints []types.PainPoint
	Personas   []types.Persona
	Niches     []types.Niche
	Ideas      []types.Idea
	Plans      []types.LaunchPlan
	Rejected   []types.RejectedCandidate

	IdeaUpdates []IdeaUpdate
	NicheScores []NicheScore
}

// IsEmpty reports whether the batch carries nothing.
func (a Artifacts) IsEmpty() bool {
	return len(a.Fields()) == 0
}

// Fields returns the state fields the batch writes, in commit order.
func (a Artifacts) Fields() []types.Field {
	var out []types.Field
	if len(a.Trends) > 0 {
		out = append(out, types.FieldTrends)
	}
	if len(a.PainPoints) > 0 {
		out = append(out, types.FieldPainPoints)
	}
	if len(a.Personas) > 0 {
		out = append(out, types.FieldPersonas)
	}
	if len(a.Niches) > 0 || len(a.NicheScores) > 0 {
		out = append(out, types.FieldNiches)
	}
	if len(a.Ideas) > 0 || len(a.IdeaUpdates) > 0 || len(a.Rejected) > 0 {
		out = append(out, types.FieldIdeas)
	}
	if len(a.Plans) > 0 {
		out = append(out, types.FieldPlans)
	}
	return out
}

// Count returns the number of new entries plus updates in the batch.
func (a Artifacts) Count() int {
	return len(a.Trends) + len(a.PainPoints) + len(a.Personas) + len(a.Niches) +
		len(a.Ideas) + len(a.Plans) + len(a.Rejected) + len(a.IdeaUpdates) + len(a.NicheScores)
}

// InvariantViolation reports the first item of a batch that failed schema
// or invariant checks. The batch was not applied.
type InvariantViolation struct {
	NodeID string
	Field  types.Field
	ItemID string
	Reason string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation: %s item %q from node %s: %s", e.Field, e.ItemID, e.NodeID, e.Reason)
}

// CommitResult summarizes an applied batch.
type CommitResult struct {
	Version uint64
	Added   int
	Updated int
}

// apply validates the batch against cur and returns the next snapshot.
// cur is never modified.
func apply(cur *Snapshot, nodeID string, a Artifacts) (*Snapshot, CommitResult, error) {
	next := cur.clone()
	res := CommitResult{}

	fail := func(f types.Field, id, format string, args ...any) (*Snapshot, CommitResult, error) {
		return nil, CommitResult{}, &InvariantViolation{
			NodeID: nodeID, Field: f, ItemID: id, Reason: fmt.Sprintf(format, args...),
		}
	}

	for _, t := range a.Trends {
		if reason := checkID(t.ID, next.trendIdx); reason != "" {
			return fail(types.FieldTrends, t.ID, "%s", reason)
		}
		if t.Description == "" {
			return fail(types.FieldTrends, t.ID, "empty description")
		}
		if !inScale(t.SignalStrength) {
			return fail(types.FieldTrends, t.ID, "signal_strength %.2f out of range [0,10]", t.SignalStrength)
		}
		next.trendIdx[t.ID] = len(next.Trends)
		next.Trends = append(next.Trends, t)
	}

	for _, p := range a.PainPoints {
		if reason := checkID(p.ID, next.painIdx); reason != "" {
			return fail(types.FieldPainPoints, p.ID, "%s", reason)
		}
		if p.QuoteOrSummary == "" {
			return fail(types.FieldPainPoints, p.ID, "empty quote_or_summary")
		}
		if !inScale(p.FrequencyEstimate) {
			return fail(types.FieldPainPoints, p.ID, "frequency_estimate %.2f out of range [0,10]", p.FrequencyEstimate)
		}
		for _, ref := range p.RelatedTrendIDs {
			if _, ok := next.trendIdx[ref]; !ok {
				return fail(types.FieldPainPoints, p.ID, "related trend %q does not exist", ref)
			}
		}
		p.RelatedTrendIDs = cloneStrings(p.RelatedTrendIDs)
		next.painIdx[p.ID] = len(next.PainPoints)
		next.PainPoints = append(next.PainPoints, p)
	}

	for _, p := range a.Personas {
		if reason := checkID(p.ID, next.personaIdx); reason != "" {
			return fail(types.FieldPersonas, p.ID, "%s", reason)
		}
		if p.DemographicProfile == "" {
			return fail(types.FieldPersonas, p.ID, "empty demographic_profile")
		}
		for _, ref := range p.RelatedPainPointIDs {
			if _, ok := next.painIdx[ref]; !ok {
				return fail(types.FieldPersonas, p.ID, "related pain point %q does not exist", ref)
			}
		}
		p.RelatedPainPointIDs = cloneStrings(p.RelatedPainPointIDs)
		next.personaIdx[p.ID] = len(next.Personas)
		next.Personas = append(next.Personas, p)
	}

	for _, n := range a.Niches {
		if reason := checkID(n.ID, next.nicheIdx); reason != "" {
			return fail(types.FieldNiches, n.ID, "%s", reason)
		}
		if n.Description == "" {
			return fail(types.FieldNiches, n.ID, "empty description")
		}
		if len(n.EvidenceIDs) == 0 {
			return fail(types.FieldNiches, n.ID, "no evidence ids")
		}
		for _, ref := range n.EvidenceIDs {
			if !next.ResolvesEvidence(ref) {
				return fail(types.FieldNiches, n.ID, "evidence %q is not recorded", ref)
			}
		}
		if n.SaturationScore != nil {
			if !inScale(*n.SaturationScore) {
				return fail(types.FieldNiches, n.ID, "saturation_score %.2f out of range [0,10]", *n.SaturationScore)
			}
			score := *n.SaturationScore
			n.SaturationScore = &score
		}
		n.EvidenceIDs = cloneStrings(n.EvidenceIDs)
		next.nicheIdx[n.ID] = len(next.Niches)
		next.Niches = append(next.Niches, n)
	}

	for _, u := range a.NicheScores {
		i, ok := next.nicheIdx[u.NicheID]
		if !ok {
			return fail(types.FieldNiches, u.NicheID, "niche does not exist")
		}
		if !inScale(u.Score) {
			return fail(types.FieldNiches, u.NicheID, "saturation_score %.2f out of range [0,10]", u.Score)
		}
		n := next.Niches[i]
		for _, ref := range n.EvidenceIDs {
			if !next.ResolvesEvidence(ref) {
				return fail(types.FieldNiches, n.ID, "evidence %q is not recorded", ref)
			}
		}
		// Scores never decrease. A scorer working from an older view keeps
		// the higher score already committed.
		if n.SaturationScore != nil && u.Score <= *n.SaturationScore {
			continue
		}
		score := u.Score
		n.SaturationScore = &score
		next.Niches[i] = n
		res.Updated++
	}

	for _, idea := range a.Ideas {
		if reason := checkID(idea.ID, next.ideaIdx); reason != "" {
			return fail(types.FieldIdeas, idea.ID, "%s", reason)
		}
		if reason := checkIdea(next, idea); reason != "" {
			return fail(types.FieldIdeas, idea.ID, "%s", reason)
		}
		switch idea.Status {
		case types.IdeaDraft:
		case types.IdeaEvidenceRejected:
			if idea.RejectionReason == "" {
				return fail(types.FieldIdeas, idea.ID, "evidence_rejected idea needs a rejection reason")
			}
		default:
			return fail(types.FieldIdeas, idea.ID, "new ideas must be draft or evidence_rejected, got %q", idea.Status)
		}
		idea.EvidenceRefs = cloneStrings(idea.EvidenceRefs)
		next.ideaIdx[idea.ID] = len(next.Ideas)
		next.Ideas = append(next.Ideas, idea)
	}

	for _, u := range a.IdeaUpdates {
		i, ok := next.ideaIdx[u.IdeaID]
		if !ok {
			return fail(types.FieldIdeas, u.IdeaID, "idea does not exist")
		}
		idea := next.Ideas[i]
		if !idea.Status.CanTransition(u.Status) {
			return fail(types.FieldIdeas, idea.ID, "illegal status transition %s -> %s", idea.Status, u.Status)
		}
		switch u.Status {
		case types.IdeaValidated:
			if u.Gate == nil || !u.Gate.Approved {
				return fail(types.FieldIdeas, idea.ID, "validation requires an approving evidence gate result")
			}
			if reason := checkIdea(next, idea); reason != "" {
				return fail(types.FieldIdeas, idea.ID, "%s", reason)
			}
		case types.IdeaEvidenceRejected:
			if u.Reason == "" {
				return fail(types.FieldIdeas, idea.ID, "evidence_rejected idea needs a rejection reason")
			}
			idea.RejectionReason = u.Reason
		}
		idea.Status = u.Status
		next.Ideas[i] = idea
		res.Updated++
	}

	for _, plan := range a.Plans {
		if reason := checkID(plan.ID, next.planIdx); reason != "" {
			return fail(types.FieldPlans, plan.ID, "%s", reason)
		}
		idea, ok := next.Idea(plan.IdeaID)
		if !ok {
			return fail(types.FieldPlans, plan.ID, "idea %q does not exist", plan.IdeaID)
		}
		if idea.Status != types.IdeaValidated {
			return fail(types.FieldPlans, plan.ID, "idea %q is %s, not validated", plan.IdeaID, idea.Status)
		}
		plan.Milestones = cloneStrings(plan.Milestones)
		next.planIdx[plan.ID] = len(next.Plans)
		next.Plans = append(next.Plans, plan)
	}

	for _, rc := range a.Rejected {
		if rc.Reason == "" {
			return fail(types.FieldIdeas, rc.Idea.ID, "rejected candidate needs a reason")
		}
		if rc.NodeID == "" {
			rc.NodeID = nodeID
		}
		next.Rejected = append(next.Rejected, rc)
	}

	res.Added = len(a.Trends) + len(a.PainPoints) + len(a.Personas) + len(a.Niches) +
		len(a.Ideas) + len(a.Plans) + len(a.Rejected)
	return next, res, nil
}

func checkID(id string, idx map[string]int) string {
	if id == "" {
		return "empty id"
	}
	if _, dup := idx[id]; dup {
		return "duplicate id"
	}
	return ""
}

// checkIdea enforces the evidence invariant and field ranges of an idea.
func checkIdea(s *Snapshot, idea types.Idea) string {
	if idea.ProblemStatement == "" {
		return "empty problem_statement"
	}
	if len(idea.EvidenceRefs) == 0 {
		return "no evidence references"
	}
	for _, ref := range idea.EvidenceRefs {
		if !s.ResolvesEvidence(ref) {
			return fmt.Sprintf("evidence reference %q does not resolve", ref)
		}
	}
	if !inScale(idea.FeasibilityScore) {
		return fmt.Sprintf("feasibility_score %.2f out of range [0,10]", idea.FeasibilityScore)
	}
	if idea.NicheID != "" {
		if _, ok := s.Niche(idea.NicheID); !ok {
			return fmt.Sprintf("niche %q does not exist", idea.NicheID)
		}
	}
	if idea.TargetPersonaID != "" {
		if _, ok := s.Persona(idea.TargetPersonaID); !ok {
			return fmt.Sprintf("target persona %q does not exist", idea.TargetPersonaID)
		}
	}
	return ""
}

func inScale(v float64) bool {
	return v >= 0 && v <= 10
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
