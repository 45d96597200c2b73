// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// Field names one collection of the research state. Nodes declare the
// fields they read and write using these values.
type Field string

const (
	FieldTrends     Field = "market_trends"
	FieldPainPoints Field = "pain_points"
	FieldPersonas   Field = "personas"
	FieldNiches     Field = "niches"
	FieldIdeas      Field = "business_ideas"
	FieldPlans      Field = "launch_plans"
)

// AllFields lists every collection in commit order. Evidence collections
// come first so later collections in the same batch can reference them.
var AllFields = []Field{
	FieldTrends,
	FieldPainPoints,
	FieldPersonas,
	FieldNiches,
	FieldIdeas,
	FieldPlans,
}

// Trend is a market trend signal captured by a research node.
type Trend struct {
	ID          string `json:"id" yaml:"id"`
	Source      string `json:"source" yaml:"source"`
	Description string `json:"description" yaml:"description"`

	// SignalStrength rates the trend on a 0-10 scale.
	SignalStrength float64 `json:"signal_strength" yaml:"signal_strength"`

	CapturedAt time.Time `json:"captured_at" yaml:"captured_at"`
}

// PainPoint is a user complaint or unmet need found in forums or reviews.
type PainPoint struct {
	ID             string `json:"id" yaml:"id"`
	Source         string `json:"source" yaml:"source"`
	QuoteOrSummary string `json:"quote_or_summary" yaml:"quote_or_summary"`

	// FrequencyEstimate rates how often the complaint recurs on a 0-10 scale.
	FrequencyEstimate float64 `json:"frequency_estimate" yaml:"frequency_estimate"`

	// RelatedTrendIDs must reference trends already in the state.
	RelatedTrendIDs []string `json:"related_trend_ids,omitempty" yaml:"related_trend_ids,omitempty"`
}

// Persona is a buyer profile derived from pain points.
type Persona struct {
	ID                  string   `json:"id" yaml:"id"`
	DemographicProfile  string   `json:"demographic_profile" yaml:"demographic_profile"`
	BuyingBehavior      string   `json:"buying_behavior" yaml:"buying_behavior"`
	RelatedPainPointIDs []string `json:"related_pain_point_ids,omitempty" yaml:"related_pain_point_ids,omitempty"`
}

// Niche is a candidate market segment backed by recorded evidence.
type Niche struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`

	// EvidenceIDs reference trends, pain points, or personas recorded
	// before the niche.
	EvidenceIDs []string `json:"evidence_ids" yaml:"evidence_ids"`

	// SaturationScore is nil until a competition scan scores the niche.
	SaturationScore *float64 `json:"saturation_score,omitempty" yaml:"saturation_score,omitempty"`
}

// Scored reports whether the niche has a saturation score.
func (n Niche) Scored() bool { return n.SaturationScore != nil }

// IdeaStatus is the lifecycle state of a business idea.
type IdeaStatus string

const (
	IdeaDraft            IdeaStatus = "draft"
	IdeaEvidenceRejected IdeaStatus = "evidence_rejected"
	IdeaValidated        IdeaStatus = "validated"
)

// CanTransition reports whether moving from s to next is a legal, forward
// status transition.
func (s IdeaStatus) CanTransition(next IdeaStatus) bool {
	return s == IdeaDraft && (next == IdeaValidated || next == IdeaEvidenceRejected)
}

// Idea is a micro-product proposal. Every idea cites evidence.
type Idea struct {
	ID               string `json:"id" yaml:"id"`
	NicheID          string `json:"niche_id,omitempty" yaml:"niche_id,omitempty"`
	ProblemStatement string `json:"problem_statement" yaml:"problem_statement"`

	// EvidenceRefs reference trends, pain points, or personas. Never empty
	// once committed.
	EvidenceRefs []string `json:"evidence_refs" yaml:"evidence_refs"`

	WorkflowDesign    string `json:"workflow_design" yaml:"workflow_design"`
	ValueProposition  string `json:"value_proposition" yaml:"value_proposition"`
	TargetPersonaID   string `json:"target_persona_id,omitempty" yaml:"target_persona_id,omitempty"`
	MonetizationModel string `json:"monetization_model" yaml:"monetization_model"`

	// FeasibilityScore rates buildability on a 0-10 scale.
	FeasibilityScore float64 `json:"feasibility_score" yaml:"feasibility_score"`

	Status IdeaStatus `json:"status" yaml:"status"`

	// RejectionReason explains an evidence_rejected status.
	RejectionReason string `json:"rejection_reason,omitempty" yaml:"rejection_reason,omitempty"`
}

// Approved reports whether the idea passed the evidence gate.
func (i Idea) Approved() bool {
	return i.Status == IdeaDraft || i.Status == IdeaValidated
}

// RejectedCandidate records an idea candidate the evidence gate rejected
// because its references do not resolve. Such candidates cannot enter
// business_ideas, so they are kept here for audit.
type RejectedCandidate struct {
	Idea   Idea   `json:"idea" yaml:"idea"`
	Reason string `json:"reason" yaml:"reason"`
	NodeID string `json:"node_id" yaml:"node_id"`
}

// LaunchPlan is the planning-phase output for a validated idea.
type LaunchPlan struct {
	ID          string   `json:"id" yaml:"id"`
	IdeaID      string   `json:"idea_id" yaml:"idea_id"`
	MVPScope    string   `json:"mvp_scope" yaml:"mvp_scope"`
	Milestones  []string `json:"milestones" yaml:"milestones"`
	PricingTest string   `json:"pricing_test,omitempty" yaml:"pricing_test,omitempty"`
}

// GateResult is the verdict of the evidence gate for one idea.
type GateResult struct {
	Approved bool   `json:"approved" yaml:"approved"`
	Reason   string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Approve returns an approving GateResult.
func Approve() GateResult { return GateResult{Approved: true} }

// Reject returns a rejecting GateResult with the given reason.
func Reject(reason string) GateResult { return GateResult{Reason: reason} }

// StableID generates a deterministic identifier from a prefix and content
// parts: prefix + "-" + the first 12 hex characters of SHA-256 over the
// parts. Identical inputs always produce identical ids, which keeps reruns
// reproducible.
func StableID(prefix string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%s-%x", prefix, h.Sum(nil))[:len(prefix)+13]
}
