// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package evidence decides whether a candidate idea or niche is backed by
// recorded evidence strong enough to act on.
//
// A reference is strong when it is a trend whose signal strength exceeds
// the trend threshold, a pain point whose frequency exceeds the pain
// threshold, or a persona explicitly linked to the candidate. An idea is
// approved when it has references, all of them resolve, and at least one
// is strong. Rejection is an outcome, not an error.
package evidence

import (
	"fmt"

	"github.com/pdiddy/niche-engine/internal/state"
	"github.com/pdiddy/niche-engine/pkg/types"
)

// Rejection reasons.
const (
	ReasonNoEvidence   = "no evidence references"
	ReasonWeakEvidence = "insufficient evidence strength"
)

// ReasonUnresolved formats the reason for a reference that does not resolve.
func ReasonUnresolved(id string) string {
	return fmt.Sprintf("unresolved evidence reference %s", id)
}

// Gate applies the evidence rule with configured thresholds.
type Gate struct {
	cfg types.EvidenceConfig
}

// NewGate returns a gate using cfg's thresholds.
func NewGate(cfg types.EvidenceConfig) *Gate {
	return &Gate{cfg: cfg}
}

// Config returns the thresholds in use.
func (g *Gate) Config() types.EvidenceConfig { return g.cfg }

// Validate checks a candidate idea against snap.
func (g *Gate) Validate(idea types.Idea, snap *state.Snapshot) types.GateResult {
	if len(idea.EvidenceRefs) == 0 {
		return types.Reject(ReasonNoEvidence)
	}
	if missing := Unresolved(idea.EvidenceRefs, snap); len(missing) > 0 {
		return types.Reject(ReasonUnresolved(missing[0]))
	}

	cited := make(map[string]bool, len(idea.EvidenceRefs))
	for _, ref := range idea.EvidenceRefs {
		cited[ref] = true
	}
	for _, ref := range idea.EvidenceRefs {
		if g.strong(ref, snap, cited, idea.TargetPersonaID) {
			return types.Approve()
		}
	}
	return types.Reject(ReasonWeakEvidence)
}

// NicheEligible reports whether a niche's evidence passes the same rule,
// which makes it a valid seed for idea generation.
func (g *Gate) NicheEligible(n types.Niche, snap *state.Snapshot) bool {
	if len(n.EvidenceIDs) == 0 || len(Unresolved(n.EvidenceIDs, snap)) > 0 {
		return false
	}
	cited := make(map[string]bool, len(n.EvidenceIDs))
	for _, id := range n.EvidenceIDs {
		cited[id] = true
	}
	for _, id := range n.EvidenceIDs {
		if g.strong(id, snap, cited, "") {
			return true
		}
	}
	return false
}

// EligibleNiches returns the eligible niches of snap in commit order.
func (g *Gate) EligibleNiches(snap *state.Snapshot) []types.Niche {
	var out []types.Niche
	for _, n := range snap.Niches {
		if g.NicheEligible(n, snap) {
			out = append(out, n)
		}
	}
	return out
}

// CheckNicheScore decides whether a saturation score may be attached to a
// niche: the niche must exist and every one of its evidence ids must
// resolve in snap.
func (g *Gate) CheckNicheScore(u state.NicheScore, snap *state.Snapshot) types.GateResult {
	n, ok := snap.Niche(u.NicheID)
	if !ok {
		return types.Reject(fmt.Sprintf("unknown niche %s", u.NicheID))
	}
	if len(n.EvidenceIDs) == 0 {
		return types.Reject(ReasonNoEvidence)
	}
	if missing := Unresolved(n.EvidenceIDs, snap); len(missing) > 0 {
		return types.Reject(ReasonUnresolved(missing[0]))
	}
	return types.Approve()
}

// Unresolved returns the ids that do not name a trend, pain point, or
// persona in snap, in input order.
func Unresolved(ids []string, snap *state.Snapshot) []string {
	var out []string
	for _, id := range ids {
		if !snap.ResolvesEvidence(id) {
			out = append(out, id)
		}
	}
	return out
}

func (g *Gate) strong(id string, snap *state.Snapshot, cited map[string]bool, targetPersona string) bool {
	if t, ok := snap.Trend(id); ok {
		return t.SignalStrength > g.cfg.TrendSignalThreshold
	}
	if p, ok := snap.PainPoint(id); ok {
		return p.FrequencyEstimate > g.cfg.PainFrequencyThreshold
	}
	if p, ok := snap.Persona(id); ok {
		if targetPersona != "" && p.ID == targetPersona {
			return true
		}
		for _, pain := range p.RelatedPainPointIDs {
			if cited[pain] {
				return true
			}
		}
	}
	return false
}
