// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package node

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/pdiddy/niche-engine/internal/evidence"
	"github.com/pdiddy/niche-engine/internal/metrics"
	"github.com/pdiddy/niche-engine/internal/state"
	"github.com/pdiddy/niche-engine/internal/tool"
	"github.com/pdiddy/niche-engine/pkg/types"
)

// Result is the outcome of one node execution.
type Result struct {
	Outcome types.Outcome
	Err     *Error

	Commit state.CommitResult

	// Gate counts over the idea candidates and promotions of this run.
	Approved int
	Rejected int
}

// Harness executes nodes against a research state.
type Harness struct {
	gate    *evidence.Gate
	invoker *tool.Invoker
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewHarness returns a harness that gates ideas with gate and gives nodes
// access to the tools registered on invoker. m and logger may be nil.
func NewHarness(gate *evidence.Gate, invoker *tool.Invoker, m *metrics.Collector, logger *zap.Logger) *Harness {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Harness{
		gate:    gate,
		invoker: invoker,
		metrics: m,
		logger:  logger.With(zap.String("component", "node")),
	}
}

// Gate returns the evidence gate the harness applies.
func (h *Harness) Gate() *evidence.Gate { return h.gate }

// ToolLog returns a copy of the tool audit log.
func (h *Harness) ToolLog() []tool.Record { return h.invoker.Log() }

// Execute runs n once. ctx carries the node deadline. Execute never
// panics on node failure; the failure is reported in the Result.
func (h *Harness) Execute(ctx context.Context, st *state.State, n Node) Result {
	id := n.ID()
	c := n.Contract()
	handle := st.Handle(id, c.Reads, c.Writes)
	caller := h.invoker.Scope(id, c.Tools)

	a, err := n.Run(ctx, handle.View(), caller)
	if err != nil {
		ne := classify(ctx, id, err)
		if ne.Kind == KindInputInsufficient {
			h.logger.Info("node has insufficient input", zap.String("node", id), zap.Error(ne.Err))
			return Result{Outcome: types.OutcomeInputInsufficient, Err: ne}
		}
		h.logger.Warn("node failed", zap.String("node", id), zap.String("kind", string(ne.Kind)), zap.Error(ne.Err))
		return Result{Outcome: types.OutcomeFailed, Err: ne}
	}

	res := Result{Outcome: types.OutcomeSucceeded}
	a, res.Approved, res.Rejected = h.route(id, a, st.Snapshot())

	if a.IsEmpty() {
		return res
	}
	commit, err := handle.Commit(a)
	h.metrics.RecordCommit(id, err == nil)
	if err != nil {
		ne := classify(context.WithoutCancel(ctx), id, err)
		h.logger.Error("commit rejected", zap.String("node", id), zap.Error(err))
		return Result{Outcome: types.OutcomeFailed, Err: ne}
	}
	res.Commit = commit
	h.logger.Debug("node committed",
		zap.String("node", id),
		zap.Uint64("version", commit.Version),
		zap.Int("added", commit.Added),
		zap.Int("updated", commit.Updated))
	return res
}

// route sends every new idea and every promotion to validated through the
// gate. Approved candidates enter as draft. Rejected candidates whose
// references resolve enter as evidence_rejected; the rest become
// RejectedCandidate records so no committed idea has dangling references.
// Gate verdicts supplied by the node are discarded.
func (h *Harness) route(nodeID string, a state.Artifacts, snap *state.Snapshot) (state.Artifacts, int, int) {
	var approved, rejected int

	ideas := a.Ideas[:0:0]
	for _, idea := range a.Ideas {
		res := h.gate.Validate(idea, snap)
		switch {
		case res.Approved:
			idea.Status = types.IdeaDraft
			idea.RejectionReason = ""
			ideas = append(ideas, idea)
			approved++
		case len(idea.EvidenceRefs) > 0 && len(evidence.Unresolved(idea.EvidenceRefs, snap)) == 0:
			idea.Status = types.IdeaEvidenceRejected
			idea.RejectionReason = res.Reason
			ideas = append(ideas, idea)
			rejected++
		default:
			idea.Status = types.IdeaEvidenceRejected
			idea.RejectionReason = res.Reason
			a.Rejected = append(a.Rejected, types.RejectedCandidate{Idea: idea, Reason: res.Reason, NodeID: nodeID})
			rejected++
		}
		if !res.Approved {
			h.logger.Info("idea rejected by evidence gate",
				zap.String("node", nodeID), zap.String("idea", idea.ID), zap.String("reason", res.Reason))
		}
	}
	a.Ideas = ideas

	updates := make([]state.IdeaUpdate, 0, len(a.IdeaUpdates))
	for _, u := range a.IdeaUpdates {
		u.Gate = nil
		if u.Status == types.IdeaValidated {
			if idea, ok := snap.Idea(u.IdeaID); ok {
				res := h.gate.Validate(idea, snap)
				if res.Approved {
					u.Gate = &res
					approved++
				} else {
					u = state.IdeaUpdate{IdeaID: u.IdeaID, Status: types.IdeaEvidenceRejected, Reason: res.Reason}
					rejected++
				}
			}
		}
		updates = append(updates, u)
	}
	a.IdeaUpdates = updates

	return a, approved, rejected
}

// IsInputInsufficient reports whether err is an InputInsufficient node error.
func IsInputInsufficient(err error) bool {
	var ne *Error
	return errors.As(err, &ne) && ne.Kind == KindInputInsufficient
}
