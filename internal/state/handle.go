// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package state

import (
	"fmt"

	"github.com/pdiddy/niche-engine/pkg/types"
)

// Handle is a node's scoped access to the state: it reads only declared
// fields and commits only to declared fields.
type Handle struct {
	st     *State
	nodeID string
	reads  []types.Field
	writes map[types.Field]bool
}

// Handle returns a scoped handle for nodeID.
func (s *State) Handle(nodeID string, reads, writes []types.Field) *Handle {
	w := make(map[types.Field]bool, len(writes))
	for _, f := range writes {
		w[f] = true
	}
	return &Handle{st: s, nodeID: nodeID, reads: reads, writes: w}
}

// NodeID returns the node the handle is bound to.
func (h *Handle) NodeID() string { return h.nodeID }

// View returns the last-committed snapshot restricted to the declared reads.
func (h *Handle) View() *Snapshot {
	return h.st.Read(h.reads...)
}

// Commit applies a batch after checking it only touches declared writes.
func (h *Handle) Commit(a Artifacts) (CommitResult, error) {
	for _, f := range a.Fields() {
		if !h.writes[f] {
			return CommitResult{}, &InvariantViolation{
				NodeID: h.nodeID,
				Field:  f,
				Reason: fmt.Sprintf("node does not declare %s as a write", f),
			}
		}
	}
	return h.st.Commit(h.nodeID, a)
}
