// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package state holds the shared research state of one pipeline run.
//
// The state is append-mostly and versioned. Every write goes through
// Commit, which validates a whole batch against the schema and the
// evidence invariants and applies it atomically or not at all. Commits are
// serialized; reads return immutable snapshots and never block on each
// other.
package state

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/pdiddy/niche-engine/pkg/types"
)

// ErrFrozen is returned by writes after the run has been finalized.
var ErrFrozen = errors.New("research state is frozen")

// State is the research state of one run. It is owned by the scheduler;
// nodes only see it through a Handle.
type State struct {
	mu      sync.RWMutex
	current *Snapshot
	meta    types.RunMetadata
	frozen  bool
}

// New creates an empty state for a run.
func New(runID string, startedAt time.Time) *State {
	return &State{
		current: emptySnapshot(),
		meta: types.RunMetadata{
			RunID:     runID,
			StartedAt: startedAt,
			Status:    types.RunPending,
		},
	}
}

// Seed creates a state pre-populated with evidence, as if committed by
// the given node. Tests use it to start from known evidence.
func Seed(runID string, startedAt time.Time, nodeID string, a Artifacts) (*State, error) {
	s := New(runID, startedAt)
	if _, err := s.Commit(nodeID, a); err != nil {
		return nil, err
	}
	return s, nil
}

// Snapshot returns the full last-committed snapshot.
func (s *State) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Read returns the last-committed snapshot restricted to fields.
func (s *State) Read(fields ...types.Field) *Snapshot {
	return s.Snapshot().View(fields...)
}

// Version returns the number of successful commits.
func (s *State) Version() uint64 {
	return s.Snapshot().Version
}

// Commit validates and applies a batch of artifacts from nodeID. On any
// failure it returns an *InvariantViolation naming the first failing item
// and leaves the state unchanged.
func (s *State) Commit(nodeID string, a Artifacts) (CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		return CommitResult{}, ErrFrozen
	}
	if a.IsEmpty() {
		return CommitResult{Version: s.current.Version}, nil
	}

	next, res, err := apply(s.current, nodeID, a)
	if err != nil {
		return CommitResult{}, err
	}
	next.Version = s.current.Version + 1
	res.Version = next.Version
	s.current = next
	return res, nil
}

// RecordPhase appends a record to the run's phase log.
func (s *State) RecordPhase(rec types.PhaseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return ErrFrozen
	}
	s.meta.PhaseLog = append(s.meta.PhaseLog, rec)
	return nil
}

// SetStatus moves the run to a new status, enforcing the run state machine.
func (s *State) SetStatus(next types.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return ErrFrozen
	}
	if !s.meta.Status.CanTransition(next) {
		return fmt.Errorf("illegal run status transition %s -> %s", s.meta.Status, next)
	}
	s.meta.Status = next
	return nil
}

// Metadata returns a copy of the run metadata.
func (s *State) Metadata() types.RunMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.meta
	m.PhaseLog = slices.Clone(s.meta.PhaseLog)
	return m
}

// Freeze finalizes the state. Later writes fail with ErrFrozen. Freeze is
// idempotent and returns the final snapshot.
func (s *State) Freeze(endedAt time.Time) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.frozen {
		s.frozen = true
		s.meta.EndedAt = endedAt
	}
	return s.current
}

// Frozen reports whether the state has been finalized.
func (s *State) Frozen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frozen
}
