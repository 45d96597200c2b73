// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package node

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/niche-engine/internal/state"
	"github.com/pdiddy/niche-engine/internal/tool"
)

// Kind classifies a node failure.
type Kind string

const (
	// KindInputInsufficient means upstream artifacts were missing or empty.
	// The scheduler treats it as a skip, not a failure.
	KindInputInsufficient Kind = "input_insufficient"
	// KindToolFailure wraps a *tool.Error that escaped the node.
	KindToolFailure Kind = "tool_failure"
	// KindInvariantViolation means the research state rejected the commit.
	KindInvariantViolation Kind = "invariant_violation"
	// KindUnexpected is everything else, timeouts included.
	KindUnexpected Kind = "unexpected"
)

// Error is a classified node failure.
type Error struct {
	NodeID string
	Kind   Kind
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fatal reports whether the error fails the node's branch.
func (e *Error) Fatal() bool { return e.Kind != KindInputInsufficient }

// InputInsufficient returns the error a node reports when it has nothing
// to work on.
func InputInsufficient(format string, args ...any) error {
	return &Error{Kind: KindInputInsufficient, Err: fmt.Errorf(format, args...)}
}

// Unexpected wraps err as an unexpected failure.
func Unexpected(err error) error {
	return &Error{Kind: KindUnexpected, Err: err}
}

// errNodeTimeout is reported when a node outlives its deadline.
var errNodeTimeout = errors.New("node timeout")

// classify turns whatever a node or commit returned into an *Error.
// ctx is the node's own context; an expired deadline wins over the error
// the node chose to return.
func classify(ctx context.Context, nodeID string, err error) *Error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{NodeID: nodeID, Kind: KindUnexpected, Err: fmt.Errorf("%w: %v", errNodeTimeout, err)}
	}

	var ne *Error
	if errors.As(err, &ne) {
		out := *ne
		out.NodeID = nodeID
		return &out
	}
	var iv *state.InvariantViolation
	if errors.As(err, &iv) {
		return &Error{NodeID: nodeID, Kind: KindInvariantViolation, Err: err}
	}
	var te *tool.Error
	if errors.As(err, &te) {
		return &Error{NodeID: nodeID, Kind: KindToolFailure, Err: err}
	}
	return &Error{NodeID: nodeID, Kind: KindUnexpected, Err: err}
}

// IsTimeout reports whether err is a node timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, errNodeTimeout)
}
