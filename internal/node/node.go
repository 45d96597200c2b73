// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package node defines the unit of work of a pipeline run and the harness
// that executes it.
//
// A Node declares which state fields it reads and writes and which tools it
// calls. It never touches the research state directly: the harness hands it
// a filtered snapshot and a scoped tool client, then takes the artifacts it
// returns, routes idea candidates through the evidence gate, and commits
// the batch. Nodes hold no state between runs.
package node

import (
	"context"
	"slices"

	"github.com/pdiddy/niche-engine/internal/state"
	"github.com/pdiddy/niche-engine/internal/tool"
	"github.com/pdiddy/niche-engine/pkg/types"
)

// Contract is what a node declares about itself.
type Contract struct {
	Reads  []types.Field
	Writes []types.Field
	Tools  []string
}

// WritesField reports whether the contract declares f as a write.
func (c Contract) WritesField(f types.Field) bool {
	return slices.Contains(c.Writes, f)
}

// Node is one agent of the pipeline.
type Node interface {
	ID() string
	Contract() Contract
	Run(ctx context.Context, view *state.Snapshot, tools tool.Client) (state.Artifacts, error)
}

// Func builds a Node from a function. Tests and small adapters use it.
type Func struct {
	NodeID   string
	Declared Contract
	Fn       func(ctx context.Context, view *state.Snapshot, tools tool.Client) (state.Artifacts, error)
}

func (f *Func) ID() string         { return f.NodeID }
func (f *Func) Contract() Contract { return f.Declared }

func (f *Func) Run(ctx context.Context, view *state.Snapshot, tools tool.Client) (state.Artifacts, error) {
	return f.Fn(ctx, view, tools)
}
