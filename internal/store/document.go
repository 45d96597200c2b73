// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"github.com/pdiddy/niche-engine/internal/state"
	"github.com/pdiddy/niche-engine/internal/tool"
	"github.com/pdiddy/niche-engine/pkg/types"
)

// Document is the complete, self-describing output of one run: what was
// asked, what was found, and how the run went. It is what the store
// persists and what exports and reports are rendered from.
type Document struct {
	Run   types.RunMetadata `json:"run" yaml:"run"`
	Graph string            `json:"graph" yaml:"graph"`
	Input types.RunInput    `json:"input" yaml:"input"`

	// Version is the research state version the document was frozen at.
	Version uint64 `json:"state_version" yaml:"state_version"`

	Trends     []types.Trend             `json:"market_trends" yaml:"market_trends"`
	PainPoints []types.PainPoint         `json:"pain_points" yaml:"pain_points"`
	Personas   []types.Persona           `json:"personas" yaml:"personas"`
	Niches     []types.Niche             `json:"niches" yaml:"niches"`
	Ideas      []types.Idea              `json:"business_ideas" yaml:"business_ideas"`
	Plans      []types.LaunchPlan        `json:"launch_plans" yaml:"launch_plans"`
	Rejected   []types.RejectedCandidate `json:"rejected_candidates,omitempty" yaml:"rejected_candidates,omitempty"`

	ToolLog []tool.Record `json:"tool_log" yaml:"tool_log"`
}

// NewDocument assembles a document from a frozen snapshot.
func NewDocument(graph string, input types.RunInput, meta types.RunMetadata, snap *state.Snapshot, log []tool.Record) Document {
	d := Document{
		Run:     meta,
		Graph:   graph,
		Input:   input,
		ToolLog: log,
	}
	if snap != nil {
		d.Version = snap.Version
		d.Trends = snap.Trends
		d.PainPoints = snap.PainPoints
		d.Personas = snap.Personas
		d.Niches = snap.Niches
		d.Ideas = snap.Ideas
		d.Plans = snap.Plans
		d.Rejected = snap.Rejected
	}
	return d
}

// CountIdeas returns the number of ideas with the given status.
func (d Document) CountIdeas(status types.IdeaStatus) int {
	n := 0
	for _, i := range d.Ideas {
		if i.Status == status {
			n++
		}
	}
	return n
}
