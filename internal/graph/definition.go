// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package graph

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/niche-engine/internal/node"
)

// Definition is the on-disk form of a workflow graph. Pipelines are loaded,
// not hardcoded, so nodes can be added or rewired without code changes.
type Definition struct {
	Name  string    `yaml:"name" json:"name"`
	Nodes []NodeDef `yaml:"nodes" json:"nodes"`
	Edges []EdgeDef `yaml:"edges" json:"edges"`
}

// NodeDef places a node of a registered kind in the graph. Kind defaults
// to the id.
type NodeDef struct {
	ID      string        `yaml:"id" json:"id"`
	Kind    string        `yaml:"kind,omitempty" json:"kind,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// EdgeDef is a dependency edge with an optional predicate name.
type EdgeDef struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
	When string `yaml:"when,omitempty" json:"when,omitempty"`
}

// Factory builds a node of one kind with the given id.
type Factory func(id string) (node.Node, error)

// ParseDefinition decodes a YAML definition. Unknown keys are errors so
// typos do not silently drop edges.
func ParseDefinition(data []byte) (Definition, error) {
	var d Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return Definition{}, fmt.Errorf("parsing graph definition: %w", err)
	}
	return d, nil
}

// LoadDefinition reads a YAML definition from path.
func LoadDefinition(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("reading graph definition %s: %w", path, err)
	}
	d, err := ParseDefinition(data)
	if err != nil {
		return Definition{}, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Marshal encodes the definition as YAML.
func (d Definition) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}

// Build instantiates the definition. Every node kind must be in kinds and
// every edge predicate in preds. The result is validated.
func (d Definition) Build(kinds map[string]Factory, preds map[string]Predicate) (*Graph, error) {
	name := d.Name
	if name == "" {
		name = "pipeline"
	}
	g := New(name)
	for _, nd := range d.Nodes {
		kind := nd.Kind
		if kind == "" {
			kind = nd.ID
		}
		f, ok := kinds[kind]
		if !ok {
			return nil, fmt.Errorf("node %s: unknown kind %q", nd.ID, kind)
		}
		n, err := f(nd.ID)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", nd.ID, err)
		}
		if n.ID() != nd.ID {
			return nil, fmt.Errorf("node %s: factory for %q built node %q", nd.ID, kind, n.ID())
		}
		if err := g.AddNode(n, nd.Timeout); err != nil {
			return nil, err
		}
	}
	for _, ed := range d.Edges {
		var pred Predicate
		if ed.When != "" {
			p, ok := preds[ed.When]
			if !ok {
				return nil, fmt.Errorf("edge %s -> %s: unknown predicate %q", ed.From, ed.To, ed.When)
			}
			pred = p
		}
		if err := g.AddEdge(ed.From, ed.To, ed.When, pred); err != nil {
			return nil, err
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// DefaultDefinition is the four-phase pipeline: research, idea generation,
// validation, planning.
func DefaultDefinition() Definition {
	return Definition{
		Name: "niche-pipeline",
		Nodes: []NodeDef{
			{ID: "market_research"},
			{ID: "pain_point_discovery"},
			{ID: "user_persona_analysis"},
			{ID: "niche_opportunity_scanner"},
			{ID: "business_model_generator"},
			{ID: "competition_scan"},
			{ID: "business_model_validation"},
			{ID: "launch_planning"},
		},
		Edges: []EdgeDef{
			{From: "market_research", To: "pain_point_discovery"},
			{From: "pain_point_discovery", To: "user_persona_analysis"},
			{From: "user_persona_analysis", To: "niche_opportunity_scanner"},
			{From: "niche_opportunity_scanner", To: "business_model_generator", When: HasEligibleNiches},
			{From: "niche_opportunity_scanner", To: "competition_scan", When: HasNiches},
			{From: "business_model_generator", To: "business_model_validation", When: HasApprovedIdeas},
			{From: "business_model_validation", To: "launch_planning", When: HasValidatedIdeas},
			{From: "competition_scan", To: "launch_planning"},
		},
	}
}
