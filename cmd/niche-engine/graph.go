// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/niche-engine/internal/agents"
	"github.com/pdiddy/niche-engine/internal/evidence"
	"github.com/pdiddy/niche-engine/internal/graph"
	"github.com/pdiddy/niche-engine/pkg/types"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Validate and print a workflow definition",
	Long: `Graph builds the workflow definition (the built-in pipeline, or --file)
against the registered agent kinds and predicates, and prints its phases
and edges. A definition with unknown kinds, unknown predicates, or a cycle
is rejected.

Use --yaml to print the definition itself, e.g. as a starting point for a
custom pipeline.`,
	RunE: runGraph,
}

func init() {
	graphCmd.Flags().String("file", "", "workflow definition YAML (default: built-in pipeline)")
	graphCmd.Flags().Bool("yaml", false, "print the definition as YAML")

	rootCmd.AddCommand(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	def, err := definition(path)
	if err != nil {
		return err
	}

	gate := evidence.NewGate(types.DefaultEvidenceConfig())
	g, err := def.Build(agents.Registry(agents.Deps{Gate: gate, Logger: logger}), graph.Predicates(gate))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
		data, err := def.Marshal()
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}

	fmt.Fprintf(out, "Graph %s: %d nodes, %d edges\n\n", g.Name(), len(g.Vertices()), len(g.Edges()))
	for i, phase := range g.Phases() {
		fmt.Fprintf(out, "Phase %d: %s\n", i+1, strings.Join(phase, ", "))
	}
	fmt.Fprintln(out)
	for _, e := range def.Edges {
		when := ""
		if e.When != "" {
			when = "  when " + e.When
		}
		fmt.Fprintf(out, "%-28s -> %-28s%s\n", e.From, e.To, when)
	}
	return nil
}
