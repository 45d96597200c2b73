// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/niche-engine/internal/store"
	"github.com/pdiddy/niche-engine/pkg/types"
)

var ideasCmd = &cobra.Command{
	Use:   "ideas [text]",
	Short: "Query business ideas across stored runs",
	Long: `Ideas searches the ideas of every stored run. Text matches problem
statements and value propositions; flags filter by status, run, cited
evidence id, and minimum feasibility. Results are ordered by feasibility.`,
	RunE: runIdeas,
}

func init() {
	ideasCmd.Flags().String("status", "", "filter by status: draft, validated, evidence_rejected")
	ideasCmd.Flags().String("run", "", "filter by run ID")
	ideasCmd.Flags().String("evidence", "", "keep ideas citing this evidence ID")
	ideasCmd.Flags().Float64("min-feasibility", 0, "minimum feasibility score")
	ideasCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	ideasCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(ideasCmd)
}

func runIdeas(cmd *cobra.Command, args []string) error {
	status, _ := cmd.Flags().GetString("status")
	runID, _ := cmd.Flags().GetString("run")
	evidenceID, _ := cmd.Flags().GetString("evidence")
	minFeasibility, _ := cmd.Flags().GetFloat64("min-feasibility")
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	switch types.IdeaStatus(status) {
	case "", types.IdeaDraft, types.IdeaValidated, types.IdeaEvidenceRejected:
	default:
		return fmt.Errorf("unknown status %q: use draft, validated, or evidence_rejected", status)
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	rows, err := s.Ideas(cmd.Context(), store.IdeaQuery{
		Text:           strings.Join(args, " "),
		Status:         types.IdeaStatus(status),
		RunID:          runID,
		Evidence:       evidenceID,
		MinFeasibility: minFeasibility,
		Limit:          limit,
	})
	if err != nil {
		return err
	}
	return formatIdeas(cmd.OutOrStdout(), rows, jsonOutput)
}

func formatIdeas(w io.Writer, rows []store.IdeaRow, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(w, "No ideas found.")
		return nil
	}

	fmt.Fprintf(w, "%-4s  %-17s  %-11s  %-50s  %s\n", "Feas", "Status", "Run", "Problem", "Industry")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, r := range rows {
		problem := r.ProblemStatement
		if len(problem) > 50 {
			problem = problem[:47] + "..."
		}
		run := r.RunID
		if len(run) > 11 {
			run = run[:8] + "..."
		}
		fmt.Fprintf(w, "%-4.1f  %-17s  %-11s  %-50s  %s\n", r.FeasibilityScore, r.Status, run, problem, r.Industry)
	}
	fmt.Fprintf(w, "\n%d ideas\n", len(rows))
	return nil
}
