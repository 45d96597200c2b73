// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/niche-engine/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List, show, and delete stored runs",
	Long: `Runs manages the run database in the store directory. Without a
subcommand it lists the most recent runs.`,
	RunE: runRunsList,
}

// --- list subcommand ---

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	RunE:  runRunsList,
}

func runRunsList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	return formatRuns(cmd.OutOrStdout(), runs, jsonOutput)
}

func formatRuns(w io.Writer, runs []store.RunSummary, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return nil
	}

	fmt.Fprintf(w, "%-36s  %-20s  %-20s  %-19s  %5s  %9s  %8s\n",
		"Run", "Industry", "Status", "Started", "Ideas", "Validated", "Failures")
	fmt.Fprintln(w, strings.Repeat("-", 130))
	for _, r := range runs {
		industry := r.Industry
		if len(industry) > 20 {
			industry = industry[:17] + "..."
		}
		fmt.Fprintf(w, "%-36s  %-20s  %-20s  %-19s  %5d  %9d  %8d\n",
			r.ID, industry, r.Status, r.StartedAt.Local().Format(time.DateTime), r.Ideas, r.Validated, r.Failures)
	}
	fmt.Fprintf(w, "\n%d runs\n", len(runs))
	return nil
}

// --- show subcommand ---

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print the phase summary of a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		d, err := s.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printRunSummary(cmd.OutOrStdout(), d, nil)
		for _, p := range d.Run.PhaseLog {
			if p.Error != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", p.NodeID, p.Error)
			}
		}
		return nil
	},
}

// --- delete subcommand ---

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>...",
	Short: "Delete stored runs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		for _, id := range args {
			if err := s.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{runsCmd, runsListCmd} {
		c.Flags().Int("limit", 20, "maximum runs to list (0 = all)")
		c.Flags().Bool("json", false, "output runs as JSON")
	}

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDeleteCmd)

	rootCmd.AddCommand(runsCmd)
}
