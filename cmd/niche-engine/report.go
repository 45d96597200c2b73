// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/niche-engine/internal/report"
	"github.com/pdiddy/niche-engine/internal/store"
)

var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "Render a run as a Markdown report",
	Long: `Report renders a stored run, or an exported document given with --from,
as Markdown: phases, evidence, ideas, launch plans, errors, and tool usage.

Exported documents may have been edited by hand, so --from also checks that
every cited evidence id is present and fails when some are not.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().String("from", "", "render an exported YAML or JSON document instead of a stored run")
	reportCmd.Flags().StringP("output", "o", "", "write the report to this file instead of stdout")

	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	from, _ := cmd.Flags().GetString("from")
	if (from == "") == (len(args) == 0) {
		return errors.New("provide exactly one of a run ID or --from")
	}

	var d store.Document
	if from != "" {
		var err error
		d, err = report.LoadDocument(from)
		if err != nil {
			return err
		}
		if missing := report.UnresolvedReferences(d); len(missing) > 0 {
			return fmt.Errorf("%s cites unrecorded evidence: %s", from, strings.Join(missing, ", "))
		}
	} else {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()
		d, err = s.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
	}

	if path, _ := cmd.Flags().GetString("output"); path != "" {
		if err := writeReport(path, d); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", path)
		return nil
	}
	return report.Write(cmd.OutOrStdout(), d)
}
