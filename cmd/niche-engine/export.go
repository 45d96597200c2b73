// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/niche-engine/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a stored run to YAML or JSON",
	Long: `Export writes the complete document of a run (input, evidence, ideas,
launch plans, phase log, and tool log) to exports/<run-id>.yaml or .json in
the store directory, or to stdout with --stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	exportCmd.Flags().Bool("stdout", false, "write to stdout instead of the exports directory")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("format")
	format, err := store.ParseFormat(name)
	if err != nil {
		return err
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if toStdout, _ := cmd.Flags().GetBool("stdout"); toStdout {
		d, err := s.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return store.Encode(cmd.OutOrStdout(), d, format)
	}

	path, err := s.Export(cmd.Context(), args[0], format)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
	return nil
}
