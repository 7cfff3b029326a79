package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yairfalse/nimbus/internal/inventory"
)

var importOutput string

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Score a JSON inventory file",
	Long: `Read a JSON array of resources, score it with the compliance engine and
print the result. Risk fields in the file are ignored and recomputed.`,
	Example: `  nimbus import inventory.json
  nimbus import inventory.json -o json --policies ./policies`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&importOutput, "output", "o", formatTable, "Output format (table, json, csv)")
	importCmd.Flags().String("policies", "", "Directory of custom Rego policies")
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}

	svc, err := newImporter(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	snap, err := svc.Import(cmd.Context(), data)
	if errors.Is(err, inventory.ErrParse) {
		return errors.New("failed to import data, please check JSON format")
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := printResources(out, importOutput, snap.Resources); err != nil {
		return err
	}
	if importOutput == formatTable {
		printSummary(out, snap.Resources)
	}
	return nil
}
