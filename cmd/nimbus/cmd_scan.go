package main

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/yairfalse/nimbus/internal/compliance"
	"github.com/yairfalse/nimbus/internal/filter"
	"github.com/yairfalse/nimbus/pkg/resource"
)

var (
	scanOutput   string
	scanRisk     string
	scanViolated bool
	scanSort     string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Fetch the inventory once and print it",
	Long: `Fetch the inventory from the configured source, score it and print the
result. Nothing is stored.`,
	Example: `  nimbus scan                                # Fixture data as a table
  nimbus scan --source aws --region us-east-1 -o json
  nimbus scan --risk Critical                # Only critical resources
  nimbus scan --violations -o csv > risks.csv`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	addSourceFlags(scanCmd)
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", formatTable, "Output format (table, json, csv)")
	scanCmd.Flags().StringVar(&scanRisk, "risk", "", "Only show this risk level")
	scanCmd.Flags().BoolVar(&scanViolated, "violations", false, "Only show resources with risk or missing tags")
	scanCmd.Flags().StringVar(&scanSort, "sort", "", "Sort field (cost, name, region, riskLevel, createdAt)")
}

func runScan(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	svc, err := newService(ctx, cfg, nil)
	if err != nil {
		return err
	}

	var spinner *pterm.SpinnerPrinter
	if scanOutput == formatTable {
		spinner, _ = pterm.DefaultSpinner.WithWriter(os.Stderr).Start(fmt.Sprintf("Scanning %s...", svc.Source()))
	}
	snap, err := svc.Fetch(ctx, cfg.Source.Account, cfg.Source.Provider)
	if spinner != nil {
		_ = spinner.Stop()
	}
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	field, ok := filter.ParseSortField(scanSort)
	if !ok {
		return fmt.Errorf("unknown sort field %q", scanSort)
	}
	q := filter.Query{Risk: scanRisk, SortField: field}
	if scanRisk != "" {
		level, ok := resource.ParseRiskLevel(scanRisk)
		if !ok {
			return fmt.Errorf("unknown risk level %q", scanRisk)
		}
		q.Risk = string(level)
	}

	resources := snap.Resources
	if scanViolated {
		resources = compliance.Violations(resources, compliance.FilterAll)
	}
	resources = q.Apply(resources)

	out := cmd.OutOrStdout()
	if err := printResources(out, scanOutput, resources); err != nil {
		return err
	}
	if scanOutput == formatTable {
		printSummary(out, snap.Resources)
	}
	return nil
}
