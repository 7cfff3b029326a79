package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/yairfalse/nimbus/internal/compliance"
	"github.com/yairfalse/nimbus/internal/stats"
	"github.com/yairfalse/nimbus/pkg/resource"
)

// Output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatCSV   = "csv"
)

var csvHeader = []string{"id", "name", "provider", "type", "region", "status", "costPerMonth", "riskLevel", "securityIssues"}

func printResources(w io.Writer, format string, resources []resource.Resource) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resources)
	case formatCSV:
		return writeCSV(w, resources)
	case formatTable:
		return renderTable(w, resources)
	default:
		return fmt.Errorf("unknown output format %q (want table, json or csv)", format)
	}
}

func writeCSV(w io.Writer, resources []resource.Resource) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range resources {
		row := []string{
			r.ID,
			r.Name,
			string(r.Provider),
			string(r.Type),
			r.Region,
			string(r.Status),
			strconv.FormatFloat(r.CostPerMonth, 'f', 2, 64),
			string(r.RiskLevel),
			strings.Join(r.SecurityIssues, "; "),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func renderTable(w io.Writer, resources []resource.Resource) error {
	if len(resources) == 0 {
		pterm.Success.WithWriter(w).Println("No resources found.")
		return nil
	}

	data := pterm.TableData{{"RISK", "NAME", "PROVIDER", "TYPE", "REGION", "STATUS", "COST/MO", "ISSUES"}}
	for _, r := range resources {
		data = append(data, []string{
			riskStyle(r.RiskLevel),
			r.Name,
			pterm.FgCyan.Sprint(string(r.Provider)),
			string(r.Type),
			r.Region,
			string(r.Status),
			fmt.Sprintf("$%.2f", r.CostPerMonth),
			strconv.Itoa(len(r.SecurityIssues)),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).WithWriter(w).Render()
}

func riskStyle(level resource.RiskLevel) string {
	switch level {
	case resource.RiskCritical:
		return pterm.FgRed.Sprint("CRITICAL")
	case resource.RiskHigh:
		return pterm.FgRed.Sprint("HIGH")
	case resource.RiskMedium:
		return pterm.FgYellow.Sprint("MEDIUM")
	case resource.RiskLow:
		return pterm.FgBlue.Sprint("LOW")
	default:
		return pterm.FgGreen.Sprint("SECURE")
	}
}

// printSummary writes the stats and compliance overview below a table.
func printSummary(w io.Writer, resources []resource.Resource) {
	s := stats.Compute(resources)
	c := compliance.Summarize(resources)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Resources: %d   Monthly cost: $%.2f   Untagged: %d\n", s.TotalResources, s.TotalCost, s.UntaggedCount)
	fmt.Fprintf(w, "Security score: %d%%   Critical: %d   High: %d   Medium: %d\n", c.SecurityScore, c.CriticalCount, c.HighCount, c.MediumCount)
}
