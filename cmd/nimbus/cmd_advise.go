package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/yairfalse/nimbus/internal/inventory"
)

var adviseFile string

var adviseCmd = &cobra.Command{
	Use:   "advise <question>",
	Short: "Ask the AI advisor about the inventory",
	Long: `Summarize the inventory and ask the configured generative model a question
about it. The API key is read from the environment variable named by
advisor.api_key_env (API_KEY by default).`,
	Example: `  nimbus advise "Which resources should I fix first?"
  nimbus advise --file inventory.json "Where can I save money?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdvise,
}

func init() {
	rootCmd.AddCommand(adviseCmd)

	addSourceFlags(adviseCmd)
	adviseCmd.Flags().StringVarP(&adviseFile, "file", "f", "", "Use a JSON inventory file instead of the source")
}

func runAdvise(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var (
		svc *inventory.Service
		err error
	)
	if adviseFile != "" {
		data, readErr := os.ReadFile(adviseFile)
		if readErr != nil {
			return fmt.Errorf("read inventory file: %w", readErr)
		}
		if svc, err = newImporter(ctx, cfg); err != nil {
			return err
		}
		if _, err := svc.Import(ctx, data); err != nil {
			return err
		}
	} else {
		if svc, err = newService(ctx, cfg, nil); err != nil {
			return err
		}
		if _, err := svc.Fetch(ctx, cfg.Source.Account, cfg.Source.Provider); err != nil {
			return fmt.Errorf("fetch inventory: %w", err)
		}
	}

	spinner, _ := pterm.DefaultSpinner.WithWriter(os.Stderr).Start("Analyzing inventory...")
	answer := newAdvisor(cfg).Analyze(ctx, svc.Current().Resources, strings.Join(args, " "))
	_ = spinner.Stop()

	fmt.Fprintln(cmd.OutOrStdout(), answer)
	return nil
}
