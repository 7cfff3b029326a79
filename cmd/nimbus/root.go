package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yairfalse/nimbus/internal/config"
	"github.com/yairfalse/nimbus/internal/telemetry"
)

var (
	configPath string
	debug      bool

	// cfg is loaded before any subcommand runs.
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "nimbus",
		Short: "Multi-cloud inventory and compliance scoring",
		Long: `Nimbus - multi-cloud inventory and compliance scoring

Nimbus loads a unified inventory of cloud resources from a source plugin
or a JSON import, scores every resource against built-in controls and
custom Rego policies, and serves the result over an HTTP API.`,
		Version:           telemetry.Version,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`Nimbus {{.Version}}
`)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to TOML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	var err error
	if configPath == "" {
		cfg = config.Default()
	} else if cfg, err = config.Load(configPath); err != nil {
		return err
	}

	applyFlags(cmd, cfg)
	if debug {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	telemetry.SetupGlobal(cfg.Log.Level, cfg.Log.Format)
	return nil
}

// applyFlags lets explicitly set command flags override the file.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("source") {
		c.Source.Plugin, _ = flags.GetString("source")
	}
	if flags.Changed("provider") {
		c.Source.Provider, _ = flags.GetString("provider")
	}
	if flags.Changed("account") {
		c.Source.Account, _ = flags.GetString("account")
	}
	if flags.Changed("region") {
		c.Source.AWS.Regions, _ = flags.GetStringSlice("region")
	}
	if flags.Changed("addr") {
		c.Server.Addr, _ = flags.GetString("addr")
	}
	if flags.Changed("interval") {
		c.Sync.Interval, _ = flags.GetDuration("interval")
		c.Sync.IntervalStr = c.Sync.Interval.String()
	}
	if flags.Changed("storage") {
		c.Storage.Path, _ = flags.GetString("storage")
	}
	if flags.Changed("policies") {
		c.Policy.Dir, _ = flags.GetString("policies")
	}
}

// addSourceFlags registers the flags shared by every command that fetches.
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("source", "", "Source plugin (fixture, aws)")
	cmd.Flags().String("provider", "", "Provider filter (All, AWS, Azure, GCP)")
	cmd.Flags().String("account", "", "Account label attached to the snapshot")
	cmd.Flags().StringSlice("region", nil, "AWS regions to scan")
	cmd.Flags().String("policies", "", "Directory of custom Rego policies")
}
