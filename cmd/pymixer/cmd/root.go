// Package cmd implements the command line interface for the application.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/whit3rabbit/pymixer/internal/config"
)

var (
	cfgFile string         // Variable to hold the config file path from the flag
	cfg     *config.Config // Global variable to hold the loaded configuration

	// Flag variables mapped to config fields for override
	silentMode     bool   // -> cfg.Silent
	abortOnError   bool   // -> cfg.AbortOnError
	debugMode      bool   // -> cfg.DebugMode
	recursion      int    // -> cfg.Obfuscation.Recursion
	includeImports bool   // -> cfg.Obfuscation.IncludeImports
	seed           int64  // -> cfg.Obfuscation.Seed
	charset        string // -> cfg.Obfuscation.Charset
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pymixer",
	Short: "A CLI tool to obfuscate Python code in layers.",
	Long: `pymixer renames identifiers, routes built-in and imported names through
eval indirection, encodes literals and injects noise comments, repeating the
layers in random order to make Python code hard to read.`,
	// Load configuration before any subcommand runs.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil { // Only load config once
			loadedCfg, err := config.LoadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("error loading configuration: %w", err)
			}
			cfg = loadedCfg

			// Apply command-line flag overrides *after* loading config file
			applyFlagOverrides(cfg, cmd)
			if err := cfg.Validate(); err != nil {
				return err
			}
			config.SetupLogging(cfg)
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// applyFlagOverrides applies command-line flag values to the config struct.
// Only overrides if the flag was explicitly set by the user via cmd.Flags().Changed().
func applyFlagOverrides(cfg *config.Config, cmd *cobra.Command) {
	if cmd.Flags().Changed("silent") {
		cfg.Silent = silentMode
	}
	if cmd.Flags().Changed("abort-on-error") {
		cfg.AbortOnError = abortOnError
	}
	if cmd.Flags().Changed("debug") {
		cfg.DebugMode = debugMode
	}
	if cmd.Flags().Changed("recursion") {
		cfg.Obfuscation.Recursion = recursion
	}
	if cmd.Flags().Changed("include-imports") {
		cfg.Obfuscation.IncludeImports = includeImports
	}
	if cmd.Flags().Changed("seed") {
		cfg.Obfuscation.Seed = seed
	}
	if cmd.Flags().Changed("charset") {
		cfg.Obfuscation.Charset = charset
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")

	rootCmd.PersistentFlags().BoolVarP(&silentMode, "silent", "s", false, "Suppress informational output (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&abortOnError, "abort-on-error", true, "Stop processing on the first error (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Debug logging, per-layer pipeline traces (overrides config)")
	rootCmd.PersistentFlags().IntVarP(&recursion, "recursion", "r", 1, "Number of rename/noise/finalize layer cycles (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&includeImports, "include-imports", false, "Re-add harvested imports at the top of the output (overrides config)")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 0, "Random seed for reproducible output, 0 picks one (overrides config)")
	rootCmd.PersistentFlags().StringVar(&charset, "charset", "unicode", "Alias alphabet: unicode or ascii (overrides config)")

	rootCmd.AddCommand(obfuscateCmd)
	rootCmd.AddCommand(whatisCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(botCmd)
}
