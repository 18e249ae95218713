package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/whit3rabbit/pymixer/internal/obfuscator"
)

var (
	outputFile string // Flag variable for output file path
	mapFile    string // Flag variable for the alias map path
)

// fileCmd represents the obfuscate file command
var fileCmd = &cobra.Command{
	Use:   "file <python_file_path>",
	Short: "Obfuscate a single Python file",
	Long: `Reads a single Python file, runs the obfuscation layers over it, and
outputs the result to stdout or a specified file. With --map the alias map
(original name -> alias) is written too, for use with the whatis command.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("configuration not loaded")
		}
		cmd.SilenceUsage = true
		filePath := args[0]

		octx, err := obfuscator.NewObfuscationContext(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize obfuscation context: %w", err)
		}

		outputContent, err := obfuscator.ProcessFile(cmd.Context(), filePath, octx)
		if err != nil {
			return fmt.Errorf("error processing file %s: %w", filePath, err)
		}

		if outputFile != "" {
			if dir := filepath.Dir(outputFile); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("error creating output directory %s: %w", dir, err)
				}
			}
			if err := os.WriteFile(outputFile, []byte(outputContent), 0644); err != nil {
				return fmt.Errorf("error writing to output file %s: %w", outputFile, err)
			}
			if !cfg.Silent {
				logx.Infof("wrote %s", outputFile)
			}
		} else {
			fmt.Fprint(cmd.OutOrStdout(), outputContent)
		}

		if mapFile != "" {
			if err := octx.SaveAliases(filePath, mapFile); err != nil {
				return fmt.Errorf("error writing alias map %s: %w", mapFile, err)
			}
			if !cfg.Silent {
				logx.Infof("wrote alias map %s", mapFile)
			}
		}
		return nil
	},
}

func init() {
	fileCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (default: stdout)")
	fileCmd.Flags().StringVar(&mapFile, "map", "", "Write the alias map to this YAML file")
}
