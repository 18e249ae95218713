package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/whit3rabbit/pymixer/internal/obfuscator"
)

var (
	outputDir string // Flag variable for output directory
	cleanMode bool   // Flag variable for cleaning target directory
)

// dirCmd represents the obfuscate dir command
var dirCmd = &cobra.Command{
	Use:   "dir <source_directory>",
	Short: "Obfuscate Python code in a directory recursively",
	Long: `Recursively scans the source directory for Python files (based on configured
extensions), obfuscates each one with its own engine, and writes the results
under <output>/obfuscated, preserving the original structure. Other files are
copied, paths matching "keep" patterns are copied to <output> untouched, and
alias maps are saved under <output>/context.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if outputDir == "" {
			return fmt.Errorf("output directory (-o, --output) is required for directory obfuscation")
		}
		sourceDir := args[0]
		info, err := os.Stat(sourceDir)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("source directory '%s' not found", sourceDir)
			}
			return fmt.Errorf("error checking source directory '%s': %w", sourceDir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("source path '%s' is not a directory", sourceDir)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("configuration not loaded")
		}
		cmd.SilenceUsage = true

		sourceDir := args[0]
		cfg.SourceDirectory = sourceDir
		cfg.TargetDirectory = filepath.Clean(outputDir)

		if cleanMode {
			if err := cleanTarget(cfg.TargetDirectory, sourceDir); err != nil {
				return err
			}
		}

		octx, err := obfuscator.NewObfuscationContext(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize obfuscation context: %w", err)
		}
		report, err := obfuscator.ProcessDirectory(cmd.Context(), sourceDir, octx)
		if err != nil {
			return err
		}
		if !cfg.Silent {
			fmt.Fprintf(cmd.OutOrStdout(), "Obfuscated %d files, copied %d, kept %d, skipped %d.\n",
				report.Obfuscated, report.Copied, report.Kept, report.Skipped)
		}
		return nil
	},
}

// cleanTarget removes the target directory, refusing paths whose removal
// would take the source or the filesystem root with it.
func cleanTarget(targetPath, sourceDir string) error {
	if _, err := os.Stat(targetPath); os.IsNotExist(err) {
		logx.Debugf("target directory %s does not exist, no cleaning needed", targetPath)
		return nil
	}
	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return fmt.Errorf("error resolving target directory %s: %w", targetPath, err)
	}
	absSource, err := filepath.Abs(sourceDir)
	if err != nil {
		return fmt.Errorf("error resolving source directory %s: %w", sourceDir, err)
	}
	isRoot := absTarget == filepath.VolumeName(absTarget)+string(filepath.Separator)
	if cwd, err := os.Getwd(); isRoot || targetPath == "." || targetPath == ".." || (err == nil && absTarget == cwd) {
		return fmt.Errorf("refusing to clean potentially dangerous path: %s", targetPath)
	}
	if rel, err := filepath.Rel(absTarget, absSource); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("refusing to clean %s: it contains the source directory", targetPath)
	}

	if !cfg.Silent {
		logx.Infof("cleaning target directory %s", targetPath)
	}
	if err := os.RemoveAll(targetPath); err != nil {
		return fmt.Errorf("failed to clean target directory %s: %w", targetPath, err)
	}
	return nil
}

func init() {
	dirCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory path (required)")
	dirCmd.Flags().BoolVar(&cleanMode, "clean", false, "Remove the target directory before obfuscating")
}
