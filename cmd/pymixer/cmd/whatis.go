package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/whit3rabbit/pymixer/internal/obfuscator"
	"github.com/whit3rabbit/pymixer/internal/scrambler"
)

var (
	whatisMap       string
	whatisTargetDir string
)

// whatisCmd represents the whatis command
var whatisCmd = &cobra.Command{
	Use:   "whatis <alias>",
	Short: "Looks up the original name for a given alias",
	Long: `Loads alias maps saved by a previous run and prints the original
identifier the given alias stands for.

Use --map (-m) for a single map written by "obfuscate file --map", or
--target-dir (-t) to search every map under <target>/context written by
"obfuscate dir".`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if (whatisMap == "") == (whatisTargetDir == "") {
			return fmt.Errorf("exactly one of --map (-m) or --target-dir (-t) is required")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		alias := args[0]
		cmd.SilenceUsage = true

		maps, err := whatisMapFiles()
		if err != nil {
			return err
		}

		found := false
		for _, path := range maps {
			m, err := scrambler.LoadAliasMap(path)
			if err != nil {
				return fmt.Errorf("error loading alias map %s: %w", path, err)
			}
			if original, ok := m.Reverse()[alias]; ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Found: '%s' (Source: %s)\n", original, m.Source)
				found = true
			}
		}
		if !found {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: alias '%s' not found in the loaded alias maps.\n", alias)
			return fmt.Errorf("name not found")
		}
		return nil
	},
}

// whatisMapFiles lists the alias maps selected by the flags.
func whatisMapFiles() ([]string, error) {
	if whatisMap != "" {
		return []string{whatisMap}, nil
	}
	contextDir := filepath.Join(whatisTargetDir, obfuscator.ContextDir)
	info, err := os.Stat(contextDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("context directory '%s' not found", contextDir)
		}
		return nil, fmt.Errorf("error checking context directory '%s': %w", contextDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("context path '%s' is not a directory", contextDir)
	}

	var maps []string
	err = filepath.WalkDir(contextDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, obfuscator.AliasMapSuffix) {
			maps = append(maps, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning %s: %w", contextDir, err)
	}
	sort.Strings(maps)
	return maps, nil
}

func init() {
	whatisCmd.Flags().StringVarP(&whatisMap, "map", "m", "", "Alias map written by 'obfuscate file --map'")
	whatisCmd.Flags().StringVarP(&whatisTargetDir, "target-dir", "t", "", "Target directory of a previous 'obfuscate dir' run")
}
