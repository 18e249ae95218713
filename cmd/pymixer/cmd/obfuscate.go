package cmd

import (
	"github.com/spf13/cobra"
)

// obfuscateCmd represents the base command for obfuscation actions
var obfuscateCmd = &cobra.Command{
	Use:   "obfuscate",
	Short: "Obfuscates Python code in layers",
	Long: `Provides subcommands to obfuscate individual files or entire directories.

Example:
  pymixer obfuscate file input.py -o output.py --map input.aliases.yaml
  pymixer obfuscate dir ./src -o ./dist --clean --recursion 3`,
	Aliases: []string{"ob"},
}

func init() {
	obfuscateCmd.AddCommand(fileCmd)
	obfuscateCmd.AddCommand(dirCmd)
}
