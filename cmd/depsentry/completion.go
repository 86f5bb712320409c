package depsentry

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		// completion must work without config or logging
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(_ *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletion(os.Stdout)
			case "zsh":
				return rootCmd.GenZshCompletion(os.Stdout)
			case "fish":
				return rootCmd.GenFishCompletion(os.Stdout, true)
			case "powershell":
				return rootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
		Example: `
# Bash
depsentry completion bash > /etc/bash_completion.d/depsentry

# Zsh
depsentry completion zsh > "${fpath[1]}/_depsentry"

# Fish
depsentry completion fish > ~/.config/fish/completions/depsentry.fish

# PowerShell
depsentry completion powershell > $PROFILE\depsentry.ps1
`,
	}
	rootCmd.AddCommand(cmd)
}
