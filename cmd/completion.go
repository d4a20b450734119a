package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/bankview/internal/query"
	"github.com/derickschaefer/bankview/internal/store"
)

// completionCmd wraps Cobra's built-in shell completion generator.
// Running `bankview completion bash` prints a script the user can source.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for bankview.

To load completions in the current shell session:

  # bash
  source <(bankview completion bash)

  # zsh
  source <(bankview completion zsh)

  # fish
  bankview completion fish | source

Bank names complete from the cached listing (run 'bankview banks' once to
populate it), saved tables from the local store.`,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	DisableFlagsInUseLine: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		root := cmd.Root()
		switch args[0] {
		case "bash":
			return root.GenBashCompletionV2(cmd.OutOrStdout(), true)
		case "zsh":
			return root.GenZshCompletion(cmd.OutOrStdout())
		case "fish":
			return root.GenFishCompletion(cmd.OutOrStdout(), true)
		case "powershell":
			return root.GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
		default:
			return cmd.Help()
		}
	},
}

// withStore runs fn against the local store for a completion request.
// Completion never touches the warehouse.
func withStore(fn func(*store.Store) []string) []string {
	deps, err := buildDeps()
	if err != nil {
		return nil
	}
	defer deps.Close()
	if err := deps.RequireStore(); err != nil {
		return nil
	}
	return fn(deps.Store)
}

func completeBanks(_ *cobra.Command, _ []string, prefix string) ([]string, cobra.ShellCompDirective) {
	names := withStore(func(s *store.Store) []string {
		list, ok, err := s.GetBanks()
		if err != nil || !ok {
			return nil
		}
		return list.Names
	})
	return filterPrefix(names, prefix), cobra.ShellCompDirectiveNoFileComp
}

func completeSaved(_ *cobra.Command, _ []string, prefix string) ([]string, cobra.ShellCompDirective) {
	names := withStore(func(s *store.Store) []string {
		tables, err := s.ListTables()
		if err != nil {
			return nil
		}
		out := make([]string, 0, len(tables))
		for _, t := range tables {
			out = append(out, t.Name)
		}
		return out
	})
	return filterPrefix(names, prefix), cobra.ShellCompDirectiveNoFileComp
}

func completeMetrics(_ *cobra.Command, _ []string, prefix string) ([]string, cobra.ShellCompDirective) {
	return filterPrefix(query.Metrics, prefix), cobra.ShellCompDirectiveNoFileComp
}

func completeSavedArg(cmd *cobra.Command, args []string, prefix string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return completeSaved(cmd, args, prefix)
}

func filterPrefix(items []string, prefix string) []string {
	var out []string
	for _, s := range items {
		if strings.HasPrefix(strings.ToLower(s), strings.ToLower(prefix)) {
			out = append(out, s)
		}
	}
	return out
}

func init() {
	rootCmd.AddCommand(completionCmd)

	tablesShowCmd.ValidArgsFunction = completeSavedArg
	tablesDeleteCmd.ValidArgsFunction = completeSavedArg
}
