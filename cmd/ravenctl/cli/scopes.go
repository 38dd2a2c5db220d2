package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raven-automation/ravenctl/internal/api"
	"github.com/raven-automation/ravenctl/internal/core"
)

// RegisterScopeCommands adds permission scope inspection commands.
func RegisterScopeCommands(root *cobra.Command) {
	scopesCmd := &cobra.Command{
		Use:   "scopes",
		Short: "Inspect permission scopes",
	}

	scopesCmd.AddCommand(newScopeListCmd())
	scopesCmd.AddCommand(newScopeTreeCmd())
	scopesCmd.AddCommand(newScopeCheckCmd())

	root.AddCommand(scopesCmd)
}

func newScopeListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scopes granted to the current user",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			if err := env.RequireUser(); err != nil {
				return err
			}

			all, _ := cmd.Flags().GetBool("all")
			asJSON, _ := cmd.Flags().GetBool("json")

			client := api.Compose(env.Store, api.ScopeMethods())
			sc, _ := api.Find[*api.ScopeCapability](client)

			var records core.ScopeRecords
			if all {
				records = sc.AllScopes(cmd.Context())
			} else {
				records = sc.OwnScopes(cmd.Context())
			}

			if asJSON {
				return printJSON(records)
			}

			if len(records) == 0 {
				fmt.Println("No scopes found.")
				return nil
			}
			printScopeTree(records, 0)
			return nil
		},
	}
	cmd.Flags().Bool("all", false, "List every scope known to the server, not just granted ones")
	cmd.Flags().Bool("json", false, "Print raw JSON")
	return cmd
}

func newScopeTreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree <path>",
		Short: "Show the scope subtree rooted at a dot-delimited path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			if err := env.RequireUser(); err != nil {
				return err
			}

			asJSON, _ := cmd.Flags().GetBool("json")

			client := api.Compose(env.Store, api.ScopeMethods())
			sc, _ := api.Find[*api.ScopeCapability](client)

			scope := sc.PathScopes(cmd.Context(), args[0])
			if scope == nil {
				return fmt.Errorf("scope path not found: %s", args[0])
			}

			if asJSON {
				return printJSON(scope)
			}

			fmt.Println(scope.Path)
			printScopeTree(scope.Children, 1)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print raw JSON")
	return cmd
}

func newScopeCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <scope>...",
		Short: "Check whether the current user satisfies the given scopes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			if err := env.RequireUser(); err != nil {
				return err
			}

			all, _ := cmd.Flags().GetBool("all")

			client := api.Compose(env.Store, api.ScopeMethods())
			authz := api.NewAuthorizer(client)

			var ok bool
			if all {
				ok = authz.HasAll(cmd.Context(), args...)
			} else {
				ok = authz.HasAny(cmd.Context(), args...)
			}

			if !ok {
				return fmt.Errorf("scope check failed for: %s", strings.Join(args, ", "))
			}
			fmt.Println("OK")
			return nil
		},
	}
	cmd.Flags().Bool("all", false, "Require every scope instead of any")
	return cmd
}

func printScopeTree(records core.ScopeRecords, depth int) {
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		scope := records[k]
		label := scope.Path
		if scope.DisplayName != nil && *scope.DisplayName != "" {
			label = fmt.Sprintf("%s (%s)", scope.Path, *scope.DisplayName)
		}
		fmt.Printf("%s%s\n", strings.Repeat("  ", depth), label)
		printScopeTree(scope.Children, depth+1)
	}
}
