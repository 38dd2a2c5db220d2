package cli

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/raven-automation/ravenctl/internal/api"
)

// RegisterPluginCommands adds plugin manifest inspection commands.
func RegisterPluginCommands(root *cobra.Command) {
	pluginsCmd := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect installed plugins",
	}

	pluginsCmd.AddCommand(newPluginListCmd())
	pluginsCmd.AddCommand(newPluginGetCmd())

	root.AddCommand(pluginsCmd)
}

func newPluginListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed plugins",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			if err := env.RequireUser(); err != nil {
				return err
			}

			asJSON, _ := cmd.Flags().GetBool("json")

			client := api.Compose(env.Store, api.PluginMethods())
			pc, _ := api.Find[*api.PluginCapability](client)

			plugins := pc.ListPlugins(cmd.Context())
			if asJSON {
				return printJSON(plugins)
			}

			if len(plugins) == 0 {
				fmt.Println("No plugins installed.")
				return nil
			}

			slugs := make([]string, 0, len(plugins))
			for slug := range plugins {
				slugs = append(slugs, slug)
			}
			sort.Strings(slugs)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SLUG\tNAME\tEXPORTS\tDEPS\tDESCRIPTION")
			for _, slug := range slugs {
				p := plugins[slug]
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
					p.Slug, p.Name, len(p.Exports), len(p.Dependencies), orDash(p.Description))
			}
			w.Flush()
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print raw JSON")
	return cmd
}

func newPluginGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Show one plugin manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			if err := env.RequireUser(); err != nil {
				return err
			}

			client := api.Compose(env.Store, api.PluginMethods())
			pc, _ := api.Find[*api.PluginCapability](client)

			manifest := pc.GetPlugin(cmd.Context(), args[0])
			if manifest == nil {
				return fmt.Errorf("plugin not found: %s", args[0])
			}
			return printJSON(manifest)
		},
	}
}
