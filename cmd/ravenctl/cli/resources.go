package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/raven-automation/ravenctl/internal/api"
	"github.com/raven-automation/ravenctl/internal/core"
	"github.com/raven-automation/ravenctl/internal/events"
	"github.com/raven-automation/ravenctl/internal/resources"
)

// RegisterResourceCommands adds resource browsing and execution commands.
func RegisterResourceCommands(root *cobra.Command) {
	resCmd := &cobra.Command{
		Use:   "resources",
		Short: "Browse and act on platform resources",
	}

	resCmd.AddCommand(newResourceListCmd())
	resCmd.AddCommand(newResourceExecutorsCmd())
	resCmd.AddCommand(newResourceExecuteCmd())
	resCmd.AddCommand(newResourceWatchCmd())

	root.AddCommand(resCmd)
}

func newResourceListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List resources visible to the current user",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			if err := env.RequireUser(); err != nil {
				return err
			}

			category, _ := cmd.Flags().GetString("category")
			tag, _ := cmd.Flags().GetString("tag")
			search, _ := cmd.Flags().GetString("search")
			asJSON, _ := cmd.Flags().GetBool("json")

			client := api.Compose(env.Store, api.ResourceMethods())
			rc, _ := api.Find[*api.ResourceCapability](client)

			list := resources.Filter{
				Category: category,
				Tag:      tag,
				Query:    search,
			}.Apply(rc.ListResources(cmd.Context()))

			if asJSON {
				return printJSON(list)
			}

			printResourceTable(list)
			return nil
		},
	}
	cmd.Flags().String("category", "", "Only resources in this category")
	cmd.Flags().String("tag", "", "Only resources carrying this tag")
	cmd.Flags().String("search", "", "Substring match over id, name and plugin")
	cmd.Flags().Bool("json", false, "Print raw JSON")
	return cmd
}

func newResourceExecutorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "executors <resource-id>...",
		Short: "List executors applicable to the given resources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			if err := env.RequireUser(); err != nil {
				return err
			}

			client := api.Compose(env.Store, api.ResourceMethods())
			rc, _ := api.Find[*api.ResourceCapability](client)

			targets, err := resolveResources(cmd, rc, args)
			if err != nil {
				return err
			}

			executors := rc.GetExecutorsForResource(cmd.Context(), targets...)
			if len(executors) == 0 {
				fmt.Println("No executors found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPLUGIN\tNAME\tARGS")
			for _, e := range executors {
				argNames := make([]string, 0, len(e.Arguments))
				for name := range e.Arguments {
					argNames = append(argNames, name)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID, e.Plugin, e.Name, strings.Join(argNames, ","))
			}
			w.Flush()
			return nil
		},
	}
}

func newResourceExecuteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Invoke an executor against a target resource",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			if err := env.RequireUser(); err != nil {
				return err
			}

			executorID, _ := cmd.Flags().GetString("executor")
			targetID, _ := cmd.Flags().GetString("target")
			argPairs, _ := cmd.Flags().GetStringArray("arg")

			if executorID == "" || targetID == "" {
				return fmt.Errorf("--executor and --target are required")
			}

			client := api.Compose(env.Store, api.ResourceMethods())
			rc, _ := api.Find[*api.ResourceCapability](client)

			targets, err := resolveResources(cmd, rc, []string{targetID})
			if err != nil {
				return err
			}
			target := targets[0]

			var executor *core.Executor
			for _, e := range rc.GetExecutorsForResource(cmd.Context(), target) {
				if e.ID == executorID {
					executor = &e
					break
				}
			}
			if executor == nil {
				return fmt.Errorf("executor %q does not apply to resource %q", executorID, targetID)
			}

			execArgs := make(map[string]any, len(argPairs))
			for _, pair := range argPairs {
				key, value, found := strings.Cut(pair, "=")
				if !found {
					return fmt.Errorf("invalid --arg %q, want key=value", pair)
				}
				execArgs[key] = value
			}

			rc.ExecuteOnResource(cmd.Context(), *executor, execArgs, target)
			fmt.Printf("Dispatched %s on %s\n", executor.Name, target.DisplayName())
			return nil
		},
	}
	cmd.Flags().String("executor", "", "Executor id to invoke (required)")
	cmd.Flags().String("target", "", "Target resource id (required)")
	cmd.Flags().StringArray("arg", nil, "Executor argument as key=value (repeatable)")
	return cmd
}

func newResourceWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Live view of the resource list, updated from the event stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			if err := env.RequireUser(); err != nil {
				return err
			}

			client := api.Compose(env.Store, api.ResourceMethods(), api.ScopeMethods())
			authz := api.NewAuthorizer(client)

			manager := events.NewManager(
				events.WebsocketDialer(env.Cfg.Host, env.Cfg.Insecure),
				env.Logger,
			)
			unbind := manager.BindStore(env.Store)
			defer unbind()
			defer manager.Disconnect()

			cache := resources.NewCache(client, authz, manager, env.Logger)
			defer cache.Close()

			cache.Sync(cmd.Context())
			if len(cache.Snapshot()) == 0 && !authz.HasAny(cmd.Context(), "resources.all.*", "resources.plugin.*") {
				return fmt.Errorf("current user holds no resource viewing scope")
			}

			printResourceTable(cache.Snapshot())
			removeObserver := cache.OnChange(func(list []core.Resource) {
				fmt.Println()
				printResourceTable(list)
			})
			defer removeObserver()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			fmt.Println("\nStopping watch.")
			return nil
		},
	}
}

// resolveResources maps resource ids to full records via the bulk list.
func resolveResources(cmd *cobra.Command, rc *api.ResourceCapability, ids []string) ([]core.Resource, error) {
	all := rc.ListResources(cmd.Context())
	byID := make(map[string]core.Resource, len(all))
	for _, r := range all {
		byID[r.ID] = r
	}

	out := make([]core.Resource, 0, len(ids))
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("resource not found: %s", id)
		}
		out = append(out, r)
	}
	return out, nil
}

func printResourceTable(list []core.Resource) {
	if len(list) == 0 {
		fmt.Println("No resources found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPLUGIN\tNAME\tCATEGORY\tTAGS\tSTATE")
	for _, r := range list {
		state := "-"
		if prop, ok := r.StateProperty(); ok {
			state = strings.TrimSpace(string(prop.Value))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.Plugin,
			r.DisplayName(),
			orDash(r.Metadata.Category),
			strings.Join(r.Metadata.Tags, ","),
			state,
		)
	}
	w.Flush()
}
