package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raven-automation/ravenctl/internal/core"
	"github.com/raven-automation/ravenctl/internal/events"
)

// RegisterEventCommands adds the live event tail.
func RegisterEventCommands(root *cobra.Command) {
	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "Observe the platform event stream",
	}
	eventsCmd.AddCommand(newEventWatchCmd())
	root.AddCommand(eventsCmd)
}

func newEventWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [channel]...",
		Short: "Tail events on the given channels (default: global and session)",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			if err := env.RequireUser(); err != nil {
				return err
			}

			channels := args
			if len(channels) == 0 {
				channels = []string{string(core.ChannelGlobal), string(core.ChannelSession)}
			}

			asJSON, _ := cmd.Flags().GetBool("json")

			manager := events.NewManager(
				events.WebsocketDialer(env.Cfg.Host, env.Cfg.Insecure),
				env.Logger,
			)

			var regs []events.Registration
			for _, channel := range channels {
				regs = append(regs, manager.Subscribe(channel, func(event core.Event) {
					if asJSON {
						printJSON(event)
						return
					}
					plugin := "-"
					if event.Plugin != nil {
						plugin = *event.Plugin
					}
					fmt.Printf("%s  %-8s  %-20s  plugin=%s  %s\n",
						event.ID, event.Channel, event.Type, plugin, string(event.Data))
				}))
			}
			defer manager.Unsubscribe(regs...)

			unbind := manager.BindStore(env.Store)
			defer unbind()
			defer manager.Disconnect()

			fmt.Printf("Watching %d channel(s). Ctrl-C to stop.\n", len(channels))

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			fmt.Println("\nStopping watch.")
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print full event envelopes as JSON")
	return cmd
}
