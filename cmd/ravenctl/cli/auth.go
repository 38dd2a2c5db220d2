package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/raven-automation/ravenctl/internal/api"
)

// RegisterAuthCommands adds login/logout/whoami and user management.
func RegisterAuthCommands(root *cobra.Command) {
	root.AddCommand(newLoginCmd())
	root.AddCommand(newLogoutCmd())
	root.AddCommand(newWhoamiCmd())

	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage platform accounts",
	}
	usersCmd.AddCommand(newUserCreateCmd())
	root.AddCommand(usersCmd)
}

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [username]",
		Short: "Log the session into a platform account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			if err := env.Ready(); err != nil {
				return err
			}

			username := ""
			if len(args) > 0 {
				username = args[0]
			} else {
				if username, err = promptLine("Username: "); err != nil {
					return err
				}
			}

			password, err := promptPassword("Password: ")
			if err != nil {
				return err
			}

			client := api.Compose(env.Store, api.AuthMethods())
			auth, _ := api.Find[*api.AuthCapability](client)

			user := auth.Login(cmd.Context(), username, password)
			if user == nil {
				return fmt.Errorf("login failed: unknown username/password")
			}

			if err := env.SaveSession(); err != nil {
				env.Logger.Warn().Err(err).Msg("could not persist session")
			}

			fmt.Printf("Logged in as %s", user.Username)
			if user.Admin {
				fmt.Print(" (admin)")
			}
			fmt.Println()
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Detach the current session from its account",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			if err := env.RequireUser(); err != nil {
				return err
			}

			client := api.Compose(env.Store, api.AuthMethods())
			auth, _ := api.Find[*api.AuthCapability](client)
			auth.Logout(cmd.Context())
			env.Store.Reload(cmd.Context())

			if err := env.SaveSession(); err != nil {
				env.Logger.Warn().Err(err).Msg("could not persist session")
			}

			fmt.Println("Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session and account",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			if err := env.Ready(); err != nil {
				return err
			}

			auth := env.Store.Snapshot().Auth
			if err := env.SaveSession(); err != nil {
				env.Logger.Warn().Err(err).Msg("could not persist session")
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "SESSION\t%s\n", auth.Session.ID)
			fmt.Fprintf(w, "LAST_REQUEST\t%s\n", auth.Session.LastRequest)
			if auth.Authenticated() {
				fmt.Fprintf(w, "USER\t%s\n", auth.User.Username)
				fmt.Fprintf(w, "USER_ID\t%s\n", auth.User.ID)
				fmt.Fprintf(w, "ADMIN\t%v\n", auth.User.Admin)
				fmt.Fprintf(w, "SCOPES\t%d granted\n", len(auth.User.Scopes))
			} else {
				fmt.Fprintf(w, "USER\t(anonymous)\n")
			}
			w.Flush()
			return nil
		},
	}
}

func newUserCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <username>",
		Short: "Create a new account and log the session into it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			if err := env.Ready(); err != nil {
				return err
			}

			password, err := promptPassword("Password: ")
			if err != nil {
				return err
			}
			confirm, err := promptPassword("Confirm password: ")
			if err != nil {
				return err
			}
			if password != confirm {
				return fmt.Errorf("passwords do not match")
			}

			client := api.Compose(env.Store, api.AuthMethods())
			auth, _ := api.Find[*api.AuthCapability](client)

			user := auth.CreateUser(cmd.Context(), args[0], password)
			if user == nil {
				return fmt.Errorf("could not create user %q (already exists?)", args[0])
			}

			if err := env.SaveSession(); err != nil {
				env.Logger.Warn().Err(err).Msg("could not persist session")
			}

			fmt.Printf("Created user %s\n", user.Username)
			return nil
		},
	}
}
