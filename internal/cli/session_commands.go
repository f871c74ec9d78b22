package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// newLoginCmd creates the 'login' command.
func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login [username]",
		Short: "Sign in and open the first space",
		Long: `Sign in to the filer. The session cookie and login state are kept
in the state file, so later commands do not ask again.

The username defaults to filer.username from the config file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			username := a.cfg.Username
			if len(args) == 1 {
				username = args[0]
			}
			if username == "" {
				if username, err = promptLine("Username: "); err != nil {
					return err
				}
			}
			password, err := promptSecret(fmt.Sprintf("Password for %s: ", username))
			if err != nil {
				return err
			}

			if err := a.svc.Login(ctx, username, password); err != nil {
				return err
			}
			GetLogger().Info().Str("user", username).Msg("Logged in")
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Logged in as %s, now in %s\n", username, a.svc.Navigator().Path())
			return nil
		},
	}
	return cmd
}

// newLogoutCmd creates the 'logout' command.
func newLogoutCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear all local state",
		Long: `Sign out of the filer and delete every persisted value: cookies,
spaces, the current path, the cached collaborator apps and the sort order.

Use --force to clear local state even when the filer cannot be reached.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.svc.Logout(ctx, force); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Logged out")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Clear local state even if sign-out fails")
	return cmd
}

// newAppsCmd creates the 'apps' command.
func newAppsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apps",
		Short: "List collaborator apps and recognized upload extensions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			apps, err := a.svc.Session().CoolApps(ctx)
			if err != nil {
				return fmt.Errorf("failed to load collaborator apps: %w", err)
			}

			out := cmd.OutOrStdout()
			keys := make([]string, 0, len(apps))
			for k := range apps {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				app := apps[k]
				label := k
				if app.Name != "" {
					label = fmt.Sprintf("%s (%s)", k, app.Name)
				}
				fmt.Fprintf(out, "%s: %s\n", label, strings.Join(app.Extensions, ", "))
			}
			fmt.Fprintf(out, "\nRecognized extensions: %s\n", strings.Join(a.svc.Session().Extensions(), ", "))
			return nil
		},
	}
	return cmd
}

// newUsersCmd creates the 'users' command.
func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List the user directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(GetContext(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			users := a.svc.Session().Users()
			out := cmd.OutOrStdout()
			if len(users) == 0 {
				fmt.Fprintln(out, "No users found")
				return nil
			}
			for _, u := range users {
				if u.Name != "" {
					fmt.Fprintf(out, "%-20s %-20s %s\n", u.ID, u.Username, u.Name)
				} else {
					fmt.Fprintf(out, "%-20s %s\n", u.ID, u.Username)
				}
			}
			return nil
		},
	}
	return cmd
}
