package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/petshop-dev/petshop/internal/cli/client"
	"github.com/petshop-dev/petshop/internal/session"
)

func isAdmin(r session.Role) bool {
	return r == session.RoleAdmin
}

// NewAdminCmd creates the admin command group
func NewAdminCmd(load Loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administer the shop (admin)",
	}

	users := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
	}
	users.AddCommand(
		newAdminUsersListCmd(load),
		newAdminUsersShowCmd(load),
		newAdminUsersUpdateCmd(load),
		newAdminUsersBlockCmd(load, true),
		newAdminUsersBlockCmd(load, false),
		newAdminUsersRoleCmd(load),
	)

	cmd.AddCommand(users)
	return cmd
}

func newAdminUsersListCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List all users",
		Args:    cobra.NoArgs,
		RunE: withEnv(load, func(cmd *cobra.Command, env *Env, args []string) error {
			warnUnlessRole(env, isAdmin, "list users")
			users, err := env.Client.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			printUsers(env.Out, users)
			return nil
		}),
	}
}

func newAdminUsersShowCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one user",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(load, func(cmd *cobra.Command, env *Env, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			warnUnlessRole(env, isAdmin, "view users")
			user, err := env.Client.GetUser(cmd.Context(), id)
			if err != nil {
				return err
			}
			printUser(env.Out, user)
			return nil
		}),
	}
}

// userFlags binds the editable account fields to flags
type userFlags struct {
	update client.ProfileUpdate
}

func (f *userFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.update.FirstName, "first-name", "", "First name")
	fs.StringVar(&f.update.LastName, "last-name", "", "Last name")
	fs.StringVar(&f.update.Email, "email", "", "Email address")
	fs.StringVar(&f.update.Image, "image", "", "Profile picture URL")
}

// apply overlays the flags that were set onto the current account
func (f *userFlags) apply(fs *pflag.FlagSet, current *session.UserSummary) (client.ProfileUpdate, bool) {
	update := client.ProfileUpdate{
		FirstName: current.FirstName,
		LastName:  current.LastName,
		Email:     current.Email,
		Image:     current.ImageURL,
	}
	changed := false
	if fs.Changed("first-name") {
		update.FirstName, changed = f.update.FirstName, true
	}
	if fs.Changed("last-name") {
		update.LastName, changed = f.update.LastName, true
	}
	if fs.Changed("email") {
		update.Email, changed = f.update.Email, true
	}
	if fs.Changed("image") {
		update.Image, changed = f.update.Image, true
	}
	return update, changed
}

func newAdminUsersUpdateCmd(load Loader) *cobra.Command {
	flags := &userFlags{}

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a user's name, email or picture",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(load, func(cmd *cobra.Command, env *Env, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			warnUnlessRole(env, isAdmin, "edit users")

			current, err := env.Client.GetUser(cmd.Context(), id)
			if err != nil {
				return err
			}
			update, changed := flags.apply(cmd.Flags(), current)
			if !changed {
				return fmt.Errorf("nothing to update (use --first-name, --last-name, --email or --image)")
			}

			user, err := env.Client.UpdateUser(cmd.Context(), id, update)
			if err != nil {
				return err
			}
			fmt.Fprintf(env.Out, "✓ Updated %s\n", user.FullName())
			printUser(env.Out, user)
			return nil
		}),
	}

	flags.register(cmd.Flags())

	return cmd
}

func newAdminUsersBlockCmd(load Loader, block bool) *cobra.Command {
	use, short, verb := "block <id>", "Prevent a user from signing in", "Blocked"
	if !block {
		use, short, verb = "unblock <id>", "Let a blocked user sign in again", "Unblocked"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(load, func(cmd *cobra.Command, env *Env, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			warnUnlessRole(env, isAdmin, "block or unblock users")

			var user *session.UserSummary
			if block {
				user, err = env.Client.BlockUser(cmd.Context(), id)
			} else {
				user, err = env.Client.UnblockUser(cmd.Context(), id)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(env.Out, "✓ %s %s (%s)\n", verb, user.FullName(), user.Email)
			return nil
		}),
	}
}

func newAdminUsersRoleCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "role <id> [user|manager|admin]",
		Short: "Change a user's role",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withEnv(load, func(cmd *cobra.Command, env *Env, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			warnUnlessRole(env, isAdmin, "change roles")

			var role session.Role
			if len(args) == 2 {
				role = session.Role(args[1])
			} else {
				current, err := env.Client.GetUser(cmd.Context(), id)
				if err != nil {
					return err
				}
				if role, err = env.Prompts.Role(current.Role); err != nil {
					return err
				}
			}
			if !role.IsValid() {
				return fmt.Errorf("invalid role %q (expected user, manager or admin)", role)
			}

			user, err := env.Client.ChangeRole(cmd.Context(), id, client.RoleChange{Role: role})
			if err != nil {
				return err
			}
			fmt.Fprintf(env.Out, "✓ %s is now %s\n", user.FullName(), user.Role)
			return nil
		}),
	}
}
