package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petshop-dev/petshop/internal/cli/client"
)

// NewMyCmd creates the my command group: things the signed-in user owns
func NewMyCmd(load Loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "my",
		Short: "Show what you own",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "pets",
			Short: "Pets you bought",
			Args:  cobra.NoArgs,
			RunE: withEnv(load, func(cmd *cobra.Command, env *Env, args []string) error {
				if _, err := env.Session.RequireUser(); err != nil {
					return err
				}
				pets, err := env.Client.MyPets(cmd.Context())
				if err != nil {
					return err
				}
				printPets(env.Out, pets)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "products",
			Short: "Products you bought",
			Args:  cobra.NoArgs,
			RunE: withEnv(load, func(cmd *cobra.Command, env *Env, args []string) error {
				if _, err := env.Session.RequireUser(); err != nil {
					return err
				}
				products, err := env.Client.MyProducts(cmd.Context())
				if err != nil {
					return err
				}
				printProducts(env.Out, products)
				return nil
			}),
		},
	)

	return cmd
}

// NewProfileCmd creates the profile command group
func NewProfileCmd(load Loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage your account",
	}

	var update client.ProfileUpdate
	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Change your name, email or picture",
		Args:  cobra.NoArgs,
		RunE: withEnv(load, func(cmd *cobra.Command, env *Env, args []string) error {
			return runProfileUpdate(cmd, env, update)
		}),
	}
	updateCmd.Flags().StringVar(&update.FirstName, "first-name", "", "First name")
	updateCmd.Flags().StringVar(&update.LastName, "last-name", "", "Last name")
	updateCmd.Flags().StringVar(&update.Email, "email", "", "Email address")
	updateCmd.Flags().StringVar(&update.Image, "image", "", "Profile picture URL")

	cmd.AddCommand(updateCmd)
	return cmd
}

func runProfileUpdate(cmd *cobra.Command, env *Env, update client.ProfileUpdate) error {
	if update == (client.ProfileUpdate{}) {
		return fmt.Errorf("nothing to update (use --first-name, --last-name, --email or --image)")
	}
	if _, err := env.Session.RequireUser(); err != nil {
		return err
	}

	user, err := env.Client.UpdateProfile(cmd.Context(), update)
	if err != nil {
		return err
	}

	// Keep the cached user in step with the server
	if err := env.Session.Login(env.Session.Token(), *user); err != nil {
		env.Log.Warn().Err(err).Msg("Failed to save updated profile")
	}

	fmt.Fprintln(env.Out, "✓ Profile updated")
	printUser(env.Out, user)
	return nil
}
