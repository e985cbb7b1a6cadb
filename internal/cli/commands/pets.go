package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/petshop-dev/petshop/internal/cli/client"
	"github.com/petshop-dev/petshop/internal/session"
)

// NewPetsCmd creates the pets command group
func NewPetsCmd(load Loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pets",
		Short: "Browse, buy and manage pets",
	}

	cmd.AddCommand(
		newPetsListCmd(load),
		newPetsShowCmd(load),
		newPetsBuyCmd(load),
		newPetsCreateCmd(load),
		newPetsUpdateCmd(load),
		newPetsDeleteCmd(load),
	)

	return cmd
}

func newPetsListCmd(load Loader) *cobra.Command {
	var mine bool
	var ownerID string

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List pets",
		Args:    cobra.NoArgs,
		RunE: withEnv(load, func(cmd *cobra.Command, env *Env, args []string) error {
			filter, err := ownerFilter(mine, ownerID)
			if err != nil {
				return err
			}
			pets, err := env.Client.ListPets(cmd.Context(), filter)
			if err != nil {
				return err
			}
			printPets(env.Out, pets)
			return nil
		}),
	}

	cmd.Flags().BoolVar(&mine, "mine", false, "Only pets you own")
	cmd.Flags().StringVar(&ownerID, "owner", "", "Only pets owned by this user ID (0 for the store)")

	return cmd
}

func ownerFilter(mine bool, ownerID string) (client.ListFilter, error) {
	if mine && ownerID != "" {
		return client.ListFilter{}, fmt.Errorf("--mine and --owner cannot be used together")
	}
	if mine {
		return client.ListFilter{Owner: "me"}, nil
	}
	if ownerID != "" && ownerID != "0" {
		if _, err := parseID(ownerID); err != nil {
			return client.ListFilter{}, err
		}
	}
	return client.ListFilter{Owner: ownerID}, nil
}

func newPetsShowCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one pet",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(load, func(cmd *cobra.Command, env *Env, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			warnUnlessRole(env, session.Role.CanManageInventory, "view pet details")
			pet, err := env.Client.GetPet(cmd.Context(), id)
			if err != nil {
				return err
			}
			printPet(env.Out, pet)
			return nil
		}),
	}
}

func newPetsBuyCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "buy <id>",
		Short: "Buy a pet from the store",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(load, func(cmd *cobra.Command, env *Env, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if _, err := env.Session.RequireUser(); err != nil {
				return err
			}
			pet, err := env.Client.BuyPet(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(env.Out, "✓ You bought %s (%s) for %.2f\n", pet.Name, pet.Breed, pet.Price)
			return nil
		}),
	}
}

// petFlags binds the writable pet fields to flags
type petFlags struct {
	input client.PetInput
}

func (f *petFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.input.Name, "name", "", "Name")
	fs.StringVar(&f.input.Description, "description", "", "Description")
	fs.Float64Var(&f.input.Price, "price", 0, "Price")
	fs.StringVar(&f.input.Breed, "breed", "", "Breed")
	fs.IntVar(&f.input.Age, "age", 0, "Age in years")
	fs.StringVar(&f.input.Gender, "gender", "", "male or female")
	fs.BoolVar(&f.input.Sterilized, "sterilized", false, "Whether the pet is sterilized")
	fs.StringVar(&f.input.Image, "image", "", "Image URL")
}

// apply overlays the flags that were set onto base
func (f *petFlags) apply(fs *pflag.FlagSet, base client.PetInput) client.PetInput {
	if fs.Changed("name") {
		base.Name = f.input.Name
	}
	if fs.Changed("description") {
		base.Description = f.input.Description
	}
	if fs.Changed("price") {
		base.Price = f.input.Price
	}
	if fs.Changed("breed") {
		base.Breed = f.input.Breed
	}
	if fs.Changed("age") {
		base.Age = f.input.Age
	}
	if fs.Changed("gender") {
		base.Gender = f.input.Gender
	}
	if fs.Changed("sterilized") {
		base.Sterilized = f.input.Sterilized
	}
	if fs.Changed("image") {
		base.Image = f.input.Image
	}
	return base
}

func newPetsCreateCmd(load Loader) *cobra.Command {
	flags := &petFlags{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a pet to the store (manager)",
		Args:  cobra.NoArgs,
		RunE: withEnv(load, func(cmd *cobra.Command, env *Env, args []string) error {
			warnUnlessRole(env, session.Role.CanManageInventory, "create pets")
			pet, err := env.Client.CreatePet(cmd.Context(), flags.input)
			if err != nil {
				return err
			}
			fmt.Fprintf(env.Out, "✓ Created pet %d (%s)\n", pet.ID, pet.Name)
			return nil
		}),
	}

	flags.register(cmd.Flags())
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("price")
	_ = cmd.MarkFlagRequired("breed")
	_ = cmd.MarkFlagRequired("gender")

	return cmd
}

func newPetsUpdateCmd(load Loader) *cobra.Command {
	flags := &petFlags{}

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a pet (manager)",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(load, func(cmd *cobra.Command, env *Env, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			warnUnlessRole(env, session.Role.CanManageInventory, "update pets")

			current, err := env.Client.GetPet(cmd.Context(), id)
			if err != nil {
				return err
			}
			pet, err := env.Client.UpdatePet(cmd.Context(), id, flags.apply(cmd.Flags(), current.Input()))
			if err != nil {
				return err
			}
			fmt.Fprintf(env.Out, "✓ Updated pet %d (%s)\n", pet.ID, pet.Name)
			return nil
		}),
	}

	flags.register(cmd.Flags())

	return cmd
}

func newPetsDeleteCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a pet",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(load, func(cmd *cobra.Command, env *Env, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := env.Client.DeletePet(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(env.Out, "✓ Deleted pet %d\n", id)
			return nil
		}),
	}
}
