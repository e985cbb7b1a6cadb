package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/petshop-dev/petshop/internal/cli/client"
	"github.com/petshop-dev/petshop/internal/session"
)

// NewProductsCmd creates the products command group
func NewProductsCmd(load Loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Browse, buy and manage pet supplies",
	}

	cmd.AddCommand(
		newProductsListCmd(load),
		newProductsShowCmd(load),
		newProductsBuyCmd(load),
		newProductsCreateCmd(load),
		newProductsUpdateCmd(load),
		newProductsDeleteCmd(load),
	)

	return cmd
}

func newProductsListCmd(load Loader) *cobra.Command {
	var mine bool
	var ownerID string

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List products",
		Args:    cobra.NoArgs,
		RunE: withEnv(load, func(cmd *cobra.Command, env *Env, args []string) error {
			filter, err := ownerFilter(mine, ownerID)
			if err != nil {
				return err
			}
			products, err := env.Client.ListProducts(cmd.Context(), filter)
			if err != nil {
				return err
			}
			printProducts(env.Out, products)
			return nil
		}),
	}

	cmd.Flags().BoolVar(&mine, "mine", false, "Only products you own")
	cmd.Flags().StringVar(&ownerID, "owner", "", "Only products owned by this user ID (0 for the store)")

	return cmd
}

func newProductsShowCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(load, func(cmd *cobra.Command, env *Env, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			warnUnlessRole(env, session.Role.CanManageInventory, "view product details")
			product, err := env.Client.GetProduct(cmd.Context(), id)
			if err != nil {
				return err
			}
			printProduct(env.Out, product)
			return nil
		}),
	}
}

func newProductsBuyCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "buy <id>",
		Short: "Buy a product from the store",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(load, func(cmd *cobra.Command, env *Env, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if _, err := env.Session.RequireUser(); err != nil {
				return err
			}
			product, err := env.Client.BuyProduct(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(env.Out, "✓ You bought %s for %.2f\n", product.Name, product.Price)
			return nil
		}),
	}
}

type productFlags struct {
	input client.ProductInput
}

func (f *productFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.input.Name, "name", "", "Name")
	fs.StringVar(&f.input.Description, "description", "", "Description")
	fs.Float64Var(&f.input.Price, "price", 0, "Price")
	fs.IntVar(&f.input.Stock, "stock", 0, "Units in stock")
	fs.StringVar(&f.input.Category, "category", "", "Category, e.g. food or toys")
	fs.StringVar(&f.input.Brand, "brand", "", "Brand")
	fs.StringVar(&f.input.Image, "image", "", "Image URL")
	fs.Float64Var(&f.input.Mass, "mass", 0, "Mass in kg")
}

func (f *productFlags) apply(fs *pflag.FlagSet, base client.ProductInput) client.ProductInput {
	if fs.Changed("name") {
		base.Name = f.input.Name
	}
	if fs.Changed("description") {
		base.Description = f.input.Description
	}
	if fs.Changed("price") {
		base.Price = f.input.Price
	}
	if fs.Changed("stock") {
		base.Stock = f.input.Stock
	}
	if fs.Changed("category") {
		base.Category = f.input.Category
	}
	if fs.Changed("brand") {
		base.Brand = f.input.Brand
	}
	if fs.Changed("image") {
		base.Image = f.input.Image
	}
	if fs.Changed("mass") {
		base.Mass = f.input.Mass
	}
	return base
}

func newProductsCreateCmd(load Loader) *cobra.Command {
	flags := &productFlags{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a product to the store (manager)",
		Args:  cobra.NoArgs,
		RunE: withEnv(load, func(cmd *cobra.Command, env *Env, args []string) error {
			warnUnlessRole(env, session.Role.CanManageInventory, "create products")
			product, err := env.Client.CreateProduct(cmd.Context(), flags.input)
			if err != nil {
				return err
			}
			fmt.Fprintf(env.Out, "✓ Created product %d (%s)\n", product.ID, product.Name)
			return nil
		}),
	}

	flags.register(cmd.Flags())
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("price")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func newProductsUpdateCmd(load Loader) *cobra.Command {
	flags := &productFlags{}

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a product (manager)",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(load, func(cmd *cobra.Command, env *Env, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			warnUnlessRole(env, session.Role.CanManageInventory, "update products")

			current, err := env.Client.GetProduct(cmd.Context(), id)
			if err != nil {
				return err
			}
			product, err := env.Client.UpdateProduct(cmd.Context(), id, flags.apply(cmd.Flags(), current.Input()))
			if err != nil {
				return err
			}
			fmt.Fprintf(env.Out, "✓ Updated product %d (%s)\n", product.ID, product.Name)
			return nil
		}),
	}

	flags.register(cmd.Flags())

	return cmd
}

func newProductsDeleteCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a product",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(load, func(cmd *cobra.Command, env *Env, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := env.Client.DeleteProduct(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(env.Out, "✓ Deleted product %d\n", id)
			return nil
		}),
	}
}
