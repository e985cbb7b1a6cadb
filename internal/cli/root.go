package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/petshop-dev/petshop/internal/cli/commands"
)

var version = "dev" // Will be set during build

// NewRootCmd builds the command tree. load builds the per-command
// environment and stateDir locates the user config.
func NewRootCmd(flags *commands.GlobalFlags, load commands.Loader, stateDir func() (string, error)) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "petshop",
		Short: "Petshop - storefront client for pets and pet supplies",
		Long: `Petshop CLI - browse and buy pets and supplies, and manage the shop.

The session is saved between runs, so 'petshop login' once and every
other command reuses it until it expires or you 'petshop logout'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.APIURL, "api-url", "", "API root, e.g. http://localhost:8080/api (or set PETSHOP_API_URL)")
	rootCmd.PersistentFlags().StringVar(&flags.Profile, "profile", "", "Profile from petshop.yaml (or set PETSHOP_PROFILE)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "petshop version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewInitCmd())
	rootCmd.AddCommand(commands.NewUseCmd(stateDir))
	rootCmd.AddCommand(commands.NewLoginCmd(load))
	rootCmd.AddCommand(commands.NewRegisterCmd(load))
	rootCmd.AddCommand(commands.NewLogoutCmd(load))
	rootCmd.AddCommand(commands.NewWhoamiCmd(load))
	rootCmd.AddCommand(commands.NewRefreshCmd(load))
	rootCmd.AddCommand(commands.NewPetsCmd(load))
	rootCmd.AddCommand(commands.NewProductsCmd(load))
	rootCmd.AddCommand(commands.NewMyCmd(load))
	rootCmd.AddCommand(commands.NewProfileCmd(load))
	rootCmd.AddCommand(commands.NewAdminCmd(load))
	rootCmd.AddCommand(commands.NewStatsCmd(load))
	rootCmd.AddCommand(commands.NewHealthCmd(load))

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	flags := &commands.GlobalFlags{}
	rootCmd := NewRootCmd(flags, commands.DefaultLoader(flags, version), commands.StateDir)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
