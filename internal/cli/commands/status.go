package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatsCmd creates the stats command
func NewStatsCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show shop counters",
		Args:  cobra.NoArgs,
		RunE: withEnv(load, func(cmd *cobra.Command, env *Env, args []string) error {
			stats, err := env.Client.Stats(cmd.Context())
			if err != nil {
				return err
			}

			t := newTable(env.Out)
			fmt.Fprintln(t, "\tTOTAL\tIN STORE\tOWNED")
			fmt.Fprintf(t, "Pets\t%d\t%d\t%d\n", stats.TotalPets, stats.StorePets, stats.OwnedPets)
			fmt.Fprintf(t, "Products\t%d\t%d\t%d\n", stats.TotalProducts, stats.StoreProducts, stats.OwnedProducts)
			fmt.Fprintf(t, "Users\t%d\t\t\n", stats.Users)
			return t.Flush()
		}),
	}
}

// NewHealthCmd creates the health command
func NewHealthCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is up",
		Args:  cobra.NoArgs,
		RunE: withEnv(load, func(cmd *cobra.Command, env *Env, args []string) error {
			health, err := env.Client.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("%s is unreachable: %w", env.Client.BaseURL(), err)
			}
			fmt.Fprintf(env.Out, "✓ %s is %s (%s)\n", env.Client.BaseURL(), health.Status, health.Timestamp)
			return nil
		}),
	}
}
