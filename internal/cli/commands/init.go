package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	projectconfig "github.com/petshop-dev/petshop/internal/cli/config"
	"github.com/petshop-dev/petshop/internal/cli/profileselect"
	"github.com/petshop-dev/petshop/internal/cli/userconfig"
	"github.com/petshop-dev/petshop/internal/config"
)

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "init [api-url]",
		Short: "Create or extend petshop.yaml in the current directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiURL := config.DefaultBaseURL
			if len(args) == 1 {
				apiURL = args[0]
			}
			return runInit(cmd, name, apiURL)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Profile name (default \"local\" for the first profile)")

	return cmd
}

func runInit(cmd *cobra.Command, name, apiURL string) error {
	out := cmd.OutOrStdout()

	currentDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	configPath := filepath.Join(currentDir, projectconfig.ConfigFileName)

	cfg := &projectconfig.Config{}
	isNewConfig := true
	if _, err := os.Stat(configPath); err == nil {
		cfg, err = projectconfig.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load existing config: %w", err)
		}
		isNewConfig = false
		fmt.Fprintf(out, "Found existing %s\n", projectconfig.ConfigFileName)
	}

	if name == "" {
		if len(cfg.Profiles) == 0 {
			name = "local"
		} else {
			name = fmt.Sprintf("profile-%d", len(cfg.Profiles)+1)
		}
	}

	added, err := cfg.AddProfile(projectconfig.Profile{Name: name, APIURL: apiURL})
	if err != nil {
		return err
	}

	if err := projectconfig.Save(configPath, cfg); err != nil {
		return err
	}

	switch {
	case isNewConfig:
		fmt.Fprintf(out, "✓ Created ./%s with profile %s (%s)\n", projectconfig.ConfigFileName, name, apiURL)
	case added:
		fmt.Fprintf(out, "✓ Added profile %s (%s) to ./%s\n", name, apiURL, projectconfig.ConfigFileName)
	default:
		fmt.Fprintf(out, "✓ Updated profile %s to %s\n", name, apiURL)
	}

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Run 'petshop health' to check the backend is reachable")
	fmt.Fprintln(out, "  2. Run 'petshop login' or 'petshop register'")

	return nil
}

// NewUseCmd creates the use command, which selects the profile later
// commands talk to
func NewUseCmd(stateDir func() (string, error)) *cobra.Command {
	return newUseCmd(stateDir, profileselect.PromptProfileSelection)
}

func newUseCmd(stateDir func() (string, error), prompt profileselect.PromptFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "use [profile]",
		Short: "Select the profile to use",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := stateDir()
			if err != nil {
				return err
			}

			cfg, err := projectconfig.LoadFromCurrentDir()
			if err != nil {
				return fmt.Errorf("failed to load config: %w\nRun 'petshop init' to create a configuration file", err)
			}

			var profile *projectconfig.Profile
			if len(args) == 1 {
				profile, err = cfg.GetProfile(args[0])
			} else {
				profile, err = prompt(cfg)
			}
			if err != nil {
				return err
			}

			if err := userconfig.SetSelectedProfile(dir, profile.Name); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Using profile %s (%s)\n", profile.Name, profile.APIURL)
			return nil
		},
	}
}

// StateDir resolves the state directory from the environment
func StateDir() (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	return cfg.Storage.Dir, nil
}
