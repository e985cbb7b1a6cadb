package profileselect

import (
	"fmt"
	"io"

	"github.com/manifoldco/promptui"

	"github.com/petshop-dev/petshop/internal/cli/config"
	"github.com/petshop-dev/petshop/internal/cli/userconfig"
)

// PromptFunc asks the user to pick one of the configured profiles
type PromptFunc func(projectConfig *config.Config) (*config.Profile, error)

// Resolver picks the profile a command talks to
type Resolver struct {
	StateDir string
	Prompt   PromptFunc
	Warn     io.Writer
}

// ResolveProfile determines which profile to use based on the following priority:
// 1. If name is provided, use that profile
// 2. If user has a selected profile in their local config, use that
// 3. If only one profile in project config, use that
// 4. Otherwise, prompt user to select a profile interactively
func (r Resolver) ResolveProfile(projectConfig *config.Config, name string) (*config.Profile, error) {
	if name != "" {
		return projectConfig.GetProfile(name)
	}

	selected, err := userconfig.GetSelectedProfile(r.StateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}

	if selected != "" {
		profile, err := projectConfig.GetProfile(selected)
		if err == nil {
			return profile, nil
		}
		// Selected profile no longer exists in project config, clear it and continue
		_ = userconfig.SetSelectedProfile(r.StateDir, "")
	}

	if len(projectConfig.Profiles) == 1 {
		profile := &projectConfig.Profiles[0]
		r.remember(profile.Name)
		return profile, nil
	}

	prompt := r.Prompt
	if prompt == nil {
		prompt = PromptProfileSelection
	}
	profile, err := prompt(projectConfig)
	if err != nil {
		return nil, err
	}

	r.remember(profile.Name)
	return profile, nil
}

// remember saves the selection; failing to do so is not fatal
func (r Resolver) remember(name string) {
	if err := userconfig.SetSelectedProfile(r.StateDir, name); err != nil && r.Warn != nil {
		fmt.Fprintf(r.Warn, "Warning: failed to save selected profile: %v\n", err)
	}
}

// PromptProfileSelection shows an interactive prompt for the user to select a profile
func PromptProfileSelection(projectConfig *config.Config) (*config.Profile, error) {
	if len(projectConfig.Profiles) == 0 {
		return nil, fmt.Errorf("no profiles configured in %s", config.ConfigFileName)
	}

	type profileOption struct {
		Label   string
		Profile *config.Profile
	}

	options := make([]profileOption, len(projectConfig.Profiles))
	for i := range projectConfig.Profiles {
		profile := &projectConfig.Profiles[i]
		options[i] = profileOption{
			Label:   fmt.Sprintf("%s (%s)", profile.Name, profile.APIURL),
			Profile: profile,
		}
	}

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label }}",
		Selected: "{{ .Label | green }}",
	}

	prompt := promptui.Select{
		Label:     "Select a profile",
		Items:     options,
		Templates: templates,
		Size:      10,
	}

	index, _, err := prompt.Run()
	if err != nil {
		return nil, fmt.Errorf("profile selection cancelled: %w", err)
	}

	return options[index].Profile, nil
}
