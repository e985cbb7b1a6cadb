package userconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const configFileName = "config.json"

// UserConfig is the user's local configuration, stored in the state
// directory next to the session files
type UserConfig struct {
	SelectedProfile string `json:"selected_profile"`
}

// GetConfigPath returns the path to the user config file in stateDir
func GetConfigPath(stateDir string) string {
	return filepath.Join(stateDir, configFileName)
}

// Load reads the user configuration file
func Load(stateDir string) (*UserConfig, error) {
	configPath := GetConfigPath(stateDir)

	// If config doesn't exist, return empty config
	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return &UserConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user config file: %w", err)
	}

	var cfg UserConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the user configuration to a file
func Save(stateDir string, cfg *UserConfig) error {
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user config: %w", err)
	}

	if err := os.WriteFile(GetConfigPath(stateDir), data, 0644); err != nil {
		return fmt.Errorf("failed to write user config file: %w", err)
	}

	return nil
}

// SetSelectedProfile updates the selected profile and saves the config
func SetSelectedProfile(stateDir, name string) error {
	cfg, err := Load(stateDir)
	if err != nil {
		return err
	}

	cfg.SelectedProfile = name
	return Save(stateDir, cfg)
}

// GetSelectedProfile returns the selected profile, or "" if none is set
func GetSelectedProfile(stateDir string) (string, error) {
	cfg, err := Load(stateDir)
	if err != nil {
		return "", err
	}

	return cfg.SelectedProfile, nil
}
