// Package settings manages persistent user settings for the dynconf CLI.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Settings holds persistent user preferences. Flags override settings,
// settings override built-in defaults.
type Settings struct {
	// DefaultUsername is used when neither the record nor -u supplies one
	DefaultUsername string `json:"default_username,omitempty"`

	// TemplateDir is the template root when -T is not specified
	TemplateDir string `json:"template_dir,omitempty"`

	// OutputDir overrides the derived output directory
	OutputDir string `json:"output_dir,omitempty"`

	// Workers is the default --threads value
	Workers int `json:"workers,omitempty"`
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "dynconf_settings.json"
	}
	return filepath.Join(home, ".dynconf", "settings.json")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty settings if file doesn't exist
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}

	return s, nil
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetTemplateDir returns the template root (with fallback)
func (s *Settings) GetTemplateDir() string {
	if s.TemplateDir != "" {
		return s.TemplateDir
	}
	return "."
}

// GetWorkers returns the default worker count (with fallback)
func (s *Settings) GetWorkers() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return 1
}
