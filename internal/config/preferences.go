// Package config provides the preferences file for cubby.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Assignment strategies for tabs no permanent container accepts.
const (
	AssignSuffixedTemporary = "suffixed_temporary"
	AssignIsolatedTemporary = "isolated_temporary"
)

// Eject strategies for tabs whose container no longer accepts them.
const (
	EjectIsolatedTemporary = "isolated_temporary"
	EjectRemainInPlace     = "remain_in_place"
	EjectReassignment      = "reassignment"
)

// Preferences holds the matching-policy flags the engine carries for
// the browser-side collaborator. The engine itself only decides
// matches; what to do with an unmatched tab is policy the collaborator
// applies using these flags.
type Preferences struct {
	AssignStrategy     string `yaml:"assign_strategy"`
	EjectStrategy      string `yaml:"eject_strategy"`
	ShouldRevertOldTab bool   `yaml:"should_revert_old_tab"`
}

// Default returns the preferences used when no file exists.
func Default() Preferences {
	return Preferences{
		AssignStrategy:     AssignSuffixedTemporary,
		EjectStrategy:      EjectIsolatedTemporary,
		ShouldRevertOldTab: true,
	}
}

// Validate checks that every flag holds a recognized option.
func (p Preferences) Validate() error {
	switch p.AssignStrategy {
	case AssignSuffixedTemporary, AssignIsolatedTemporary:
	default:
		return fmt.Errorf("unrecognized assign_strategy %q", p.AssignStrategy)
	}
	switch p.EjectStrategy {
	case EjectIsolatedTemporary, EjectRemainInPlace, EjectReassignment:
	default:
		return fmt.Errorf("unrecognized eject_strategy %q", p.EjectStrategy)
	}
	return nil
}

// Apply overlays recognized options from a string map (the
// apply_preferences wire form) onto p. Unrecognized keys are ignored;
// unrecognized values for recognized keys are rejected.
func (p Preferences) Apply(options map[string]string) (Preferences, error) {
	for key, value := range options {
		switch key {
		case "assign_strategy":
			p.AssignStrategy = value
		case "eject_strategy":
			p.EjectStrategy = value
		case "should_revert_old_tab":
			switch value {
			case "true":
				p.ShouldRevertOldTab = true
			case "false":
				p.ShouldRevertOldTab = false
			default:
				return p, fmt.Errorf("unrecognized should_revert_old_tab %q", value)
			}
		}
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// Dir returns the cubby config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/cubby if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "cubby"), nil
}

// PreferencesPath returns the path of the preferences file in dir.
func PreferencesPath(dir string) string {
	return filepath.Join(dir, "preferences.yaml")
}

// Load reads the preferences file at path. A missing file yields the
// defaults without an error; a present but invalid file is an error so
// a typo does not silently fall back.
func Load(path string) (Preferences, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Default(), err
	}

	prefs := Default()
	if err := yaml.Unmarshal(data, &prefs); err != nil {
		return Default(), fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := prefs.Validate(); err != nil {
		return Default(), fmt.Errorf("%s: %w", path, err)
	}
	return prefs, nil
}

// Save writes the preferences file, creating the directory if needed.
func Save(path string, prefs Preferences) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(prefs)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
