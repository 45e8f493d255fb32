package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load resolves settings for one invocation: defaults, then the settings
// file under the warden home (if present), then env overrides.
//
// A missing settings file is not an error; a malformed one is, because
// silently ignoring it would run the gate with the wrong severity filter.
func Load(env map[string]string) (*Settings, error) {
	settings := Defaults()

	home, err := Home(env)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(home, SettingsFileName)
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// No file, defaults apply.
	case err != nil:
		return nil, fmt.Errorf("cannot read settings file %q: %w", path, err)
	default:
		expanded := ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), settings); err != nil {
			return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
		}
	}

	settings.ApplyEnv(env)

	if !settings.Severity.Known() {
		return nil, fmt.Errorf("invalid severity filter %q in %s", settings.Severity, path)
	}

	return settings, nil
}
