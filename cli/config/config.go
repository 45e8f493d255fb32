// Package config handles warden settings resolution.
//
// Precedence, lowest to highest: built-in defaults, the YAML settings
// file under the warden home, then environment overrides. CLI flags of
// the maintenance commands sit above all of these.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/covalent-sh/warden/types"
)

// Environment override names.
const (
	EnvHome        = "WARDEN_HOME"
	EnvRegistryURL = "WARDEN_REGISTRY_URL"
	EnvPackage     = "WARDEN_PACKAGE"
	EnvAPIURL      = "WARDEN_API_URL"
	EnvAPIToken    = "WARDEN_API_TOKEN"
	EnvDebug       = "WARDEN_DEBUG"
	// EnvViewAllRisks widens the block report to every finding instead of
	// the filtered set. Gate behavior only.
	EnvViewAllRisks = "WARDEN_VIEW_ALL_RISKS"
	// EnvAcceptRisks disables blocking for this invocation. Gate behavior
	// only; scanning still runs and findings are still printed.
	EnvAcceptRisks = "WARDEN_ACCEPT_RISKS"
	// EnvHandshakeFD names the descriptor carrying the handshake in a
	// directly spawned child. Set per spawn and consumed by the reader,
	// never user-configured: NODE_OPTIONS reaches every descendant node
	// process, and only the marked child may read its channel.
	EnvHandshakeFD = "WARDEN_HANDSHAKE_FD"
)

// Defaults.
const (
	DefaultRegistryURL = "https://registry.npmjs.org"
	DefaultPackage     = "@covalent/warden-cli"
	DefaultAPIURL      = "https://api.covalent.sh"
	DefaultSeverity    = types.SeverityError
	// SettingsFileName is the settings file under the warden home.
	SettingsFileName = "warden.yaml"
	// HomeDirName is the default warden home under $HOME.
	HomeDirName = ".warden"
)

// Settings is the resolved warden configuration.
type Settings struct {
	RegistryURL string         `yaml:"registry_url"`
	Package     string         `yaml:"package"`
	API         APIConfig      `yaml:"api"`
	Severity    types.Severity `yaml:"severity"`
	Timeouts    TimeoutConfig  `yaml:"timeouts"`
	Debug       bool           `yaml:"debug"`
}

// APIConfig holds scoring service settings.
type APIConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// TimeoutConfig holds network timeout settings.
type TimeoutConfig struct {
	Download Duration `yaml:"download"`
	Scan     Duration `yaml:"scan"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Defaults returns the built-in settings.
func Defaults() *Settings {
	return &Settings{
		RegistryURL: DefaultRegistryURL,
		Package:     DefaultPackage,
		API:         APIConfig{URL: DefaultAPIURL},
		Severity:    DefaultSeverity,
		Timeouts: TimeoutConfig{
			Download: Duration{60 * time.Second},
			Scan:     Duration{10 * time.Second},
		},
	}
}

// ApplyEnv overlays environment overrides onto s using the given
// environment snapshot. Passing the snapshot keeps resolution testable
// and consistent with the invocation's frozen view of the environment.
func (s *Settings) ApplyEnv(env map[string]string) {
	if v := env[EnvRegistryURL]; v != "" {
		s.RegistryURL = v
	}
	if v := env[EnvPackage]; v != "" {
		s.Package = v
	}
	if v := env[EnvAPIURL]; v != "" {
		s.API.URL = v
	}
	if v := env[EnvAPIToken]; v != "" {
		s.API.Token = v
	}
	if truthy(env[EnvDebug]) {
		s.Debug = true
	}
}

// Home resolves the warden home directory from env, defaulting to
// ~/.warden. The directory is not created here.
func Home(env map[string]string) (string, error) {
	if v := env[EnvHome]; v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot resolve user home: %w", err)
	}
	return filepath.Join(home, HomeDirName), nil
}

// truthy interprets an env toggle: any value except "", "0" and "false".
func truthy(v string) bool {
	return v != "" && v != "0" && v != "false"
}

// Truthy reports whether an env toggle is set. Exported for gate override
// checks (view-all-risks, accept-risks).
func Truthy(v string) bool {
	return truthy(v)
}
