package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dshills/framehook/internal/extension"
)

// Config is the complete framehook configuration.
type Config struct {
	Extensions Extensions     `toml:"extensions" yaml:"extensions"`
	Log        Log            `toml:"log" yaml:"log"`
	Parameters map[string]any `toml:"parameters" yaml:"parameters"`
	Objfiles   []Objfile      `toml:"objfiles" yaml:"objfiles"`
}

// Extensions configures the extension loader.
type Extensions struct {
	// Dir is the extension root. Empty disables auto-load.
	Dir string `toml:"dir" yaml:"dir"`

	// Packages are the package directories scanned, in order.
	Packages []string `toml:"packages" yaml:"packages"`

	// Watch reloads extensions when files under Dir change.
	Watch bool `toml:"watch" yaml:"watch"`

	// ReloadPolicy is "teardown" or "accumulate".
	ReloadPolicy string `toml:"reload_policy" yaml:"reload_policy"`

	// Debounce is the quiet period before a watched change reloads.
	Debounce Duration `toml:"debounce" yaml:"debounce"`

	// SearchPath lists extra require directories after Dir.
	SearchPath []string `toml:"search_path" yaml:"search_path"`
}

// Log configures logging.
type Log struct {
	Level string `toml:"level" yaml:"level"`

	// Pretty selects the console writer. Nil means "when stderr is a
	// terminal".
	Pretty *bool `toml:"pretty" yaml:"pretty"`
}

// Objfile is an ELF image loaded into the initial program space.
type Objfile struct {
	Path string `toml:"path" yaml:"path"`
	Base uint64 `toml:"base" yaml:"base"`
}

// Duration is a time.Duration written as "200ms" in files.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// DefaultDebounce is the debounce used when none is configured.
const DefaultDebounce = 200 * time.Millisecond

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Extensions: Extensions{
			Dir:          DefaultExtensionDir(),
			Packages:     append([]string(nil), extension.DefaultPackages...),
			ReloadPolicy: extension.ReloadTeardown.String(),
			Debounce:     Duration(DefaultDebounce),
		},
		Log: Log{
			Level: "info",
		},
		Parameters: map[string]any{},
	}
}

// DefaultExtensionDir returns $XDG_CONFIG_HOME/framehook/extensions, or
// the same under the user config directory.
func DefaultExtensionDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "framehook", "extensions")
}

// Validate checks the configuration for values nothing downstream accepts.
func (c *Config) Validate() error {
	if _, err := extension.ParseReloadPolicy(c.Extensions.ReloadPolicy); err != nil {
		return fmt.Errorf("%w: extensions.reload_policy: %v", ErrInvalidConfig, err)
	}
	if c.Extensions.Debounce < 0 {
		return fmt.Errorf("%w: extensions.debounce is negative", ErrInvalidConfig)
	}
	for _, pkg := range c.Extensions.Packages {
		if pkg == "" || strings.ContainsAny(pkg, `/\`) || pkg == "." || pkg == ".." {
			return fmt.Errorf("%w: invalid package name %q", ErrInvalidConfig, pkg)
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error", "disabled":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Log.Level)
	}
	for i, o := range c.Objfiles {
		if o.Path == "" {
			return fmt.Errorf("%w: objfiles[%d] has no path", ErrInvalidConfig, i)
		}
	}
	return nil
}

// Policy returns the parsed reload policy. Call Validate first.
func (c *Config) Policy() extension.ReloadPolicy {
	p, _ := extension.ParseReloadPolicy(c.Extensions.ReloadPolicy)
	return p
}
