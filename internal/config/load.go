package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix starts every environment override.
const EnvPrefix = "FRAMEHOOK_"

// Load reads path over Default(). The decoder is picked by extension:
// .toml, or .yaml/.yml. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := Decode(path, data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode decodes data into cfg, choosing the format from path's extension.
// Fields absent from data keep their current values.
func Decode(path string, data []byte, cfg *Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return &ParseError{Path: path, Format: "toml", Err: err}
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return &ParseError{Path: path, Format: "yaml", Err: err}
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return nil
}

// envMapping maps environment variables to setters.
var envMapping = map[string]func(*Config, string) error{
	EnvPrefix + "EXTENSION_DIR": func(c *Config, v string) error {
		c.Extensions.Dir = v
		return nil
	},
	EnvPrefix + "PACKAGES": func(c *Config, v string) error {
		c.Extensions.Packages = splitList(v)
		return nil
	},
	EnvPrefix + "WATCH": func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		c.Extensions.Watch = b
		return nil
	},
	EnvPrefix + "RELOAD_POLICY": func(c *Config, v string) error {
		c.Extensions.ReloadPolicy = v
		return nil
	},
	EnvPrefix + "LOG_LEVEL": func(c *Config, v string) error {
		c.Log.Level = v
		return nil
	},
}

// ApplyEnv applies FRAMEHOOK_* overrides using lookup, normally
// os.LookupEnv. Empty values count as set.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for name, set := range envMapping {
		v, ok := lookup(name)
		if !ok {
			continue
		}
		if err := set(c, v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
