// Package config loads framehook settings from TOML or YAML files.
//
// A configuration names the extension root and the packages to auto-load,
// whether to watch the root for edits, how reloads treat registrations,
// logging, initial parameter values, and ELF images to place in the
// initial program space. Missing files yield Default(); environment
// variables prefixed FRAMEHOOK_ override file values; command-line flags
// override both.
package config
