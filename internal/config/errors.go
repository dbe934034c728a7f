package config

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned for a file extension with no decoder.
	ErrUnsupportedFormat = errors.New("unsupported config format")

	// ErrInvalidConfig wraps validation failures.
	ErrInvalidConfig = errors.New("invalid config")
)

// ParseError is a decode failure in a configuration file.
type ParseError struct {
	// Path is the file that failed to parse.
	Path string
	// Format is "toml" or "yaml".
	Format string
	// Err is the decoder's error.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s (%s): %v", e.Path, e.Format, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}
