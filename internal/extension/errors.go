package extension

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrUnknownIdentity is returned when no handle exists for an identity.
	ErrUnknownIdentity = errors.New("unknown extension identity")

	// ErrInvalidPolicy is returned when a reload policy name is not recognized.
	ErrInvalidPolicy = errors.New("invalid reload policy")

	// ErrLoaderClosed is returned by a closed loader.
	ErrLoaderClosed = errors.New("extension loader is closed")
)

// LoadFault is a failure to import or reload one extension file. It is
// reported and suppressed; loading continues with the next file.
type LoadFault struct {
	Identity   string
	Path       string
	Generation uuid.UUID
	Err        error
}

func (f *LoadFault) Error() string {
	return fmt.Sprintf("extension %s (%s): %v", f.Identity, f.Path, f.Err)
}

func (f *LoadFault) Unwrap() error {
	return f.Err
}
