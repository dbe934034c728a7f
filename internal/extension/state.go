package extension

import "fmt"

// State is the lifecycle state of an extension handle.
type State int

const (
	// StateUnloaded - the top level has not run yet.
	StateUnloaded State = iota

	// StateLoaded - the last execution of the top level succeeded.
	StateLoaded

	// StateFailed - the last execution of the top level raised an error.
	StateFailed

	// StateClosed - the handle's registrations are gone and its state closed.
	StateClosed
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ReloadPolicy decides what happens to an identity's registrations when it is
// reloaded.
type ReloadPolicy int

const (
	// ReloadTeardown undoes the previous registrations before re-executing.
	ReloadTeardown ReloadPolicy = iota

	// ReloadAccumulate keeps them, so unconditional registrations repeat.
	ReloadAccumulate
)

// String returns the policy name used in configuration.
func (p ReloadPolicy) String() string {
	switch p {
	case ReloadTeardown:
		return "teardown"
	case ReloadAccumulate:
		return "accumulate"
	default:
		return "unknown"
	}
}

// ParseReloadPolicy parses a policy name. The empty string selects
// ReloadTeardown.
func ParseReloadPolicy(s string) (ReloadPolicy, error) {
	switch s {
	case "", "teardown":
		return ReloadTeardown, nil
	case "accumulate":
		return ReloadAccumulate, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
}
