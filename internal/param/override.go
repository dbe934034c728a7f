package param

import (
	"github.com/dshills/framehook/internal/scoped"
)

// Backend is the external configuration the parameters live in.
type Backend interface {
	// Parameter returns the current value of name.
	Parameter(name string) (any, error)

	// ApplyParameterCommand sets name from its command token.
	ApplyParameterCommand(name, token string) error
}

// Set normalizes value and applies it to name.
func Set(b Backend, name string, value any) error {
	return b.ApplyParameterCommand(name, Normalize(value))
}

// apply returns the scoped change that sets name to value.
func apply(b Backend, name string, value any) scoped.Apply {
	return func() (scoped.Restore, error) {
		old, err := b.Parameter(name)
		if err != nil {
			return nil, err
		}
		if err := Set(b, name, value); err != nil {
			return nil, err
		}
		return func() error {
			return Set(b, name, old)
		}, nil
	}
}

// With sets name to value, runs body, and restores the previous value on
// every exit path. If reading or setting the parameter fails, body does not
// run and nothing is restored.
func With(b Backend, name string, value any, body func() error) error {
	return scoped.Do(apply(b, name, value), body)
}

// Override sets name to value and returns a guard that restores the previous
// value when released.
//
//	g, err := param.Override(store, "pagination", false)
//	if err != nil {
//		return err
//	}
//	defer g.Release()
func Override(b Backend, name string, value any) (*scoped.Guard, error) {
	return scoped.Acquire(apply(b, name, value))
}
