// Package scoped implements bracketed changes to external state.
//
// A scoped override applies a change, runs a body, and undoes the change on
// every exit path, including errors and panics raised by the body. Parameter
// overrides and signal-mask blocking are both expressed with it.
//
// Overrides nest in LIFO order when released with defer. Nothing here is
// synchronized: two goroutines overriding the same external state race, and
// the last restore wins.
package scoped

import (
	"errors"
	"sync"
)

// Restore undoes a change made by an Apply function.
type Restore func() error

// Apply performs a change and returns the function that undoes it.
// If Apply returns an error the change is assumed not to have happened.
type Apply func() (Restore, error)

// Guard holds a pending restoration. Release runs it at most once.
type Guard struct {
	once    sync.Once
	restore Restore
	err     error
}

// Acquire applies a change and returns a guard that will undo it.
func Acquire(apply Apply) (*Guard, error) {
	restore, err := apply()
	if err != nil {
		return nil, err
	}
	return &Guard{restore: restore}, nil
}

// Release undoes the change. Subsequent calls return the first result.
func (g *Guard) Release() error {
	if g == nil {
		return nil
	}
	g.once.Do(func() {
		if g.restore != nil {
			g.err = g.restore()
		}
	})
	return g.err
}

// Do applies a change, runs body, and always restores.
//
// The body's error is returned joined with any restore error. A panic in body
// still restores before propagating.
func Do(apply Apply, body func() error) (err error) {
	g, err := Acquire(apply)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := g.Release(); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()
	return body()
}

// Nop is an Apply that changes nothing.
func Nop() (Restore, error) {
	return func() error { return nil }, nil
}
