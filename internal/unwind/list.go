package unwind

import "fmt"

// List is an ordered collection of unwinders for one scope.
//
// The zero value is an empty list ready to use. List is not safe for
// concurrent use.
type List struct {
	items []Unwinder
}

// NewList creates an empty list.
func NewList() *List {
	return &List{}
}

// Len returns the number of unwinders in the list.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.items)
}

// At returns the unwinder at index i.
func (l *List) At(i int) Unwinder {
	return l.items[i]
}

// All returns a copy of the list contents in order.
func (l *List) All() []Unwinder {
	if l == nil {
		return nil
	}
	return append([]Unwinder(nil), l.items...)
}

// Find returns the first unwinder with the given name.
func (l *List) Find(name string) (Unwinder, bool) {
	for _, u := range l.items {
		if u.Name() == name {
			return u, true
		}
	}
	return nil, false
}

// Register places u at the front of the list so it is consulted before
// earlier registrations. If an unwinder of the same name is present the call
// fails with ErrDuplicateUnwinder unless replace is set, in which case the
// older one is removed.
func (l *List) Register(u Unwinder, replace bool) error {
	if u == nil {
		return ErrNilUnwinder
	}
	if u.Name() == "" {
		return ErrEmptyName
	}

	for i, existing := range l.items {
		if existing.Name() != u.Name() {
			continue
		}
		if !replace {
			return fmt.Errorf("%w: %s", ErrDuplicateUnwinder, u.Name())
		}
		l.items = append(l.items[:i], l.items[i+1:]...)
		break
	}

	l.items = append([]Unwinder{u}, l.items...)
	return nil
}

// Append adds u at the end of the list without any name check.
func (l *List) Append(u Unwinder) {
	l.items = append(l.items, u)
}

// Remove removes u (by identity). Returns false if it was not present.
func (l *List) Remove(u Unwinder) bool {
	for i, existing := range l.items {
		if existing == u {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveNamed removes every unwinder called name and returns how many went.
func (l *List) RemoveNamed(name string) int {
	kept := l.items[:0]
	removed := 0
	for _, u := range l.items {
		if u.Name() == name {
			removed++
			continue
		}
		kept = append(kept, u)
	}
	for i := len(kept); i < len(l.items); i++ {
		l.items[i] = nil
	}
	l.items = kept
	return removed
}

// SetEnabled sets the enabled flag of every unwinder whose name satisfies
// match. A nil match selects all. Returns the number of unwinders whose
// flag actually changed.
func (l *List) SetEnabled(match func(name string) bool, enabled bool) int {
	changed := 0
	for _, u := range l.items {
		if match != nil && !match(u.Name()) {
			continue
		}
		if u.Enabled() != enabled {
			u.SetEnabled(enabled)
			changed++
		}
	}
	return changed
}

// claim runs the enabled unwinders in order until one claims frame.
func (l *List) claim(frame PendingFrame, locus Locus) (*Claim, error) {
	if l == nil {
		return nil, nil
	}
	// Index loop so each step observes the live list.
	for i := 0; i < len(l.items); i++ {
		u := l.items[i]
		if !u.Enabled() {
			continue
		}
		info, err := u.Unwind(frame)
		if err != nil {
			return nil, &Fault{Unwinder: u.Name(), Locus: locus, Err: err}
		}
		if info != nil {
			return &Claim{Info: info, Name: u.Name(), Locus: locus}, nil
		}
	}
	return nil, nil
}
