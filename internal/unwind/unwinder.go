package unwind

// Unwinder claims pending frames it knows how to unwind.
//
// Unwind returns (nil, nil) to decline the frame. A non-nil UnwindInfo claims
// it. A non-nil error aborts the current resolution.
type Unwinder interface {
	Name() string
	Enabled() bool
	SetEnabled(enabled bool)
	Unwind(frame PendingFrame) (*UnwindInfo, error)
}

// Base carries the name and enabled flag shared by unwinder implementations.
// Embed it and implement Unwind.
type Base struct {
	name    string
	enabled bool
}

// NewBase returns an enabled Base with the given name.
func NewBase(name string) Base {
	return Base{name: name, enabled: true}
}

// Name returns the unwinder name.
func (b *Base) Name() string { return b.name }

// Enabled reports whether the unwinder is consulted.
func (b *Base) Enabled() bool { return b.enabled }

// SetEnabled enables or disables the unwinder.
func (b *Base) SetEnabled(enabled bool) { b.enabled = enabled }

// UnwindFunc is the signature of a function-backed unwinder.
type UnwindFunc func(frame PendingFrame) (*UnwindInfo, error)

// Func adapts a plain function to the Unwinder interface.
type Func struct {
	Base
	fn UnwindFunc
}

// NewFunc returns an enabled unwinder backed by fn.
func NewFunc(name string, fn UnwindFunc) *Func {
	return &Func{Base: NewBase(name), fn: fn}
}

// Unwind calls the wrapped function.
func (f *Func) Unwind(frame PendingFrame) (*UnwindInfo, error) {
	return f.fn(frame)
}

var _ Unwinder = (*Func)(nil)
