package unwind

// PendingFrame describes a frame that the native unwinder has not resolved yet.
// It is supplied by the debugger core and handed to unwinders unmodified.
type PendingFrame interface {
	// Level is the frame's depth, 0 being the innermost frame.
	Level() int

	// Architecture names the target architecture (e.g. "x86_64").
	Architecture() string

	// PC returns the frame's program counter.
	PC() uint64

	// ReadRegister returns the value of a register in this frame.
	ReadRegister(name string) (uint64, error)
}

// FrameID identifies the frame a claiming unwinder computed.
type FrameID struct {
	SP uint64
	PC uint64

	// Special is an optional third component for architectures that need it.
	Special *uint64
}

// SavedRegister is a register value recovered for the caller's frame.
type SavedRegister struct {
	Name  string
	Value uint64
}

// UnwindInfo describes how to continue unwinding past a claimed frame.
type UnwindInfo struct {
	frame     PendingFrame
	id        FrameID
	registers []SavedRegister
}

// NewUnwindInfo creates unwind information for frame identified by id.
func NewUnwindInfo(frame PendingFrame, id FrameID) *UnwindInfo {
	return &UnwindInfo{frame: frame, id: id}
}

// Frame returns the pending frame this info was created for.
func (u *UnwindInfo) Frame() PendingFrame {
	return u.frame
}

// ID returns the frame identity.
func (u *UnwindInfo) ID() FrameID {
	return u.id
}

// AddSavedRegister records the caller's value of a register.
// Adding the same register twice keeps the latest value.
func (u *UnwindInfo) AddSavedRegister(name string, value uint64) {
	for i := range u.registers {
		if u.registers[i].Name == name {
			u.registers[i].Value = value
			return
		}
	}
	u.registers = append(u.registers, SavedRegister{Name: name, Value: value})
}

// SavedRegisters returns the saved registers in insertion order.
func (u *UnwindInfo) SavedRegisters() []SavedRegister {
	return append([]SavedRegister(nil), u.registers...)
}

// SavedRegister looks up a saved register by name.
func (u *UnwindInfo) SavedRegister(name string) (uint64, bool) {
	for _, r := range u.registers {
		if r.Name == name {
			return r.Value, true
		}
	}
	return 0, false
}
