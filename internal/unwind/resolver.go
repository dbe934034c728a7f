package unwind

import (
	"github.com/rs/zerolog"
)

// Locus identifies the scope an unwinder is registered in.
type Locus int

// Unwinder scopes, from most to least specific.
const (
	LocusObjfile Locus = iota
	LocusProgramSpace
	LocusGlobal
)

// String returns the locus name.
func (l Locus) String() string {
	switch l {
	case LocusObjfile:
		return "objfile"
	case LocusProgramSpace:
		return "progspace"
	case LocusGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// Precedence is the order in which scopes are consulted. More specific
// knowledge wins: an objfile's own unwinders beat program-space ones, which
// beat process-wide defaults.
var Precedence = [...]Locus{LocusObjfile, LocusProgramSpace, LocusGlobal}

// Claim is the result of a successful resolution.
type Claim struct {
	// Info is the unwind information produced by the claiming unwinder.
	Info *UnwindInfo
	// Name is the claiming unwinder's name.
	Name string
	// Locus is the scope the claiming unwinder was found in.
	Locus Locus
}

// Scopes borrows the lists to consult for one resolution.
type Scopes struct {
	// Objfiles holds one list per loaded objfile, in environment order.
	Objfiles []*List
	// ProgramSpace is the current program space's list.
	ProgramSpace *List
	// Global is the process-wide list.
	Global *List
}

func (s Scopes) lists(locus Locus) []*List {
	switch locus {
	case LocusObjfile:
		return s.Objfiles
	case LocusProgramSpace:
		return []*List{s.ProgramSpace}
	case LocusGlobal:
		return []*List{s.Global}
	}
	return nil
}

// Resolve returns the first claim for frame, scanning scopes in Precedence
// order. It returns (nil, nil) when no enabled unwinder claims the frame and
// a *Fault when an unwinder fails.
func Resolve(frame PendingFrame, scopes Scopes) (*Claim, error) {
	for _, locus := range Precedence {
		for _, list := range scopes.lists(locus) {
			claim, err := list.claim(frame, locus)
			if err != nil || claim != nil {
				return claim, err
			}
		}
	}
	return nil, nil
}

// Scope is anything that owns an unwinder list.
type Scope interface {
	FrameUnwinders() *List
}

// Environment exposes the debugger core's view of loaded code.
type Environment interface {
	// LoadedModules returns the currently loaded objfiles in core order.
	LoadedModules() []Scope

	// CurrentProgramSpace returns the selected program space.
	CurrentProgramSpace() Scope
}

// Resolver binds the resolution algorithm to an environment and a global list.
type Resolver struct {
	env    Environment
	global *List
	logger zerolog.Logger
}

// NewResolver creates a resolver. The global list is borrowed, not copied.
func NewResolver(env Environment, global *List, logger zerolog.Logger) *Resolver {
	return &Resolver{
		env:    env,
		global: global,
		logger: logger.With().Str("component", "unwind").Logger(),
	}
}

// Scopes collects the lists to consult right now.
func (r *Resolver) Scopes() Scopes {
	s := Scopes{Global: r.global}
	if r.env == nil {
		return s
	}
	for _, m := range r.env.LoadedModules() {
		s.Objfiles = append(s.Objfiles, m.FrameUnwinders())
	}
	if ps := r.env.CurrentProgramSpace(); ps != nil {
		s.ProgramSpace = ps.FrameUnwinders()
	}
	return s
}

// Resolve resolves frame against the live scopes.
func (r *Resolver) Resolve(frame PendingFrame) (*Claim, error) {
	claim, err := Resolve(frame, r.Scopes())
	if err != nil {
		return nil, err
	}
	if claim != nil {
		r.logger.Debug().
			Int("level", frame.Level()).
			Uint64("pc", frame.PC()).
			Str("unwinder", claim.Name).
			Stringer("locus", claim.Locus).
			Msg("frame claimed")
	}
	return claim, nil
}
