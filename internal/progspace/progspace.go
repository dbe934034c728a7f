package progspace

import (
	"fmt"
	"sync"

	"github.com/dshills/framehook/internal/unwind"
)

// ProgramSpace is one debugged program image and the objfiles loaded into it.
type ProgramSpace struct {
	mu sync.RWMutex

	id       int
	filename string
	objfiles []*Objfile

	unwinders *unwind.List
}

func newProgramSpace(id int, filename string) *ProgramSpace {
	return &ProgramSpace{id: id, filename: filename, unwinders: unwind.NewList()}
}

// ID returns the program space number.
func (ps *ProgramSpace) ID() int { return ps.id }

// Filename returns the main executable's name, if known.
func (ps *ProgramSpace) Filename() string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.filename
}

// SetFilename records the main executable's name.
func (ps *ProgramSpace) SetFilename(name string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.filename = name
}

// FrameUnwinders returns the program space's own unwinder list.
func (ps *ProgramSpace) FrameUnwinders() *unwind.List { return ps.unwinders }

// AddObjfile appends o to the load order.
func (ps *ProgramSpace) AddObjfile(o *Objfile) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	for _, existing := range ps.objfiles {
		if existing.name == o.name {
			return fmt.Errorf("%w: %s", ErrDuplicateObjfile, o.name)
		}
	}
	ps.objfiles = append(ps.objfiles, o)
	if ps.filename == "" && !o.shared {
		ps.filename = o.name
	}
	return nil
}

// RemoveObjfile unloads the objfile called name. Its unwinders go with it.
func (ps *ProgramSpace) RemoveObjfile(name string) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	for i, o := range ps.objfiles {
		if o.matches(name) {
			ps.objfiles = append(ps.objfiles[:i], ps.objfiles[i+1:]...)
			o.invalidate()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownObjfile, name)
}

// Objfiles returns the loaded objfiles in load order.
func (ps *ProgramSpace) Objfiles() []*Objfile {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return append([]*Objfile(nil), ps.objfiles...)
}

// Objfile finds an objfile by full path or base name.
func (ps *ProgramSpace) Objfile(name string) (*Objfile, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	for _, o := range ps.objfiles {
		if o.matches(name) {
			return o, true
		}
	}
	return nil, false
}

// ObjfileForPC returns the objfile whose segments contain pc.
func (ps *ProgramSpace) ObjfileForPC(pc uint64) (*Objfile, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	for _, o := range ps.objfiles {
		if o.Contains(pc) {
			return o, true
		}
	}
	return nil, false
}

// SolibName returns the name of the shared library containing pc.
func (ps *ProgramSpace) SolibName(pc uint64) (string, bool) {
	o, ok := ps.ObjfileForPC(pc)
	if !ok || !o.shared {
		return "", false
	}
	return o.name, true
}

var _ unwind.Scope = (*ProgramSpace)(nil)

// Set holds every program space and tracks the current one.
type Set struct {
	mu      sync.RWMutex
	spaces  []*ProgramSpace
	current *ProgramSpace
	nextID  int
}

// NewSet creates a set with one empty program space selected.
func NewSet() *Set {
	s := &Set{nextID: 1}
	s.current = s.Add("")
	return s
}

// Add creates a program space.
func (s *Set) Add(filename string) *ProgramSpace {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps := newProgramSpace(s.nextID, filename)
	s.nextID++
	s.spaces = append(s.spaces, ps)
	return ps
}

// Current returns the selected program space.
func (s *Set) Current() *ProgramSpace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Select makes the program space with id current.
func (s *Set) Select(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ps := range s.spaces {
		if ps.id == id {
			s.current = ps
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrUnknownProgramSpace, id)
}

// All returns every program space in creation order.
func (s *Set) All() []*ProgramSpace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*ProgramSpace(nil), s.spaces...)
}

// LoadedModules implements unwind.Environment with the current space's
// objfiles in load order.
func (s *Set) LoadedModules() []unwind.Scope {
	objfiles := s.Current().Objfiles()
	out := make([]unwind.Scope, len(objfiles))
	for i, o := range objfiles {
		out[i] = o
	}
	return out
}

// CurrentProgramSpace implements unwind.Environment.
func (s *Set) CurrentProgramSpace() unwind.Scope {
	return s.Current()
}

var _ unwind.Environment = (*Set)(nil)
