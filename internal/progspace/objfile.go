// Package progspace models the loaded code the unwinder resolver walks:
// objfiles grouped into program spaces, one of which is current.
//
// Each Objfile and ProgramSpace owns its own unwinder list. Set implements
// unwind.Environment, yielding the current space's objfiles in load order.
package progspace

import (
	"debug/elf"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dshills/framehook/internal/unwind"
)

// Segment is a loaded address range, [Start, End).
type Segment struct {
	Start uint64
	End   uint64
}

// Contains reports whether pc falls inside the segment.
func (s Segment) Contains(pc uint64) bool {
	return pc >= s.Start && pc < s.End
}

// Objfile is one loaded binary or shared library.
type Objfile struct {
	mu sync.RWMutex

	name     string
	base     uint64
	shared   bool
	segments []Segment
	valid    bool

	unwinders *unwind.List
}

// NewObjfile creates an objfile covering segments.
func NewObjfile(name string, shared bool, segments ...Segment) *Objfile {
	return &Objfile{
		name:      name,
		shared:    shared,
		segments:  append([]Segment(nil), segments...),
		valid:     true,
		unwinders: unwind.NewList(),
	}
}

// OpenELF reads the loadable segments of the ELF file at path, relocated by
// base. A position-independent file without an interpreter is treated as a
// shared library.
func OpenELF(path string, base uint64) (*Objfile, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open objfile %s: %w", path, err)
	}
	defer f.Close()

	var segs []Segment
	interp := false
	for _, p := range f.Progs {
		switch p.Type {
		case elf.PT_LOAD:
			if p.Memsz == 0 {
				continue
			}
			segs = append(segs, Segment{Start: base + p.Vaddr, End: base + p.Vaddr + p.Memsz})
		case elf.PT_INTERP:
			interp = true
		}
	}
	if len(segs) == 0 {
		return nil, fmt.Errorf("open objfile %s: no loadable segments", path)
	}

	o := NewObjfile(path, f.Type == elf.ET_DYN && !interp, segs...)
	o.base = base
	return o, nil
}

// Name returns the objfile's file name.
func (o *Objfile) Name() string { return o.name }

// Base returns the load bias.
func (o *Objfile) Base() uint64 { return o.base }

// IsSharedLibrary reports whether the objfile is a shared library.
func (o *Objfile) IsSharedLibrary() bool { return o.shared }

// Segments returns the loaded address ranges.
func (o *Objfile) Segments() []Segment {
	return append([]Segment(nil), o.segments...)
}

// Contains reports whether pc is inside one of the objfile's segments.
func (o *Objfile) Contains(pc uint64) bool {
	for _, s := range o.segments {
		if s.Contains(pc) {
			return true
		}
	}
	return false
}

// IsValid reports whether the objfile is still loaded.
func (o *Objfile) IsValid() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.valid
}

func (o *Objfile) invalidate() {
	o.mu.Lock()
	o.valid = false
	o.mu.Unlock()
}

// FrameUnwinders returns the objfile's own unwinder list.
func (o *Objfile) FrameUnwinders() *unwind.List { return o.unwinders }

// matches reports whether name refers to o by full path or base name.
func (o *Objfile) matches(name string) bool {
	return o.name == name || filepath.Base(o.name) == name
}

var _ unwind.Scope = (*Objfile)(nil)
