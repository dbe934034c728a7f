// Package frame reads pending-frame snapshots from JSON and writes resolution
// results back out.
//
// A snapshot looks like:
//
//	{"level": 0, "arch": "x86_64", "pc": "0x401136",
//	 "registers": {"rsp": "0x7ffc0000e000", "rbp": "0x7ffc0000e010"}}
//
// Addresses may be JSON numbers or strings in any base strconv accepts.
// Strings are preferred for 64-bit values, which a JSON number can round.
package frame

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/dshills/framehook/internal/unwind"
)

var (
	// ErrInvalidJSON is returned for input that is not valid JSON.
	ErrInvalidJSON = errors.New("invalid frame JSON")

	// ErrMissingPC is returned when a snapshot has no pc.
	ErrMissingPC = errors.New("frame snapshot has no pc")

	// ErrUnknownRegister is returned by ReadRegister for absent registers.
	ErrUnknownRegister = errors.New("unknown register")
)

// Snapshot is a pending frame captured as JSON.
type Snapshot struct {
	level     int
	arch      string
	pc        uint64
	registers map[string]uint64
	raw       string
}

// Parse reads one snapshot.
func Parse(data []byte) (*Snapshot, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	return fromResult(gjson.ParseBytes(data))
}

// ParseAll reads a JSON array of snapshots, or an object whose "frames" field
// is one.
func ParseAll(data []byte) ([]*Snapshot, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	root := gjson.ParseBytes(data)
	if root.IsObject() {
		if frames := root.Get("frames"); frames.Exists() {
			root = frames
		} else {
			s, err := fromResult(root)
			if err != nil {
				return nil, err
			}
			return []*Snapshot{s}, nil
		}
	}
	if !root.IsArray() {
		return nil, fmt.Errorf("%w: expected array of frames", ErrInvalidJSON)
	}

	var out []*Snapshot
	var err error
	root.ForEach(func(i, v gjson.Result) bool {
		var s *Snapshot
		s, err = fromResult(v)
		if err != nil {
			err = fmt.Errorf("frame %d: %w", i.Int(), err)
			return false
		}
		if !v.Get("level").Exists() {
			s.level = len(out)
		}
		out = append(out, s)
		return true
	})
	return out, err
}

func fromResult(r gjson.Result) (*Snapshot, error) {
	pcv := r.Get("pc")
	if !pcv.Exists() {
		return nil, ErrMissingPC
	}
	pc, err := Address(pcv)
	if err != nil {
		return nil, fmt.Errorf("pc: %w", err)
	}

	s := &Snapshot{
		level:     int(r.Get("level").Int()),
		arch:      r.Get("arch").String(),
		pc:        pc,
		registers: make(map[string]uint64),
		raw:       r.Raw,
	}

	r.Get("registers").ForEach(func(k, v gjson.Result) bool {
		val, verr := Address(v)
		if verr != nil {
			err = fmt.Errorf("register %s: %w", k.String(), verr)
			return false
		}
		s.registers[k.String()] = val
		return true
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Address decodes a JSON number or numeric string as a 64-bit address.
func Address(r gjson.Result) (uint64, error) {
	switch r.Type {
	case gjson.Number:
		if r.Num < 0 {
			return 0, fmt.Errorf("negative address %s", r.Raw)
		}
		return r.Uint(), nil
	case gjson.String:
		n, err := strconv.ParseUint(r.Str, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid address %q", r.Str)
		}
		return n, nil
	}
	return 0, fmt.Errorf("invalid address %s", r.Raw)
}

// Level implements unwind.PendingFrame.
func (s *Snapshot) Level() int { return s.level }

// Architecture implements unwind.PendingFrame.
func (s *Snapshot) Architecture() string { return s.arch }

// PC implements unwind.PendingFrame.
func (s *Snapshot) PC() uint64 { return s.pc }

// ReadRegister implements unwind.PendingFrame. "pc" falls back to the
// snapshot's pc when the register set does not name it.
func (s *Snapshot) ReadRegister(name string) (uint64, error) {
	if v, ok := s.registers[name]; ok {
		return v, nil
	}
	if name == "pc" {
		return s.pc, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownRegister, name)
}

// Raw returns the JSON the snapshot was parsed from.
func (s *Snapshot) Raw() string { return s.raw }

var _ unwind.PendingFrame = (*Snapshot)(nil)
