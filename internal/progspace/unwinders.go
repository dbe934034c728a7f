package progspace

import (
	"regexp"

	"github.com/dshills/framehook/internal/unwind"
)

// Locus pairs an unwinder list with the name it is listed under: "global",
// "progspace", or an objfile's file name.
type Locus struct {
	Name  string
	Kind  unwind.Locus
	Space int
	List  *unwind.List
}

// Loci returns every unwinder list reachable from s, global first, then each
// program space followed by its objfiles.
func (s *Set) Loci(global *unwind.List) []Locus {
	out := []Locus{{Name: "global", Kind: unwind.LocusGlobal, List: global}}
	for _, ps := range s.All() {
		out = append(out, Locus{
			Name:  "progspace",
			Kind:  unwind.LocusProgramSpace,
			Space: ps.ID(),
			List:  ps.FrameUnwinders(),
		})
		for _, o := range ps.Objfiles() {
			out = append(out, Locus{
				Name:  o.Name(),
				Kind:  unwind.LocusObjfile,
				Space: ps.ID(),
				List:  o.FrameUnwinders(),
			})
		}
	}
	return out
}

// EnableUnwinders sets the enabled flag on every unwinder whose locus name
// matches locus and whose own name matches name. A nil pattern matches
// everything. Returns how many flags changed.
func (s *Set) EnableUnwinders(global *unwind.List, locus, name *regexp.Regexp, enabled bool) int {
	var match func(string) bool
	if name != nil {
		match = name.MatchString
	}

	n := 0
	for _, l := range s.Loci(global) {
		if locus != nil && !locus.MatchString(l.Name) {
			continue
		}
		n += l.List.SetEnabled(match, enabled)
	}
	return n
}
