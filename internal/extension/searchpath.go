package extension

import "sync"

// SearchPath is the ordered list of directories require searches.
type SearchPath struct {
	mu   sync.RWMutex
	dirs []string
}

// NewSearchPath creates a search path holding dirs in order.
func NewSearchPath(dirs ...string) *SearchPath {
	return &SearchPath{dirs: append([]string(nil), dirs...)}
}

// Dirs returns a copy of the directories in search order.
func (p *SearchPath) Dirs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.dirs...)
}

// Prepend inserts dir at the front.
func (p *SearchPath) Prepend(dir string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dirs = append([]string{dir}, p.dirs...)
}

// Append adds dir at the end.
func (p *SearchPath) Append(dir string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dirs = append(p.dirs, dir)
}

// Remove deletes the first occurrence of dir. It reports false if dir was
// not present.
func (p *SearchPath) Remove(dir string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, d := range p.dirs {
		if d == dir {
			p.dirs = append(p.dirs[:i:i], p.dirs[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether dir is on the path.
func (p *SearchPath) Contains(dir string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, d := range p.dirs {
		if d == dir {
			return true
		}
	}
	return false
}
