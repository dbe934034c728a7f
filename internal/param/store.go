package param

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Store is an in-memory parameter backend.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	def   Definition
	value any
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// NewStoreWithDefaults creates a store holding the built-in parameters.
func NewStoreWithDefaults() *Store {
	s := NewStore()
	for _, d := range Defaults() {
		s.MustRegister(d)
	}
	return s
}

// Register adds a parameter definition and sets it to its default.
func (s *Store) Register(def Definition) error {
	def.Name = canonicalName(def.Name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, def.Name)
	}
	s.entries[def.Name] = &entry{def: def, value: def.Default}
	return nil
}

// MustRegister registers a parameter and panics on error.
func (s *Store) MustRegister(def Definition) {
	if err := s.Register(def); err != nil {
		panic(err)
	}
}

// Definition returns the definition for name.
func (s *Store) Definition(name string) (Definition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[canonicalName(name)]
	if !ok {
		return Definition{}, false
	}
	return e.def, true
}

// Names returns all parameter names sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parameter returns the current value of name.
func (s *Store) Parameter(name string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[canonicalName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParameter, name)
	}
	return e.value, nil
}

// ApplyParameterCommand parses token for name and stores the result.
func (s *Store) ApplyParameterCommand(name, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[canonicalName(name)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParameter, name)
	}
	v, err := e.def.Parse(token)
	if err != nil {
		return err
	}
	e.value = v
	return nil
}

// Show renders the current value of name as a token.
func (s *Store) Show(name string) (string, error) {
	v, err := s.Parameter(name)
	if err != nil {
		return "", err
	}
	return Normalize(v), nil
}

// Execute runs a "set NAME VALUE" or "show NAME" command line and returns
// its output. Multi-word names are matched by the longest registered prefix.
func (s *Store) Execute(line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: empty command", ErrUnknownCommand)
	}

	switch fields[0] {
	case "set":
		name, rest, ok := s.matchName(fields[1:])
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownParameter, strings.Join(fields[1:], " "))
		}
		// String values keep their inner and trailing whitespace.
		value := skipFields(line, len(fields)-len(rest))
		return "", s.ApplyParameterCommand(name, value)
	case "show":
		name, _, ok := s.matchName(fields[1:])
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownParameter, strings.Join(fields[1:], " "))
		}
		token, err := s.Show(name)
		if err != nil {
			return "", err
		}
		return name + " is " + token, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownCommand, fields[0])
}

// matchName finds the longest parameter name that prefixes words.
func (s *Store) matchName(words []string) (string, []string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for n := len(words); n > 0; n-- {
		candidate := strings.Join(words[:n], " ")
		if _, ok := s.entries[candidate]; ok {
			return candidate, words[n:], true
		}
	}
	return "", nil, false
}

// skipFields returns line after its first n fields and the whitespace
// that follows them.
func skipFields(line string, n int) string {
	rest := line
	for i := 0; i < n; i++ {
		rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
		j := strings.IndexFunc(rest, unicode.IsSpace)
		if j < 0 {
			return ""
		}
		rest = rest[j:]
	}
	return strings.TrimLeftFunc(rest, unicode.IsSpace)
}

func canonicalName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

var _ Backend = (*Store)(nil)
