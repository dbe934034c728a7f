// Package command holds the user commands and convenience functions that
// extensions register.
//
// Command names may have several words ("info unwinder"). Execute picks the
// longest registered name that prefixes the line and passes the remaining
// words as arguments.
package command

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrUnknownCommand is returned when no command matches.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrDuplicateCommand is returned when a name is taken.
	ErrDuplicateCommand = errors.New("command already registered")

	// ErrUnknownFunction is returned when no convenience function matches.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrDuplicateFunction is returned when a function name is taken.
	ErrDuplicateFunction = errors.New("function already registered")

	// ErrEmptyName is returned for a blank name.
	ErrEmptyName = errors.New("name is empty")
)

// Command is a user command.
type Command struct {
	Name  string
	Doc   string
	Owner string

	// Invoke runs the command with the words after its name.
	Invoke func(args []string) (string, error)
}

// Function is a convenience function callable as $name(args...).
type Function struct {
	Name  string
	Doc   string
	Owner string

	Invoke func(args []any) (any, error)
}

// Registry stores commands and functions.
type Registry struct {
	mu        sync.RWMutex
	commands  map[string]*Command
	functions map[string]*Function
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]*Command),
		functions: make(map[string]*Function),
	}
}

func canonical(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// Register adds cmd. An existing command of the same name is an error unless
// replace is set.
func (r *Registry) Register(cmd *Command, replace bool) error {
	cmd.Name = canonical(cmd.Name)
	if cmd.Name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[cmd.Name]; exists && !replace {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, cmd.Name)
	}
	r.commands[cmd.Name] = cmd
	return nil
}

// Remove deletes cmd if it is still the registered command for its name.
func (r *Registry) Remove(cmd *Command) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.commands[cmd.Name] != cmd {
		return false
	}
	delete(r.commands, cmd.Name)
	return true
}

// Lookup returns the command called name.
func (r *Registry) Lookup(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[canonical(name)]
	return cmd, ok
}

// Commands returns every command sorted by name.
func (r *Registry) Commands() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Command, 0, len(r.commands))
	for _, c := range r.commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute runs the command line.
func (r *Registry) Execute(line string) (string, error) {
	words := strings.Fields(line)

	r.mu.RLock()
	var cmd *Command
	n := len(words)
	for ; n > 0; n-- {
		if c, ok := r.commands[strings.Join(words[:n], " ")]; ok {
			cmd = c
			break
		}
	}
	r.mu.RUnlock()

	if cmd == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, line)
	}
	return cmd.Invoke(words[n:])
}

// RegisterFunction adds fn, replacing an existing one only if replace is set.
func (r *Registry) RegisterFunction(fn *Function, replace bool) error {
	if fn.Name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.functions[fn.Name]; exists && !replace {
		return fmt.Errorf("%w: %s", ErrDuplicateFunction, fn.Name)
	}
	r.functions[fn.Name] = fn
	return nil
}

// RemoveFunction deletes fn if it is still registered under its name.
func (r *Registry) RemoveFunction(fn *Function) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.functions[fn.Name] != fn {
		return false
	}
	delete(r.functions, fn.Name)
	return true
}

// Functions returns every function sorted by name.
func (r *Registry) Functions() []*Function {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Function, 0, len(r.functions))
	for _, f := range r.functions {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call invokes the function called name. A leading '$' is ignored.
func (r *Registry) Call(name string, args ...any) (any, error) {
	name = strings.TrimPrefix(name, "$")

	r.mu.RLock()
	fn, ok := r.functions[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: $%s", ErrUnknownFunction, name)
	}
	return fn.Invoke(args)
}
