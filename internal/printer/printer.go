// Package printer implements the pretty-printer chain: printers are tried in
// order and the first enabled one whose pattern matches the value's type
// formats it.
package printer

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
)

var (
	// ErrDuplicatePrinter is returned when a printer name is taken.
	ErrDuplicatePrinter = errors.New("printer already registered")
)

// Value is something to print: a type name and its decoded data.
type Value struct {
	Type string
	Data any
}

// Printer formats values whose type name matches Pattern.
type Printer struct {
	Name    string
	Pattern *regexp.Regexp
	Owner   string
	Format  func(v Value) (string, error)

	mu      sync.RWMutex
	enabled bool
}

// New creates an enabled printer.
func New(name, pattern string, format func(Value) (string, error)) (*Printer, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("printer %s: %w", name, err)
	}
	return &Printer{Name: name, Pattern: re, Format: format, enabled: true}, nil
}

// Enabled reports whether the printer is consulted.
func (p *Printer) Enabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled
}

// SetEnabled enables or disables the printer.
func (p *Printer) SetEnabled(enabled bool) {
	p.mu.Lock()
	p.enabled = enabled
	p.mu.Unlock()
}

// Chain is an ordered list of printers. Newer registrations come first.
type Chain struct {
	mu       sync.RWMutex
	printers []*Printer
}

// NewChain creates an empty chain.
func NewChain() *Chain {
	return &Chain{}
}

// Register puts p at the front of the chain. A name already present is an
// error unless replace is set, which removes the older printer.
func (c *Chain) Register(p *Printer, replace bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, existing := range c.printers {
		if existing.Name != p.Name {
			continue
		}
		if !replace {
			return fmt.Errorf("%w: %s", ErrDuplicatePrinter, p.Name)
		}
		c.printers = append(c.printers[:i], c.printers[i+1:]...)
		break
	}
	c.printers = append([]*Printer{p}, c.printers...)
	return nil
}

// Remove deletes p from the chain.
func (c *Chain) Remove(p *Printer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.printers {
		if existing == p {
			c.printers = append(c.printers[:i], c.printers[i+1:]...)
			return true
		}
	}
	return false
}

// Printers returns the chain in lookup order.
func (c *Chain) Printers() []*Printer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Printer(nil), c.printers...)
}

// Lookup returns the first enabled printer for typeName.
func (c *Chain) Lookup(typeName string) (*Printer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.printers {
		if p.Enabled() && p.Pattern.MatchString(typeName) {
			return p, true
		}
	}
	return nil, false
}

// Print formats v with the first matching printer. With no match it falls
// back to fmt's %v rendering of v.Data.
func (c *Chain) Print(v Value) (string, error) {
	p, ok := c.Lookup(v.Type)
	if !ok {
		return fmt.Sprintf("%v", v.Data), nil
	}
	s, err := p.Format(v)
	if err != nil {
		return "", fmt.Errorf("printer %s: %w", p.Name, err)
	}
	return s, nil
}

// SetEnabled toggles every printer whose name matches re (nil matches all)
// and returns how many changed.
func (c *Chain) SetEnabled(re *regexp.Regexp, enabled bool) int {
	n := 0
	for _, p := range c.Printers() {
		if re != nil && !re.MatchString(p.Name) {
			continue
		}
		if p.Enabled() != enabled {
			p.SetEnabled(enabled)
			n++
		}
	}
	return n
}
