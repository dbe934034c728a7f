package scripting

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/dshills/framehook/internal/frame"
	"github.com/dshills/framehook/internal/printer"
	"github.com/dshills/framehook/internal/unwind"
)

// Resolve finds the unwinder that claims f.
func (r *Runtime) Resolve(f unwind.PendingFrame) (*unwind.Claim, error) {
	return r.resolver.Resolve(f)
}

// ResolveSnapshots resolves every frame in a JSON snapshot document and
// returns one JSON result per line. A failing unwinder is recorded in its
// frame's result and does not stop the remaining frames.
func (r *Runtime) ResolveSnapshots(data []byte) ([]byte, error) {
	frames, err := frame.ParseAll(data)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	for _, f := range frames {
		claim, rerr := r.Resolve(f)
		if rerr != nil {
			r.logger.Warn().Err(rerr).Int("level", f.Level()).Msg("unwinder failed")
		}
		line, err := frame.EncodeResult(f, claim, rerr)
		if err != nil {
			return nil, err
		}
		out.Write(line)
		out.WriteByte('\n')
	}
	return out.Bytes(), nil
}

// UnwinderInfo describes one registered unwinder.
type UnwinderInfo struct {
	Locus   string
	Space   int
	Name    string
	Enabled bool
}

// Unwinders lists every registered unwinder, global first, in consultation
// order within each locus.
func (r *Runtime) Unwinders() []UnwinderInfo {
	var out []UnwinderInfo
	for _, l := range r.spaces.Loci(r.global) {
		for _, u := range l.List.All() {
			out = append(out, UnwinderInfo{
				Locus:   l.Name,
				Space:   l.Space,
				Name:    u.Name(),
				Enabled: u.Enabled(),
			})
		}
	}
	return out
}

// EnableUnwinders sets the enabled flag of unwinders whose locus and name
// match the given regular expressions. Empty patterns match everything.
func (r *Runtime) EnableUnwinders(locus, name string, enabled bool) (int, error) {
	locusRE, err := compileOptional(locus)
	if err != nil {
		return 0, fmt.Errorf("locus pattern: %w", err)
	}
	nameRE, err := compileOptional(name)
	if err != nil {
		return 0, fmt.Errorf("name pattern: %w", err)
	}
	return r.spaces.EnableUnwinders(r.global, locusRE, nameRE, enabled), nil
}

func compileOptional(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	return regexp.Compile(pattern)
}

// Execute runs a command line: set and show go to the parameter store,
// anything else to the registered commands.
func (r *Runtime) Execute(line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) > 0 && (fields[0] == "set" || fields[0] == "show") {
		return r.params.Execute(line)
	}
	return r.commands.Execute(line)
}

// Invoke calls a convenience function.
func (r *Runtime) Invoke(name string, args ...any) (any, error) {
	return r.commands.Call(name, args...)
}

// Print formats a value through the pretty-printer chain.
func (r *Runtime) Print(typeName string, data any) (string, error) {
	return r.printers.Print(printer.Value{Type: typeName, Data: data})
}
