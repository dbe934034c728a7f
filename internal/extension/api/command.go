package api

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/framehook/internal/command"
	"github.com/dshills/framehook/internal/extension"
	extlua "github.com/dshills/framehook/internal/extension/lua"
)

// CommandModule lets extensions add user commands and convenience functions.
type CommandModule struct {
	commands *command.Registry
}

// Name returns the module name.
func (m *CommandModule) Name() string { return "command" }

// Install adds dbg.register_command and dbg.register_function.
func (m *CommandModule) Install(L *lua.LState, mod *lua.LTable, h *extension.Handle) {
	L.SetField(mod, "register_command", L.NewFunction(func(L *lua.LState) int {
		return m.registerCommand(L, h)
	}))
	L.SetField(mod, "register_function", L.NewFunction(func(L *lua.LState) int {
		return m.registerFunction(L, h)
	}))
}

// registerCommand implements dbg.register_command(name, fn [, doc [, replace]]).
// fn receives the argument words and may return a string to print.
func (m *CommandModule) registerCommand(L *lua.LState, h *extension.Handle) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)
	doc := L.OptString(3, "")
	replace := L.OptBool(4, false)

	state := h.Lua()
	cmd := &command.Command{
		Name:  name,
		Doc:   doc,
		Owner: h.Identity(),
		Invoke: func(args []string) (string, error) {
			var out string
			err := state.Do(func(L *lua.LState) error {
				words := L.NewTable()
				for _, a := range args {
					words.Append(lua.LString(a))
				}
				results, err := extlua.Call(L, fn, words)
				if err != nil {
					return err
				}
				if len(results) > 0 && results[0] != lua.LNil {
					out = L.ToStringMeta(results[0]).String()
				}
				return nil
			})
			return out, err
		},
	}
	if err := m.commands.Register(cmd, replace); err != nil {
		return raise(L, err)
	}
	h.Track("command", name, func() { m.commands.Remove(cmd) })
	return 0
}

// registerFunction implements dbg.register_function(name, fn [, doc [, replace]]).
func (m *CommandModule) registerFunction(L *lua.LState, h *extension.Handle) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)
	doc := L.OptString(3, "")
	replace := L.OptBool(4, false)

	state := h.Lua()
	f := &command.Function{
		Name:  name,
		Doc:   doc,
		Owner: h.Identity(),
		Invoke: func(args []any) (any, error) {
			var out any
			err := state.Do(func(L *lua.LState) error {
				in := make([]lua.LValue, len(args))
				for i, a := range args {
					in[i] = extlua.ToLuaValue(L, a)
				}
				results, err := extlua.Call(L, fn, in...)
				if err != nil {
					return fmt.Errorf("function %s: %w", name, err)
				}
				if len(results) > 0 {
					out = extlua.ToGoValue(results[0])
				}
				return nil
			})
			return out, err
		},
	}
	if err := m.commands.RegisterFunction(f, replace); err != nil {
		return raise(L, err)
	}
	h.Track("function", name, func() { m.commands.RemoveFunction(f) })
	return 0
}
