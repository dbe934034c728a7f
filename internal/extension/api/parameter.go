package api

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/framehook/internal/extension"
	extlua "github.com/dshills/framehook/internal/extension/lua"
	"github.com/dshills/framehook/internal/param"
)

// ParameterModule exposes parameter reads, writes and scoped overrides.
type ParameterModule struct {
	params param.Backend
}

// Name returns the module name.
func (m *ParameterModule) Name() string { return "parameter" }

// Install adds dbg.parameter, dbg.set_parameter and dbg.with_parameter.
func (m *ParameterModule) Install(L *lua.LState, mod *lua.LTable, _ *extension.Handle) {
	L.SetField(mod, "parameter", L.NewFunction(m.get))
	L.SetField(mod, "set_parameter", L.NewFunction(m.set))
	L.SetField(mod, "with_parameter", L.NewFunction(m.with))
}

// get returns the parameter value; unlimited reads as nil.
func (m *ParameterModule) get(L *lua.LState) int {
	v, err := m.params.Parameter(L.CheckString(1))
	if err != nil {
		return raise(L, err)
	}
	L.Push(extlua.ToLuaValue(L, v))
	return 1
}

func (m *ParameterModule) set(L *lua.LState) int {
	name := L.CheckString(1)
	if err := param.Set(m.params, name, extlua.ToGoValue(L.Get(2))); err != nil {
		return raise(L, err)
	}
	return 0
}

// with runs fn with the parameter overridden and returns fn's results. The
// previous value is restored even when fn raises; the error is re-raised
// after the restore.
func (m *ParameterModule) with(L *lua.LState) int {
	name := L.CheckString(1)
	value := extlua.ToGoValue(L.Get(2))
	fn := L.CheckFunction(3)

	var results []lua.LValue
	err := param.With(m.params, name, value, func() error {
		var err error
		results, err = extlua.Call(L, fn)
		return err
	})
	if err != nil {
		return raise(L, err)
	}
	for _, r := range results {
		L.Push(r)
	}
	return len(results)
}
