package api

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/framehook/internal/extension"
	extlua "github.com/dshills/framehook/internal/extension/lua"
	"github.com/dshills/framehook/internal/progspace"
)

// ProgspaceModule exposes read-only views of program spaces and objfiles.
type ProgspaceModule struct {
	spaces *progspace.Set
}

// Name returns the module name.
func (m *ProgspaceModule) Name() string { return "progspace" }

// Install adds dbg.current_progspace, dbg.progspaces, dbg.objfiles,
// dbg.objfile_for_pc and dbg.solib_name.
func (m *ProgspaceModule) Install(L *lua.LState, mod *lua.LTable, _ *extension.Handle) {
	L.SetField(mod, "current_progspace", L.NewFunction(m.current))
	L.SetField(mod, "progspaces", L.NewFunction(m.all))
	L.SetField(mod, "objfiles", L.NewFunction(m.objfiles))
	L.SetField(mod, "objfile_for_pc", L.NewFunction(m.objfileForPC))
	L.SetField(mod, "solib_name", L.NewFunction(m.solibName))
}

func (m *ProgspaceModule) current(L *lua.LState) int {
	L.Push(progspaceTable(L, m.spaces.Current()))
	return 1
}

func (m *ProgspaceModule) all(L *lua.LState) int {
	t := L.NewTable()
	for _, ps := range m.spaces.All() {
		t.Append(progspaceTable(L, ps))
	}
	L.Push(t)
	return 1
}

// objfiles lists the objfiles of the current program space.
func (m *ProgspaceModule) objfiles(L *lua.LState) int {
	t := L.NewTable()
	for _, o := range m.spaces.Current().Objfiles() {
		t.Append(objfileTable(L, o))
	}
	L.Push(t)
	return 1
}

func (m *ProgspaceModule) objfileForPC(L *lua.LState) int {
	o, ok := m.spaces.Current().ObjfileForPC(extlua.CheckAddress(L, 1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(objfileTable(L, o))
	return 1
}

// solibName returns the shared library containing the address, or nil.
func (m *ProgspaceModule) solibName(L *lua.LState) int {
	name, ok := m.spaces.Current().SolibName(extlua.CheckAddress(L, 1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(name))
	return 1
}

func progspaceTable(L *lua.LState, ps *progspace.ProgramSpace) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("id", lua.LNumber(ps.ID()))
	t.RawSetString("filename", lua.LString(ps.Filename()))
	return t
}

func objfileTable(L *lua.LState, o *progspace.Objfile) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("name", lua.LString(o.Name()))
	t.RawSetString("base", lua.LString(fmt.Sprintf("%#x", o.Base())))
	t.RawSetString("shared", lua.LBool(o.IsSharedLibrary()))
	t.RawSetString("valid", lua.LBool(o.IsValid()))
	return t
}
