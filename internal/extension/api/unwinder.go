package api

import (
	"errors"
	"fmt"
	"regexp"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/framehook/internal/extension"
	extlua "github.com/dshills/framehook/internal/extension/lua"
	"github.com/dshills/framehook/internal/unwind"
)

const (
	pendingFrameType = "dbg.PendingFrame"
	unwindInfoType   = "dbg.UnwindInfo"
)

// ErrFrameInvalid is raised when a pending frame is used after the unwinder
// call it was passed to has returned.
var ErrFrameInvalid = errors.New("pending frame is no longer valid")

// LuaUnwinder adapts a Lua unwinder object to unwind.Unwinder.
//
// The object is a table with a name, an enabled flag and an unwind function
// called as obj:unwind(pending_frame). The enabled flag is read from the
// table on every resolution, so Lua code can toggle it directly.
type LuaUnwinder struct {
	name  string
	obj   *lua.LTable
	fn    *lua.LFunction
	state *extlua.State
}

// Name implements unwind.Unwinder.
func (u *LuaUnwinder) Name() string { return u.name }

// Enabled implements unwind.Unwinder.
func (u *LuaUnwinder) Enabled() bool {
	return lua.LVAsBool(u.obj.RawGetString("enabled"))
}

// SetEnabled implements unwind.Unwinder.
func (u *LuaUnwinder) SetEnabled(enabled bool) {
	u.obj.RawSetString("enabled", lua.LBool(enabled))
}

// Unwind implements unwind.Unwinder. The pending frame handed to Lua is
// invalidated when the call returns.
func (u *LuaUnwinder) Unwind(frame unwind.PendingFrame) (*unwind.UnwindInfo, error) {
	var info *unwind.UnwindInfo
	err := u.state.Do(func(L *lua.LState) error {
		pf := &pendingFrame{frame: frame, valid: true}
		defer pf.invalidate()

		ud := L.NewUserData()
		ud.Value = pf
		L.SetMetatable(ud, L.GetTypeMetatable(pendingFrameType))

		results, err := extlua.Call(L, u.fn, u.obj, ud)
		if err != nil {
			return err
		}
		if len(results) == 0 || !lua.LVAsBool(results[0]) {
			return nil
		}
		if rud, ok := results[0].(*lua.LUserData); ok {
			if ui, ok := rud.Value.(*unwind.UnwindInfo); ok {
				info = ui
				return nil
			}
		}
		return fmt.Errorf("unwinder %s returned %s, want unwind info or nil", u.name, results[0].Type())
	})
	return info, err
}

var _ unwind.Unwinder = (*LuaUnwinder)(nil)

type pendingFrame struct {
	frame unwind.PendingFrame
	valid bool
}

func (p *pendingFrame) invalidate() { p.valid = false }

// UnwinderModule provides unwinder construction, registration and toggling.
type UnwinderModule struct {
	host Host
}

// Name returns the module name.
func (m *UnwinderModule) Name() string { return "unwinder" }

// Install adds dbg.unwinder, dbg.register_unwinder and dbg.enable_unwinder
// and the pending-frame and unwind-info types.
func (m *UnwinderModule) Install(L *lua.LState, mod *lua.LTable, h *extension.Handle) {
	installFrameTypes(L)

	L.SetField(mod, "unwinder", L.NewFunction(newUnwinder))
	L.SetField(mod, "register_unwinder", L.NewFunction(func(L *lua.LState) int {
		return m.register(L, h)
	}))
	L.SetField(mod, "enable_unwinder", L.NewFunction(func(L *lua.LState) int {
		return m.enable(L, true)
	}))
	L.SetField(mod, "disable_unwinder", L.NewFunction(func(L *lua.LState) int {
		return m.enable(L, false)
	}))
}

// newUnwinder builds an unwinder object: dbg.unwinder(name, fn).
func newUnwinder(L *lua.LState) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)

	obj := L.NewTable()
	obj.RawSetString("name", lua.LString(name))
	obj.RawSetString("enabled", lua.LTrue)
	obj.RawSetString("unwind", fn)
	L.Push(obj)
	return 1
}

// register implements dbg.register_unwinder(locus, unwinder, replace).
// A nil locus is global, "progspace" the current program space, anything
// else names an objfile of the current program space.
func (m *UnwinderModule) register(L *lua.LState, h *extension.Handle) int {
	obj := L.CheckTable(2)
	replace := L.OptBool(3, false)

	list, err := m.locus(L.Get(1))
	if err != nil {
		return raise(L, err)
	}

	name, ok := obj.RawGetString("name").(lua.LString)
	if !ok || name == "" {
		L.ArgError(2, "unwinder has no name")
		return 0
	}
	fn, ok := obj.RawGetString("unwind").(*lua.LFunction)
	if !ok {
		L.ArgError(2, "unwinder has no unwind function")
		return 0
	}
	if obj.RawGetString("enabled") == lua.LNil {
		obj.RawSetString("enabled", lua.LTrue)
	}

	u := &LuaUnwinder{name: string(name), obj: obj, fn: fn, state: h.Lua()}
	if err := list.Register(u, replace); err != nil {
		return raise(L, err)
	}
	h.Track("unwinder", u.name, func() { list.Remove(u) })
	return 0
}

func (m *UnwinderModule) locus(v lua.LValue) (*unwind.List, error) {
	switch l := v.(type) {
	case *lua.LNilType:
		return m.host.GlobalUnwinders(), nil
	case lua.LString:
		ps := m.host.ProgramSpaces().Current()
		if l == "progspace" {
			return ps.FrameUnwinders(), nil
		}
		o, ok := ps.Objfile(string(l))
		if !ok {
			return nil, fmt.Errorf("no objfile named %q in the current program space", string(l))
		}
		return o.FrameUnwinders(), nil
	}
	return nil, fmt.Errorf("invalid unwinder locus %s", v.Type())
}

// enable implements dbg.enable_unwinder([locus_re [, name_re]]) and its
// disable twin, returning the number of unwinders changed.
func (m *UnwinderModule) enable(L *lua.LState, enabled bool) int {
	locus, err := optRegexp(L, 1)
	if err != nil {
		return raise(L, err)
	}
	name, err := optRegexp(L, 2)
	if err != nil {
		return raise(L, err)
	}
	n := m.host.ProgramSpaces().EnableUnwinders(m.host.GlobalUnwinders(), locus, name, enabled)
	L.Push(lua.LNumber(n))
	return 1
}

func optRegexp(L *lua.LState, n int) (*regexp.Regexp, error) {
	s := L.OptString(n, "")
	if s == "" {
		return nil, nil
	}
	return regexp.Compile(s)
}

func installFrameTypes(L *lua.LState) {
	pf := L.NewTypeMetatable(pendingFrameType)
	L.SetField(pf, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"pc":                 pendingPC,
		"level":              pendingLevel,
		"architecture":       pendingArchitecture,
		"read_register":      pendingReadRegister,
		"create_unwind_info": pendingCreateUnwindInfo,
		"is_valid":           pendingIsValid,
	}))

	ui := L.NewTypeMetatable(unwindInfoType)
	L.SetField(ui, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"add_saved_register": unwindInfoAddSavedRegister,
		"saved_register":     unwindInfoSavedRegister,
	}))
}

func checkPendingFrame(L *lua.LState) *pendingFrame {
	ud := L.CheckUserData(1)
	pf, ok := ud.Value.(*pendingFrame)
	if !ok {
		L.ArgError(1, "pending frame expected")
		return nil
	}
	if !pf.valid {
		L.RaiseError("%s", ErrFrameInvalid.Error())
		return nil
	}
	return pf
}

func pendingPC(L *lua.LState) int {
	L.Push(lua.LNumber(checkPendingFrame(L).frame.PC()))
	return 1
}

func pendingLevel(L *lua.LState) int {
	L.Push(lua.LNumber(checkPendingFrame(L).frame.Level()))
	return 1
}

func pendingArchitecture(L *lua.LState) int {
	L.Push(lua.LString(checkPendingFrame(L).frame.Architecture()))
	return 1
}

func pendingReadRegister(L *lua.LState) int {
	pf := checkPendingFrame(L)
	v, err := pf.frame.ReadRegister(L.CheckString(2))
	if err != nil {
		return raise(L, err)
	}
	L.Push(lua.LNumber(v))
	return 1
}

func pendingIsValid(L *lua.LState) int {
	ud := L.CheckUserData(1)
	pf, ok := ud.Value.(*pendingFrame)
	L.Push(lua.LBool(ok && pf.valid))
	return 1
}

// pendingCreateUnwindInfo implements pf:create_unwind_info({sp=, pc=, special=}).
func pendingCreateUnwindInfo(L *lua.LState) int {
	pf := checkPendingFrame(L)
	t := L.CheckTable(2)

	var id unwind.FrameID
	var err error
	if id.SP, err = extlua.ToAddress(t.RawGetString("sp")); err != nil {
		L.ArgError(2, "frame id sp: "+err.Error())
		return 0
	}
	if id.PC, err = extlua.ToAddress(t.RawGetString("pc")); err != nil {
		L.ArgError(2, "frame id pc: "+err.Error())
		return 0
	}
	if sv := t.RawGetString("special"); sv != lua.LNil {
		special, err := extlua.ToAddress(sv)
		if err != nil {
			L.ArgError(2, "frame id special: "+err.Error())
			return 0
		}
		id.Special = &special
	}

	ud := L.NewUserData()
	ud.Value = unwind.NewUnwindInfo(pf.frame, id)
	L.SetMetatable(ud, L.GetTypeMetatable(unwindInfoType))
	L.Push(ud)
	return 1
}

func checkUnwindInfo(L *lua.LState) *unwind.UnwindInfo {
	ud := L.CheckUserData(1)
	info, ok := ud.Value.(*unwind.UnwindInfo)
	if !ok {
		L.ArgError(1, "unwind info expected")
		return nil
	}
	return info
}

func unwindInfoAddSavedRegister(L *lua.LState) int {
	info := checkUnwindInfo(L)
	name := L.CheckString(2)
	info.AddSavedRegister(name, extlua.CheckAddress(L, 3))
	return 0
}

func unwindInfoSavedRegister(L *lua.LState) int {
	v, ok := checkUnwindInfo(L).SavedRegister(L.CheckString(2))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(v))
	return 1
}
