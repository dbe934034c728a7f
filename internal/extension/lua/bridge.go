package lua

import (
	"fmt"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// ToGoValue converts a Lua value to a Go value. Integral numbers become
// int64, tables become []any or map[string]any, userdata yields its Value.
func ToGoValue(lv lua.LValue) any {
	return toGo(lv, make(map[*lua.LTable]bool))
}

func toGo(lv lua.LValue, visited map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case nil:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		return tableToGo(v, visited)
	case *lua.LUserData:
		return v.Value
	default:
		return nil
	}
}

func tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) any {
	if n := t.Len(); n > 0 {
		count := 0
		t.ForEach(func(_, _ lua.LValue) { count++ })
		if count == n {
			arr := make([]any, n)
			for i := 1; i <= n; i++ {
				arr[i-1] = toGo(t.RawGetInt(i), visited)
			}
			return arr
		}
	}

	m := make(map[string]any)
	t.ForEach(func(k, v lua.LValue) {
		m[k.String()] = toGo(v, visited)
	})
	return m
}

// ToLuaValue converts a Go value to a Lua value.
func ToLuaValue(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return val
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []string:
		t := L.NewTable()
		for i, s := range val {
			t.RawSetInt(i+1, lua.LString(s))
		}
		return t
	case []any:
		t := L.NewTable()
		for i, e := range val {
			t.RawSetInt(i+1, ToLuaValue(L, e))
		}
		return t
	case map[string]any:
		t := L.NewTable()
		for k, e := range val {
			t.RawSetString(k, ToLuaValue(L, e))
		}
		return t
	default:
		return lua.LString(fmt.Sprint(val))
	}
}

// ToAddress reads an address from a Lua number or a numeric string. Strings
// accept any base strconv understands ("0x7fff0000", "1234"), which keeps
// 64-bit addresses exact where a Lua number would round.
func ToAddress(lv lua.LValue) (uint64, error) {
	switch v := lv.(type) {
	case lua.LNumber:
		if v < 0 {
			return 0, fmt.Errorf("negative address %v", float64(v))
		}
		return uint64(v), nil
	case lua.LString:
		n, err := strconv.ParseUint(strings.TrimSpace(string(v)), 0, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid address %q", string(v))
		}
		return n, nil
	}
	return 0, fmt.Errorf("expected address, got %s", lv.Type())
}

// CheckAddress is ToAddress for argument n, raising a Lua argument error on
// failure.
func CheckAddress(L *lua.LState, n int) uint64 {
	addr, err := ToAddress(L.Get(n))
	if err != nil {
		L.ArgError(n, err.Error())
	}
	return addr
}

// Call calls fn on L, which the caller must already own.
func Call(L *lua.LState, fn *lua.LFunction, args ...lua.LValue) ([]lua.LValue, error) {
	return call(L, fn, args...)
}
