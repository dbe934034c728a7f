// Package lua hosts extension code in sandboxed gopher-lua states.
//
// Each loaded extension owns one State. The sandbox keeps the base, table,
// string and math libraries, drops the functions that load code from disk or
// strings, and replaces require with a resolver that only serves:
//
//   - the built-in safe libraries
//   - modules preloaded by the host (for example "dbg")
//   - Lua files found on the extension search path, where "a.b" maps to
//     <dir>/a/b.lua in the first directory that has it
//
// The search path is read on every require, so changing it affects the next
// import without rebuilding the state.
//
// gopher-lua's LState is not goroutine-safe. State serializes the entry
// points it exposes, but Go functions called from Lua must use the LState
// they are given rather than going back through State.
package lua
