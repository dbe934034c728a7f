// Package extension loads Lua extensions from package directories under an
// extension root.
//
// AutoLoad walks the requested packages in order. For each package directory
// that exists it lists the source files (skipping the package entry point
// init.lua) and executes each one under the identity dbg.<package>.<stem>. An
// identity seen before is reloaded in place: its Lua state is kept and its top
// level runs again. A file that fails to load is reported to the ErrorSink and
// skipped; the rest of the package and later packages still load.
//
// Every identity has a Handle that records the registrations its code made
// (unwinders, commands, functions, printers). Under ReloadTeardown, the
// default, those registrations are undone before a reload so a file that
// registers unconditionally does not register twice. ReloadAccumulate keeps
// them and only logs how many are carried over.
//
// Loader methods are serialized, but AutoLoad is meant to be driven from a
// single control goroutine.
package extension
