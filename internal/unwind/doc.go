// Package unwind dispatches stack-frame unwinding to registered unwinders.
//
// Unwinders live in three kinds of ordered lists: one per loaded objfile,
// one per program space, and one process-wide global list. For a pending
// frame the resolver consults them in the fixed order given by Precedence:
//
//	objfiles (in the order the environment reports them)
//	  -> current program space
//	    -> global
//
// Within a list unwinders are tried front to back. Disabled unwinders are
// skipped without being called. The first unwinder that returns a non-nil
// UnwindInfo claims the frame and the scan stops; the claim carries the
// unwinder's name. If nobody claims the frame the result is nil.
//
// An error returned by an unwinder aborts the scan and is returned to the
// caller wrapped in a *Fault. Faulty unwinders are not skipped.
//
// Lists are plain mutable containers and are not synchronized. Mutation and
// resolution are expected to happen on the same control goroutine. Each
// Resolve reads the live contents of every list, so enabling, disabling or
// registering unwinders takes effect on the next call.
package unwind
