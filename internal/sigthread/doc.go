// Package sigthread starts worker goroutines on OS threads that have the
// control signals blocked before any user code runs.
//
// The control signals (SIGCHLD, SIGINT, SIGALRM, SIGWINCH) belong to the
// control thread. A worker started with Launcher.Go runs on a dedicated OS
// thread whose mask blocks them from its first instruction, so the kernel never
// picks a worker to deliver them.
//
// Go does not let a new OS thread inherit the caller's mask, so the launch is
// done in two steps. The calling goroutine is pinned to its thread and the
// signals are blocked there for the duration of the launch. The worker pins
// itself, blocks the same set on its own thread and only then reports ready.
// The caller's mask is restored when the launch returns, whether it succeeded
// or not. A worker thread is never unpinned: when the worker returns the
// runtime discards the thread along with its mask.
//
// On platforms without per-thread signal masks Launcher.Go degrades to a plain
// goroutine start.
package sigthread
