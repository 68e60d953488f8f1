// Package helio implements a single-threaded I/O proactor: an event loop
// that drives a cooperative fiber scheduler from the operating system
// readiness multiplexer (epoll on Linux, kqueue on Darwin and FreeBSD).
//
// A Proactor owns one OS thread for the duration of MainLoop and pumps three
// interleaved sources of work: a cross-thread task inbox, fibers that became
// runnable, and I/O readiness events. Sockets and timers subscribe to
// readiness through Arm/Disarm; other threads inject work through Dispatch,
// which performs the sleep/wake handshake against the loop's park state.
package helio
