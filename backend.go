package helio

// Portable readiness masks. Values match the Linux epoll/poll bits so the
// Linux backend passes them through unchanged; the kqueue backend translates.
const (
	// EvIn indicates the file descriptor is ready for reading.
	EvIn uint32 = 0x1
	// EvOut indicates the file descriptor is ready for writing.
	EvOut uint32 = 0x4
	// EvErr indicates an error condition on the file descriptor.
	EvErr uint32 = 0x8
	// EvHup indicates the peer closed its end of the connection.
	EvHup uint32 = 0x10
	// EvEdge requests edge-triggered delivery. Implied on kqueue, where all
	// registrations are EV_CLEAR.
	EvEdge uint32 = 1 << 31
)

const (
	// ignoreIndex marks completions the loop must silently drop (the kqueue
	// user event, and any record whose registration is already gone).
	ignoreIndex = 0

	// reservedBase is the first token value backed by the callback table.
	// Tokens below it belong to internal signals.
	reservedBase = 1024

	// evBatchSize is the completion batch fetched per backend wait.
	evBatchSize = 128
)

// completion is one readiness record returned by a backend wait call.
// token carries the generation in its high 32 bits and slot+reservedBase in
// its low 32 bits. errno is the kqueue fflags value; always 0 on Linux, which
// reports errors through the mask itself. item is set only for kqueue timer
// filters, which bypass the callback table.
type completion struct {
	item  *PeriodicItem
	token uint64
	mask  uint32
	errno int32
}
