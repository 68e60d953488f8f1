package helio

import "errors"

// Standard errors.
var (
	// ErrAlreadyInitialized is returned when Init is called twice.
	ErrAlreadyInitialized = errors.New("helio: proactor already initialized")

	// ErrNotInitialized is returned when MainLoop starts before Init.
	ErrNotInitialized = errors.New("helio: proactor not initialized")

	// ErrNotStopped is returned by Close while MainLoop is still running.
	ErrNotStopped = errors.New("helio: proactor is not stopped")
)
