package herder

import "errors"

// Sentinel errors for the failure modes that can arise at this layer.
var (
	// ErrShutdown is returned by Dispatch once Close has been called.
	ErrShutdown = errors.New("herder: pool is shut down")

	// ErrNoHerders is returned by NewPool when the configured CPU set is
	// empty.
	ErrNoHerders = errors.New("herder: no herders configured")
)
