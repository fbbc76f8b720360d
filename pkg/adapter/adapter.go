package adapter

import (
	"context"
)

// Adapter exposes a catalog session (or its telemetry) through some outer
// surface, such as a FUSE mount or an HTTP endpoint.
//
// Lifecycle:
//  1. Creation: the adapter is built with its surface-specific configuration
//  2. Startup: Serve() starts the surface and blocks until shutdown
//  3. Shutdown: Stop() initiates graceful shutdown with timeout
//
// Thread safety:
// Implementations must be safe for concurrent use. Stop() may be called
// concurrently with Serve().
type Adapter interface {
	// Serve starts the surface and blocks until the context is cancelled
	// or an unrecoverable error occurs.
	//
	// When the context is cancelled, Serve must shut down gracefully and
	// return context.Canceled or nil.
	//
	// If Serve returns before context cancellation, the server treats it
	// as a fatal error and stops all other adapters.
	Serve(ctx context.Context) error

	// Stop initiates graceful shutdown.
	//
	// Implementations must:
	//   - Be safe to call multiple times (idempotent)
	//   - Be safe to call concurrently with Serve()
	//   - Respect the context timeout for shutdown operations
	Stop(ctx context.Context) error

	// Protocol returns the human-readable surface name for logging.
	//
	// Examples: "FUSE", "metrics"
	Protocol() string

	// Endpoint identifies where the adapter is reachable: a mountpoint or
	// a listen address. Two adapters may not share an endpoint.
	Endpoint() string
}
