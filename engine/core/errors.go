package core

import (
	"github.com/cockroachdb/errors"
)

// Error taxonomy for the rendering substrate. Callers match with errors.Is;
// sites that need context wrap with errors.Wrapf so the chain keeps the
// sentinel reachable.
var (
	// ErrAllocation covers device memory exhaustion or fragmentation. Fatal
	// for the requesting operation; the caller decides whether to reduce
	// scope or abort.
	ErrAllocation = errors.New("device allocation failed")

	// ErrBuildEmptyInput is returned for an empty geometry or instance list.
	ErrBuildEmptyInput = errors.New("acceleration structure build: empty input")

	// ErrBuildSizeMismatch is returned when declared vertex/index counts
	// exceed what the referenced buffers can hold.
	ErrBuildSizeMismatch = errors.New("acceleration structure build: size mismatch")

	// ErrBuildDeviceFailed is a device-reported build failure. Non-retryable
	// for the same input.
	ErrBuildDeviceFailed = errors.New("acceleration structure build: device failure")

	// ErrSwapchainOutOfDate means the chain no longer matches the surface and
	// must be rebuilt before further acquires.
	ErrSwapchainOutOfDate = errors.New("swapchain out of date")

	// ErrSwapchainFatal means the surface no longer supports any compatible
	// configuration. Terminates the owning example.
	ErrSwapchainFatal = errors.New("swapchain unrecoverable")

	// ErrSync covers fence or submit failure, treated as device loss.
	ErrSync = errors.New("synchronization failure: device lost")

	// ErrResourceInFlight flags destruction of a resource the GPU may still
	// be reading. Only raised by the instrumented lifetime tracker.
	ErrResourceInFlight = errors.New("resource destroyed while in flight")
)
