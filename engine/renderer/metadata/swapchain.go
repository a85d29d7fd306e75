package metadata

import (
	"github.com/cockroachdb/errors"

	"github.com/vergegfx/verge/engine/core"
	"github.com/vergegfx/verge/engine/math"
)

type SwapchainState int

const (
	SWAPCHAIN_STATE_VALID SwapchainState = iota
	SWAPCHAIN_STATE_OUT_OF_DATE
	SWAPCHAIN_STATE_DESTROYED
)

// AcquireStatus is what the swapchain manager hands back to the frame
// controller after an acquire or present. The controller owns the loop and
// decides what to do; the swapchain never calls back into it.
type AcquireStatus int

const (
	ACQUIRE_STATUS_SUCCESS AcquireStatus = iota
	// ACQUIRE_STATUS_OUT_OF_DATE means rebuild before retrying. Not a
	// retry-without-action condition.
	ACQUIRE_STATUS_OUT_OF_DATE
	ACQUIRE_STATUS_FATAL
)

// MaxConsecutiveRebuilds caps rebuild-and-retry on a persistently invalid
// surface before the condition is promoted to fatal.
const MaxConsecutiveRebuilds = 3

// SwapchainLifecycle tracks the Valid/OutOfDate/Destroyed state machine and
// the rebuild-retry budget. The Vulkan swapchain owns one and consults it
// before every acquire.
type SwapchainLifecycle struct {
	state               SwapchainState
	consecutiveRebuilds int
}

func NewSwapchainLifecycle() *SwapchainLifecycle {
	return &SwapchainLifecycle{state: SWAPCHAIN_STATE_VALID}
}

func (sl *SwapchainLifecycle) State() SwapchainState {
	return sl.state
}

// NotifyResized is the windowing collaborator's surface-size change.
func (sl *SwapchainLifecycle) NotifyResized() {
	if sl.state == SWAPCHAIN_STATE_VALID {
		sl.state = SWAPCHAIN_STATE_OUT_OF_DATE
	}
}

// ObserveStatus folds a device acquire/present status into the state machine.
func (sl *SwapchainLifecycle) ObserveStatus(status AcquireStatus) {
	if status == ACQUIRE_STATUS_OUT_OF_DATE && sl.state == SWAPCHAIN_STATE_VALID {
		sl.state = SWAPCHAIN_STATE_OUT_OF_DATE
	}
}

// ObservePresented records a frame successfully presented, resetting the
// rebuild-retry budget.
func (sl *SwapchainLifecycle) ObservePresented() {
	sl.consecutiveRebuilds = 0
}

// BeginRebuild gates OutOfDate -> Valid. It fails once the retry budget for a
// persistently broken surface is exhausted.
func (sl *SwapchainLifecycle) BeginRebuild() error {
	if sl.state == SWAPCHAIN_STATE_DESTROYED {
		return errors.Wrap(core.ErrSwapchainFatal, "rebuild after destroy")
	}
	if sl.consecutiveRebuilds >= MaxConsecutiveRebuilds {
		return errors.Wrapf(core.ErrSwapchainFatal, "surface still invalid after %d rebuilds", sl.consecutiveRebuilds)
	}
	sl.consecutiveRebuilds++
	return nil
}

// CompleteRebuild marks the new chain valid.
func (sl *SwapchainLifecycle) CompleteRebuild() {
	sl.state = SWAPCHAIN_STATE_VALID
}

// Destroy is terminal.
func (sl *SwapchainLifecycle) Destroy() {
	sl.state = SWAPCHAIN_STATE_DESTROYED
}

// SurfaceCaps is the subset of surface capabilities the chain math needs.
// CurrentExtent of 0xFFFFFFFF means the surface takes its size from the chain.
type SurfaceCaps struct {
	MinImageCount uint32
	MaxImageCount uint32 // 0 means unbounded
	CurrentWidth  uint32
	CurrentHeight uint32
	MinWidth      uint32
	MinHeight     uint32
	MaxWidth      uint32
	MaxHeight     uint32
}

const surfaceExtentUndefined = 0xFFFFFFFF

// SelectImageCount asks for one image more than the driver minimum, clamped
// to the driver maximum. Deterministic for fixed capabilities, which is what
// makes rebuild idempotent.
func SelectImageCount(caps SurfaceCaps) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

// ClampExtent resolves the chain extent against the surface capabilities.
func ClampExtent(caps SurfaceCaps, width, height uint32) (uint32, uint32) {
	if caps.CurrentWidth != surfaceExtentUndefined {
		return caps.CurrentWidth, caps.CurrentHeight
	}
	return math.Clamp(width, caps.MinWidth, caps.MaxWidth),
		math.Clamp(height, caps.MinHeight, caps.MaxHeight)
}
