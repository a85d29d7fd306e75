package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vergegfx/verge/engine/core"
)

func TestSwapchainLifecycleResizeRebuild(t *testing.T) {
	sl := NewSwapchainLifecycle()
	assert.Equal(t, SWAPCHAIN_STATE_VALID, sl.State())

	sl.NotifyResized()
	assert.Equal(t, SWAPCHAIN_STATE_OUT_OF_DATE, sl.State())

	require.NoError(t, sl.BeginRebuild())
	sl.CompleteRebuild()
	assert.Equal(t, SWAPCHAIN_STATE_VALID, sl.State())
}

func TestSwapchainLifecycleAcquireStatusFolding(t *testing.T) {
	sl := NewSwapchainLifecycle()

	sl.ObserveStatus(ACQUIRE_STATUS_SUCCESS)
	assert.Equal(t, SWAPCHAIN_STATE_VALID, sl.State())

	sl.ObserveStatus(ACQUIRE_STATUS_OUT_OF_DATE)
	assert.Equal(t, SWAPCHAIN_STATE_OUT_OF_DATE, sl.State())
}

func TestSwapchainLifecycleRebuildBudget(t *testing.T) {
	sl := NewSwapchainLifecycle()
	sl.NotifyResized()

	// Rebuilds that never lead to a presented frame burn the retry budget.
	for i := 0; i < MaxConsecutiveRebuilds; i++ {
		require.NoError(t, sl.BeginRebuild())
		sl.CompleteRebuild()
		sl.ObserveStatus(ACQUIRE_STATUS_OUT_OF_DATE)
	}

	err := sl.BeginRebuild()
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrSwapchainFatal)
}

func TestSwapchainLifecyclePresentResetsBudget(t *testing.T) {
	sl := NewSwapchainLifecycle()

	for cycle := 0; cycle < 5; cycle++ {
		sl.NotifyResized()
		require.NoError(t, sl.BeginRebuild())
		sl.CompleteRebuild()
		// A successful present means the surface settled.
		sl.ObservePresented()
	}
	assert.Equal(t, SWAPCHAIN_STATE_VALID, sl.State())
}

func TestSwapchainLifecycleDestroyIsTerminal(t *testing.T) {
	sl := NewSwapchainLifecycle()
	sl.Destroy()
	assert.ErrorIs(t, sl.BeginRebuild(), core.ErrSwapchainFatal)
}

func TestSelectImageCount(t *testing.T) {
	assert.Equal(t, uint32(3), SelectImageCount(SurfaceCaps{MinImageCount: 2}))
	assert.Equal(t, uint32(3), SelectImageCount(SurfaceCaps{MinImageCount: 2, MaxImageCount: 8}))
	// Clamped to the driver maximum.
	assert.Equal(t, uint32(2), SelectImageCount(SurfaceCaps{MinImageCount: 2, MaxImageCount: 2}))
}

func TestSelectImageCountIsDeterministic(t *testing.T) {
	caps := SurfaceCaps{MinImageCount: 3, MaxImageCount: 5}
	first := SelectImageCount(caps)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, SelectImageCount(caps))
	}
}

func TestClampExtent(t *testing.T) {
	fixed := SurfaceCaps{CurrentWidth: 800, CurrentHeight: 600}
	w, h := ClampExtent(fixed, 1024, 768)
	assert.Equal(t, uint32(800), w)
	assert.Equal(t, uint32(600), h)

	// 0xFFFFFFFF means the surface follows the chain; the request is clamped
	// to the capability bounds.
	free := SurfaceCaps{
		CurrentWidth: 0xFFFFFFFF, CurrentHeight: 0xFFFFFFFF,
		MinWidth: 64, MinHeight: 64, MaxWidth: 2048, MaxHeight: 2048,
	}
	w, h = ClampExtent(free, 4096, 32)
	assert.Equal(t, uint32(2048), w)
	assert.Equal(t, uint32(64), h)

	w, h = ClampExtent(free, 1024, 768)
	assert.Equal(t, uint32(1024), w)
	assert.Equal(t, uint32(768), h)
}
