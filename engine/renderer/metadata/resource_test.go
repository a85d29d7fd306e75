package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vergegfx/verge/engine/core"
)

func TestResourceTrackerBudget(t *testing.T) {
	rt := NewResourceTracker(false)

	a := rt.Register(RESOURCE_KIND_BUFFER, "vertices", 1024)
	b := rt.Register(RESOURCE_KIND_IMAGE, "depth", 4096)
	assert.Equal(t, uint64(5120), rt.Allocated())

	require.NoError(t, rt.Destroy(a))
	assert.Equal(t, uint64(4096), rt.Allocated())

	require.NoError(t, rt.Destroy(b))
	assert.Equal(t, uint64(0), rt.Allocated())
}

func TestResourceTrackerDoubleDestroy(t *testing.T) {
	rt := NewResourceTracker(false)
	id := rt.Register(RESOURCE_KIND_BUFFER, "vertices", 64)

	require.NoError(t, rt.Destroy(id))
	assert.Error(t, rt.Destroy(id))
}

func TestResourceTrackerDestroyWhileInFlightDebug(t *testing.T) {
	rt := NewResourceTracker(true)
	id := rt.Register(RESOURCE_KIND_BUFFER, "vertices", 64)

	rt.MarkUsed(id, 5)
	rt.RetireFrame(4)

	err := rt.Destroy(id)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrResourceInFlight)
}

func TestResourceTrackerDestroyWhileInFlightRelease(t *testing.T) {
	// Release builds log instead of failing.
	rt := NewResourceTracker(false)
	id := rt.Register(RESOURCE_KIND_BUFFER, "vertices", 64)

	rt.MarkUsed(id, 5)
	rt.RetireFrame(4)

	assert.NoError(t, rt.Destroy(id))
}

func TestResourceTrackerDestroyAfterRetire(t *testing.T) {
	rt := NewResourceTracker(true)
	id := rt.Register(RESOURCE_KIND_BUFFER, "vertices", 64)

	rt.MarkUsed(id, 5)
	rt.RetireFrame(5)

	assert.NoError(t, rt.Destroy(id))
}

func TestResourceTrackerNeverUsedIsSafe(t *testing.T) {
	// A resource no command buffer ever referenced can go at any time.
	rt := NewResourceTracker(true)
	id := rt.Register(RESOURCE_KIND_BUFFER, "staging", 64)
	assert.NoError(t, rt.Destroy(id))
}

func TestResourceTrackerLeaked(t *testing.T) {
	rt := NewResourceTracker(false)
	a := rt.Register(RESOURCE_KIND_BUFFER, "vertices", 64)
	rt.Register(RESOURCE_KIND_IMAGE, "output", 128)

	require.NoError(t, rt.Destroy(a))

	leaked := rt.Leaked()
	require.Len(t, leaked, 1)
	assert.Equal(t, "output", leaked[0])
}
