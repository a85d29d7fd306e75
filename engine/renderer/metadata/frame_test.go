package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vergegfx/verge/engine/core"
)

func TestFrameSequencerRejectsBadSlotCounts(t *testing.T) {
	for _, n := range []uint8{0, 1, 4, 255} {
		_, err := NewFrameSequencer(n)
		assert.Error(t, err, "frames in flight %d", n)
	}
	for _, n := range []uint8{2, 3} {
		_, err := NewFrameSequencer(n)
		assert.NoError(t, err, "frames in flight %d", n)
	}
}

// submitFrame drives one full acquire/record/submit cycle, waiting on the
// slot's fence exactly when the sequencer says to.
func submitFrame(t *testing.T, fs *FrameSequencer) (slot int, waited bool) {
	t.Helper()
	slot, mustWait := fs.Acquire()
	if mustWait {
		require.NoError(t, fs.ObserveFenceSignaled(slot))
		waited = true
	}
	require.NoError(t, fs.BeginRecording(slot))
	require.NoError(t, fs.MarkSubmitted(slot))
	return slot, waited
}

func TestFrameSequencerRotationAndWaits(t *testing.T) {
	fs, err := NewFrameSequencer(2)
	require.NoError(t, err)

	// The first two frames fill both slots without waiting.
	slot, waited := submitFrame(t, fs)
	assert.Equal(t, 0, slot)
	assert.False(t, waited)

	slot, waited = submitFrame(t, fs)
	assert.Equal(t, 1, slot)
	assert.False(t, waited)

	// Frame 3 reuses slot 0 and must wait for it exactly once.
	slot, waited = submitFrame(t, fs)
	assert.Equal(t, 0, slot)
	assert.True(t, waited)

	assert.Equal(t, uint64(3), fs.FrameNumber())
}

func TestFrameSequencerRejectsReRecordBeforeFence(t *testing.T) {
	fs, err := NewFrameSequencer(2)
	require.NoError(t, err)

	require.NoError(t, fs.BeginRecording(0))
	require.NoError(t, fs.MarkSubmitted(0))

	err = fs.BeginRecording(0)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrSync)

	// Observing the fence unblocks the slot.
	require.NoError(t, fs.ObserveFenceSignaled(0))
	assert.NoError(t, fs.BeginRecording(0))
}

func TestFrameSequencerRejectsInvalidTransitions(t *testing.T) {
	fs, err := NewFrameSequencer(3)
	require.NoError(t, err)

	// Fence observed with nothing outstanding.
	assert.ErrorIs(t, fs.ObserveFenceSignaled(0), core.ErrSync)

	// Submit without recording.
	assert.ErrorIs(t, fs.MarkSubmitted(1), core.ErrSync)

	// Recording twice.
	require.NoError(t, fs.BeginRecording(2))
	assert.ErrorIs(t, fs.BeginRecording(2), core.ErrSync)
}

func TestFrameSequencerDrain(t *testing.T) {
	fs, err := NewFrameSequencer(3)
	require.NoError(t, err)

	assert.Empty(t, fs.Drain())

	submitFrame(t, fs)
	submitFrame(t, fs)
	assert.Equal(t, []int{0, 1}, fs.Drain())

	require.NoError(t, fs.ObserveFenceSignaled(0))
	assert.Equal(t, []int{1}, fs.Drain())

	require.NoError(t, fs.ObserveFenceSignaled(1))
	assert.Empty(t, fs.Drain())
}
