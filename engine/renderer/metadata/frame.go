package metadata

import (
	"github.com/cockroachdb/errors"

	"github.com/vergegfx/verge/engine/core"
)

type FrameSlotState int

const (
	FRAME_SLOT_STATE_IDLE FrameSlotState = iota
	FRAME_SLOT_STATE_RECORDING
	FRAME_SLOT_STATE_SUBMITTED
)

// FrameSequencer is the device-independent half of the frame synchronization
// controller: a fixed array of slot states rotated by frame counter modulo N.
// It decides when the renderer must wait on a slot's fence and rejects
// transitions that would let a slot carry two outstanding submissions. The
// Vulkan layer executes the waits and submissions it prescribes.
type FrameSequencer struct {
	slots       []FrameSlotState
	current     int
	frameNumber uint64
}

func NewFrameSequencer(framesInFlight uint8) (*FrameSequencer, error) {
	if framesInFlight < 2 || framesInFlight > 3 {
		return nil, errors.Newf("frames in flight must be 2 or 3, got %d", framesInFlight)
	}
	return &FrameSequencer{
		slots: make([]FrameSlotState, framesInFlight),
	}, nil
}

// Current returns the slot index the next frame will use.
func (fs *FrameSequencer) Current() int {
	return fs.current
}

// FrameNumber returns how many frames have been submitted so far.
func (fs *FrameSequencer) FrameNumber() uint64 {
	return fs.frameNumber
}

// Acquire returns the slot for the next frame and whether the caller must
// first wait on that slot's fence. A wait is required exactly when the slot
// still has GPU work outstanding, which bounds in-flight frames to the slot
// count.
func (fs *FrameSequencer) Acquire() (slot int, mustWait bool) {
	return fs.current, fs.slots[fs.current] == FRAME_SLOT_STATE_SUBMITTED
}

// ObserveFenceSignaled closes a slot's previous submission. Only valid on a
// submitted slot.
func (fs *FrameSequencer) ObserveFenceSignaled(slot int) error {
	if fs.slots[slot] != FRAME_SLOT_STATE_SUBMITTED {
		return errors.Wrapf(core.ErrSync, "slot %d fence observed without outstanding submission", slot)
	}
	fs.slots[slot] = FRAME_SLOT_STATE_IDLE
	return nil
}

// BeginRecording moves a slot to recording. Recording a slot whose previous
// submission has not been observed complete is the contract violation the
// whole sequencer exists to prevent.
func (fs *FrameSequencer) BeginRecording(slot int) error {
	switch fs.slots[slot] {
	case FRAME_SLOT_STATE_IDLE:
		fs.slots[slot] = FRAME_SLOT_STATE_RECORDING
		return nil
	case FRAME_SLOT_STATE_SUBMITTED:
		return errors.Wrapf(core.ErrSync, "slot %d re-recorded before its fence was observed signaled", slot)
	default:
		return errors.Wrapf(core.ErrSync, "slot %d is already recording", slot)
	}
}

// MarkSubmitted closes recording, counts the frame and advances the rotation.
func (fs *FrameSequencer) MarkSubmitted(slot int) error {
	if fs.slots[slot] != FRAME_SLOT_STATE_RECORDING {
		return errors.Wrapf(core.ErrSync, "slot %d submitted without recording", slot)
	}
	fs.slots[slot] = FRAME_SLOT_STATE_SUBMITTED
	fs.frameNumber++
	fs.current = int(fs.frameNumber % uint64(len(fs.slots)))
	return nil
}

// Drain returns every slot with outstanding GPU work. Shutdown must wait on
// each of these fences before destroying anything their command buffers
// reference.
func (fs *FrameSequencer) Drain() []int {
	var pending []int
	for i, s := range fs.slots {
		if s == FRAME_SLOT_STATE_SUBMITTED {
			pending = append(pending, i)
		}
	}
	return pending
}
