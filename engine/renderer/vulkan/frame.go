package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/vergegfx/verge/engine/core"
	"github.com/vergegfx/verge/engine/renderer/metadata"
)

// FrameSlot holds the per-frame resources rotated by the controller: one
// command buffer and the semaphore pair plus fence guarding its reuse.
type FrameSlot struct {
	CommandBuffer  *VulkanCommandBuffer
	ImageAvailable vk.Semaphore
	RenderFinished vk.Semaphore
	InFlight       *VulkanFence

	// Frame number of this slot's last submission, used to retire tracked
	// resources once the fence is observed signaled.
	submittedFrame uint64
}

// FrameController executes the waits and submissions the sequencer
// prescribes. It owns the per-slot synchronization primitives; the swapchain
// and the recorded commands belong to the caller.
type FrameController struct {
	Sequencer *metadata.FrameSequencer
	Slots     []*FrameSlot

	imageIndex uint32
}

func FrameControllerCreate(context *VulkanContext, framesInFlight uint8) (*FrameController, error) {
	sequencer, err := metadata.NewFrameSequencer(framesInFlight)
	if err != nil {
		return nil, err
	}

	fc := &FrameController{
		Sequencer: sequencer,
		Slots:     make([]*FrameSlot, framesInFlight),
	}

	semaphoreInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}

	for i := range fc.Slots {
		slot := &FrameSlot{}

		cb, err := NewVulkanCommandBuffer(context, context.Device.GraphicsCommandPool, true)
		if err != nil {
			fc.FrameControllerDestroy(context)
			return nil, err
		}
		slot.CommandBuffer = cb

		if res := vk.CreateSemaphore(context.Device.LogicalDevice, &semaphoreInfo, context.Allocator, &slot.ImageAvailable); res != vk.Success {
			fc.FrameControllerDestroy(context)
			return nil, errors.Wrapf(core.ErrSync, "failed to create semaphore: %s", VulkanResultString(res))
		}
		if res := vk.CreateSemaphore(context.Device.LogicalDevice, &semaphoreInfo, context.Allocator, &slot.RenderFinished); res != vk.Success {
			fc.FrameControllerDestroy(context)
			return nil, errors.Wrapf(core.ErrSync, "failed to create semaphore: %s", VulkanResultString(res))
		}

		fence, err := NewFence(context, false)
		if err != nil {
			fc.FrameControllerDestroy(context)
			return nil, err
		}
		slot.InFlight = fence

		fc.Slots[i] = slot
	}

	core.LogInfo("Frame controller created with %d frames in flight.", framesInFlight)
	return fc, nil
}

// BeginFrame claims the next slot, waiting on its fence when the slot still
// has GPU work outstanding, acquires a swapchain image and opens the slot's
// command buffer for recording. An out-of-date swapchain surfaces as
// SwapchainError before any state is consumed; the caller rebuilds and calls
// again.
func (fc *FrameController) BeginFrame(context *VulkanContext) (*FrameSlot, uint32, error) {
	slotIndex, mustWait := fc.Sequencer.Acquire()
	slot := fc.Slots[slotIndex]

	if mustWait {
		if err := slot.InFlight.FenceWait(context, MaxAcquireTimeout); err != nil {
			return nil, 0, err
		}
		if err := fc.Sequencer.ObserveFenceSignaled(slotIndex); err != nil {
			return nil, 0, err
		}
		context.Tracker.RetireFrame(slot.submittedFrame)
	}

	imageIndex, status := context.Swapchain.SwapchainAcquireNextImageIndex(
		context, MaxAcquireTimeout, slot.ImageAvailable, vk.NullFence)
	switch status {
	case metadata.ACQUIRE_STATUS_OUT_OF_DATE:
		return nil, 0, errors.Wrap(core.ErrSwapchainOutOfDate, "acquire")
	case metadata.ACQUIRE_STATUS_FATAL:
		return nil, 0, errors.Wrap(core.ErrSwapchainFatal, "acquire")
	}
	fc.imageIndex = imageIndex

	// The fence is reset only after a successful acquire so an out-of-date
	// bail-out leaves the slot waitable.
	if err := slot.InFlight.FenceReset(context); err != nil {
		return nil, 0, err
	}
	if err := fc.Sequencer.BeginRecording(slotIndex); err != nil {
		return nil, 0, err
	}

	slot.CommandBuffer.Reset()
	if err := slot.CommandBuffer.Begin(false, false, false); err != nil {
		return nil, 0, err
	}

	return slot, imageIndex, nil
}

// EndFrame closes the command buffer, submits it with the slot's semaphore
// pair and fence, and presents the acquired image. A present reporting
// out-of-date is not an error for the submitted work, only a signal to
// rebuild before the next frame.
func (fc *FrameController) EndFrame(context *VulkanContext) error {
	slotIndex := fc.Sequencer.Current()
	slot := fc.Slots[slotIndex]

	if err := slot.CommandBuffer.End(); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{slot.ImageAvailable},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{slot.CommandBuffer.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{slot.RenderFinished},
	}

	if res := vk.QueueSubmit(context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, slot.InFlight.Handle); res != vk.Success {
		return errors.Wrapf(core.ErrSync, "queue submit failed: %s", VulkanResultString(res))
	}
	slot.CommandBuffer.UpdateSubmitted()

	if err := fc.Sequencer.MarkSubmitted(slotIndex); err != nil {
		return err
	}
	slot.submittedFrame = fc.Sequencer.FrameNumber()

	status := context.Swapchain.SwapchainPresent(
		context, context.Device.PresentQueue, slot.RenderFinished, fc.imageIndex)
	switch status {
	case metadata.ACQUIRE_STATUS_OUT_OF_DATE:
		return errors.Wrap(core.ErrSwapchainOutOfDate, "present")
	case metadata.ACQUIRE_STATUS_FATAL:
		return errors.Wrap(core.ErrSwapchainFatal, "present")
	}
	return nil
}

// MarkUsed records that the frame currently recording references the tracked
// resource.
func (fc *FrameController) MarkUsed(context *VulkanContext, id metadata.ResourceID) {
	context.Tracker.MarkUsed(id, fc.Sequencer.FrameNumber()+1)
}

// Drain waits on every slot with outstanding GPU work. Shutdown and swapchain
// rebuild both run through here before touching resources in flight.
func (fc *FrameController) Drain(context *VulkanContext) error {
	for _, slotIndex := range fc.Sequencer.Drain() {
		slot := fc.Slots[slotIndex]
		if err := slot.InFlight.FenceWait(context, MaxAcquireTimeout); err != nil {
			return err
		}
		if err := fc.Sequencer.ObserveFenceSignaled(slotIndex); err != nil {
			return err
		}
		context.Tracker.RetireFrame(slot.submittedFrame)
	}
	return nil
}

func (fc *FrameController) FrameControllerDestroy(context *VulkanContext) {
	for _, slot := range fc.Slots {
		if slot == nil {
			continue
		}
		if slot.ImageAvailable != vk.NullSemaphore {
			vk.DestroySemaphore(context.Device.LogicalDevice, slot.ImageAvailable, context.Allocator)
			slot.ImageAvailable = vk.NullSemaphore
		}
		if slot.RenderFinished != vk.NullSemaphore {
			vk.DestroySemaphore(context.Device.LogicalDevice, slot.RenderFinished, context.Allocator)
			slot.RenderFinished = vk.NullSemaphore
		}
		if slot.InFlight != nil {
			slot.InFlight.FenceDestroy(context)
		}
		if slot.CommandBuffer != nil && slot.CommandBuffer.Handle != nil {
			slot.CommandBuffer.Free(context, context.Device.GraphicsCommandPool)
		}
	}
}
