package metadata

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/vergegfx/verge/engine/core"
)

type ResourceKind int

const (
	RESOURCE_KIND_BUFFER ResourceKind = iota
	RESOURCE_KIND_IMAGE
	RESOURCE_KIND_ACCELERATION_STRUCTURE
)

// ResourceID identifies one tracked allocation for the lifetime of the
// process.
type ResourceID = uuid.UUID

type trackedResource struct {
	kind      ResourceKind
	name      string
	size      uint64
	lastUse   uint64
	everUsed  bool
	destroyed bool
}

// ResourceTracker is the allocator's book-keeping: the process-wide device
// memory budget plus, in debug mode, detection of resources destroyed while
// GPU work referencing them may still be in flight. It is mutated only from
// the control thread, so it carries no locking.
type ResourceTracker struct {
	debug        bool
	allocated    uint64
	entries      map[ResourceID]*trackedResource
	retiredFrame uint64
	started      bool
}

func NewResourceTracker(debug bool) *ResourceTracker {
	return &ResourceTracker{
		debug:   debug,
		entries: make(map[ResourceID]*trackedResource),
	}
}

// Register records a new allocation against the budget and returns its
// tracking identifier.
func (rt *ResourceTracker) Register(kind ResourceKind, name string, size uint64) ResourceID {
	id := uuid.New()
	rt.entries[id] = &trackedResource{kind: kind, name: name, size: size}
	rt.allocated += size
	return id
}

// MarkUsed records that the given frame's command buffer references the
// resource.
func (rt *ResourceTracker) MarkUsed(id ResourceID, frame uint64) {
	if e, ok := rt.entries[id]; ok && !e.destroyed {
		e.lastUse = frame
		e.everUsed = true
	}
}

// RetireFrame declares that GPU work for every frame up to and including
// frame has completed (its fence was observed signaled).
func (rt *ResourceTracker) RetireFrame(frame uint64) {
	if frame > rt.retiredFrame || !rt.started {
		rt.retiredFrame = frame
		rt.started = true
	}
}

// Destroy releases the allocation from the budget. In debug mode it flags a
// destroy issued while the resource's last referencing frame has not retired;
// release builds only log, mirroring how validation layers behave.
func (rt *ResourceTracker) Destroy(id ResourceID) error {
	e, ok := rt.entries[id]
	if !ok || e.destroyed {
		return errors.Newf("destroy of unknown or already-destroyed resource %s", id)
	}
	e.destroyed = true
	rt.allocated -= e.size

	if e.everUsed && (!rt.started || e.lastUse > rt.retiredFrame) {
		if rt.debug {
			return errors.Wrapf(core.ErrResourceInFlight,
				"%s (last used frame %d, retired through %d)", e.name, e.lastUse, rt.retiredFrame)
		}
		core.LogWarn("resource %s destroyed while possibly in flight (last used frame %d, retired through %d)",
			e.name, e.lastUse, rt.retiredFrame)
	}
	return nil
}

// Allocated is the current device-memory budget in bytes.
func (rt *ResourceTracker) Allocated() uint64 {
	return rt.allocated
}

// Leaked returns the names of resources never destroyed. Used at teardown to
// assert every create was matched by exactly one destroy.
func (rt *ResourceTracker) Leaked() []string {
	var leaked []string
	for _, e := range rt.entries {
		if !e.destroyed {
			leaked = append(leaked, e.name)
		}
	}
	return leaked
}
