// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package imq

// Options configures queue creation and engine selection.
type Options struct {
	// Producer/Consumer constraints (determines engine)
	singleProducer bool
	singleConsumer bool

	// Capacity (rounds up to next power of 2)
	capacity int
}

// Builder creates queues with fluent configuration.
//
// The builder selects the engine from the declared producer/consumer
// constraints: only when both sides are single does the cheaper SPSC
// engine apply; every other combination needs the MPMC admission
// protocol.
//
// Example:
//
//	// SPSC queue (one sender goroutine, one receiver goroutine)
//	q := imq.BuildSPSC[Event](imq.New(1024).SingleProducer().SingleConsumer())
//
//	// MPMC queue (default, general purpose)
//	q := imq.Build[Request](imq.New(4096))
type Builder struct {
	opts Options
}

// New creates a queue builder with the given capacity.
//
// Capacity rounds up to the next power of 2 with a floor of 2. For
// example, capacity=4 results in actual capacity=4, capacity=1000
// results in actual capacity=1024.
//
// Panics if capacity < 1 or capacity > 1<<30.
func New(capacity int) *Builder {
	if capacity < 1 {
		panic("imq: capacity must be >= 1")
	}
	if capacity > maxCapacity {
		panic("imq: capacity exceeds maximum")
	}
	return &Builder{opts: Options{capacity: capacity}}
}

// SingleProducer declares that only one goroutine will send.
func (b *Builder) SingleProducer() *Builder {
	b.opts.singleProducer = true
	return b
}

// SingleConsumer declares that only one goroutine will receive.
func (b *Builder) SingleConsumer() *Builder {
	b.opts.singleConsumer = true
	return b
}

// Build creates a Queue[T] with automatic engine selection.
//
//	SingleProducer + SingleConsumer → SPSC (slot-content ring)
//	Anything else                   → MPMC (admission-word ring)
func Build[T any](b *Builder) Queue[T] {
	if b.opts.singleProducer && b.opts.singleConsumer {
		return NewSPSC[T](b.opts.capacity)
	}
	return NewMPMC[T](b.opts.capacity)
}

// BuildSPSC creates an SPSC queue with compile-time type safety.
// Panics if builder is not configured with SingleProducer().SingleConsumer().
func BuildSPSC[T any](b *Builder) *SPSC[T] {
	if !b.opts.singleProducer || !b.opts.singleConsumer {
		panic("imq: BuildSPSC requires SingleProducer().SingleConsumer()")
	}
	return NewSPSC[T](b.opts.capacity)
}

// BuildMPMC creates an MPMC queue with compile-time type safety.
// Panics if builder has any single-side constraint set.
func BuildMPMC[T any](b *Builder) *MPMC[T] {
	if b.opts.singleProducer || b.opts.singleConsumer {
		panic("imq: BuildMPMC requires no constraints")
	}
	return NewMPMC[T](b.opts.capacity)
}

// BuildPtr creates a QueuePtr with automatic engine selection.
func (b *Builder) BuildPtr() QueuePtr {
	if b.opts.singleProducer && b.opts.singleConsumer {
		return NewSPSCPtr(b.opts.capacity)
	}
	return NewMPMCPtr(b.opts.capacity)
}

// BuildPtrSPSC creates an SPSC queue for unsafe.Pointer values.
// Panics if builder is not configured with SingleProducer().SingleConsumer().
func (b *Builder) BuildPtrSPSC() *SPSCPtr {
	if !b.opts.singleProducer || !b.opts.singleConsumer {
		panic("imq: BuildPtrSPSC requires SingleProducer().SingleConsumer()")
	}
	return NewSPSCPtr(b.opts.capacity)
}

// BuildPtrMPMC creates an MPMC queue for unsafe.Pointer values.
// Panics if builder has any single-side constraint set.
func (b *Builder) BuildPtrMPMC() *MPMCPtr {
	if b.opts.singleProducer || b.opts.singleConsumer {
		panic("imq: BuildPtrMPMC requires no constraints")
	}
	return NewMPMCPtr(b.opts.capacity)
}

// maxCapacity bounds the ring so head and occupancy fit their 32-bit
// halves of the admission word on any platform int.
const maxCapacity = 1 << 30

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// pad is cache line padding to prevent false sharing.
type pad [64]byte
