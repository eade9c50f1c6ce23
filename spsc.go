// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package imq

import (
	"runtime"
	"unsafe"

	"code.hybscloud.com/atomix"
)

// SPSCPtr is a bounded single-producer single-consumer queue transferring
// unsafe.Pointer message references.
//
// The producer owns writepos and the consumer owns readpos; neither side
// ever CASes the other's index, so the engine needs no shared admission
// counter. Fullness and emptiness are detected from the slot contents:
// the slot at writepos is non-nil exactly when the ring is full, the slot
// at readpos is nil exactly when it is empty.
//
// At most one goroutine may send and at most one may receive at a time.
// Violating that constraint corrupts the ring. Use [MPMCPtr] when either
// side is concurrent.
//
// nil is the empty-slot sentinel and cannot be sent. Ownership semantics
// match MPMCPtr: the payload is on loan from sender to receiver and the
// ring stores the reference as a machine word.
type SPSCPtr struct {
	_        pad
	readpos  atomix.Uint64 // consumer-owned, in [0, capacity)
	_        pad
	writepos atomix.Uint64 // producer-owned, in [0, capacity)
	_        pad
	closed   atomix.Bool
	_        pad
	reader   gate
	_        pad
	writer   gate
	_        pad
	slots    []atomix.Uintptr
	mask     uint64
	capacity uint64
}

// NewSPSCPtr creates a new SPSC pointer queue.
// Capacity rounds up to the next power of 2, with a floor of 2.
// Panics if capacity < 1 or capacity > 1<<30.
func NewSPSCPtr(capacity int) *SPSCPtr {
	if capacity < 1 {
		panic("imq: capacity must be >= 1")
	}
	if capacity > maxCapacity {
		panic("imq: capacity exceeds maximum")
	}

	n := uint64(roundToPow2(capacity))
	q := &SPSCPtr{
		slots:    make([]atomix.Uintptr, n),
		mask:     n - 1,
		capacity: n,
	}
	q.reader.init()
	q.writer.init()
	return q
}

// TrySend publishes msg into the queue (producer only, non-blocking).
// Returns ErrNilMessage if msg is nil, ErrClosed if the queue is closed,
// ErrWouldBlock if the queue is full.
func (q *SPSCPtr) TrySend(msg unsafe.Pointer) error {
	if msg == nil {
		return ErrNilMessage
	}
	if q.closed.LoadAcquire() {
		return ErrClosed
	}

	// A non-empty slot at writepos means the ring is full: the consumer
	// has not yet cleared the slot one full lap behind.
	pos := q.writepos.LoadRelaxed()
	if !q.slots[pos].CompareAndSwapAcqRel(0, uintptr(msg)) {
		return ErrWouldBlock
	}
	q.writepos.StoreRelease((pos + 1) & q.mask)

	if q.reader.waiters.Load() != 0 {
		q.reader.wake()
	}
	return nil
}

// TryRecv claims and returns the oldest message (consumer only,
// non-blocking). Returns ErrClosed if the queue is closed (even while
// occupied slots remain) and ErrWouldBlock if the queue is empty.
func (q *SPSCPtr) TryRecv() (unsafe.Pointer, error) {
	if q.closed.LoadAcquire() {
		return nil, ErrClosed
	}

	pos := q.readpos.LoadRelaxed()
	val := q.slots[pos].LoadAcquire()
	if val == 0 {
		return nil, ErrWouldBlock
	}
	if !q.slots[pos].CompareAndSwapAcqRel(val, 0) {
		return nil, ErrWouldBlock
	}
	q.readpos.StoreRelease((pos + 1) & q.mask)

	if q.writer.waiters.Load() != 0 {
		q.writer.wake()
	}
	return *(*unsafe.Pointer)(unsafe.Pointer(&val)), nil
}

// Send publishes msg, parking while the queue is full.
// Returns nil on success, ErrNilMessage for nil msg, ErrClosed once the
// queue is closed.
func (q *SPSCPtr) Send(msg unsafe.Pointer) error {
	err := q.TrySend(msg)
	for err == ErrWouldBlock {
		q.writer.waiters.Add(1)
		q.writer.mu.Lock()

		err = q.TrySend(msg)
		if err == ErrWouldBlock {
			q.writer.cond.Wait()
		}

		q.writer.mu.Unlock()
		q.writer.waiters.Add(-1)

		if err == ErrWouldBlock {
			err = q.TrySend(msg)
		}
	}
	return err
}

// Recv claims and returns the oldest message, parking while the queue is
// empty. Returns ErrClosed once the queue is closed.
func (q *SPSCPtr) Recv() (unsafe.Pointer, error) {
	msg, err := q.TryRecv()
	for err == ErrWouldBlock {
		q.reader.waiters.Add(1)
		q.reader.mu.Lock()

		msg, err = q.TryRecv()
		if err == ErrWouldBlock {
			q.reader.cond.Wait()
		}

		q.reader.mu.Unlock()
		q.reader.waiters.Add(-1)

		if err == ErrWouldBlock {
			msg, err = q.TryRecv()
		}
	}
	return msg, err
}

// Close marks the queue closed and releases every parked sender and
// receiver. Closure is monotonic and Close is idempotent. Close does not
// drain occupied slots; see [MPMCPtr.Close].
func (q *SPSCPtr) Close() {
	q.reader.mu.Lock()
	q.writer.mu.Lock()
	q.closed.StoreRelease(true)
	q.writer.mu.Unlock()
	q.reader.mu.Unlock()

	for q.reader.waiters.Load() != 0 || q.writer.waiters.Load() != 0 {
		q.reader.broadcast()
		q.writer.broadcast()
		runtime.Gosched()
	}
}

// Closed reports whether Close has been called.
func (q *SPSCPtr) Closed() bool {
	return q.closed.LoadAcquire()
}

// Cap returns the queue capacity.
func (q *SPSCPtr) Cap() int {
	return int(q.capacity)
}

// Len returns the momentary occupancy derived from the two positions.
// When they coincide the slot at readpos disambiguates full from empty.
func (q *SPSCPtr) Len() int {
	r := q.readpos.LoadAcquire()
	w := q.writepos.LoadAcquire()
	if r == w {
		if q.slots[r].LoadAcquire() != 0 {
			return int(q.capacity)
		}
		return 0
	}
	return int((w - r + q.capacity) & q.mask)
}

// SPSC is the statically typed facade over SPSCPtr.
//
// It transfers *T references without copying the payload. Embed a
// [Marker] in T for completion signalling.
type SPSC[T any] struct {
	q *SPSCPtr
}

// NewSPSC creates a new typed SPSC queue.
// Capacity rounds up to the next power of 2, with a floor of 2.
func NewSPSC[T any](capacity int) *SPSC[T] {
	return &SPSC[T]{q: NewSPSCPtr(capacity)}
}

// TrySend publishes msg (producer only, non-blocking).
func (q *SPSC[T]) TrySend(msg *T) error {
	return q.q.TrySend(unsafe.Pointer(msg))
}

// Send publishes msg, parking while the queue is full (producer only).
func (q *SPSC[T]) Send(msg *T) error {
	return q.q.Send(unsafe.Pointer(msg))
}

// TryRecv claims and returns the oldest message (consumer only,
// non-blocking).
func (q *SPSC[T]) TryRecv() (*T, error) {
	msg, err := q.q.TryRecv()
	return (*T)(msg), err
}

// Recv claims and returns the oldest message, parking while empty
// (consumer only).
func (q *SPSC[T]) Recv() (*T, error) {
	msg, err := q.q.Recv()
	return (*T)(msg), err
}

// Close marks the queue closed and releases every parked goroutine.
func (q *SPSC[T]) Close() { q.q.Close() }

// Closed reports whether Close has been called.
func (q *SPSC[T]) Closed() bool { return q.q.Closed() }

// Cap returns the queue capacity.
func (q *SPSC[T]) Cap() int { return q.q.Cap() }

// Len returns the momentary occupancy.
func (q *SPSC[T]) Len() int { return q.q.Len() }
