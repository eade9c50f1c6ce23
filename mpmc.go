// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package imq

import (
	"runtime"
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// The admission word packs (head:32 | occupancy:32) into one CAS-able
// 64-bit location. It is the linearization point of the MPMC engine:
// whichever goroutine wins the occupancy increment owns the slot it
// published, whichever wins the decrement owns the slot at head.
const admHeadShift = 32

func packAdm(head, occupancy uint64) uint64 {
	return head<<admHeadShift | occupancy
}

func unpackAdm(word uint64) (head, occupancy uint64) {
	return word >> admHeadShift, word & (1<<admHeadShift - 1)
}

// MPMCPtr is a bounded multi-producer multi-consumer queue transferring
// unsafe.Pointer message references.
//
// The engine uses a reserve-then-publish protocol on a ring of pointer
// slots. A producer first privately acquires its target slot with a
// nil→message CAS, then publicly admits the message by incrementing the
// occupancy half of the admission word; if the admission CAS loses, the
// slot publication is reverted and the whole attempt retried. A consumer
// claims the head slot by advancing the admission word, then clears the
// slot with a message→nil CAS. Separating reservation from admission
// keeps the slot contents ABA-safe: no two producers ever hold the same
// slot.
//
// nil is the empty-slot sentinel and cannot be sent.
//
// Ownership semantics: the payload is on loan from the sender to the
// receiver from publication until consumption; the queue never copies,
// allocates or frees it. Keep the payload reachable on the sending side
// for the duration of the loan: the ring stores the reference as a
// machine word, not as a GC-visible pointer.
//
// TrySend and TryRecv never park; Send and Recv park on the queue's
// private writer/reader gates when the ring is full/empty.
type MPMCPtr struct {
	_        pad
	adm      atomix.Uint64 // (head:32 | occupancy:32)
	_        pad
	closed   atomix.Bool
	_        pad
	reader   gate // consumers park here
	_        pad
	writer   gate // producers park here
	_        pad
	slots    []atomix.Uintptr
	mask     uint64
	capacity uint64
}

// NewMPMCPtr creates a new MPMC pointer queue.
// Capacity rounds up to the next power of 2, with a floor of 2.
// Panics if capacity < 1 or capacity > 1<<30.
func NewMPMCPtr(capacity int) *MPMCPtr {
	if capacity < 1 {
		panic("imq: capacity must be >= 1")
	}
	if capacity > maxCapacity {
		panic("imq: capacity exceeds maximum")
	}

	n := uint64(roundToPow2(capacity))
	q := &MPMCPtr{
		slots:    make([]atomix.Uintptr, n),
		mask:     n - 1,
		capacity: n,
	}
	q.reader.init()
	q.writer.init()
	return q
}

// TrySend publishes msg into the queue (non-blocking).
// Returns ErrNilMessage if msg is nil, ErrClosed if the queue is closed,
// ErrWouldBlock if the queue is full.
func (q *MPMCPtr) TrySend(msg unsafe.Pointer) error {
	if msg == nil {
		return ErrNilMessage
	}

	sw := spin.Wait{}
	for {
		word := q.adm.LoadAcquire()
		if q.closed.LoadAcquire() {
			return ErrClosed
		}
		head, occupancy := unpackAdm(word)
		if occupancy >= q.capacity {
			return ErrWouldBlock
		}

		// Reserve: the slot may still hold a reference whose consumer
		// has advanced head but not yet cleared it, or another producer
		// may have taken it. Either way the CAS loses and we reload.
		idx := (head + occupancy) & q.mask
		if !q.slots[idx].CompareAndSwapAcqRel(0, uintptr(msg)) {
			sw.Once()
			continue
		}

		// Admit: make the reservation visible in the occupancy count.
		if !q.adm.CompareAndSwapAcqRel(word, packAdm(head, occupancy+1)) {
			// Lost the admission race; undo the publication and retry.
			q.slots[idx].CompareAndSwapAcqRel(uintptr(msg), 0)
			sw.Once()
			continue
		}

		if q.reader.waiters.Load() != 0 {
			q.reader.wake()
		}
		return nil
	}
}

// TryRecv claims and returns the oldest message (non-blocking).
// Returns ErrClosed if the queue is closed (even while occupied slots
// remain) and ErrWouldBlock if the queue is empty.
func (q *MPMCPtr) TryRecv() (unsafe.Pointer, error) {
	sw := spin.Wait{}
	for {
		word := q.adm.LoadAcquire()
		if q.closed.LoadAcquire() {
			return nil, ErrClosed
		}
		head, occupancy := unpackAdm(word)
		if occupancy == 0 {
			return nil, ErrWouldBlock
		}

		// Claim the head slot by advancing the admission word.
		if !q.adm.CompareAndSwapAcqRel(word, packAdm((head+1)&q.mask, occupancy-1)) {
			sw.Once()
			continue
		}

		// The claimed slot was counted in occupancy, so its publication
		// happened before our claim. The load loop is defense against a
		// reordered observer, not an expected state.
		for {
			val := q.slots[head].LoadAcquire()
			if val == 0 {
				sw.Once()
				continue
			}
			if q.slots[head].CompareAndSwapAcqRel(val, 0) {
				if q.writer.waiters.Load() != 0 {
					q.writer.wake()
				}
				return *(*unsafe.Pointer)(unsafe.Pointer(&val)), nil
			}
		}
	}
}

// Send publishes msg, parking while the queue is full.
// Returns nil on success, ErrNilMessage for nil msg, ErrClosed once the
// queue is closed.
func (q *MPMCPtr) Send(msg unsafe.Pointer) error {
	err := q.TrySend(msg)
	for err == ErrWouldBlock {
		q.writer.waiters.Add(1)
		q.writer.mu.Lock()

		// Re-check under the gate lock: a consumer that succeeded after
		// our first attempt takes this lock to wake us, so a free slot
		// cannot slip by unobserved.
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
func (q *MPMCPtr) Recv() (unsafe.Pointer, error) {
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
// receiver. Closure is monotonic and Close is idempotent.
//
// Close does not drain: occupied slots keep their references, and any
// subsequent receive fails with ErrClosed. Callers that need the
// in-flight messages must drain before closing.
//
// Close returns only after all goroutines parked in Send/Recv have left
// their gates.
func (q *MPMCPtr) Close() {
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
func (q *MPMCPtr) Closed() bool {
	return q.closed.LoadAcquire()
}

// Cap returns the queue capacity.
func (q *MPMCPtr) Cap() int {
	return int(q.capacity)
}

// Len returns the occupancy at the instant the admission word was read.
// Under concurrency the value is a momentary snapshot.
func (q *MPMCPtr) Len() int {
	_, occupancy := unpackAdm(q.adm.LoadAcquire())
	return int(occupancy)
}

// MPMC is the statically typed facade over MPMCPtr.
//
// It transfers *T references without copying the payload; the zero-cost
// wrapper only constrains the message type. Embed a [Marker] in T for
// completion signalling.
type MPMC[T any] struct {
	q *MPMCPtr
}

// NewMPMC creates a new typed MPMC queue.
// Capacity rounds up to the next power of 2, with a floor of 2.
func NewMPMC[T any](capacity int) *MPMC[T] {
	return &MPMC[T]{q: NewMPMCPtr(capacity)}
}

// TrySend publishes msg (non-blocking).
func (q *MPMC[T]) TrySend(msg *T) error {
	return q.q.TrySend(unsafe.Pointer(msg))
}

// Send publishes msg, parking while the queue is full.
func (q *MPMC[T]) Send(msg *T) error {
	return q.q.Send(unsafe.Pointer(msg))
}

// TryRecv claims and returns the oldest message (non-blocking).
func (q *MPMC[T]) TryRecv() (*T, error) {
	msg, err := q.q.TryRecv()
	return (*T)(msg), err
}

// Recv claims and returns the oldest message, parking while empty.
func (q *MPMC[T]) Recv() (*T, error) {
	msg, err := q.q.Recv()
	return (*T)(msg), err
}

// Close marks the queue closed and releases every parked goroutine.
func (q *MPMC[T]) Close() { q.q.Close() }

// Closed reports whether Close has been called.
func (q *MPMC[T]) Closed() bool { return q.q.Closed() }

// Cap returns the queue capacity.
func (q *MPMC[T]) Cap() int { return q.q.Cap() }

// Len returns the momentary occupancy.
func (q *MPMC[T]) Len() int { return q.q.Len() }
