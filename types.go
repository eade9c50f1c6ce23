// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package imq

import "unsafe"

// Queue is the combined sender-receiver interface for a typed message
// queue.
//
// A Queue moves *T references between goroutines without copying the
// payload. TrySend and TryRecv never park and report ErrWouldBlock when
// the ring is full or empty; Send and Recv park until the opposite side
// makes room, or until Close releases them with ErrClosed.
//
// Example:
//
//	var q imq.Queue[Request] = imq.NewMPMC[Request](1024)
//
//	// Sender
//	req := &Request{...}
//	if err := q.Send(req); err != nil {
//	    // ErrClosed: queue shut down
//	}
//
//	// Receiver
//	req, err := q.Recv()
//	if err == nil {
//	    handle(req)
//	}
type Queue[T any] interface {
	Sender[T]
	Receiver[T]

	// Close marks the queue closed, releases every parked goroutine
	// and returns once they have all left. Idempotent.
	Close()
	// Closed reports whether Close has been called.
	Closed() bool
	// Cap returns the fixed ring capacity.
	Cap() int
	// Len returns the momentary occupancy in [0, Cap()].
	Len() int
}

// Sender is the sending half of a queue.
//
// The message is passed by reference and remains owned by the caller;
// the receiving side borrows it until it is consumed (and typically
// marked processed via an embedded [Marker]).
type Sender[T any] interface {
	// TrySend publishes msg without parking.
	// Returns nil, ErrWouldBlock (full), ErrClosed or ErrNilMessage.
	TrySend(msg *T) error
	// Send publishes msg, parking while the queue is full.
	// Returns nil, ErrClosed or ErrNilMessage.
	Send(msg *T) error
}

// Receiver is the receiving half of a queue.
type Receiver[T any] interface {
	// TryRecv claims the oldest message without parking.
	// Returns ErrWouldBlock (empty) or ErrClosed.
	TryRecv() (*T, error)
	// Recv claims the oldest message, parking while the queue is empty.
	// Returns ErrClosed once the queue is closed.
	Recv() (*T, error)
}

// QueuePtr is the untyped engine interface transferring unsafe.Pointer
// references. The typed [Queue] facades wrap it at zero cost; use it
// directly when one ring must carry heterogeneous message types.
type QueuePtr interface {
	SenderPtr
	ReceiverPtr

	// Close marks the queue closed, releases every parked goroutine
	// and returns once they have all left. Idempotent.
	Close()
	// Closed reports whether Close has been called.
	Closed() bool
	// Cap returns the fixed ring capacity.
	Cap() int
	// Len returns the momentary occupancy in [0, Cap()].
	Len() int
}

// SenderPtr is the sending half of a pointer queue.
type SenderPtr interface {
	// TrySend publishes msg without parking.
	TrySend(msg unsafe.Pointer) error
	// Send publishes msg, parking while the queue is full.
	Send(msg unsafe.Pointer) error
}

// ReceiverPtr is the receiving half of a pointer queue.
type ReceiverPtr interface {
	// TryRecv claims the oldest message without parking.
	TryRecv() (unsafe.Pointer, error)
	// Recv claims the oldest message, parking while the queue is empty.
	Recv() (unsafe.Pointer, error)
}
