// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package imq provides bounded, pointer-passing message queues for
// moving work between goroutines in the same address space.
//
// A sender transfers only a reference to a payload it owns; the receiver
// processes the payload in place and optionally notifies the sender of
// completion through an embedded [Marker] and a [Signal]. The payload is
// never copied, allocated or freed by the queue.
//
// Two engines implement the same send/receive contract:
//
//   - MPMC: any number of concurrent senders and receivers
//   - SPSC: one sender and one receiver, faster because it shares less state
//
// # Quick Start
//
// Direct constructors:
//
//	q := imq.NewMPMC[Request](4096)
//	q := imq.NewSPSC[Event](1024)
//
// Builder API selects the engine from declared constraints:
//
//	q := imq.Build[Event](imq.New(1024).SingleProducer().SingleConsumer()) // → SPSC
//	q := imq.Build[Event](imq.New(1024))                                   // → MPMC
//
// # Basic Usage
//
// Every queue offers non-blocking and blocking forms of both operations:
//
//	q := imq.NewMPMC[Job](1024)
//
//	// Non-blocking send
//	if err := q.TrySend(job); imq.IsWouldBlock(err) {
//	    // Queue full - handle backpressure
//	}
//
//	// Blocking receive: parks until a message or Close
//	job, err := q.Recv()
//	if imq.IsClosed(err) {
//	    return // shut down
//	}
//
// TrySend and TryRecv never park; they retry internally only against
// transient CAS contention. Send and Recv park on private per-queue
// gates and are released by the opposite side's success or by Close.
//
// # Completion Round Trip
//
// Embed a [Marker] as the first field of a message to get a completion
// handshake without any extra allocation:
//
//	type AddMsg struct {
//	    imq.Marker
//	    A, B int // in
//	    Sum  int // out
//	}
//
//	// Sender
//	sig := imq.NewSignal()
//	msg := &AddMsg{A: 1, B: 2}
//	msg.Init(sig)
//	q.Send(msg)
//	sig.Wait()        // parks until the receiver marks the message
//	use(msg.Sum)      // safe: receiver is done with msg
//
//	// Receiver
//	msg, _ := q.Recv()
//	msg.Sum = msg.A + msg.B
//	msg.MarkProcessed() // fires sig
//
// One Signal may serve a whole batch; poll [Signal.Count] until it
// reaches the batch size, then [Signal.Clear] for the next round.
//
// # Close Semantics
//
// Close marks the queue closed (monotonic, idempotent), wakes every
// parked sender and receiver, and returns once they have all left. After
// Close, every send and every receive fails with [ErrClosed] — including
// receives while messages remain in the ring. The queue never drains on
// close: payload lifetime is the caller's, so drain with TryRecv before
// closing if the in-flight messages matter.
//
// # Ownership
//
// A message reference is on loan from the sender to the receiver from
// publication until consumption. The ring stores the reference as a
// machine word, invisible to the garbage collector: keep the payload
// reachable on the sending side until the receiver hands it back
// (MarkProcessed, or any protocol of your own). nil is the empty-slot
// sentinel and is rejected with [ErrNilMessage].
//
// # Error Handling
//
// [ErrWouldBlock] is sourced from [code.hybscloud.com/iox] for ecosystem
// consistency; [ErrClosed] and [ErrNilMessage] are package sentinels.
// Compare with errors.Is or the helpers:
//
//	imq.IsWouldBlock(err) // full/empty, retry later
//	imq.IsClosed(err)     // queue shut down
//
// # Race Detection
//
// Go's race detector cannot observe happens-before established through
// atomic memory orderings on separate variables. The lock-free engine
// paths are correct but may produce false positives under -race; tests
// incompatible with race detection skip themselves when [RaceEnabled] is
// true, and the examples are excluded via //go:build !race.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for atomic primitives
// with explicit memory ordering, [code.hybscloud.com/spin] for CPU pause
// instructions in retry loops, and [code.hybscloud.com/iox] for semantic
// errors.
package imq
