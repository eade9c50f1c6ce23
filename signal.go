// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package imq

import (
	"sync"

	"code.hybscloud.com/atomix"
)

// gate is the park/wake half of a signal: a mutex, a condition variable
// and a count of currently parked goroutines.
//
// The waiter count is written by the parking goroutine around its park
// window and read without the lock by the opposite side (advisory wakeup
// after a successful operation) and by Close (drain loop). Both readers
// tolerate staleness: a missed wakeup is closed by the double-check under
// the gate lock, and Close re-broadcasts until the count reaches zero.
type gate struct {
	mu      sync.Mutex
	cond    *sync.Cond
	waiters atomix.Int32
}

func (g *gate) init() {
	g.cond = sync.NewCond(&g.mu)
}

// wake wakes one parked goroutine, if any.
func (g *gate) wake() {
	g.mu.Lock()
	g.cond.Signal()
	g.mu.Unlock()
}

// broadcast wakes every parked goroutine.
func (g *gate) broadcast() {
	g.mu.Lock()
	g.cond.Broadcast()
	g.mu.Unlock()
}

// Signal is a one-to-many counting notification.
//
// Fire increments a monotonic count and wakes every goroutine parked in
// Wait. Wait parks while the count is zero. The count is never consumed
// implicitly: Wait returns as soon as the count is non-zero and leaves it
// in place, so a signal fired N times stays observable until Clear.
//
// A Signal is typically shared between a sender and a receiver through a
// [Marker] embedded in the message: the receiver calls
// [Marker.MarkProcessed] which fires the signal, and the sender either
// parks in Wait or polls Count.
//
// Queues embed their own private gates for reader/writer parking; those
// are never exposed. Construct a Signal per request (or per batch) and
// attach it via the marker.
//
// There is nothing to release: an idle Signal is reclaimed by the garbage
// collector once no goroutine is parked in Wait.
type Signal struct {
	gate
	count atomix.Uint64
}

// NewSignal creates a Signal with a zero count and no waiters.
func NewSignal() *Signal {
	s := &Signal{}
	s.gate.init()
	return s
}

// Wait parks the calling goroutine until the signal count is non-zero.
//
// If the count is already non-zero, Wait returns immediately. Spurious
// wakeups re-check the count and park again. Wait does not clear the
// count; call Clear for edge-triggered semantics.
func (s *Signal) Wait() {
	s.mu.Lock()
	for s.count.LoadRelaxed() == 0 {
		s.waiters.Add(1)
		s.cond.Wait()
		s.waiters.Add(-1)
	}
	s.mu.Unlock()
}

// Fire increments the signal count by one and wakes all parked waiters.
func (s *Signal) Fire() {
	s.mu.Lock()
	s.count.AddAcqRel(1)
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Count returns the current signal count: the number of Fire calls since
// construction or the last Clear.
func (s *Signal) Count() uint64 {
	s.mu.Lock()
	c := s.count.LoadRelaxed()
	s.mu.Unlock()
	return c
}

// Clear resets the signal count to zero and returns the prior value.
//
// Two successive Clear calls with no intervening Fire return zero on the
// second call.
func (s *Signal) Clear() uint64 {
	s.mu.Lock()
	prev := s.count.LoadRelaxed()
	s.count.StoreRelaxed(0)
	s.mu.Unlock()
	return prev
}
