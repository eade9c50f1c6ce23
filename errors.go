// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package imq

import (
	"errors"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates the operation cannot proceed immediately.
//
// For TrySend: the queue is full (backpressure)
// For TryRecv: the queue is empty (no data available)
//
// ErrWouldBlock is a control flow signal, not a failure. It is only
// returned by the non-blocking variants; Send and Recv park instead.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency.
//
// Example:
//
//	backoff := iox.Backoff{}
//	for {
//	    err := q.TrySend(msg)
//	    if err == nil {
//	        backoff.Reset()
//	        break
//	    }
//	    if imq.IsWouldBlock(err) {
//	        backoff.Wait()  // Adaptive backpressure
//	        continue
//	    }
//	    return err  // Closed or bad argument
//	}
var ErrWouldBlock = iox.ErrWouldBlock

// ErrClosed indicates the queue has been closed.
//
// Once Close has been observed, every send and every receive fails with
// ErrClosed, including receives while occupied slots remain. Close does
// not drain: payload lifetime is caller-managed, and a message still in
// flight stays owned by its sender.
var ErrClosed = errors.New("imq: queue closed")

// ErrNilMessage indicates an attempt to send the nil pointer.
//
// The nil reference is the empty-slot sentinel of the ring and cannot be
// transmitted as a message.
var ErrNilMessage = errors.New("imq: nil message")

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsClosed reports whether err indicates a closed queue.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Returns true for nil or ErrWouldBlock.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}
