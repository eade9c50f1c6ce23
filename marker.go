// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package imq

import "code.hybscloud.com/atomix"

// Marker is a completion header embeddable in a user message.
//
// The sender initializes the marker (optionally attaching a [Signal]),
// transmits the enclosing message by reference, and observes the
// processed flag after the receiver is done. The receiver calls
// MarkProcessed exactly when it will no longer touch the message; from
// that point the sender owns the payload again.
//
// Embed it as the first field of the message struct:
//
//	type EchoMsg struct {
//	    imq.Marker
//	    Text string // in
//	    Err  int    // out
//	}
//
//	// sender
//	sig := imq.NewSignal()
//	msg := &EchoMsg{Text: "Hello Server"}
//	msg.Init(sig)
//	q.Send(msg)
//	sig.Wait()
//	// msg.Err is now valid, msg is owned by the sender again
//
//	// receiver
//	msg.Err = 0
//	msg.MarkProcessed()
type Marker struct {
	signal    *Signal
	processed atomix.Bool
}

// Init prepares the marker for one round trip. signal may be nil if the
// sender does not want a completion notification; it can still poll
// IsProcessed.
func (m *Marker) Init(signal *Signal) {
	m.signal = signal
	m.processed.Store(false)
}

// IsProcessed reports whether the receiver has marked the message done.
// Once true it stays true until the next Init.
func (m *Marker) IsProcessed() bool {
	return m.processed.LoadAcquire()
}

// MarkProcessed sets the processed flag and, if a signal is attached,
// fires it. The flag only moves forward; calling twice leaves it set and
// fires the signal again.
func (m *Marker) MarkProcessed() {
	m.processed.StoreRelease(true)
	if m.signal != nil {
		m.signal.Fire()
	}
}
