package relay

import (
	"errors"
	"io"
	"sync"
)

// errRendezvousClosed is returned by attachSender/attachReceiver when the
// *Rendezvous pointer the caller holds has already finished (Streaming
// completed, or every pending participant detached) by the time the
// caller reaches the front of r.mu. The Registry responds by discarding
// its mapping for that stale record, if still present, and retrying
// against a fresh one (spec I4, P6: a path must be immediately reusable).
var errRendezvousClosed = errors.New("rendezvous already closed")

// Rendezvous is the per-path record described in spec §3/§4.5: at most one
// Sender, up to n Receivers, and the state machine that fires the
// multicast once a complete set has arrived.
//
// All field access is serialized by mu; the engine never holds mu across
// a blocking read/write (spec §5).
type Rendezvous struct {
	path Path

	mu        sync.Mutex
	n         int
	sender    *Sender
	receivers []*Receiver
	state     State

	// onEmpty is invoked (by whichever goroutine observes the record
	// become empty) so the Registry can drop the map entry. It is set
	// by the Registry at construction time.
	onEmpty func()
}

func newRendezvous(path Path, n int, onEmpty func()) *Rendezvous {
	return &Rendezvous{path: path, n: n, state: Gathering, onEmpty: onEmpty}
}

// attachSender installs s as the path's sender. Caller must not hold r.mu.
// Returns ErrNMismatch or ErrSenderConflict without mutating r on failure
// (spec I5, I6, §7 propagation policy).
func (r *Rendezvous) attachSender(n int, s *Sender) error {
	r.mu.Lock()
	if r.state == Closing || r.state == Empty {
		r.mu.Unlock()
		return errRendezvousClosed
	}
	if r.n != n {
		r.mu.Unlock()
		return ErrNMismatch
	}
	if r.sender != nil {
		r.mu.Unlock()
		return ErrSenderConflict
	}
	r.sender = s
	ready := r.maybeStartStreamingLocked()
	r.mu.Unlock()

	if ready {
		go r.multicast()
	}
	return nil
}

// attachReceiver appends recv to the path's receiver list, or rejects it
// per I5/I2. Returns ErrNMismatch or ErrReceiverOverflow on failure.
func (r *Rendezvous) attachReceiver(n int, recv *Receiver) error {
	r.mu.Lock()
	if r.state == Closing || r.state == Empty {
		r.mu.Unlock()
		return errRendezvousClosed
	}
	if r.n != n {
		r.mu.Unlock()
		return ErrNMismatch
	}
	if len(r.receivers) >= r.n {
		r.mu.Unlock()
		return ErrReceiverOverflow
	}
	r.receivers = append(r.receivers, recv)
	ready := r.maybeStartStreamingLocked()
	r.mu.Unlock()

	if ready {
		go r.multicast()
	}
	return nil
}

// maybeStartStreamingLocked transitions Gathering -> Streaming once the
// sender and all n receivers are present (spec I3). Caller must hold r.mu.
func (r *Rendezvous) maybeStartStreamingLocked() bool {
	if r.state == Gathering && r.sender != nil && len(r.receivers) == r.n {
		r.state = Streaming
		for _, recv := range r.receivers {
			close(recv.ready)
		}
		return true
	}
	return false
}

// Sender returns the path's sender once streaming has begun. Callers must
// only call this after observing the corresponding Receiver's ready
// channel close, which happens-after r.sender is set.
func (r *Rendezvous) Sender() *Sender {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sender
}

// detachSender removes an un-streamed sender that aborted before Streaming
// began (spec §4.6). It is a no-op once streaming has started.
func (r *Rendezvous) detachSender(s *Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Gathering || r.sender != s {
		return
	}
	r.sender = nil
	r.destroyIfEmptyLocked()
}

// detachReceiver removes an un-streamed receiver that aborted before
// Streaming began (spec §4.6, §8 P7).
func (r *Rendezvous) detachReceiver(recv *Receiver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Gathering {
		return
	}
	for i, existing := range r.receivers {
		if existing == recv {
			r.receivers = append(r.receivers[:i], r.receivers[i+1:]...)
			break
		}
	}
	r.destroyIfEmptyLocked()
}

// destroyIfEmptyLocked releases the path back to the Registry once no
// participant remains pending. Caller must hold r.mu.
func (r *Rendezvous) destroyIfEmptyLocked() {
	if r.sender == nil && len(r.receivers) == 0 {
		r.state = Empty
		if r.onEmpty != nil {
			r.onEmpty()
		}
	}
}

// multicast streams the sender's body to every receiver with backpressure,
// then tears the rendezvous down. It runs once streaming begins and is
// never invoked twice for the same record (maybeStartStreamingLocked only
// returns true on the single Gathering -> Streaming transition).
func (r *Rendezvous) multicast() {
	r.mu.Lock()
	sender := r.sender
	receivers := make([]*Receiver, len(r.receivers))
	copy(receivers, r.receivers)
	r.mu.Unlock()

	// A receiver's own handler goroutine writes that receiver's response
	// headers after observing recv.ready close, concurrently with this
	// goroutine. Waiting for headersWritten here guarantees the
	// happens-before ordering spec §5 requires (header send before first
	// body byte) instead of merely hoping the two goroutines race in the
	// right order.
	for _, recv := range receivers {
		<-recv.headersWritten
	}

	writers := make([]io.Writer, len(receivers))
	for i, recv := range receivers {
		if recv.DiscardBody {
			writers[i] = io.Discard
			continue
		}
		writers[i] = &flushingWriter{w: recv.Writer, f: recv.Flusher}
	}

	// io.MultiWriter writes each chunk to every destination in turn
	// before the next Read from sender.Body, which is the backpressure
	// invariant in spec §4.5/§9: the slowest receiver paces the read,
	// and nothing buffers beyond the current chunk.
	mw := io.MultiWriter(writers...)
	n, copyErr := io.Copy(mw, sender.Body)
	sender.bytesCopied = n

	// state and the registry removal are flipped under the same lock
	// acquisition: otherwise a concurrent attach could observe this
	// record still mapped in the Registry after it has already gone
	// Closing, and wrongly join a rendezvous that is already finishing
	// (spec I4).
	r.mu.Lock()
	r.state = Closing
	if r.onEmpty != nil {
		r.onEmpty()
	}
	r.mu.Unlock()

	for _, recv := range receivers {
		close(recv.done)
	}
	if copyErr != nil {
		close(sender.failed)
	} else {
		close(sender.done)
	}
}

// flushingWriter wraps a receiver's response writer so each chunk reaches
// the peer immediately instead of buffering in the transport.
type flushingWriter struct {
	w io.Writer
	f interface{ Flush() }
}

func (fw *flushingWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if err == nil && fw.f != nil {
		fw.f.Flush()
	}
	return n, err
}
