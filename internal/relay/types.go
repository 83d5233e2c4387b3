// Package relay implements the rendezvous engine: a per-path state machine
// that pairs one sender with N receivers and multicasts the sender's body
// to all of them, live, with no persistence.
package relay

import "net/http"

// Path is an opaque, percent-decoded URL path used verbatim as a rendezvous
// key. Any string not in the reserved set is a valid Path.
type Path string

// DefaultReceiverCount is used when the "n" query parameter is absent.
const DefaultReceiverCount = 1

// ParticipantKind is a label type distinguishing a Sender from a Receiver.
// Nothing in the repository reads it; no rendezvous behavior depends
// on it beyond the Sender/Receiver split already carried by Rendezvous
// itself.
type ParticipantKind string

const (
	SenderKind   ParticipantKind = "sender"
	ReceiverKind ParticipantKind = "receiver"
)

// State is one of the Rendezvous lifecycle states (spec §4.5).
type State int

const (
	Empty State = iota
	Gathering
	Streaming
	Closing
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Gathering:
		return "gathering"
	case Streaming:
		return "streaming"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

// Sender is the single participant posting a body to a path.
type Sender struct {
	Headers http.Header
	Body    PeekedBody

	// done is closed once the sender's body has been fully relayed to
	// every receiver: the handler should respond 200.
	done chan struct{}

	// failed is closed if the stream aborted mid-transfer (sender or a
	// receiver disconnected): the handler should terminate the
	// connection rather than write a status line (spec §7).
	failed chan struct{}

	// bytesCopied is set by the engine before done or failed is closed,
	// so the handler can report it to metrics without a data race.
	bytesCopied int64
}

// Receiver is one of up to n participants reading a path's stream.
type Receiver struct {
	Writer      http.ResponseWriter
	Flusher     http.Flusher
	DiscardBody bool

	// ready is closed once this receiver's response headers should be
	// written, which happens as soon as the rendezvous enters Streaming
	// (spec §4.5 "Receiver response start").
	ready chan struct{}

	// headersWritten is closed by the handler once it has actually
	// written this receiver's response headers. The engine waits for it
	// before writing any body bytes, so a body write can never race
	// ahead of its own header write on the shared ResponseWriter.
	headersWritten chan struct{}

	// done is closed once the engine is finished writing to this
	// receiver, successfully or not; the handler returns once it fires.
	done chan struct{}
}

// PeekedBody is the subset of a sender's request body the engine reads
// from: the raw body, or the first part of a multipart/form-data body
// after unwrapping (spec §4.3).
type PeekedBody interface {
	Read(p []byte) (int, error)
}
