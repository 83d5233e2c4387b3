package relay

import "errors"

// Errors returned by Registry.AttachSender / Registry.AttachReceiver. Each
// corresponds to a row of the error taxonomy in spec §7; all surface as
// HTTP 400 and never mutate a Rendezvous (spec §7 "Propagation policy").
var (
	// ErrSenderConflict is returned when a second sender attaches to a
	// path that already has one.
	ErrSenderConflict = errors.New("another sender is already connecting to this path")

	// ErrReceiverOverflow is returned when a receiver attaches to a path
	// whose receiver slots (n) are already full.
	ErrReceiverOverflow = errors.New("too many receivers are connecting to this path")

	// ErrNMismatch is returned when an arriving participant declares an
	// n that conflicts with the path's already-established n.
	ErrNMismatch = errors.New("n mismatch with existing rendezvous on this path")
)
