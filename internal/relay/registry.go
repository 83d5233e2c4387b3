package relay

import "sync"

// Registry is the process-wide path -> Rendezvous map (spec §4.4). The
// mutex guards only map lookup/insert/delete; all per-path state lives
// behind each Rendezvous's own mutex, so Registry never blocks on a read
// or write to a socket (spec §5).
type Registry struct {
	mu      sync.Mutex
	records map[Path]*Rendezvous
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[Path]*Rendezvous)}
}

// AttachSender attaches s to path, creating a fresh Rendezvous if the path
// is unoccupied. Returns the Rendezvous the sender joined, or an error
// from spec §7 (NMismatch, SenderConflict) if it could not be attached.
func (reg *Registry) AttachSender(path Path, n int, s *Sender) (*Rendezvous, error) {
	for {
		rv := reg.getOrCreate(path, n)
		err := rv.attachSender(n, s)
		if err == errRendezvousClosed {
			reg.remove(path, rv)
			continue
		}
		if err != nil {
			return nil, err
		}
		return rv, nil
	}
}

// AttachReceiver attaches recv to path, creating a fresh Rendezvous if the
// path is unoccupied. Returns an error from spec §7 (NMismatch,
// ReceiverOverflow) if it could not be attached.
func (reg *Registry) AttachReceiver(path Path, n int, recv *Receiver) (*Rendezvous, error) {
	for {
		rv := reg.getOrCreate(path, n)
		err := rv.attachReceiver(n, recv)
		if err == errRendezvousClosed {
			reg.remove(path, rv)
			continue
		}
		if err != nil {
			return nil, err
		}
		return rv, nil
	}
}

// getOrCreate returns the existing record for path, or installs and
// returns a new one. The new record's n only takes effect if it becomes
// the path's first occupant; attachSender/attachReceiver still validate n
// against whatever record actually ends up in the map.
func (reg *Registry) getOrCreate(path Path, n int) *Rendezvous {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if rv, ok := reg.records[path]; ok {
		return rv
	}

	rv := newRendezvous(path, n, nil)
	rv.onEmpty = func() { reg.remove(path, rv) }
	reg.records[path] = rv
	return rv
}

// remove deletes path's record from the map. If want is non-nil, the
// delete only happens when the stored record is identically want, so a
// stale callback from an already-replaced record can't evict its
// successor (spec I4 "deletes the record from the Registry before
// releasing the path name").
func (reg *Registry) remove(path Path, want *Rendezvous) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	rv, ok := reg.records[path]
	if !ok {
		return
	}
	if want != nil && rv != want {
		return
	}
	delete(reg.records, path)
}

// Len reports the number of paths with a live Rendezvous; used for the
// active-rendezvous metrics gauge.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.records)
}
