// Package contract holds the jukebox ledger logic as a pure state-transition
// function. It performs no I/O: the host (see internal/ledger) loads a State,
// calls Apply, and persists the result together with the payment transfers
// inside one atomic transaction.
package contract

// Address identifies an account on the ledger (owner, artist or payer).
type Address string

// TrackEntry is one row of the artist registry.
type TrackEntry struct {
	Title  string  `json:"title"`
	Artist Address `json:"artist"`
}

// State is the single shared jukebox object.
type State struct {
	Owner        Address      `json:"owner"`
	Fee          uint64       `json:"fee"`
	LastPayer    Address      `json:"last_payer"`
	CurrentTrack string       `json:"current_track"`
	Registry     []TrackEntry `json:"registry"`
	// Version counts committed track changes and registry edits.
	Version uint64 `json:"version"`
}

// Genesis builds the state created once at deployment.
func Genesis(owner Address, fee uint64, placeholder string, seed []TrackEntry) State {
	registry := make([]TrackEntry, len(seed))
	copy(registry, seed)
	return State{
		Owner:        owner,
		Fee:          fee,
		CurrentTrack: placeholder,
		Registry:     registry,
	}
}

// Clone returns a deep copy so callers can never alias the registry.
func (s State) Clone() State {
	out := s
	out.Registry = make([]TrackEntry, len(s.Registry))
	copy(out.Registry, s.Registry)
	return out
}

// Lookup returns the first registry entry whose title matches exactly.
func (s State) Lookup(title string) (TrackEntry, bool) {
	for _, entry := range s.Registry {
		if entry.Title == title {
			return entry, true
		}
	}
	return TrackEntry{}, false
}
