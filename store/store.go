// Package store persists a Class-A device's join and frame-counter state
// across restarts.
package store

import "github.com/tinylora/classa/cryptocore"

// Session is the durable record a completed join or ABP activation
// produces.
type Session struct {
	Magic       bool
	DevAddr     uint32
	DevNonce    uint16
	FCntUp      uint32
	Rev11       bool
	AppSKey     cryptocore.Key
	FNwkSIntKey cryptocore.Key
	SNwkSIntKey cryptocore.Key
	NwkSEncKey  cryptocore.Key
}

// Store is the typed persistence facade a Device relies on. Implementations
// need not be transactional, but callers completing a join must call the
// setters in the mandated order: SaveKeys, then SetDevAddr, then
// ResetFCntUp, then CommitMagic — so a restart between any two steps never
// observes a session that looks joined but is only partially written.
type Store interface {
	// Load reads the full persisted session. A store with no prior join
	// returns a zero Session with Magic false and a nil error.
	Load() (Session, error)

	// SaveKeys writes the four session keys and the revision flag.
	SaveKeys(rev11 bool, keys cryptocore.SessionKeys) error

	// SetDevAddr writes the device address assigned by the join.
	SetDevAddr(addr uint32) error

	// ResetFCntUp zeroes the persisted uplink frame counter.
	ResetFCntUp() error

	// SetFCntUp persists the current uplink frame counter; called before
	// every uplink transmission, never after.
	SetFCntUp(v uint32) error

	// IncrementDevNonce persists devNonce+1 and returns the new value; it
	// is called before devNonce is used in a Join-Request, so a device
	// that crashes mid-join never reuses a nonce.
	IncrementDevNonce() (uint16, error)

	// CommitMagic marks the session as fully joined; it must be the last
	// write of a join sequence.
	CommitMagic() error

	// Wipe destroys the persisted session, returning the device to an
	// unjoined state.
	Wipe() error
}
