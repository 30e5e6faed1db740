package routing

import "errors"

// Transfer rejection reasons. A rejected transfer is always recoverable: the
// sender's quota stays untouched and the message remains eligible on a later
// tick or with a different peer.
var (
	// ErrDuplicate means the peer already holds (or has already received)
	// the message id.
	ErrDuplicate = errors.New("peer already holds message")
	// ErrPeerBusy means the peer cannot start another transfer this tick.
	ErrPeerBusy = errors.New("peer is mid-transfer")
	// ErrBufferFull means the copy does not fit in the peer's buffer.
	ErrBufferFull = errors.New("peer buffer full")
)

// Transport is the byte-copy primitive provided by the host environment.
// A nil return means the transfer was accepted and the copy is logically
// held by the peer from the next tick onward. Any error means the transfer
// did not start and nothing on either side may have been mutated.
type Transport interface {
	StartTransfer(copy *Message, to NodeID) error
}

// PeerView is the narrow read-only window one node exposes to peers it is
// currently in contact with. All cross-node queries (affinity comparison,
// transitivity, buffer occupancy) go through it; a node never touches
// another node's state directly. Calls are snapshot reads at the instant
// they are made.
type PeerView interface {
	ID() NodeID
	WeightFor(dest NodeID) float64
	BufferOccupancy() (free, total int)
	HasMessage(id string) bool
	WeightSnapshot() map[NodeID]float64
}

// BufferStore is the message admission/eviction storage a Router routes
// from. It is owned by the host environment; the engine only observes TTL
// expiry as "this id is no longer present".
type BufferStore interface {
	Admit(m *Message, now float64) error
	Get(id string) (*Message, bool)
	Has(id string) bool
	Remove(id string) bool
	// Messages returns the held messages ordered by creation time, oldest
	// first. Callers may mutate the returned messages' quota but not the
	// slice's membership.
	Messages() []*Message
	Free() int
	Total() int
}
