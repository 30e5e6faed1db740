package routing

// NodeID identifies a simulated host. It is opaque, comparable and stable;
// it is used as a map key everywhere and never mutated.
type NodeID string

// Message is a routable unit. Identity fields (ID, From, To, Size, Created,
// TTL) are fixed at creation. Quota is the only routing metadata a relay may
// change: it is the number of outstanding copies this replica is still
// allowed to spawn, and it only ever decreases after creation.
type Message struct {
	ID      string
	From    NodeID
	To      NodeID
	Size    int
	Created float64 // simulated seconds
	TTL     float64 // simulated seconds

	Quota int
	Hops  int
}

// Expired reports whether the message's lifetime has elapsed at now.
func (m *Message) Expired(now float64) bool {
	return now >= m.Created+m.TTL
}

// RemainingTTL returns the simulated seconds of life left, never negative.
func (m *Message) RemainingTTL(now float64) float64 {
	left := m.Created + m.TTL - now
	if left < 0 {
		return 0
	}
	return left
}

// ExpiresAt returns the absolute simulated time of TTL expiry.
func (m *Message) ExpiresAt() float64 {
	return m.Created + m.TTL
}

// copyWithQuota builds the replica handed to a peer. Identity is shared with
// the original; only the carried quota differs. Hop count is bumped on the
// receiving side, not here.
func (m *Message) copyWithQuota(quota int) *Message {
	c := *m
	c.Quota = quota
	return &c
}
