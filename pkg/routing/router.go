// Package routing implements an adaptive replication routing engine for
// delay-tolerant networks. Nodes that meet intermittently decide, with local
// knowledge only, how many copies of a message to create (the EMRT quota
// formula over encounter, buffer, TTL and energy signals) and to which
// encountered peers to hand them (greedy affinity-gradient forwarding with
// binary spray splitting).
//
// The engine owns no clock, no transport and no mobility model: a host
// environment drives it through the lifecycle hooks (OnContactUp,
// OnContactDown, OnTick, OnMessageCreate, OnMessageReceived), always passing
// simulated time explicitly, and provides the buffer store and transfer
// primitive at construction.
package routing

import (
	"fmt"
	"sort"
	"sync"
)

// Router is the per-node routing state: the encounter weight table, the
// replica quota estimator and the set of live contacts, composed over the
// host-provided buffer store and transport.
//
// All mutable state is exclusively owned by the Router and mutated only by
// its own hooks; peers read it through the PeerView accessors, which take
// the read lock. The host scheduler delivers events to one node at a time,
// so hook invocations on a single Router never race with each other.
type Router struct {
	mu sync.RWMutex

	id        NodeID
	cfg       Config
	weights   *WeightTable
	estimator *QuotaEstimator
	buf       BufferStore
	transport Transport

	contacts  map[NodeID]PeerView
	delivered map[string]struct{}
}

// Stats is a read-only view of the router's live signals, used by reports
// and tests.
type Stats struct {
	EncounterValue float64
	AvgBuffer      float64
	Energy         float64
	KnownPeers     int
	LiveContacts   int
}

// New builds a Router for node id at simulated time now. The buffer store
// and transport are host collaborators and must be non-nil.
func New(id NodeID, cfg Config, buf BufferStore, transport Transport, now float64) (*Router, error) {
	cfg = cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if buf == nil {
		return nil, fmt.Errorf("routing: nil buffer store")
	}
	if transport == nil {
		return nil, fmt.Errorf("routing: nil transport")
	}
	return &Router{
		id:        id,
		cfg:       cfg,
		weights:   newWeightTable(cfg),
		estimator: newQuotaEstimator(cfg, now),
		buf:       buf,
		transport: transport,
		contacts:  make(map[NodeID]PeerView),
		delivered: make(map[string]struct{}),
	}, nil
}

// ID returns the node identity this router belongs to.
func (r *Router) ID() NodeID { return r.id }

// OnContactUp records an encounter with peer: bumps the weight table,
// applies transitivity against the peer's exposed snapshot, and feeds the
// peer's buffer availability into the current statistics window. The peer
// stays in the live-contact set until OnContactDown.
//
// All reads of the peer happen before our own lock is taken, so the two
// sides of one contact may process it in either order.
func (r *Router) OnContactUp(peer PeerView, now float64) {
	if peer == nil || peer.ID() == r.id {
		return
	}
	free, total := peer.BufferOccupancy()
	ratio := 0.0
	if total > 0 {
		ratio = float64(free) / float64(total)
	}
	var snap map[NodeID]float64
	if r.cfg.TransitivityFactor > 0 {
		snap = peer.WeightSnapshot()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	isDest := false
	for _, m := range r.buf.Messages() {
		if m.To == peer.ID() {
			isDest = true
			break
		}
	}
	r.weights.Bump(peer.ID(), isDest)
	if snap != nil {
		r.weights.ApplyTransitivity(r.id, peer.ID(), snap)
	}
	r.estimator.RecordEncounter(ratio)
	r.contacts[peer.ID()] = peer
}

// OnContactDown removes peer from the live-contact set. Weight and window
// statistics only react to contact-up transitions.
func (r *Router) OnContactDown(peer NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.contacts, peer)
}

// OnTick advances the statistics windows, ages the weight table exactly once
// and runs one forwarding pass over (held message x connected peer). Whether
// aging happens before or after the pass is the configured decay order.
func (r *Router) OnTick(now float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.estimator.AdvanceWindow(now)
	if r.cfg.Decay == DecayFirst {
		r.weights.Decay()
		r.forwardPass(now)
	} else {
		r.forwardPass(now)
		r.weights.Decay()
	}
}

// forwardPass evaluates every held message against every connected peer,
// oldest messages first, peers in stable id order. Caller holds r.mu.
func (r *Router) forwardPass(now float64) {
	if len(r.contacts) == 0 {
		return
	}
	peers := make([]NodeID, 0, len(r.contacts))
	for id := range r.contacts {
		peers = append(peers, id)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })

	for _, m := range r.buf.Messages() {
		if m.Expired(now) {
			// Expiry removal belongs to the buffer manager; an expired
			// message just short-circuits every decision step.
			continue
		}
		for _, pid := range peers {
			switch r.tryForward(m, r.contacts[pid]) {
			case outcomeDelivered, outcomeHandover:
				// Our copy is gone; stop evaluating this message.
			default:
				continue
			}
			break
		}
	}
}

// OnMessageCreate assigns the initial replica quota to a message created at
// this node, admits it to the buffer and drains the creation energy cost.
// Only the creator ever runs the quota formula.
func (r *Router) OnMessageCreate(m *Message, now float64) (int, error) {
	if m == nil {
		return 0, fmt.Errorf("routing: nil message")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.RemainingTTL(now) <= 0 {
		return 0, fmt.Errorf("routing: message %s is already expired", m.ID)
	}
	r.estimator.AdvanceWindow(now)
	quota := r.estimator.CalculateReplicas(m.RemainingTTL(now))
	m.Quota = quota
	if err := r.buf.Admit(m, now); err != nil {
		return 0, fmt.Errorf("routing: admit %s: %w", m.ID, err)
	}
	r.estimator.ConsumeCreate()
	return quota, nil
}

// OnMessageReceived takes ownership of a copy handed over by a peer. The
// carried quota is inherited as-is (defaulting to 1 when a prior hop did not
// attach one); the quota formula is never re-run on received messages.
// A copy addressed to this node is consumed as delivered instead of
// being buffered.
func (r *Router) OnMessageReceived(m *Message, from NodeID, now float64) (int, error) {
	if m == nil {
		return 0, fmt.Errorf("routing: nil message")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.Quota < 1 {
		m.Quota = 1
	}
	m.Hops++
	if m.To == r.id {
		r.delivered[m.ID] = struct{}{}
		return m.Quota, nil
	}
	if r.buf.Has(m.ID) {
		return m.Quota, ErrDuplicate
	}
	if err := r.buf.Admit(m, now); err != nil {
		return m.Quota, fmt.Errorf("routing: admit %s: %w", m.ID, err)
	}
	return m.Quota, nil
}

// WeightFor is the read-only affinity accessor peers use during their own
// decision step.
func (r *Router) WeightFor(dest NodeID) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.weights.WeightFor(dest)
}

// WeightSnapshot returns a copy of the weight table for transitivity reads.
func (r *Router) WeightSnapshot() map[NodeID]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.weights.Snapshot()
}

// BufferOccupancy exposes the buffer's free and total capacity for the
// peer-side availability signal.
func (r *Router) BufferOccupancy() (free, total int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.buf.Free(), r.buf.Total()
}

// HasMessage reports whether this node holds the message id, or already
// consumed it as the destination. Peers use it to avoid duplicate hands-off.
func (r *Router) HasMessage(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.delivered[id]; ok {
		return true
	}
	return r.buf.Has(id)
}

// QuotaOf returns the current quota of a held message.
func (r *Router) QuotaOf(id string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.buf.Get(id)
	if !ok {
		return 0, false
	}
	return m.Quota, true
}

// Stats snapshots the live signals.
func (r *Router) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		EncounterValue: r.estimator.EncounterValue(),
		AvgBuffer:      r.estimator.AvgBuffer(),
		Energy:         r.estimator.Energy(),
		KnownPeers:     r.weights.Len(),
		LiveContacts:   len(r.contacts),
	}
}
