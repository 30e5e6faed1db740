package routing

// WeightTable holds a node's decaying delivery-affinity estimate for every
// peer it has ever met. Weights live in [0,1]: Bump never decreases a
// weight, Decay never increases one, and entries that decay below the
// eviction threshold are removed (indistinguishable from weight 0).
//
// The table is not safe for concurrent use on its own; the owning Router
// serializes access.
type WeightTable struct {
	weights map[NodeID]float64

	increment    float64
	aging        float64
	destBoost    float64
	evictBelow   float64
	bump         BumpPolicy
	transitivity float64
}

func newWeightTable(cfg Config) *WeightTable {
	return &WeightTable{
		weights:      make(map[NodeID]float64),
		increment:    cfg.WeightIncrement,
		aging:        cfg.AgingFactor,
		destBoost:    cfg.DestBoostFactor,
		evictBelow:   cfg.EvictionThreshold,
		bump:         cfg.Bump,
		transitivity: cfg.TransitivityFactor,
	}
}

// Bump records positive evidence for peer. Under the destination-boost
// policy the increment is multiplied when the peer is itself the destination
// of a message the node currently holds. The result is capped at 1.0.
func (t *WeightTable) Bump(peer NodeID, isDestination bool) {
	inc := t.increment
	if t.bump == BumpDestinationBoost && isDestination {
		inc *= t.destBoost
	}
	w := t.weights[peer] + inc
	if w > 1.0 {
		w = 1.0
	}
	t.weights[peer] = w
}

// Decay ages every stored weight by the configured factor and evicts entries
// that fall below the threshold. It models time passing and must run exactly
// once per scheduling tick, regardless of how many contacts that tick saw.
func (t *WeightTable) Decay() {
	for peer, w := range t.weights {
		w *= t.aging
		if w < t.evictBelow {
			delete(t.weights, peer)
		} else {
			t.weights[peer] = w
		}
	}
}

// WeightFor returns the stored weight for peer, or 0 when none is recorded.
// A missing entry is never an error.
func (t *WeightTable) WeightFor(peer NodeID) float64 {
	return t.weights[peer]
}

// ApplyTransitivity folds an encountered peer's affinities into our own:
// for each destination d the peer knows with weight w, our weight becomes
// own + factor*w*(1-own). The snapshot is a read-only copy of the peer's
// exposed table; transitivity lets affinity propagate without waiting for
// direct contact.
func (t *WeightTable) ApplyTransitivity(self, peer NodeID, snap map[NodeID]float64) {
	if t.transitivity <= 0 {
		return
	}
	for dest, w := range snap {
		if dest == self || dest == peer {
			continue
		}
		own := t.weights[dest]
		nw := own + t.transitivity*w*(1-own)
		if nw > 1.0 {
			nw = 1.0
		}
		t.weights[dest] = nw
	}
}

// Snapshot returns a copy of the table for read-only cross-node use.
func (t *WeightTable) Snapshot() map[NodeID]float64 {
	out := make(map[NodeID]float64, len(t.weights))
	for peer, w := range t.weights {
		out[peer] = w
	}
	return out
}

// Len reports how many peers currently have a live entry.
func (t *WeightTable) Len() int {
	return len(t.weights)
}
