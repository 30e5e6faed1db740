package routing

// forwardOutcome reports what a single (message, peer) evaluation did.
type forwardOutcome int

const (
	// outcomeNone: nothing happened; the message stays as it was.
	outcomeNone forwardOutcome = iota
	// outcomeDelivered: the original was handed to its destination.
	outcomeDelivered
	// outcomeSplit: the quota was split and a replica handed to the peer.
	outcomeSplit
	// outcomeHandover: ownership of the last copy moved to the peer.
	outcomeHandover
)

// tryForward runs the per-(message, peer) decision chain, in order:
// direct-delivery check, quota-exhaustion guard, affinity comparison,
// binary split. The quota split is committed only after the transport
// confirms the transfer started; a rejection leaves the message untouched
// and eligible for retry.
//
// Caller holds r.mu.
func (r *Router) tryForward(m *Message, peer PeerView) forwardOutcome {
	peerID := peer.ID()
	if peerID == r.id {
		return outcomeNone
	}
	if peer.HasMessage(m.ID) {
		return outcomeNone
	}

	// Direct delivery: hand the original to the destination. The transfer
	// is final; our copy does not need to survive delivery.
	if peerID == m.To {
		if err := r.transport.StartTransfer(m.copyWithQuota(m.Quota), peerID); err != nil {
			return outcomeNone
		}
		r.buf.Remove(m.ID)
		r.estimator.ConsumeTransmit()
		return outcomeDelivered
	}

	// Quota exhaustion: the last copy is in hold state. Under the strict
	// policy it stays put; under final-handover the single copy may move
	// (not duplicate) to a strictly better-placed peer.
	if m.Quota <= 1 {
		if r.cfg.Hold != HoldHandover {
			return outcomeNone
		}
		if peer.WeightFor(m.To) <= r.weights.WeightFor(m.To) {
			return outcomeNone
		}
		if err := r.transport.StartTransfer(m.copyWithQuota(1), peerID); err != nil {
			return outcomeNone
		}
		r.buf.Remove(m.ID)
		r.estimator.ConsumeTransmit()
		return outcomeHandover
	}

	// Greedy local gradient: replicate only toward a peer whose affinity for
	// the destination is strictly greater. Ties favor the holder.
	if peer.WeightFor(m.To) <= r.weights.WeightFor(m.To) {
		return outcomeNone
	}

	given := m.Quota / 2
	if r.cfg.Rounding == SplitCeil {
		given = (m.Quota + 1) / 2
	}
	kept := m.Quota - given
	if err := r.transport.StartTransfer(m.copyWithQuota(given), peerID); err != nil {
		return outcomeNone
	}
	m.Quota = kept
	r.estimator.ConsumeTransmit()
	return outcomeSplit
}
