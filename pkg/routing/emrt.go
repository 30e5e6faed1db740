package routing

import "math"

// QuotaEstimator implements the Enhanced Message Replication Technique: it
// accumulates encounter and buffer statistics over fixed-length windows and
// derives the initial replica count for each newly created message from the
// smoothed signals.
//
// Signals:
//   - EV, the encounter value: exponentially smoothed encounters per window.
//   - Bavg, the moving average of encountered peers' buffer availability
//     (free/total, 0 = full, 1 = empty).
//   - energy, a monotonically non-increasing resource proxy in [0,100],
//     drained by message creation and by accepted transmissions.
//
// Unit normalization is fixed across the formula's three magnitude terms:
// buffer availability and energy enter as 0-100 percentages, remaining TTL
// enters in hours, EV enters as the raw smoothed per-window count. Changing
// one scale without the others inverts the formula's time/energy
// sensitivity, so all three are pinned here and nowhere else.
type QuotaEstimator struct {
	alpha        float64
	window       float64
	mInit        int
	maxReplicas  int
	createCost   float64
	transmitCost float64

	ev            float64
	cwc           int
	bavg          float64
	windowBufSum  float64
	windowBufSeen int
	nextWindowEnd float64
	energy        float64
}

func newQuotaEstimator(cfg Config, now float64) *QuotaEstimator {
	return &QuotaEstimator{
		alpha:         cfg.Alpha,
		window:        cfg.WindowInterval,
		mInit:         cfg.InitReplicas,
		maxReplicas:   cfg.InitReplicas * cfg.MaxReplicasFactor,
		createCost:    cfg.CreateEnergyCost,
		transmitCost:  cfg.TransmitEnergyCost,
		bavg:          0.5,
		nextWindowEnd: now + cfg.WindowInterval,
		energy:        100.0,
	}
}

// RecordEncounter is called once per contact-up event with the encountered
// peer's buffer-availability ratio in [0,1].
func (q *QuotaEstimator) RecordEncounter(bufferRatio float64) {
	if bufferRatio < 0 {
		bufferRatio = 0
	} else if bufferRatio > 1 {
		bufferRatio = 1
	}
	q.cwc++
	q.windowBufSum += bufferRatio
	q.windowBufSeen++
}

// AdvanceWindow closes every statistics window whose boundary has passed:
// EV <- alpha*CWC + (1-alpha)*EV, and, when the window saw at least one
// contact, Bavg <- alpha*windowAvg + (1-alpha)*Bavg. Idle windows still
// smooth EV toward zero, which is what ages the encounter rate.
func (q *QuotaEstimator) AdvanceWindow(now float64) {
	for now >= q.nextWindowEnd {
		q.ev = q.alpha*float64(q.cwc) + (1-q.alpha)*q.ev
		if q.windowBufSeen > 0 {
			avg := q.windowBufSum / float64(q.windowBufSeen)
			q.bavg = q.alpha*avg + (1-q.alpha)*q.bavg
		}
		q.cwc = 0
		q.windowBufSum = 0
		q.windowBufSeen = 0
		q.nextWindowEnd += q.window
	}
}

// CalculateReplicas evaluates the quota formula for a message with the given
// remaining TTL in simulated seconds. Only the creator of a message runs
// this; receivers inherit whatever quota arrived with the copy.
//
// quota = round(mInit * (EV + Bavg%) / max(TTLh + energy%, 1)), clamped to
// [1, mInit*maxFactor].
func (q *QuotaEstimator) CalculateReplicas(remainingTTL float64) int {
	ttlHours := remainingTTL / 3600.0
	if ttlHours < 0 {
		ttlHours = 0
	}
	numerator := q.ev + q.bavg*100.0
	denominator := ttlHours + q.energy
	if denominator < 1.0 {
		denominator = 1.0
	}
	quota := int(math.Round(float64(q.mInit) * numerator / denominator))
	if quota < 1 {
		quota = 1
	}
	if quota > q.maxReplicas {
		quota = q.maxReplicas
	}
	return quota
}

// ConsumeCreate drains the per-creation energy cost.
func (q *QuotaEstimator) ConsumeCreate() {
	q.drain(q.createCost)
}

// ConsumeTransmit drains the per-transmission energy cost.
func (q *QuotaEstimator) ConsumeTransmit() {
	q.drain(q.transmitCost)
}

func (q *QuotaEstimator) drain(cost float64) {
	q.energy -= cost
	if q.energy < 0 {
		q.energy = 0
	}
}

// EncounterValue returns the current smoothed encounter rate.
func (q *QuotaEstimator) EncounterValue() float64 { return q.ev }

// AvgBuffer returns the smoothed buffer-availability ratio in [0,1].
func (q *QuotaEstimator) AvgBuffer() float64 { return q.bavg }

// Energy returns the remaining energy in [0,100].
func (q *QuotaEstimator) Energy() float64 { return q.energy }

// WindowCount returns the encounters seen in the current open window.
func (q *QuotaEstimator) WindowCount() int { return q.cwc }
