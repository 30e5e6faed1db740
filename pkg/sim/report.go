package sim

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/oppnet/driftroute/pkg/routing"
)

// runStats accumulates raw counters while the simulation runs.
type runStats struct {
	created  int
	relays   int
	expired  int
	contacts int
	rejected map[string]int

	deliveredIDs map[string]bool
	dupDeliver   int
	latencies    []float64
	hops         []float64
}

func newRunStats() *runStats {
	return &runStats{
		rejected:     make(map[string]int),
		deliveredIDs: make(map[string]bool),
	}
}

// recordDelivery notes a copy arriving at its destination and reports
// whether this was the first delivery of that message id.
func (st *runStats) recordDelivery(m *routing.Message, now float64) bool {
	if st.deliveredIDs[m.ID] {
		st.dupDeliver++
		return false
	}
	st.deliveredIDs[m.ID] = true
	st.latencies = append(st.latencies, now-m.Created)
	st.hops = append(st.hops, float64(m.Hops))
	return true
}

// Report is the end-of-run summary of a simulation.
type Report struct {
	Duration float64

	Created             int
	Delivered           int
	DuplicateDeliveries int
	Relays              int
	Expired             int
	Contacts            int
	Rejected            map[string]int

	DeliveryRatio float64
	OverheadRatio float64

	LatencyMean   float64
	LatencyStdDev float64
	LatencyMedian float64
	HopMean       float64
}

func (st *runStats) report(now float64) *Report {
	r := &Report{
		Duration:            now,
		Created:             st.created,
		Delivered:           len(st.deliveredIDs),
		DuplicateDeliveries: st.dupDeliver,
		Relays:              st.relays,
		Expired:             st.expired,
		Contacts:            st.contacts,
		Rejected:            st.rejected,
	}
	if r.Created > 0 {
		r.DeliveryRatio = float64(r.Delivered) / float64(r.Created)
	}
	// Overhead counts every accepted transfer that was not the (first)
	// delivery itself, normalized by deliveries.
	if r.Delivered > 0 {
		transfers := r.Relays + r.Delivered + r.DuplicateDeliveries
		r.OverheadRatio = float64(transfers-r.Delivered) / float64(r.Delivered)
	}
	if len(st.latencies) > 0 {
		r.LatencyMean = stat.Mean(st.latencies, nil)
		r.LatencyStdDev = stat.StdDev(st.latencies, nil)
		sorted := append([]float64(nil), st.latencies...)
		sort.Float64s(sorted)
		r.LatencyMedian = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	}
	if len(st.hops) > 0 {
		r.HopMean = stat.Mean(st.hops, nil)
	}
	return r
}

// String renders the report as a fixed-width summary block.
func (r *Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "simulated time:       %.0f s\n", r.Duration)
	fmt.Fprintf(&sb, "contacts:             %d\n", r.Contacts)
	fmt.Fprintf(&sb, "messages created:     %d\n", r.Created)
	fmt.Fprintf(&sb, "messages delivered:   %d (ratio %.3f)\n", r.Delivered, r.DeliveryRatio)
	fmt.Fprintf(&sb, "duplicate deliveries: %d\n", r.DuplicateDeliveries)
	fmt.Fprintf(&sb, "relay transfers:      %d (overhead %.2f)\n", r.Relays, r.OverheadRatio)
	fmt.Fprintf(&sb, "expired in buffers:   %d\n", r.Expired)
	if len(r.Rejected) > 0 {
		reasons := make([]string, 0, len(r.Rejected))
		for reason := range r.Rejected {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			fmt.Fprintf(&sb, "rejected (%s): %d\n", reason, r.Rejected[reason])
		}
	}
	if r.Delivered > 0 {
		fmt.Fprintf(&sb, "latency mean/median:  %.1f / %.1f s (stddev %.1f)\n",
			r.LatencyMean, r.LatencyMedian, r.LatencyStdDev)
		fmt.Fprintf(&sb, "mean hop count:       %.2f\n", r.HopMean)
	}
	return sb.String()
}
