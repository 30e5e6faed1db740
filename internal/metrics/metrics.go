// Package metrics exposes simulation-wide Prometheus counters. promauto
// registers everything on import, so the cmd only has to mount the handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesCreated counts messages injected by the workload.
	MessagesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftroute_messages_created_total",
		Help: "Total number of messages created at source nodes",
	})

	// MessagesDelivered counts first-time deliveries to a destination.
	MessagesDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftroute_messages_delivered_total",
		Help: "Total number of unique messages delivered to their destination",
	})

	// MessagesRelayed counts accepted relay transfers (non-delivery hops).
	MessagesRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftroute_messages_relayed_total",
		Help: "Total number of accepted relay transfers between nodes",
	})

	// MessagesExpired counts buffer entries dropped by TTL expiry.
	MessagesExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftroute_messages_expired_total",
		Help: "Total number of buffered messages dropped on TTL expiry",
	})

	// TransfersRejected counts rejected transfer attempts by reason.
	TransfersRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftroute_transfers_rejected_total",
			Help: "Total number of rejected transfer attempts",
		},
		[]string{"reason"},
	)

	// ContactsTotal counts contact-up transitions seen by the scheduler.
	ContactsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftroute_contacts_total",
		Help: "Total number of contact-up transitions",
	})

	// BufferedMessages tracks currently buffered messages across all nodes.
	BufferedMessages = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "driftroute_buffered_messages",
		Help: "Messages currently held in node buffers",
	})

	// WeightTableEntries tracks live weight-table entries across all nodes.
	WeightTableEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "driftroute_weight_table_entries",
		Help: "Peer weight entries currently held across all nodes",
	})
)
