// Package sim is the host simulation environment that drives the routing
// engine: a deterministic discrete-tick scheduler providing the clock, the
// contact schedule (replayed from a trace or generated from a seeded RNG),
// the message workload and the transfer primitive. One Simulator owns every
// node; events are delivered to one node at a time, which is the concurrency
// model the engine is specified against.
package sim

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"sort"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/oppnet/driftroute/internal/eventlog"
	"github.com/oppnet/driftroute/internal/metrics"
	"github.com/oppnet/driftroute/pkg/buffer"
	"github.com/oppnet/driftroute/pkg/routing"
	"github.com/oppnet/driftroute/pkg/trace"
)

// Options configures one simulation run.
type Options struct {
	// Routing is the engine configuration shared by every node.
	Routing routing.Config `yaml:"routing"`

	// Nodes is the number of simulated hosts (named n0..n<N-1>). Trace
	// replay adds any node ids the trace mentions beyond these.
	Nodes int `yaml:"nodes"`
	// TickInterval is the scheduler step in simulated seconds.
	TickInterval float64 `yaml:"tick_interval"`
	// Duration is the simulated run length in seconds.
	Duration float64 `yaml:"duration"`
	// BufferCapacity is each node's buffer size in bytes (0 = unbounded).
	BufferCapacity int `yaml:"buffer_capacity"`

	// Workload: a message is created every ~MessageInterval simulated
	// seconds (exponentially distributed) between a random source and
	// destination.
	MessageInterval float64 `yaml:"message_interval"`
	MessageTTL      float64 `yaml:"message_ttl"`
	MessageSize     int     `yaml:"message_size"`

	// Synthetic contact model, used when no trace is loaded: each
	// disconnected node pair comes up with probability ContactRate per
	// simulated second and stays up for an exponentially distributed
	// duration with the given mean.
	ContactRate         float64 `yaml:"contact_rate"`
	MeanContactDuration float64 `yaml:"mean_contact_duration"`

	// Seed makes runs reproducible.
	Seed int64 `yaml:"seed"`

	// EventLogPath, when set, records every routing event as JSONL.
	EventLogPath string `yaml:"event_log_path"`
}

// DefaultOptions returns a small but non-trivial scenario: 20 nodes, one
// message a minute, five-hour TTLs, two simulated hours.
func DefaultOptions() Options {
	return Options{
		Routing:             routing.DefaultConfig(),
		Nodes:               20,
		TickInterval:        1.0,
		Duration:            7200,
		BufferCapacity:      5_000_000,
		MessageInterval:     60,
		MessageTTL:          5 * 3600,
		MessageSize:         100_000,
		ContactRate:         0.0005,
		MeanContactDuration: 30,
		Seed:                1,
	}
}

// LoadOptions reads a yaml file over the defaults.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("sim: read options: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("sim: parse options: %w", err)
	}
	return opts, nil
}

func (o Options) validate() error {
	if o.Nodes < 2 {
		return fmt.Errorf("sim: need at least 2 nodes, got %d", o.Nodes)
	}
	if o.TickInterval <= 0 {
		return fmt.Errorf("sim: tick_interval must be positive")
	}
	if o.Duration <= 0 {
		return fmt.Errorf("sim: duration must be positive")
	}
	if o.MessageInterval <= 0 {
		return fmt.Errorf("sim: message_interval must be positive")
	}
	if o.MessageTTL <= 0 {
		return fmt.Errorf("sim: message_ttl must be positive")
	}
	if o.MessageSize <= 0 {
		return fmt.Errorf("sim: message_size must be positive")
	}
	return nil
}

type node struct {
	id     routing.NodeID
	buf    *buffer.Store
	router *routing.Router
}

// pairKey is an unordered node pair (a < b).
type pairKey struct {
	a, b routing.NodeID
}

func makePair(a, b routing.NodeID) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

type pendingTransfer struct {
	msg  *routing.Message
	from routing.NodeID
	to   routing.NodeID
}

// Simulator drives a set of routers through simulated time.
type Simulator struct {
	opts  Options
	nodes []*node
	byID  map[routing.NodeID]*node
	rng   *rand.Rand
	now   float64

	events   []trace.Event
	eventIdx int
	useTrace bool

	// contacts maps active pairs to their scheduled down time
	// (math.Inf(1) for trace-driven contacts, which end on a down event).
	contacts map[pairKey]float64

	pending   []pendingTransfer
	busy      map[routing.NodeID]bool
	nextMsgAt float64

	stats *runStats
	elog  *eventlog.Writer
}

// New builds a simulator. Nodes are created immediately so callers can load
// a trace or inspect routers before Run.
func New(opts Options) (*Simulator, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := opts.Routing.Validate(); err != nil {
		return nil, err
	}
	s := &Simulator{
		opts:     opts,
		byID:     make(map[routing.NodeID]*node),
		rng:      rand.New(rand.NewSource(opts.Seed)),
		contacts: make(map[pairKey]float64),
		busy:     make(map[routing.NodeID]bool),
		stats:    newRunStats(),
	}
	for i := 0; i < opts.Nodes; i++ {
		if err := s.addNode(routing.NodeID(fmt.Sprintf("n%d", i))); err != nil {
			return nil, err
		}
	}
	if opts.EventLogPath != "" {
		w, err := eventlog.New(opts.EventLogPath)
		if err != nil {
			return nil, err
		}
		s.elog = w
	}
	s.nextMsgAt = s.rng.ExpFloat64() * opts.MessageInterval
	return s, nil
}

func (s *Simulator) addNode(id routing.NodeID) error {
	if _, ok := s.byID[id]; ok {
		return nil
	}
	buf := buffer.New(s.opts.BufferCapacity)
	r, err := routing.New(id, s.opts.Routing, buf, nodeTransport{s: s, from: id}, s.now)
	if err != nil {
		return err
	}
	n := &node{id: id, buf: buf, router: r}
	s.nodes = append(s.nodes, n)
	s.byID[id] = n
	return nil
}

// UseTrace replaces the synthetic contact model with a replayed contact
// schedule. Node ids mentioned by the trace are created on the fly.
func (s *Simulator) UseTrace(events []trace.Event) error {
	for _, ev := range events {
		if err := s.addNode(ev.A); err != nil {
			return err
		}
		if err := s.addNode(ev.B); err != nil {
			return err
		}
	}
	s.events = events
	s.eventIdx = 0
	s.useTrace = true
	return nil
}

// Router returns the router of a node, for inspection in tests and reports.
func (s *Simulator) Router(id routing.NodeID) (*routing.Router, bool) {
	n, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return n.router, true
}

// Now returns the current simulated time in seconds.
func (s *Simulator) Now() float64 { return s.now }

// Run steps the simulation to completion and returns the delivery report.
func (s *Simulator) Run() (*Report, error) {
	ticks := int(math.Ceil(s.opts.Duration / s.opts.TickInterval))
	for i := 0; i < ticks; i++ {
		s.step()
	}
	if s.elog != nil {
		if err := s.elog.Close(); err != nil {
			slog.Error("closing event log", "error", err)
		}
	}
	return s.stats.report(s.now), nil
}

// step advances one tick: completed transfers land, expired messages are
// swept, contact transitions fire, the workload injects messages, and every
// router runs its tick.
func (s *Simulator) step() {
	s.now += s.opts.TickInterval

	s.applyPending()
	for id := range s.busy {
		delete(s.busy, id)
	}
	s.sweepExpired()
	if s.useTrace {
		s.replayContacts()
	} else {
		s.generateContacts()
	}
	s.injectMessages()
	for _, n := range s.nodes {
		n.router.OnTick(s.now)
	}

	held, known := 0, 0
	for _, n := range s.nodes {
		held += n.buf.Len()
		known += n.router.Stats().KnownPeers
	}
	metrics.BufferedMessages.Set(float64(held))
	metrics.WeightTableEntries.Set(float64(known))
}

// applyPending hands transfers accepted last tick to their receivers, which
// is when a copy becomes logically held by the peer.
func (s *Simulator) applyPending() {
	for _, pt := range s.pending {
		n := s.byID[pt.to]
		quota, err := n.router.OnMessageReceived(pt.msg, pt.from, s.now)
		if err != nil {
			slog.Debug("receive failed", "node", pt.to, "msg", pt.msg.ID, "error", err)
			continue
		}
		if pt.msg.To == pt.to {
			first := s.stats.recordDelivery(pt.msg, s.now)
			if first {
				metrics.MessagesDelivered.Inc()
			}
			s.logEvent(eventlog.Event{
				Time: s.now, Type: eventlog.TypeDelivered,
				Node: string(pt.to), Peer: string(pt.from), Msg: pt.msg.ID,
			})
			continue
		}
		s.stats.relays++
		metrics.MessagesRelayed.Inc()
		s.logEvent(eventlog.Event{
			Time: s.now, Type: eventlog.TypeRelay,
			Node: string(pt.from), Peer: string(pt.to), Msg: pt.msg.ID, Quota: quota,
		})
	}
	s.pending = s.pending[:0]
}

func (s *Simulator) sweepExpired() {
	for _, n := range s.nodes {
		for _, m := range n.buf.ExpireUpTo(s.now) {
			s.stats.expired++
			metrics.MessagesExpired.Inc()
			s.logEvent(eventlog.Event{
				Time: s.now, Type: eventlog.TypeExpired,
				Node: string(n.id), Msg: m.ID,
			})
		}
	}
}

func (s *Simulator) replayContacts() {
	for s.eventIdx < len(s.events) && s.events[s.eventIdx].Time <= s.now {
		ev := s.events[s.eventIdx]
		s.eventIdx++
		key := makePair(ev.A, ev.B)
		if ev.Up {
			if _, active := s.contacts[key]; active {
				continue
			}
			s.contacts[key] = math.Inf(1)
			s.contactUp(ev.A, ev.B)
		} else {
			if _, active := s.contacts[key]; !active {
				continue
			}
			delete(s.contacts, key)
			s.contactDown(ev.A, ev.B)
		}
	}
}

func (s *Simulator) generateContacts() {
	// Tear down first so a pair can come straight back up next tick.
	for key, downAt := range s.contacts {
		if downAt <= s.now {
			delete(s.contacts, key)
			s.contactDown(key.a, key.b)
		}
	}
	p := s.opts.ContactRate * s.opts.TickInterval
	if p <= 0 {
		return
	}
	for i := 0; i < len(s.nodes); i++ {
		for j := i + 1; j < len(s.nodes); j++ {
			key := makePair(s.nodes[i].id, s.nodes[j].id)
			if _, active := s.contacts[key]; active {
				continue
			}
			if s.rng.Float64() >= p {
				continue
			}
			dur := s.rng.ExpFloat64() * s.opts.MeanContactDuration
			if dur < s.opts.TickInterval {
				dur = s.opts.TickInterval
			}
			s.contacts[key] = s.now + dur
			s.contactUp(key.a, key.b)
		}
	}
}

func (s *Simulator) contactUp(a, b routing.NodeID) {
	na, nb := s.byID[a], s.byID[b]
	na.router.OnContactUp(nb.router, s.now)
	nb.router.OnContactUp(na.router, s.now)
	s.stats.contacts++
	metrics.ContactsTotal.Inc()
	s.logEvent(eventlog.Event{Time: s.now, Type: eventlog.TypeContactUp, Node: string(a), Peer: string(b)})
}

func (s *Simulator) contactDown(a, b routing.NodeID) {
	s.byID[a].router.OnContactDown(b)
	s.byID[b].router.OnContactDown(a)
	s.logEvent(eventlog.Event{Time: s.now, Type: eventlog.TypeContactDn, Node: string(a), Peer: string(b)})
}

func (s *Simulator) injectMessages() {
	for s.nextMsgAt <= s.now {
		s.nextMsgAt += s.rng.ExpFloat64() * s.opts.MessageInterval
		src := s.nodes[s.rng.Intn(len(s.nodes))]
		dst := s.nodes[s.rng.Intn(len(s.nodes))]
		if src == dst {
			continue
		}
		m := &routing.Message{
			ID:      uuid.NewString(),
			From:    src.id,
			To:      dst.id,
			Size:    s.opts.MessageSize,
			Created: s.now,
			TTL:     s.opts.MessageTTL,
		}
		quota, err := src.router.OnMessageCreate(m, s.now)
		if err != nil {
			slog.Warn("message creation failed", "node", src.id, "error", err)
			continue
		}
		s.stats.created++
		metrics.MessagesCreated.Inc()
		s.logEvent(eventlog.Event{
			Time: s.now, Type: eventlog.TypeCreate,
			Node: string(src.id), Peer: string(dst.id), Msg: m.ID, Quota: quota,
		})
	}
}

func (s *Simulator) logEvent(ev eventlog.Event) {
	if s.elog == nil {
		return
	}
	if err := s.elog.Append(ev); err != nil {
		slog.Error("event log append failed", "error", err)
	}
}

// nodeTransport is the per-node view of the simulator's transfer primitive.
type nodeTransport struct {
	s    *Simulator
	from routing.NodeID
}

// StartTransfer validates a transfer against the receiver's state and, when
// accepted, queues the copy to land at the next tick. Rejections never touch
// the sender's quota; the router retries on a later tick.
func (t nodeTransport) StartTransfer(copy *routing.Message, to routing.NodeID) error {
	s := t.s
	dst, ok := s.byID[to]
	if !ok {
		return fmt.Errorf("sim: unknown node %s", to)
	}
	if s.busy[to] {
		s.reject(t.from, to, copy, "busy")
		return routing.ErrPeerBusy
	}
	if dst.router.HasMessage(copy.ID) {
		s.reject(t.from, to, copy, "duplicate")
		return routing.ErrDuplicate
	}
	if copy.To != to && dst.buf.Total() > 0 && dst.buf.Free() < copy.Size {
		s.reject(t.from, to, copy, "buffer_full")
		return routing.ErrBufferFull
	}
	s.busy[to] = true
	s.pending = append(s.pending, pendingTransfer{msg: copy, from: t.from, to: to})
	return nil
}

func (s *Simulator) reject(from, to routing.NodeID, m *routing.Message, reason string) {
	s.stats.rejected[reason]++
	metrics.TransfersRejected.WithLabelValues(reason).Inc()
	s.logEvent(eventlog.Event{
		Time: s.now, Type: eventlog.TypeRejected,
		Node: string(from), Peer: string(to), Msg: m.ID, Info: reason,
	})
}

// sortedNodeIDs is a test helper exposing deterministic node order.
func (s *Simulator) sortedNodeIDs() []routing.NodeID {
	ids := make([]routing.NodeID, 0, len(s.nodes))
	for _, n := range s.nodes {
		ids = append(ids, n.id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
