package routing

import "sort"

// memBuf is a minimal in-memory BufferStore for router tests.
type memBuf struct {
	msgs  map[string]*Message
	used  int
	total int
}

func newMemBuf(total int) *memBuf {
	return &memBuf{msgs: make(map[string]*Message), total: total}
}

func (b *memBuf) Admit(m *Message, now float64) error {
	if _, ok := b.msgs[m.ID]; ok {
		return ErrDuplicate
	}
	b.msgs[m.ID] = m
	b.used += m.Size
	return nil
}

func (b *memBuf) Get(id string) (*Message, bool) {
	m, ok := b.msgs[id]
	return m, ok
}

func (b *memBuf) Has(id string) bool {
	_, ok := b.msgs[id]
	return ok
}

func (b *memBuf) Remove(id string) bool {
	m, ok := b.msgs[id]
	if !ok {
		return false
	}
	delete(b.msgs, id)
	b.used -= m.Size
	return true
}

func (b *memBuf) Messages() []*Message {
	out := make([]*Message, 0, len(b.msgs))
	for _, m := range b.msgs {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created != out[j].Created {
			return out[i].Created < out[j].Created
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (b *memBuf) Free() int  { return b.total - b.used }
func (b *memBuf) Total() int { return b.total }

// sentTransfer records one accepted transfer on the stub transport.
type sentTransfer struct {
	msg *Message
	to  NodeID
}

// stubTransport accepts everything unless err is set.
type stubTransport struct {
	err  error
	sent []sentTransfer
}

func (t *stubTransport) StartTransfer(copy *Message, to NodeID) error {
	if t.err != nil {
		return t.err
	}
	t.sent = append(t.sent, sentTransfer{msg: copy, to: to})
	return nil
}

// stubPeer is a scriptable PeerView.
type stubPeer struct {
	id      NodeID
	weights map[NodeID]float64
	held    map[string]bool
	free    int
	total   int
}

func newStubPeer(id NodeID) *stubPeer {
	return &stubPeer{
		id:      id,
		weights: make(map[NodeID]float64),
		held:    make(map[string]bool),
		free:    1000,
		total:   1000,
	}
}

func (p *stubPeer) ID() NodeID                      { return p.id }
func (p *stubPeer) WeightFor(dest NodeID) float64   { return p.weights[dest] }
func (p *stubPeer) BufferOccupancy() (int, int)     { return p.free, p.total }
func (p *stubPeer) HasMessage(id string) bool       { return p.held[id] }
func (p *stubPeer) WeightSnapshot() map[NodeID]float64 {
	out := make(map[NodeID]float64, len(p.weights))
	for k, v := range p.weights {
		out[k] = v
	}
	return out
}
