// Package eventlog writes routing events as JSON lines with lazy batching:
// events are buffered in memory and flushed periodically or when the buffer
// fills, instead of hitting the file on every append. A simulation emits
// thousands of events per simulated minute, so batched writes keep the
// harness from being I/O bound. On Close all pending events are flushed.
package eventlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Event is one routing occurrence in the simulation timeline.
type Event struct {
	Time  float64 `json:"t"`
	Type  string  `json:"type"`
	Node  string  `json:"node,omitempty"`
	Peer  string  `json:"peer,omitempty"`
	Msg   string  `json:"msg,omitempty"`
	Quota int     `json:"quota,omitempty"`
	Info  string  `json:"info,omitempty"`
}

// Event types emitted by the simulator.
const (
	TypeCreate    = "create"
	TypeRelay     = "relay"
	TypeDelivered = "delivered"
	TypeRejected  = "rejected"
	TypeExpired   = "expired"
	TypeContactUp = "contact_up"
	TypeContactDn = "contact_down"
)

const (
	// DefaultFlushInterval is how often buffered events are written out.
	DefaultFlushInterval = 200 * time.Millisecond
	// DefaultMaxBuffer is the buffered-event count that forces a flush.
	DefaultMaxBuffer = 1000
)

// Writer is a lazily flushed JSONL event writer. Safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	f       *os.File
	buffer  []string
	maxBuf  int
	stopCh  chan struct{}
	stopped bool
	wg      sync.WaitGroup
}

// New opens (or truncates) path and starts the background flusher.
func New(path string) (*Writer, error) {
	return NewWithConfig(path, DefaultFlushInterval, DefaultMaxBuffer)
}

// NewWithConfig allows tuning the flush cadence and buffer bound.
func NewWithConfig(path string, flushInterval time.Duration, maxBuffer int) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("eventlog: %w", err)
	}
	if maxBuffer <= 0 {
		maxBuffer = DefaultMaxBuffer
	}
	w := &Writer{
		f:      f,
		buffer: make([]string, 0, maxBuffer),
		maxBuf: maxBuffer,
		stopCh: make(chan struct{}),
	}
	w.wg.Add(1)
	go w.flushLoop(flushInterval)
	return w, nil
}

func (w *Writer) flushLoop(interval time.Duration) {
	defer w.wg.Done()
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			if err := w.Flush(); err != nil {
				slog.Error("eventlog background flush failed", "error", err)
			}
		}
	}
}

// Append queues one event, flushing synchronously if the buffer is full.
func (w *Writer) Append(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("eventlog: marshal: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return fmt.Errorf("eventlog: writer closed")
	}
	w.buffer = append(w.buffer, string(data))
	if len(w.buffer) >= w.maxBuf {
		return w.flushLocked()
	}
	return nil
}

// Flush writes all buffered events to the file.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *Writer) flushLocked() error {
	if len(w.buffer) == 0 {
		return nil
	}
	var sb strings.Builder
	for _, line := range w.buffer {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	if _, err := w.f.WriteString(sb.String()); err != nil {
		return fmt.Errorf("eventlog: write: %w", err)
	}
	w.buffer = w.buffer[:0]
	return nil
}

// Close stops the flusher, writes pending events and syncs the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.mu.Unlock()
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.flushLocked(); err != nil {
		return err
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("eventlog: sync: %w", err)
	}
	return w.f.Close()
}
