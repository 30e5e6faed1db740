package eventlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var out []Event
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("unmarshal %q: %v", sc.Text(), err)
		}
		out = append(out, ev)
	}
	if err := sc.Err(); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestAppendAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	w, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	want := []Event{
		{Time: 0, Type: TypeCreate, Node: "n1", Msg: "m1", Quota: 4},
		{Time: 5, Type: TypeContactUp, Node: "n1", Peer: "n2"},
		{Time: 6, Type: TypeRelay, Node: "n1", Peer: "n2", Msg: "m1", Quota: 2},
		{Time: 9, Type: TypeRejected, Node: "n1", Peer: "n2", Msg: "m1", Info: "busy"},
		{Time: 30, Type: TypeDelivered, Node: "n2", Msg: "m1"},
	}
	for _, ev := range want {
		if err := w.Append(ev); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := readEvents(t, path)
	if len(got) != len(want) {
		t.Fatalf("read %d events, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	// Appends after Close are refused, and a second Close is a no-op.
	if err := w.Append(Event{Type: TypeExpired}); err == nil {
		t.Error("append after close accepted")
	}
	if err := w.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestFullBufferFlushesSynchronously(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	// Huge flush interval so only the size trigger can write.
	w, err := NewWithConfig(path, time.Hour, 3)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	defer w.Close()

	for i := 0; i < 3; i++ {
		if err := w.Append(Event{Time: float64(i), Type: TypeContactUp}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if got := readEvents(t, path); len(got) != 3 {
		t.Errorf("after size-triggered flush read %d events, want 3", len(got))
	}
}

func TestExplicitFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	w, err := NewWithConfig(path, time.Hour, 100)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Append(Event{Time: 1, Type: TypeExpired, Msg: "m9"}); err != nil {
		t.Fatal(err)
	}
	if got := readEvents(t, path); len(got) != 0 {
		t.Fatalf("unflushed event reached disk: %d", len(got))
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	got := readEvents(t, path)
	if len(got) != 1 || got[0].Msg != "m9" {
		t.Errorf("flushed events = %+v", got)
	}
}
