// Package trace loads contact schedules from connection-event text, one
// event per line:
//
//	<time> CONN <nodeA> <nodeB> up|down
//
// Blank lines and lines starting with '#' are skipped. Events are returned
// sorted by time so the simulator can replay them with a single cursor.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/oppnet/driftroute/pkg/routing"
)

// Event is one contact transition between two nodes.
type Event struct {
	Time float64
	A, B routing.NodeID
	Up   bool
}

// Parse reads connection events from r.
func Parse(r io.Reader) ([]Event, error) {
	var events []Event
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ev, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("trace: line %d: %w", lineNo, err)
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Time < events[j].Time })
	return events, nil
}

func parseLine(line string) (Event, error) {
	parts := strings.Fields(line)
	if len(parts) != 5 {
		return Event{}, fmt.Errorf("want 5 fields, got %d", len(parts))
	}
	t, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return Event{}, fmt.Errorf("bad time %q", parts[0])
	}
	if !strings.EqualFold(parts[1], "CONN") {
		return Event{}, fmt.Errorf("unknown event type %q", parts[1])
	}
	a, b := routing.NodeID(parts[2]), routing.NodeID(parts[3])
	if a == b {
		return Event{}, fmt.Errorf("self contact %q", parts[2])
	}
	var up bool
	switch strings.ToLower(parts[4]) {
	case "up":
		up = true
	case "down":
		up = false
	default:
		return Event{}, fmt.Errorf("bad transition %q", parts[4])
	}
	return Event{Time: t, A: a, B: b, Up: up}, nil
}

// Load reads connection events from a file.
func Load(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	defer f.Close()
	return Parse(f)
}
