package routing

import (
	"math/rand"
	"testing"
)

func testTable(bump BumpPolicy) *WeightTable {
	cfg := DefaultConfig()
	cfg.Bump = bump
	return newWeightTable(cfg)
}

func TestWeightForUnknownPeerIsZero(t *testing.T) {
	wt := testTable(BumpUniform)
	if w := wt.WeightFor("ghost"); w != 0.0 {
		t.Errorf("unknown peer weight = %f, want 0", w)
	}
}

func TestBumpIncrementsAndCaps(t *testing.T) {
	wt := testTable(BumpUniform)
	wt.Bump("a", false)
	if w := wt.WeightFor("a"); w != 0.1 {
		t.Errorf("after one bump weight = %f, want 0.1", w)
	}
	for i := 0; i < 50; i++ {
		wt.Bump("a", false)
	}
	if w := wt.WeightFor("a"); w != 1.0 {
		t.Errorf("weight not capped: got %f, want 1.0", w)
	}
}

func TestDestinationBoostedBump(t *testing.T) {
	wt := testTable(BumpDestinationBoost)
	wt.Bump("dest", true)
	wt.Bump("other", false)
	if w := wt.WeightFor("dest"); w != 0.5 {
		t.Errorf("boosted bump = %f, want 0.5", w)
	}
	if w := wt.WeightFor("other"); w != 0.1 {
		t.Errorf("plain bump = %f, want 0.1", w)
	}

	// Uniform policy must ignore the destination flag.
	wt = testTable(BumpUniform)
	wt.Bump("dest", true)
	if w := wt.WeightFor("dest"); w != 0.1 {
		t.Errorf("uniform bump with destination flag = %f, want 0.1", w)
	}
}

func TestDecayIsMonotoneAndEvicts(t *testing.T) {
	wt := testTable(BumpUniform)
	wt.Bump("a", false)
	prev := wt.WeightFor("a")
	for i := 0; i < 200; i++ {
		wt.Decay()
		w := wt.WeightFor("a")
		if w > prev {
			t.Fatalf("decay increased weight: %f > %f", w, prev)
		}
		prev = w
	}
	// 0.1 * 0.98^200 is well below the eviction threshold.
	if wt.Len() != 0 {
		t.Errorf("entry not evicted, table len = %d", wt.Len())
	}
	if w := wt.WeightFor("a"); w != 0.0 {
		t.Errorf("evicted entry reads %f, want 0", w)
	}
}

func TestBumpNeverDecreases(t *testing.T) {
	wt := testTable(BumpDestinationBoost)
	wt.Bump("a", false)
	before := wt.WeightFor("a")
	wt.Bump("a", true)
	if after := wt.WeightFor("a"); after < before {
		t.Errorf("bump decreased weight: %f < %f", after, before)
	}
}

func TestWeightsStayBounded(t *testing.T) {
	wt := testTable(BumpDestinationBoost)
	rng := rand.New(rand.NewSource(7))
	peers := []NodeID{"a", "b", "c", "d"}
	for i := 0; i < 5000; i++ {
		switch rng.Intn(3) {
		case 0:
			wt.Bump(peers[rng.Intn(len(peers))], rng.Intn(2) == 0)
		case 1:
			wt.Decay()
		case 2:
			wt.ApplyTransitivity("self", "a", map[NodeID]float64{
				"b": rng.Float64(), "c": rng.Float64(),
			})
		}
		for _, p := range peers {
			w := wt.WeightFor(p)
			if w < 0 || w > 1 {
				t.Fatalf("weight for %s out of bounds: %f", p, w)
			}
		}
	}
}

func TestTransitivityFormula(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TransitivityFactor = 0.5
	wt := newWeightTable(cfg)
	wt.Bump("dest", false) // own weight 0.1

	wt.ApplyTransitivity("self", "peer", map[NodeID]float64{"dest": 0.8})

	// own + factor*w*(1-own) = 0.1 + 0.5*0.8*0.9 = 0.46
	want := 0.46
	if got := wt.WeightFor("dest"); got < want-1e-12 || got > want+1e-12 {
		t.Errorf("transitive weight = %f, want %f", got, want)
	}
}

func TestTransitivitySkipsSelfAndPeer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TransitivityFactor = 0.5
	wt := newWeightTable(cfg)

	wt.ApplyTransitivity("self", "peer", map[NodeID]float64{
		"self": 1.0,
		"peer": 1.0,
		"x":    0.4,
	})
	if w := wt.WeightFor("self"); w != 0 {
		t.Errorf("transitivity wrote a self weight: %f", w)
	}
	if w := wt.WeightFor("peer"); w != 0 {
		t.Errorf("transitivity wrote the peer's own weight: %f", w)
	}
	if w := wt.WeightFor("x"); w == 0 {
		t.Error("transitivity ignored a third-party destination")
	}
}

func TestTransitivityDisabledByZeroFactor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TransitivityFactor = 0
	cfg = cfg.normalize()
	if cfg.TransitivityFactor != 0 {
		t.Fatalf("normalize overwrote an explicit zero factor: %f", cfg.TransitivityFactor)
	}
	wt := newWeightTable(cfg)
	wt.ApplyTransitivity("self", "peer", map[NodeID]float64{"x": 0.9})
	if wt.Len() != 0 {
		t.Error("disabled transitivity still wrote entries")
	}
}
