package rarebranch

import "testing"

func TestRarestEdgesBelowThreshold(t *testing.T) {
	hits := NewHitBits(16)
	hits.counts[1] = 1 // hob 0
	hits.counts[2] = 4 // hob 2
	hits.counts[3] = 100

	s := New(DefaultConfig(), hits)
	rare := s.RarestEdges()

	for _, e := range rare {
		if hob(hits.Count(e)) >= s.RareBranchExp() {
			t.Fatalf("edge %d has hob %d, not below rare_branch_exp=%d", e, hob(hits.Count(e)), s.RareBranchExp())
		}
	}
}

func TestTighteningDropsStaleEdges(t *testing.T) {
	hits := NewHitBits(16)
	hits.counts[5] = 8 // hob 3
	s := New(DefaultConfig(), hits)
	first := s.RarestEdges()
	if len(first) == 0 {
		t.Fatal("expected edge 5 to be accepted initially")
	}

	// Introduce a much rarer edge; rare_branch_exp should tighten and the
	// previously accepted edge (hob 3) should no longer qualify.
	hits.counts[6] = 1 // hob 0
	second := s.RarestEdges()
	for _, e := range second {
		if e == 5 {
			t.Fatalf("edge 5 should no longer qualify after tightening, got %v", second)
		}
	}
}

func TestSelectTargetSkipsFuzzed(t *testing.T) {
	hits := NewHitBits(16)
	hits.counts[2] = 1
	hits.counts[3] = 1
	s := New(DefaultConfig(), hits)

	footprint := NewBitset(16)
	footprint.Set(2)
	footprint.Set(3)

	fuzzed := NewBitset(16)
	fuzzed.Set(2)

	edge, ok, allFuzzed := s.SelectTarget(footprint, fuzzed)
	if !ok || allFuzzed {
		t.Fatalf("expected an unfuzzed target, got edge=%d ok=%v allFuzzed=%v", edge, ok, allFuzzed)
	}
	if edge != 3 {
		t.Fatalf("expected edge 3, got %d", edge)
	}
}

func TestSelectTargetAllFuzzedFallsBackToRarest(t *testing.T) {
	hits := NewHitBits(16)
	hits.counts[2] = 1
	hits.counts[3] = 2
	s := New(DefaultConfig(), hits)

	footprint := NewBitset(16)
	footprint.Set(2)
	footprint.Set(3)

	fuzzed := NewBitset(16)
	fuzzed.Set(2)
	fuzzed.Set(3)

	edge, ok, allFuzzed := s.SelectTarget(footprint, fuzzed)
	if !ok || !allFuzzed {
		t.Fatalf("expected allFuzzed=true, got ok=%v allFuzzed=%v", ok, allFuzzed)
	}
	if edge != 2 {
		t.Fatalf("expected rarest edge (2), got %d", edge)
	}
}

func TestBlacklistedEdgesExcluded(t *testing.T) {
	hits := NewHitBits(16)
	hits.counts[4] = 1
	s := New(DefaultConfig(), hits)
	s.Blacklist(4)
	for _, e := range s.RarestEdges() {
		if e == 4 {
			t.Fatal("blacklisted edge should never appear in RarestEdges")
		}
	}
}
