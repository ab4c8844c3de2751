package rarebranch

import (
	"math/bits"
	"sort"
)

// HitBits is the global array indexed by edge id, counting distinct
// inputs that touched that edge. It is process-wide and monotonically
// non-decreasing; zero means "never seen" (spec.md §3).
type HitBits struct {
	counts []uint32
}

// NewHitBits allocates a zeroed HitBits array for numEdges edges.
func NewHitBits(numEdges int) *HitBits {
	return &HitBits{counts: make([]uint32, numEdges)}
}

// Observe records one more input touching edge. Safe to call repeatedly;
// the count only ever grows.
func (h *HitBits) Observe(edge uint32) {
	if int(edge) < len(h.counts) {
		h.counts[edge]++
	}
}

func (h *HitBits) Count(edge uint32) uint32 {
	if int(edge) >= len(h.counts) {
		return 0
	}
	return h.counts[edge]
}

func (h *HitBits) NumEdges() int { return len(h.counts) }

// hob is the highest-set-bit ("order of magnitude") of a hit count, the
// quantity the spec buckets rarity by.
func hob(n uint32) int {
	if n == 0 {
		return -1
	}
	return bits.Len32(n) - 1
}

// Config holds the tunables named in spec.md §6.
type Config struct {
	MaxRareBranches int
}

func DefaultConfig() Config {
	return Config{MaxRareBranches: 128}
}

// Selector implements RareBranchSelector. It owns the process-wide
// rare_branch_exp threshold and the blacklist of edges that repeatedly
// failed to be preserved by any mutation.
type Selector struct {
	cfg           Config
	hits          *HitBits
	rareBranchExp int
	blacklist     map[uint32]bool
}

// New builds a Selector over hits. rare_branch_exp starts at the widest
// possible value so the first call to RarestEdges discovers the true
// floor.
func New(cfg Config, hits *HitBits) *Selector {
	return &Selector{cfg: cfg, hits: hits, rareBranchExp: 32, blacklist: make(map[uint32]bool)}
}

// Blacklist adds edge to the blacklist. Append-only with bounded growth
// by doubling, per spec §5; the map itself needs no explicit capacity
// management in Go, but callers that care about bounding memory can use
// BlacklistSize to monitor growth.
func (s *Selector) Blacklist(edge uint32) { s.blacklist[edge] = true }

func (s *Selector) IsBlacklisted(edge uint32) bool { return s.blacklist[edge] }

func (s *Selector) BlacklistSize() int { return len(s.blacklist) }

func (s *Selector) RareBranchExp() int { return s.rareBranchExp }

// RarestEdges scans HitBits for the globally rarest tier of edges: every
// seen, non-blacklisted edge whose hob is strictly below rare_branch_exp.
// Tightens rare_branch_exp whenever it finds an edge whose hob is more
// than one below the currently accepted exponent (discovering a rarer
// tier clears the previously-collected list and restarts at the new,
// tighter exponent). Retries with a raised floor if the result is empty.
func (s *Selector) RarestEdges() []uint32 {
	return s.rarestEdges(0)
}

func (s *Selector) rarestEdges(depth int) []uint32 {
	if depth > 64 {
		// HitBits has a finite number of distinct magnitudes (<=32); this
		// bounds the recursion described in spec §4.4 against a
		// pathological all-blacklisted / all-empty state.
		return nil
	}

	var result []uint32
	lowestHOB := 33

	for edge := uint32(0); edge < uint32(s.hits.NumEdges()); edge++ {
		if s.blacklist[edge] {
			continue
		}
		count := s.hits.Count(edge)
		if count == 0 {
			continue
		}
		h := hob(count)
		if h < lowestHOB {
			lowestHOB = h
		}
		if h < s.rareBranchExp {
			if s.rareBranchExp-h > 1 {
				// Found a strictly rarer tier: tighten the accepted
				// exponent and discard anything collected so far under
				// the looser threshold.
				s.rareBranchExp = h + 1
				result = result[:0]
			}
			result = append(result, edge)
			if len(result) > s.cfg.MaxRareBranches {
				result = result[:s.cfg.MaxRareBranches]
			}
		}
	}

	if len(result) == 0 && lowestHOB <= 32 {
		s.rareBranchExp = lowestHOB + 1
		return s.rarestEdges(depth + 1)
	}
	return result
}

// RareEdgesHitBy walks footprint's set bits and returns the subset that
// RarestEdges() currently accepts, insertion-sorted ascending by hit
// count (spec §4.4).
func (s *Selector) RareEdgesHitBy(footprint Bitset) []uint32 {
	rare := make(map[uint32]bool, len(s.blacklist))
	for _, e := range s.RarestEdges() {
		rare[e] = true
	}

	var result []uint32
	for _, edge := range footprint.Edges() {
		if !rare[edge] {
			continue
		}
		result = insertSortedByCount(result, edge, s.hits)
	}
	return result
}

func insertSortedByCount(list []uint32, edge uint32, hits *HitBits) []uint32 {
	count := hits.Count(edge)
	idx := sort.Search(len(list), func(i int) bool {
		return hits.Count(list[i]) >= count
	})
	list = append(list, 0)
	copy(list[idx+1:], list[idx:])
	list[idx] = edge
	return list
}

// SelectTarget chooses the rare edge to target for a seed: the first
// edge in the sorted rare-edge list not already marked fuzzed in
// fuzzedBranches. If every rare edge has already been fuzzed for this
// seed, it falls back to the rarest edge and reports allFuzzed=true so
// the caller can skip deterministic stages for this seed. Marks the
// chosen edge fuzzed before returning, per spec.
func (s *Selector) SelectTarget(footprint Bitset, fuzzedBranches Bitset) (edge uint32, ok bool, allFuzzed bool) {
	sorted := s.RareEdgesHitBy(footprint)
	if len(sorted) == 0 {
		return 0, false, false
	}
	for _, e := range sorted {
		if !fuzzedBranches.Test(e) {
			fuzzedBranches.Set(e)
			return e, true, false
		}
	}
	chosen := sorted[0]
	fuzzedBranches.Set(chosen)
	return chosen, true, true
}
