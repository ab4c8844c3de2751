package tui

import (
	"fmt"
	"time"

	"github.com/raresmith/branchfuzz/internal/bandit"
	"github.com/raresmith/branchfuzz/internal/fuzzconfig"
	"github.com/raresmith/branchfuzz/internal/fuzzone"
	"github.com/raresmith/branchfuzz/internal/rarebranch"
)

// Campaign is the subset of a running fuzzer's state the dashboard needs
// to read on every poll. cmd/fuzzctl's Driver, bandit.Grid and
// rarebranch.Selector together satisfy it; none of their fields need to
// be copied out ahead of time.
type Campaign struct {
	Driver   *fuzzone.Driver
	Grid     *bandit.Grid
	Selector *rarebranch.Selector
	Cfg      fuzzconfig.Config

	Stats     func() fuzzone.Stats
	QueueLen  func() int
	StartedAt time.Time
}

// BuildSnapshot reads the campaign's current state into a Snapshot. It
// takes no lock of its own; callers must only share state that is safe
// for concurrent reads (bandit.Grid's strategies and rarebranch.Selector
// are, since fuzzone.Driver only ever calls them from the fuzzing
// goroutine while BuildSnapshot only calls read-only accessors).
func BuildSnapshot(c *Campaign) Snapshot {
	snap := Snapshot{
		VanillaMode: c.Cfg.VanillaMode,
		ShadowMode:  c.Cfg.ShadowMode,
	}
	if c.Stats != nil {
		st := c.Stats()
		snap.Executions = st.Executions
		snap.StageFinds = st.StageFinds
		snap.StageCycles = st.StageCycles
	}
	if c.QueueLen != nil {
		snap.QueueLen = c.QueueLen()
	}
	if c.Selector != nil {
		snap.RareBranchExp = c.Selector.RareBranchExp()
		snap.BlacklistSize = c.Selector.BlacklistSize()
		snap.RarestEdges = len(c.Selector.RarestEdges())
	}
	if c.Grid != nil {
		snap.Buckets = make([]BucketState, bandit.NumBatchBuckets)
		for i := 0; i < bandit.NumBatchBuckets; i++ {
			snap.Buckets[i] = BucketState{
				Label:     bucketLabel(i),
				OpArms:    c.Grid.Op[i].NumArms(),
				BatchArms: c.Grid.Batch[i].NumArms(),
			}
		}
	}
	if !c.StartedAt.IsZero() {
		snap.Elapsed = time.Since(c.StartedAt)
	}
	return snap
}

func bucketLabel(i int) string {
	lo := 0
	if i > 0 {
		lo = bandit.BucketThresholds[i-1] + 1
	}
	if i == bandit.NumBatchBuckets-1 {
		return fmt.Sprintf(">=%d", lo)
	}
	return fmt.Sprintf("%d-%d", lo, bandit.BucketThresholds[i])
}
