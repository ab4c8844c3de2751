package havoc

import (
	"context"

	"github.com/raresmith/branchfuzz/internal/bandit"
	"github.com/raresmith/branchfuzz/internal/executor"
	"github.com/raresmith/branchfuzz/internal/rng"
)

// Corpus is the minimal random-entry accessor the splice retry loop
// needs; internal/fuzzone's queueCorpus adapts an executor.Queue to it.
type Corpus interface {
	RandomEntry(r *rng.Source) ([]byte, bool)
}

// firstLastDiff finds the first and last byte offsets where a and b
// differ, scanning only the overlapping prefix (spec §4.10).
func firstLastDiff(a, b []byte) (first, last int, ok bool) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	first, last = -1, -1
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if first == -1 {
				first = i
			}
			last = i
		}
	}
	return first, last, first != -1
}

// RunWithSplice runs the havoc stage, then retries up to SpliceCycles
// times: pick another corpus entry, splice at a random point within the
// differing range, reset the branch mask to default, and re-enter havoc
// on the spliced base (spec §4.10).
func RunWithSplice(ctx context.Context, exec executor.Executor, opBandit, batchBandit bandit.Strategy, in Input, cfg Config, corpus Corpus, spliceCycles int, r *rng.Source) (Outcome, error) {
	total, err := RunStage(ctx, exec, opBandit, batchBandit, in, cfg, r)
	if err != nil || corpus == nil {
		return total, err
	}

	base := in.Buf
	for cycle := 0; cycle < spliceCycles; cycle++ {
		peer, ok := corpus.RandomEntry(r)
		if !ok || len(peer) < 4 {
			continue
		}
		first, last, ok := firstLastDiff(base, peer)
		if !ok || last-first < 2 {
			continue
		}
		splitAt := first + r.Intn(last-first)

		spliced := make([]byte, 0, splitAt+len(peer)-splitAt)
		spliced = append(spliced, base[:splitAt]...)
		spliced = append(spliced, peer[splitAt:]...)

		next := in
		next.Buf = spliced
		next.Mask = nil // reset to default (spec §4.10)
		next.QueuedPaths = total.QueuedPaths

		res, err := RunStage(ctx, exec, opBandit, batchBandit, next, cfg, r)
		total.Executions += res.Executions
		total.NewFindings += res.NewFindings
		total.QueuedPaths = res.QueuedPaths
		if err != nil {
			return total, err
		}
		base = spliced
	}

	return total, nil
}
