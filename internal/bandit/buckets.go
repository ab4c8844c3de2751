package bandit

// NumBatchBuckets is the §6 NUM_BATCH_BUCKET constant: havoc inputs are
// partitioned into 5 size classes so that operator/batch learning is
// conditioned on input length.
const NumBatchBuckets = 5

// BucketThresholds are the upper length bounds (exclusive of the last,
// open-ended bucket) named in spec.md §3's BatchBuckets data model.
var BucketThresholds = [NumBatchBuckets - 1]int{100, 1000, 10000, 100000}

// BucketFor returns the size-class index for an input of length n.
func BucketFor(n int) int {
	for i, t := range BucketThresholds {
		if n <= t {
			return i
		}
	}
	return NumBatchBuckets - 1
}

// NumHavocOps is the number of atomic havoc operator classes (spec.md
// §4.9 enumerates 23; spec §9's Open Question asks implementations to
// keep this configurable rather than hardcoded).
const NumHavocOps = 23

// NumBatchArms is the number of havoc stacking-size arms. Spec §4.9
// requires "at least 7 batch arms covering roughly 1..128" — arm i is
// batch size 1<<i (power-of-two mode) or 1+i (linear mode).
const NumBatchArms = 8

// Grid holds one (operator bandit, batch bandit) pair per size bucket,
// the flat two-dimensional array the design notes call for.
type Grid struct {
	Op    [NumBatchBuckets]Strategy
	Batch [NumBatchBuckets]Strategy
}

// NewGrid builds a Grid where every bucket's op/batch bandits are built
// by the given factories, so callers can pick any of the nine
// strategies (or mix strategies across buckets, though the spec doesn't
// require that).
func NewGrid(newOp, newBatch func() Strategy) *Grid {
	g := &Grid{}
	for i := 0; i < NumBatchBuckets; i++ {
		g.Op[i] = newOp()
		g.Batch[i] = newBatch()
	}
	return g
}

// For returns the (op, batch) bandit pair for an input of length n.
func (g *Grid) For(n int) (op, batch Strategy) {
	b := BucketFor(n)
	return g.Op[b], g.Batch[b]
}
