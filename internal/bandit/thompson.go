package bandit

import "github.com/raresmith/branchfuzz/internal/rng"

// Thompson samples Beta(successes+1, failures+1) per arm and picks the
// largest draw. Stationary: successes/failures accumulate forever.
type Thompson struct {
	arms []PlainArm
	successes []float64
	r         *rng.Source
}

func NewThompson(n int, r *rng.Source) *Thompson {
	return &Thompson{arms: make([]PlainArm, n), successes: make([]float64, n), r: r}
}

func (t *Thompson) NumArms() int { return len(t.arms) }

func (t *Thompson) SelectArm(mask []bool) int {
	best, bestSample := -1, -1.0
	for i := range t.arms {
		if masked(mask, i) {
			continue
		}
		alpha := t.successes[i] + 1
		beta := float64(t.arms[i].NumSelected) - t.successes[i] + 1
		sample := t.r.Beta(alpha, beta)
		if sample > bestSample {
			bestSample = sample
			best = i
		}
	}
	if best == -1 {
		return firstUnmasked(mask, len(t.arms))
	}
	return best
}

func (t *Thompson) AddReward(arm int, reward float64) {
	if arm < 0 || arm >= len(t.arms) {
		return
	}
	t.arms[arm].update(reward)
	if reward > 0 {
		t.successes[arm] += reward
	}
}

func (t *Thompson) Arm(i int) PlainArm { return t.arms[i] }
