package bandit

import (
	"github.com/raresmith/branchfuzz/internal/adwin"
	"github.com/raresmith/branchfuzz/internal/rng"
)

// ADWINThompson is Thompson Sampling with each arm's sufficient
// statistics (sum, W) drawn from an ADWIN window instead of a lifetime
// counter, so non-stationary operators (an op that was great against an
// earlier target edge but stops finding anything) get forgotten.
type ADWINThompson struct {
	arms []*AdwinArm
	r    *rng.Source
}

func NewADWINThompson(n int, adwinCfg adwin.Config, r *rng.Source) *ADWINThompson {
	arms := make([]*AdwinArm, n)
	for i := range arms {
		arms[i] = newAdwinArm(adwinCfg)
	}
	return &ADWINThompson{arms: arms, r: r}
}

func (a *ADWINThompson) NumArms() int { return len(a.arms) }

func (a *ADWINThompson) SelectArm(mask []bool) int {
	best, bestSample := -1, -1.0
	for i, arm := range a.arms {
		if masked(mask, i) {
			continue
		}
		w := float64(arm.NumSelected())
		s := arm.Sum()
		alpha := s + 1
		beta := w - s + 1
		sample := a.r.Beta(alpha, beta)
		if sample > bestSample {
			bestSample = sample
			best = i
		}
	}
	if best == -1 {
		return firstUnmasked(mask, len(a.arms))
	}
	return best
}

func (a *ADWINThompson) AddReward(arm int, reward float64) {
	if arm < 0 || arm >= len(a.arms) {
		return
	}
	a.arms[arm].push(reward)
}

func (a *ADWINThompson) Arm(i int) *AdwinArm { return a.arms[i] }
