package bandit

import (
	"math"

	"github.com/raresmith/branchfuzz/internal/rng"
)

// DiscountedThompson (dts) draws Beta(rewards_a+1, losses_a+1) per arm
// where rewards/losses are geometrically decayed by Gamma after every
// selection, biasing toward recent evidence. Optimistic mode clamps the
// sample to the posterior mean (never below it), matching spec's
// "optimistic variant clamps sample to posterior mean" note.
type DiscountedThompson struct {
	arms       []DiscountedArm
	gamma      float64
	optimistic bool
	r          *rng.Source
}

func NewDiscountedThompson(n int, gamma float64, optimistic bool, r *rng.Source) *DiscountedThompson {
	return &DiscountedThompson{arms: make([]DiscountedArm, n), gamma: gamma, optimistic: optimistic, r: r}
}

func (d *DiscountedThompson) NumArms() int { return len(d.arms) }

func (d *DiscountedThompson) SelectArm(mask []bool) int {
	best, bestSample := -1, -1.0
	for i := range d.arms {
		if masked(mask, i) {
			continue
		}
		alpha := d.arms[i].TotalRewards + 1
		beta := d.arms[i].TotalLosses + 1
		sample := d.r.Beta(alpha, beta)
		if d.optimistic {
			mean := alpha / (alpha + beta)
			if sample < mean {
				sample = mean
			}
		}
		if sample > bestSample {
			bestSample = sample
			best = i
		}
	}
	if best == -1 {
		return firstUnmasked(mask, len(d.arms))
	}
	return best
}

// AddReward adds the reward to the chosen arm, then decays every arm by
// gamma, per spec: "add to chosen arm before decay".
func (d *DiscountedThompson) AddReward(arm int, reward float64) {
	if arm >= 0 && arm < len(d.arms) {
		d.arms[arm].add(reward)
	}
	for i := range d.arms {
		d.arms[i].decay(d.gamma)
	}
}

func (d *DiscountedThompson) Arm(i int) DiscountedArm { return d.arms[i] }

// DiscountedBoltzmann (dbe) is a SIVO-style softmax selection over
// lazily-updated sample means, with exploration temperature scaled by the
// number of currently active (unmasked) arms.
type DiscountedBoltzmann struct {
	arms  []DiscountedArm
	gamma float64
	r     *rng.Source
}

func NewDiscountedBoltzmann(n int, gamma float64, r *rng.Source) *DiscountedBoltzmann {
	return &DiscountedBoltzmann{arms: make([]DiscountedArm, n), gamma: gamma, r: r}
}

func (d *DiscountedBoltzmann) NumArms() int { return len(d.arms) }

func (d *DiscountedBoltzmann) SelectArm(mask []bool) int {
	active := countUnmasked(mask, len(d.arms))
	if active == 0 {
		return firstUnmasked(mask, len(d.arms))
	}
	beta := 4 + 2*float64(active)

	maxMu := 0.0
	for i := range d.arms {
		if masked(mask, i) {
			continue
		}
		if mu := d.sampleMean(i); mu > maxMu {
			maxMu = mu
		}
	}
	if maxMu == 0 {
		maxMu = 1
	}

	weights := make([]float64, len(d.arms))
	total := 0.0
	for i := range d.arms {
		if masked(mask, i) {
			continue
		}
		mu := d.sampleMean(i)
		w := math.Pow(2, beta*mu/(2*maxMu))
		if math.IsInf(w, 1) || math.IsNaN(w) {
			// Scaling blew up: reset all arms per spec, and fall back to
			// uniform weights for this selection.
			d.resetArms()
			w = 1
		}
		weights[i] = w
		total += w
	}
	if total <= 0 {
		return firstUnmasked(mask, len(d.arms))
	}
	pick := d.r.UniformReal() * total
	acc := 0.0
	for i := range d.arms {
		if masked(mask, i) {
			continue
		}
		acc += weights[i]
		if pick <= acc {
			return i
		}
	}
	return firstUnmasked(mask, len(d.arms))
}

func (d *DiscountedBoltzmann) sampleMean(i int) float64 {
	if d.arms[i].DisNumSelected == 0 {
		return 0
	}
	return d.arms[i].TotalRewards / d.arms[i].DisNumSelected
}

func (d *DiscountedBoltzmann) resetArms() {
	for i := range d.arms {
		d.arms[i] = DiscountedArm{}
	}
}

// AddReward adds to the chosen arm then decays rewards and discounted
// counts by gamma, per spec's "after selection, decay rewards and
// discounted counts by gamma".
func (d *DiscountedBoltzmann) AddReward(arm int, reward float64) {
	if arm >= 0 && arm < len(d.arms) {
		d.arms[arm].add(reward)
	}
	for i := range d.arms {
		d.arms[i].decay(d.gamma)
	}
}

func (d *DiscountedBoltzmann) Arm(i int) DiscountedArm { return d.arms[i] }
