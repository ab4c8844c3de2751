package bandit

import "github.com/raresmith/branchfuzz/internal/rng"

// Uniform picks uniformly among unmasked arms. It is the baseline
// strategy every other one is compared against.
type Uniform struct {
	arms []PlainArm
	r    *rng.Source
}

// NewUniform builds a Uniform strategy with n arms.
func NewUniform(n int, r *rng.Source) *Uniform {
	return &Uniform{arms: make([]PlainArm, n), r: r}
}

func (u *Uniform) NumArms() int { return len(u.arms) }

func (u *Uniform) SelectArm(mask []bool) int {
	candidates := make([]int, 0, len(u.arms))
	for i := range u.arms {
		if !masked(mask, i) {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return firstUnmasked(mask, len(u.arms))
	}
	return candidates[u.r.Intn(len(candidates))]
}

func (u *Uniform) AddReward(arm int, reward float64) {
	if arm < 0 || arm >= len(u.arms) {
		return
	}
	u.arms[arm].update(reward)
}

// Arm exposes the per-arm stats for telemetry.
func (u *Uniform) Arm(i int) PlainArm { return u.arms[i] }
