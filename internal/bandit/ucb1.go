package bandit

import "math"

// UCB1 selects the arm maximizing mean + sqrt(2 ln t / n_a), preferring
// unseen arms unconditionally (their bound is +Inf).
type UCB1 struct {
	arms []PlainArm
	t    int
}

func NewUCB1(n int) *UCB1 {
	return &UCB1{arms: make([]PlainArm, n)}
}

func (u *UCB1) NumArms() int { return len(u.arms) }

func (u *UCB1) SelectArm(mask []bool) int {
	best, bestScore := -1, math.Inf(-1)
	for i := range u.arms {
		if masked(mask, i) {
			continue
		}
		if u.arms[i].NumSelected == 0 {
			return i
		}
		mean := u.arms[i].Mean()
		bonus := math.Sqrt(2 * math.Log(float64(u.t+1)) / float64(u.arms[i].NumSelected))
		score := mean + bonus
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	if best == -1 {
		return firstUnmasked(mask, len(u.arms))
	}
	return best
}

func (u *UCB1) AddReward(arm int, reward float64) {
	if arm < 0 || arm >= len(u.arms) {
		return
	}
	u.arms[arm].update(reward)
	u.t++
}

func (u *UCB1) Arm(i int) PlainArm { return u.arms[i] }
