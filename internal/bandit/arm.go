// Package bandit implements the multi-armed bandit strategies that direct
// mutation-operator and havoc-batch-size selection (spec.md §4.3). Every
// strategy exposes the same two-method surface:
//
//	SelectArm(mask []bool) int       // mask[i]==false disables arm i
//	AddReward(arm int, reward float64)
//
// Dispatch is a tagged variant (Strategy is an interface, but there is
// exactly one concrete type live per bucket at a time) rather than a
// vtable-per-call hierarchy, matching the "avoid virtual calls on the hot
// path" design note.
package bandit

import "github.com/raresmith/branchfuzz/internal/adwin"

// PlainArm holds the sufficient statistics for stationary strategies
// (Uniform, UCB1, KL-UCB, Thompson, and EXP3++'s gap estimate).
type PlainArm struct {
	NumSelected  int
	TotalRewards float64
}

// Mean returns the sample mean, or 0 for an unpulled arm.
func (a *PlainArm) Mean() float64 {
	if a.NumSelected == 0 {
		return 0
	}
	return a.TotalRewards / float64(a.NumSelected)
}

func (a *PlainArm) update(reward float64) {
	a.NumSelected++
	a.TotalRewards += reward
}

// AdwinArm holds an ADWIN window per arm, for non-stationary reward
// streams (adwin-Thompson Sampling).
type AdwinArm struct {
	Window *adwin.Window
}

func newAdwinArm(cfg adwin.Config) *AdwinArm {
	return &AdwinArm{Window: adwin.New(cfg)}
}

// NumSelected and Sum derive from the window per spec's "W (window size)
// and sum derive counts and mean" note.
func (a *AdwinArm) NumSelected() int    { return a.Window.W() }
func (a *AdwinArm) Sum() float64        { return a.Window.Sum() }
func (a *AdwinArm) Mean() float64       { return a.Window.Estimate() }
func (a *AdwinArm) push(reward float64) { a.Window.Add(reward) }

// DiscountedArm holds decayed reward/loss totals for the discounted
// families (dts, dbe).
type DiscountedArm struct {
	NumSelected    int
	NumRewarded    int
	TotalRewards   float64
	TotalLosses    float64
	DisNumSelected float64
}

func (a *DiscountedArm) add(reward float64) {
	a.NumSelected++
	if reward > 0 {
		a.NumRewarded++
		a.TotalRewards += reward
	} else {
		a.TotalLosses += 1 - reward
	}
	a.DisNumSelected++
}

func (a *DiscountedArm) decay(gamma float64) {
	a.TotalRewards *= gamma
	a.TotalLosses *= gamma
	a.DisNumSelected *= gamma
}
