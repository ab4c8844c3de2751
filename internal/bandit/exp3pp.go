package bandit

import (
	"math"

	"github.com/raresmith/branchfuzz/internal/rng"
)

// EXP3PPConfig holds the tunables named in spec.md §6 for EXP3++.
type EXP3PPConfig struct {
	Alpha float64 // EXP_ALPHA: confidence-bound width factor for the gap estimate
	Beta  float64 // EXP_BETA: numerator scale for the per-arm exploration rate xi_a
}

func DefaultEXP3PPConfig() EXP3PPConfig {
	return EXP3PPConfig{Alpha: 3, Beta: 256}
}

// EXP3PP (exp3++) is EXP3-IX's exponential-weights core plus a per-arm,
// gap-aware minimum exploration rate: arms that look clearly worse than
// the best get less forced exploration over time, unlike EXP3-IX's flat
// implicit-exploration term.
type EXP3PP struct {
	cfg     EXP3PPConfig
	weights []float64
	losses  []float64
	stats   []PlainArm // plain mean/count, used only for the gap estimate
	t       int
	forcedI int // next arm to force-pull during the first K rounds
	r       *rng.Source
}

func NewEXP3PP(n int, cfg EXP3PPConfig, r *rng.Source) *EXP3PP {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0 / float64(n)
	}
	return &EXP3PP{cfg: cfg, weights: w, losses: make([]float64, n), stats: make([]PlainArm, n), r: r}
}

func (e *EXP3PP) NumArms() int { return len(e.weights) }

func (e *EXP3PP) SelectArm(mask []bool) int {
	k := len(e.weights)
	// Force each arm once in the first K rounds.
	if e.t < k {
		for i := 0; i < k; i++ {
			idx := (e.forcedI + i) % k
			if !masked(mask, idx) {
				e.forcedI = (idx + 1) % k
				return idx
			}
		}
	}

	trusts := e.trustDistribution(mask)
	total := 0.0
	for i := range trusts {
		if !masked(mask, i) {
			total += trusts[i]
		}
	}
	if total <= 0 {
		return firstUnmasked(mask, k)
	}
	pick := e.r.UniformReal() * total
	acc := 0.0
	for i := range trusts {
		if masked(mask, i) {
			continue
		}
		acc += trusts[i]
		if pick <= acc {
			return i
		}
	}
	return firstUnmasked(mask, k)
}

// trustDistribution computes trusts_a = (1 - sum(eps)) * w_a + eps_a for
// every arm, per spec's table row for exp3++.
func (e *EXP3PP) trustDistribution(mask []bool) []float64 {
	k := float64(len(e.weights))
	t := float64(e.t + 1)

	eps := make([]float64, len(e.weights))
	sumEps := 0.0
	for i := range eps {
		if masked(mask, i) {
			continue
		}
		gap := e.gapEstimate(i)
		xi := math.Inf(1)
		if gap > 0 {
			xi = e.cfg.Beta * math.Log(t) / (t * gap * gap)
		}
		e1 := 0.5 / k
		e2 := 0.5 * math.Sqrt(math.Log(k)/(t*k))
		eps[i] = math.Min(e1, math.Min(e2, xi))
		sumEps += eps[i]
	}

	trusts := make([]float64, len(e.weights))
	for i := range trusts {
		if masked(mask, i) {
			continue
		}
		trusts[i] = (1-sumEps)*e.weights[i] + eps[i]
		if trusts[i] < 0 {
			trusts[i] = 0
		}
	}
	return trusts
}

// gapEstimate returns Δ̂_a, an LCB/UCB-based estimate of how far arm a's
// mean trails the best arm's mean (0 if a looks like the best arm).
func (e *EXP3PP) gapEstimate(i int) float64 {
	bestUCB := 0.0
	for j := range e.stats {
		if j == i {
			continue
		}
		if ucb := e.confBound(j, true); ucb > bestUCB {
			bestUCB = ucb
		}
	}
	lcb := e.confBound(i, false)
	gap := bestUCB - lcb
	if gap < 0 {
		gap = 0
	}
	return gap
}

func (e *EXP3PP) confBound(i int, upper bool) float64 {
	n := e.stats[i].NumSelected
	mean := e.stats[i].Mean()
	if n == 0 {
		if upper {
			return 1
		}
		return 0
	}
	width := e.cfg.Alpha * math.Sqrt(math.Log(float64(e.t+1))/float64(n))
	if upper {
		return math.Min(1, mean+width)
	}
	return math.Max(0, mean-width)
}

func (e *EXP3PP) AddReward(arm int, reward float64) {
	if arm < 0 || arm >= len(e.weights) {
		return
	}
	e.stats[arm].update(reward)

	k := float64(len(e.weights))
	t := float64(e.t + 1)
	eta := math.Sqrt(2 * math.Log(k) / (k * t))

	loss := 1 - reward
	e.losses[arm] += loss
	e.t++

	minLoss := math.Inf(1)
	for _, l := range e.losses {
		if l < minLoss {
			minLoss = l
		}
	}
	total := 0.0
	for i, l := range e.losses {
		w := math.Exp(-eta * (l - minLoss))
		e.weights[i] = w
		total += w
	}
	if total > 0 {
		for i := range e.weights {
			e.weights[i] /= total
		}
	}
}

func (e *EXP3PP) Weight(i int) float64 { return e.weights[i] }
