package bandit

import (
	"math"

	"github.com/raresmith/branchfuzz/internal/rng"
)

// EXP3IX is EXP3 with implicit exploration: losses are biased by a small
// gamma term in the denominator instead of mixing in an explicit uniform
// distribution, which keeps the weight update stable for adversarial /
// non-stationary reward streams. eta and gamma are recomputed from t each
// round per spec's table (eta = sqrt(2 ln K / (K t)), gamma = eta/2).
type EXP3IX struct {
	weights []float64
	losses  []float64
	t       int
	r       *rng.Source
}

func NewEXP3IX(n int, r *rng.Source) *EXP3IX {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0 / float64(n)
	}
	return &EXP3IX{weights: w, losses: make([]float64, n), r: r}
}

func (e *EXP3IX) NumArms() int { return len(e.weights) }

func (e *EXP3IX) SelectArm(mask []bool) int {
	total := 0.0
	for i := range e.weights {
		if !masked(mask, i) {
			total += e.weights[i]
		}
	}
	if total <= 0 {
		return firstUnmasked(mask, len(e.weights))
	}
	pick := e.r.UniformReal() * total
	acc := 0.0
	for i := range e.weights {
		if masked(mask, i) {
			continue
		}
		acc += e.weights[i]
		if pick <= acc {
			return i
		}
	}
	return firstUnmasked(mask, len(e.weights))
}

func (e *EXP3IX) rates() (eta, gamma float64) {
	k := float64(len(e.weights))
	t := float64(e.t + 1)
	eta = math.Sqrt(2 * math.Log(k) / (k * t))
	gamma = eta / 2
	return
}

// AddReward updates the chosen arm's loss with the implicit-exploration
// correction, then renormalizes every arm's weight via
// w_a ∝ exp(-η (loss_a - min_loss)).
func (e *EXP3IX) AddReward(arm int, reward float64) {
	if arm < 0 || arm >= len(e.weights) {
		return
	}
	eta, gamma := e.rates()
	loss := 1 - reward
	e.losses[arm] += loss / (e.weights[arm] + gamma)
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

// Weight exposes the current weight for telemetry / the §8 "weights sum
// to 1" invariant check.
func (e *EXP3IX) Weight(i int) float64 { return e.weights[i] }
