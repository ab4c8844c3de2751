package bandit

import (
	"fmt"

	"github.com/raresmith/branchfuzz/internal/adwin"
	"github.com/raresmith/branchfuzz/internal/rng"
)

// Kind names the nine interchangeable strategies from spec.md §4.3.
type Kind string

const (
	KindUniform       Kind = "uniform"
	KindUCB1          Kind = "ucb1"
	KindKLUCB         Kind = "klucb"
	KindThompson      Kind = "thompson"
	KindADWINThompson Kind = "adsts"
	KindDiscountedTS  Kind = "dts"
	KindDiscountedBE  Kind = "dbe"
	KindEXP3IX        Kind = "expix"
	KindEXP3PP        Kind = "exppp"
)

// Params bundles every tunable a strategy constructor might need; unused
// fields are ignored by strategies that don't need them.
type Params struct {
	ADWIN      adwin.Config
	KLUCB      KLUCBConfig
	DTSGamma   float64
	DBEGamma   float64
	EXP3PP     EXP3PPConfig
}

// DefaultParams matches the §6 defaults for DTS_GAMMA, DBE_GAMMA, and the
// ADWIN/KL-UCB/EXP3++ sub-configs.
func DefaultParams() Params {
	return Params{
		ADWIN:    adwin.DefaultConfig(),
		KLUCB:    DefaultKLUCBConfig(),
		DTSGamma: 0.999,
		DBEGamma: 0.999,
		EXP3PP:   DefaultEXP3PPConfig(),
	}
}

// New builds a Strategy of the given kind with n arms.
func New(kind Kind, n int, p Params, r *rng.Source) (Strategy, error) {
	switch kind {
	case KindUniform:
		return NewUniform(n, r), nil
	case KindUCB1:
		return NewUCB1(n), nil
	case KindKLUCB:
		return NewKLUCB(n, p.KLUCB), nil
	case KindThompson:
		return NewThompson(n, r), nil
	case KindADWINThompson:
		return NewADWINThompson(n, p.ADWIN, r), nil
	case KindDiscountedTS:
		return NewDiscountedThompson(n, p.DTSGamma, false, r), nil
	case KindDiscountedBE:
		return NewDiscountedBoltzmann(n, p.DBEGamma, r), nil
	case KindEXP3IX:
		return NewEXP3IX(n, r), nil
	case KindEXP3PP:
		return NewEXP3PP(n, p.EXP3PP, r), nil
	default:
		return nil, fmt.Errorf("bandit: unknown strategy kind %q", kind)
	}
}
