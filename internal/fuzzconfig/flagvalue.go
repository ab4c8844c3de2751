package fuzzconfig

import "github.com/raresmith/branchfuzz/internal/bandit"

// banditKindValue adapts bandit.Kind (a plain string type) to pflag.Value
// so --op-bandit/--batch-bandit get validated against the known kinds
// instead of accepting an arbitrary string.
type banditKindValue struct {
	dst *bandit.Kind
}

func newBanditKindValue(dst *bandit.Kind) *banditKindValue {
	return &banditKindValue{dst: dst}
}

func (v *banditKindValue) String() string {
	if v == nil || v.dst == nil {
		return ""
	}
	return string(*v.dst)
}

func (v *banditKindValue) Set(s string) error {
	switch bandit.Kind(s) {
	case bandit.KindUniform, bandit.KindUCB1, bandit.KindKLUCB, bandit.KindThompson,
		bandit.KindADWINThompson, bandit.KindDiscountedTS, bandit.KindDiscountedBE,
		bandit.KindEXP3IX, bandit.KindEXP3PP:
		*v.dst = bandit.Kind(s)
		return nil
	default:
		return &unknownKindError{s}
	}
}

func (v *banditKindValue) Type() string { return "banditKind" }

type unknownKindError struct{ s string }

func (e *unknownKindError) Error() string {
	return "fuzzconfig: unknown bandit kind " + e.s
}
