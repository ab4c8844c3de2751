package branchmask

import (
	"context"

	"github.com/raresmith/branchfuzz/internal/executor"
	"github.com/raresmith/branchfuzz/internal/rarebranch"
	"github.com/raresmith/branchfuzz/internal/rng"
)

// Result bundles the built mask with whether the targeted edge had to be
// blacklisted (degraded to untargeted fuzzing for this seed).
type Result struct {
	Mask       Mask
	Blacklisted bool
}

// Build runs the three sequential sweeps from spec §4.5 against buf,
// classifying every position's safety with respect to preserving target.
// Any executor error aborts the seed (the caller should treat a non-nil
// error as a Recoverable-abort per spec §7).
func Build(ctx context.Context, exec executor.Executor, buf []byte, target uint32, r *rng.Source, selector *rarebranch.Selector) (Result, error) {
	length := len(buf)
	m := Default(length)
	scratch := make([]byte, length)

	// 1. Overwrite sweep.
	copy(scratch, buf)
	for i := 0; i < length; i++ {
		orig := scratch[i]
		scratch[i] = 0xFF
		hit, err := run(ctx, exec, scratch, target)
		scratch[i] = orig
		if err != nil {
			return Result{}, err
		}
		if !hit {
			m.Clear(i, BitOverwrite)
		}
	}

	if m.OverwriteSafeCount() == 0 {
		if selector != nil {
			selector.Blacklist(target)
		}
		return Result{Mask: Default(length), Blacklisted: true}, nil
	}

	// 2. Delete sweep.
	for i := 0; i < length; i++ {
		spliced := make([]byte, 0, length-1)
		spliced = append(spliced, buf[:i]...)
		spliced = append(spliced, buf[i+1:]...)
		hit, err := run(ctx, exec, spliced, target)
		if err != nil {
			return Result{}, err
		}
		if !hit {
			m.Clear(i, BitDelete)
		}
	}

	// 3. Insert sweep, positions 0..=len.
	for i := 0; i <= length; i++ {
		randomByte := byte(r.UniformU32(256))
		spliced := make([]byte, 0, length+1)
		spliced = append(spliced, buf[:i]...)
		spliced = append(spliced, randomByte)
		spliced = append(spliced, buf[i:]...)
		hit, err := run(ctx, exec, spliced, target)
		if err != nil {
			return Result{}, err
		}
		if !hit {
			m.Clear(i, BitInsert)
		}
	}

	return Result{Mask: m}, nil
}

func run(ctx context.Context, exec executor.Executor, input []byte, target uint32) (hit bool, err error) {
	res, err := exec.Run(ctx, input)
	if err != nil {
		return false, err
	}
	if res.Status == executor.StatusError {
		return false, errAbort{}
	}
	// Crashes/timeouts never stop the sweep (spec §4.5 "any executor
	// failure aborts the seed" refers to hard executor errors, not target
	// crashes/timeouts); their trace is checked for the target edge like
	// that of any other run.
	return exec.TraceContains(target), nil
}

type errAbort struct{}

func (errAbort) Error() string { return "branchmask: executor reported a fatal error" }
