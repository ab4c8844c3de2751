// Package trim implements the branch-preserving trimmer (spec.md §4.7):
// geometrically shrink an input while it still reaches the target edge.
package trim

import (
	"context"
	"math/bits"

	"github.com/raresmith/branchfuzz/internal/executor"
)

// Config holds the tunables named in spec.md §6.
type Config struct {
	MinBytes int // TRIM_MIN_BYTES
}

func DefaultConfig() Config {
	return Config{MinBytes: 4}
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// Run returns a trimmed copy of buf (buf itself is not modified) that
// keeps hitting target, per the geometric window-walk in spec §4.7. A
// TraceContains miss after removing a window means that window was load
// bearing; the trimmer restores it and advances past it instead of
// retrying at the same position. Crashes/timeouts during trimming are not
// findings and never stop progress; an executor error aborts (returns
// the error).
func Run(ctx context.Context, exec executor.Executor, buf []byte, target uint32) ([]byte, error) {
	cur := append([]byte(nil), buf...)
	l := len(cur)
	if l == 0 {
		return cur, nil
	}

	cfg := DefaultConfig()
	clampMin := func(s int) int {
		if s < cfg.MinBytes {
			return cfg.MinBytes
		}
		return s
	}
	step := clampMin(nextPow2(l) / 16)
	minStep := clampMin(nextPow2(l) / 1024)

	for step >= minStep {
		pos := 0
		for pos < l {
			removeLen := step
			if removeLen > l-pos {
				removeLen = l - pos
			}
			if removeLen <= 0 {
				break
			}

			candidate := make([]byte, 0, l-removeLen)
			candidate = append(candidate, cur[:pos]...)
			candidate = append(candidate, cur[pos+removeLen:]...)

			res, err := exec.Run(ctx, candidate)
			if err != nil {
				return cur, err
			}
			if res.Status == executor.StatusError {
				return cur, errExecutor{}
			}

			if res.Status == executor.StatusOK && exec.TraceContains(target) {
				cur = candidate
				l = len(cur)
				// Stay at pos: the window we just removed is gone, the
				// next bytes slid into its place.
				continue
			}
			pos += removeLen
		}
		step /= 2
	}

	return cur, nil
}

type errExecutor struct{}

func (errExecutor) Error() string { return "trim: executor reported a fatal error" }
