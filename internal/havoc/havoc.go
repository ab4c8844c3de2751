// Package havoc implements the stochastic stacked-mutation stage and
// the post-havoc splice retry loop (spec.md §4.9, §4.10): the bandit
// picks which of 23 atomic operator classes to apply and how many times
// to stack it, and a reward of 1 (new coverage) doubles the stage's
// iteration count (stage_max), up to a cap.
package havoc

import (
	"context"

	"github.com/raresmith/branchfuzz/internal/bandit"
	"github.com/raresmith/branchfuzz/internal/branchmask"
	"github.com/raresmith/branchfuzz/internal/deterministic"
	"github.com/raresmith/branchfuzz/internal/executor"
	"github.com/raresmith/branchfuzz/internal/rng"
)

// Op classes, spec.md §4.9 step 1, in the order the spec lists them.
const (
	OpBitFlip int = iota
	OpInterest8
	OpInterest16LE
	OpInterest16BE
	OpInterest32LE
	OpInterest32BE
	OpArith8
	OpArith16LE
	OpArith16BE
	OpArith32LE
	OpArith32BE
	OpRand8
	OpCloneBytes
	OpInsertSameByte
	OpOverwriteChunk
	OpOverwriteSameByte
	OpDeleteBytes
	OpOverwriteExtra
	OpInsertExtra
	OpOverwriteAutoExtra
	OpInsertAutoExtra
	OpSpliceOverwrite
	OpSpliceInsert
)

// NumOps mirrors bandit.NumHavocOps; kept local so this package's
// constant list is self-documenting.
const NumOps = bandit.NumHavocOps

// Config holds the §6 tunables this stage reads directly.
type Config struct {
	HavocMin     int
	HavocCycles  int
	HavocMaxMult int // bound for stage_max doubling, in units of 100*score
	Div          float64
	BlockSmall   int
	BlockMedium  int
	BlockLarge   int
	BlockXL      int
	ArithMax     int
}

func DefaultConfig() Config {
	return Config{
		HavocMin:     16,
		HavocCycles:  256,
		HavocMaxMult: 8000,
		Div:          1,
		BlockSmall:   32,
		BlockMedium:  128,
		BlockLarge:   1500,
		BlockXL:      32768,
		ArithMax:     35,
	}
}

// Input bundles everything one havoc call needs beyond the bandit pair.
type Input struct {
	Buf        []byte
	Mask       branchmask.Mask
	Score      float64
	UserExtras []deterministic.Token
	AutoExtras []deterministic.Token
	Peer       []byte // another corpus entry for splice ops; nil disables them

	// QueuedPaths is the Executor's cumulative enqueue count as of the
	// pre-havoc baseline run, the reward calculation's starting point
	// (spec §4.9 step 5 rewards the first havoc iteration too, not just
	// iterations after the first).
	QueuedPaths int
}

// Outcome reports what the stage did, for the driver's stage-counter
// bookkeeping and the caller's decision whether to enter the splice
// retry loop.
type Outcome struct {
	Executions  int
	NewFindings int

	// QueuedPaths is the Executor's cumulative enqueue count as of the
	// stage's last iteration, threaded into the next Input.QueuedPaths
	// by the splice retry loop so each retry's reward baseline reflects
	// what the prior stage already enqueued.
	QueuedPaths int
}

func operatorMask(in Input) []bool {
	m := make([]bool, NumOps)
	for i := range m {
		m[i] = true
	}
	if len(in.UserExtras) == 0 {
		m[OpOverwriteExtra] = false
		m[OpInsertExtra] = false
	}
	if len(in.AutoExtras) == 0 {
		m[OpOverwriteAutoExtra] = false
		m[OpInsertAutoExtra] = false
	}
	if in.Peer == nil || len(in.Peer) < 4 {
		m[OpSpliceOverwrite] = false
		m[OpSpliceInsert] = false
	}
	return m
}

// RunStage runs the spec §4.9 loop: select op + batch, stack the op
// `batch` times onto a fresh copy of the seed, execute once, reward both
// bandits, and repeat for stage_max iterations (doubled on every
// coverage-producing iteration, capped by HavocMaxMult·score).
func RunStage(ctx context.Context, exec executor.Executor, opBandit, batchBandit bandit.Strategy, in Input, cfg Config, r *rng.Source) (Outcome, error) {
	out := Outcome{}
	if len(in.Buf) == 0 {
		return out, nil
	}

	stageMax := int(float64(cfg.HavocCycles) * in.Score / cfg.Div / 100)
	if stageMax < cfg.HavocMin {
		stageMax = cfg.HavocMin
	}
	maxCap := int(float64(cfg.HavocMaxMult) * in.Score / 100)
	if maxCap < stageMax {
		maxCap = stageMax
	}

	mask := operatorMask(in)
	lastQueued := in.QueuedPaths
	out.QueuedPaths = lastQueued

	for i := 0; i < stageMax; i++ {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}

		op := opBandit.SelectArm(mask)
		t := batchBandit.SelectArm(nil)
		batch := 1 << uint(t)

		candidate := append([]byte(nil), in.Buf...)
		for b := 0; b < batch; b++ {
			next, ok := applyOnce(op, candidate, in.Mask, in, cfg, r)
			if !ok {
				break
			}
			candidate = next
		}

		res, err := exec.Run(ctx, candidate)
		if err != nil {
			return out, err
		}
		out.Executions++

		reward := 0.0
		if res.QueuedPaths > lastQueued {
			reward = 1
			out.NewFindings++
		}
		lastQueued = res.QueuedPaths
		out.QueuedPaths = lastQueued

		opBandit.AddReward(op, reward)
		batchBandit.AddReward(t, reward)

		if reward == 1 && stageMax < maxCap {
			stageMax *= 2
			if stageMax > maxCap {
				stageMax = maxCap
			}
		}
	}

	return out, nil
}
