package havoc

import (
	"context"
	"testing"

	"github.com/raresmith/branchfuzz/internal/bandit"
	"github.com/raresmith/branchfuzz/internal/executor"
	"github.com/raresmith/branchfuzz/internal/rng"
)

// countingExecutor reports new coverage (QueuedPaths increments) every
// Nth run, deterministically exercising the stage-doubling path.
type countingExecutor struct {
	n     int
	calls int
	queue int
}

func (c *countingExecutor) Run(_ context.Context, _ []byte) (executor.RunResult, error) {
	c.calls++
	if c.n > 0 && c.calls%c.n == 0 {
		c.queue++
	}
	return executor.RunResult{Status: executor.StatusOK, QueuedPaths: c.queue}, nil
}

func (c *countingExecutor) TraceContains(uint32) bool       { return false }
func (c *countingExecutor) ExecCksum(trace []uint32) uint64 { return 0 }
func (c *countingExecutor) NumEdges() int                   { return 1 }
func (c *countingExecutor) Close() error                    { return nil }

func newBandits(t *testing.T, n int) (bandit.Strategy, bandit.Strategy) {
	t.Helper()
	r := rng.New(1)
	op, err := bandit.New(bandit.KindUniform, n, bandit.DefaultParams(), r)
	if err != nil {
		t.Fatal(err)
	}
	batch, err := bandit.New(bandit.KindUniform, bandit.NumBatchArms, bandit.DefaultParams(), r)
	if err != nil {
		t.Fatal(err)
	}
	return op, batch
}

func TestRunStageExecutesStageMaxIterations(t *testing.T) {
	exec := &countingExecutor{n: 0}
	opB, batchB := newBandits(t, NumOps)
	in := Input{Buf: []byte("hello world"), Score: 100}
	cfg := DefaultConfig()

	out, err := RunStage(context.Background(), exec, opB, batchB, in, cfg, rng.New(2))
	if err != nil {
		t.Fatal(err)
	}
	wantMax := int(float64(cfg.HavocCycles) * in.Score / cfg.Div / 100)
	if out.Executions != wantMax {
		t.Fatalf("expected %d executions (no rewards, stage_max never grows), got %d", wantMax, out.Executions)
	}
}

func TestRunStageDoublesOnReward(t *testing.T) {
	exec := &countingExecutor{n: 3}
	opB, batchB := newBandits(t, NumOps)
	cfg := DefaultConfig()
	cfg.HavocMin = 4
	cfg.HavocCycles = 4
	cfg.HavocMaxMult = 100
	in := Input{Buf: []byte("abcdefgh"), Score: 100}

	out, err := RunStage(context.Background(), exec, opB, batchB, in, cfg, rng.New(3))
	if err != nil {
		t.Fatal(err)
	}
	if out.Executions <= cfg.HavocMin {
		t.Fatalf("expected stage_max to grow past the floor on repeated rewards, got %d executions", out.Executions)
	}
	if out.NewFindings == 0 {
		t.Fatal("expected at least one rewarded iteration")
	}
}

func TestOperatorMaskDisablesUnavailableOps(t *testing.T) {
	in := Input{Buf: []byte("x")}
	m := operatorMask(in)
	if m[OpOverwriteExtra] || m[OpInsertExtra] {
		t.Fatal("extras ops should be disabled with no user dictionary")
	}
	if m[OpOverwriteAutoExtra] || m[OpInsertAutoExtra] {
		t.Fatal("auto-extras ops should be disabled with no auto dictionary")
	}
	if m[OpSpliceOverwrite] || m[OpSpliceInsert] {
		t.Fatal("splice ops should be disabled with no peer")
	}
	if !m[OpBitFlip] {
		t.Fatal("bit flip should always be available")
	}
}

func TestApplyOnceBitFlipChangesBuffer(t *testing.T) {
	r := rng.New(4)
	buf := []byte{0, 0, 0, 0}
	out, ok := applyOnce(OpBitFlip, append([]byte(nil), buf...), nil, Input{}, DefaultConfig(), r)
	if !ok {
		t.Fatal("expected bit flip to find a position in an unmasked buffer")
	}
	same := true
	for i := range buf {
		if out[i] != buf[i] {
			same = false
		}
	}
	if same {
		t.Fatal("expected the buffer to change after a bit flip")
	}
}

func TestFirstLastDiff(t *testing.T) {
	a := []byte("aaaaXXXXaaaa")
	b := []byte("aaaaYYYYbbbb")
	first, last, ok := firstLastDiff(a, b)
	if !ok {
		t.Fatal("expected a difference")
	}
	if first != 4 || last != 11 {
		t.Fatalf("expected diff range [4,11], got [%d,%d]", first, last)
	}
}
