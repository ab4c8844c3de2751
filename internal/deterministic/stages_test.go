package deterministic

import (
	"context"
	"testing"

	"github.com/raresmith/branchfuzz/internal/branchmask"
	"github.com/raresmith/branchfuzz/internal/executor"
)

// sumExecutor reports a trace whose single element is the sum of the
// bytes at the configured relevant positions, so tests can construct
// inputs where only a known subset of offsets affects coverage.
type sumExecutor struct {
	relevant []int
}

func (s *sumExecutor) Run(_ context.Context, buf []byte) (executor.RunResult, error) {
	var sum uint32
	for _, p := range s.relevant {
		if p < len(buf) {
			sum += uint32(buf[p])
		}
	}
	return executor.RunResult{Status: executor.StatusOK, Trace: []uint32{sum}}, nil
}

func (s *sumExecutor) TraceContains(uint32) bool { return false }
func (s *sumExecutor) ExecCksum(trace []uint32) uint64 {
	if len(trace) == 0 {
		return 0
	}
	return uint64(trace[0])
}
func (s *sumExecutor) NumEdges() int { return 1 }
func (s *sumExecutor) Close() error  { return nil }

func TestFlip1MinesAutoDictionaryToken(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	exec := &sumExecutor{relevant: []int{2, 3, 4}}
	r := NewRunner(exec, DefaultConfig())
	dict := NewDictionary(DefaultConfig())

	res, err := r.Flip1(context.Background(), buf, nil, nil, dict)
	if err != nil {
		t.Fatal(err)
	}
	if res.Executions != len(buf)*8 {
		t.Fatalf("expected %d executions, got %d", len(buf)*8, res.Executions)
	}
	if len(dict.Auto) != 1 {
		t.Fatalf("expected exactly one mined token, got %d: %v", len(dict.Auto), dict.Auto)
	}
	want := []byte{3, 4, 5}
	got := dict.Auto[0]
	if len(got) != len(want) {
		t.Fatalf("token length mismatch: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token mismatch: got %v want %v", got, want)
		}
	}
}

func TestFlip1RespectsOverwriteMask(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	exec := &sumExecutor{relevant: []int{0, 1, 2, 3}}
	r := NewRunner(exec, DefaultConfig())
	mask := branchmask.Default(len(buf))
	mask.Clear(1, branchmask.BitOverwrite)
	mask.Clear(2, branchmask.BitOverwrite)

	res, err := r.Flip1(context.Background(), buf, mask, nil, NewDictionary(DefaultConfig()))
	if err != nil {
		t.Fatal(err)
	}
	if res.Executions != 2*8 {
		t.Fatalf("expected only the two unmasked bytes to be flipped (16 execs), got %d", res.Executions)
	}
}

func TestFlip8PopulatesEffectorMap(t *testing.T) {
	buf := make([]byte, 16)
	for i := range buf {
		buf[i] = byte(i + 1)
	}
	exec := &sumExecutor{relevant: []int{2}}
	r := NewRunner(exec, DefaultConfig())
	eff := NewEffectorMap(len(buf))

	if _, err := r.Flip8(context.Background(), buf, nil, eff); err != nil {
		t.Fatal(err)
	}
	if !eff.IsEffective(0) {
		t.Fatal("chunk containing the relevant byte should remain effective")
	}
	if eff.IsEffective(8) {
		t.Fatal("chunk with no relevant bytes should be marked ineffective")
	}
}

// constExecutor always reports no coverage change; used where the test
// only cares about execution bookkeeping, not discrimination.
type constExecutor struct{}

func (constExecutor) Run(_ context.Context, _ []byte) (executor.RunResult, error) {
	return executor.RunResult{Status: executor.StatusOK, Trace: []uint32{0}}, nil
}
func (constExecutor) TraceContains(uint32) bool       { return false }
func (constExecutor) ExecCksum(trace []uint32) uint64 { return 0 }
func (constExecutor) NumEdges() int                   { return 1 }
func (constExecutor) Close() error                    { return nil }

func TestArith8SkipsBitflipReachableDeltas(t *testing.T) {
	buf := []byte{10}
	r := NewRunner(constExecutor{}, DefaultConfig())
	res, err := r.Arith8(context.Background(), buf, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Executions == 0 {
		t.Fatal("expected at least some arithmetic substitutions to run")
	}
	if buf[0] != 10 {
		t.Fatal("Arith8 must restore the original byte after each trial")
	}
}

func TestExtrasOverwriteTriesEveryFit(t *testing.T) {
	buf := []byte("AAAAAAAA")
	r := NewRunner(constExecutor{}, DefaultConfig())
	tokens := []Token{[]byte("BB")}
	res, err := r.ExtrasOverwrite(context.Background(), buf, nil, tokens)
	if err != nil {
		t.Fatal(err)
	}
	if res.Executions != len(buf)-len(tokens[0])+1 {
		t.Fatalf("expected %d trials, got %d", len(buf)-len(tokens[0])+1, res.Executions)
	}
	if string(buf) != "AAAAAAAA" {
		t.Fatal("ExtrasOverwrite must restore the buffer after each trial")
	}
}

func TestExtrasInsertTriesEveryPosition(t *testing.T) {
	buf := []byte("AAA")
	r := NewRunner(constExecutor{}, DefaultConfig())
	tokens := []Token{[]byte("X")}
	_, res, err := r.ExtrasInsert(context.Background(), buf, nil, tokens)
	if err != nil {
		t.Fatal(err)
	}
	if res.Executions != len(buf)+1 {
		t.Fatalf("expected %d insertion trials, got %d", len(buf)+1, res.Executions)
	}
}

func TestDictionaryAddAutoRespectsBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinAutoExtra = 2
	cfg.MaxAutoExtra = 4
	cfg.MaxDictFile = 2
	d := NewDictionary(cfg)

	d.AddAuto(Token("a")) // too short
	d.AddAuto(Token("abcde")) // too long
	d.AddAuto(Token("ab"))
	d.AddAuto(Token("cd"))
	d.AddAuto(Token("ef")) // evicts "ab"

	if len(d.Auto) != 2 {
		t.Fatalf("expected 2 tokens after cap eviction, got %d: %v", len(d.Auto), d.Auto)
	}
	if string(d.Auto[0]) != "cd" || string(d.Auto[1]) != "ef" {
		t.Fatalf("expected oldest entry evicted, got %v", d.Auto)
	}
}
