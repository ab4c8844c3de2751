package trim

import (
	"bytes"
	"context"
	"testing"

	"github.com/raresmith/branchfuzz/internal/executor"
)

const edge uint32 = 7

// hitExecutor hits edge iff bytes.Contains(input, marker).
type hitExecutor struct {
	marker  []byte
	lastHit bool
}

func (h *hitExecutor) Run(_ context.Context, input []byte) (executor.RunResult, error) {
	h.lastHit = bytes.Contains(input, h.marker)
	return executor.RunResult{Status: executor.StatusOK}, nil
}

func (h *hitExecutor) TraceContains(e uint32) bool {
	return e == edge && h.lastHit
}
func (h *hitExecutor) ExecCksum(t []uint32) uint64 { return 0 }
func (h *hitExecutor) NumEdges() int                { return 1 }
func (h *hitExecutor) Close() error                 { return nil }

func TestRunShrinksPaddingButKeepsMarker(t *testing.T) {
	marker := []byte("MAGIC")
	padding := bytes.Repeat([]byte{'x'}, 200)
	seed := append(append([]byte{}, padding...), marker...)

	exec := &hitExecutor{marker: marker}
	out, err := Run(context.Background(), exec, seed, edge)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(out, marker) {
		t.Fatalf("trimmed input lost the load-bearing marker: %q", out)
	}
	if len(out) >= len(seed) {
		t.Fatalf("expected trimming to shrink the input, got len %d (was %d)", len(out), len(seed))
	}
}

func TestRunOnEmptyInputIsNoop(t *testing.T) {
	exec := &hitExecutor{marker: []byte("x")}
	out, err := Run(context.Background(), exec, nil, edge)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty output, got %q", out)
	}
}

func TestRunStopsAtMinBytes(t *testing.T) {
	// Every byte is load bearing (predicate requires full original
	// content), so trimming should make no progress and never panic on a
	// zero-length buffer.
	exec := &hitExecutor{marker: []byte("AB")}
	seed := []byte("AB")
	out, err := Run(context.Background(), exec, seed, edge)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, seed) {
		t.Fatalf("expected no change to a fully load-bearing 2-byte seed, got %q", out)
	}
}
