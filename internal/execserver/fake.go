package execserver

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/raresmith/branchfuzz/internal/executor"
)

// TraceFunc maps an input buffer to the edges it touches, the way a real
// instrumented binary's coverage map would. Tests provide one to make an
// Executor's behavior fully deterministic.
type TraceFunc func(buf []byte) []uint32

// Fake is an in-memory Executor for unit-testing the core algorithm
// packages, and for running a campaign with no real target binary at
// all (the default when fuzzctl is started without --target). It never
// spawns a process; Run calls Trace synchronously and always reports
// StatusOK. When Trace is nil, each distinct byte value b in the input
// touches edge b % Edges (a cheap, deterministic stand-in coverage
// function).
type Fake struct {
	Trace  TraceFunc
	Edges  int
	Queue  executor.Queue
	OnRun  func(buf []byte, trace []uint32) // test hook, called after every Run

	mu        sync.Mutex
	cov       *globalCoverage
	queued    int
	lastTrace map[uint32]bool
}

// NewFake builds a Fake with numEdges edges and the default
// byte-value-based trace function. queue may be nil for tests that
// don't care about corpus growth; when set, Run enqueues every input
// whose trace touches an edge no prior Run has seen.
func NewFake(numEdges int, queue executor.Queue) *Fake {
	return &Fake{Edges: numEdges, Queue: queue, cov: newGlobalCoverage(numEdges)}
}

func (f *Fake) trace(buf []byte) []uint32 {
	if f.Trace != nil {
		return f.Trace(buf)
	}
	if f.Edges == 0 {
		return nil
	}
	seen := make(map[uint32]bool, len(buf))
	out := make([]uint32, 0, len(buf))
	for _, b := range buf {
		edge := uint32(b) % uint32(f.Edges)
		if !seen[edge] {
			seen[edge] = true
			out = append(out, edge)
		}
	}
	return out
}

func (f *Fake) Run(_ context.Context, buf []byte) (executor.RunResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	trace := f.trace(buf)
	f.lastTrace = make(map[uint32]bool, len(trace))
	for _, e := range trace {
		f.lastTrace[e] = true
	}
	if f.OnRun != nil {
		f.OnRun(buf, trace)
	}
	queued, err := recordIfNovel(f.Queue, f.cov, f.Edges, buf, trace, &f.queued)
	if err != nil {
		return executor.RunResult{}, err
	}
	return executor.RunResult{
		Status:      executor.StatusOK,
		Trace:       trace,
		QueuedPaths: queued,
	}, nil
}

// QueuedPaths is the running count of inputs Run has enqueued into
// Queue for touching previously-unseen coverage.
func (f *Fake) QueuedPaths() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queued
}

func (f *Fake) TraceContains(edge uint32) bool {
	return f.lastTrace[edge]
}

func (f *Fake) ExecCksum(trace []uint32) uint64 {
	h := fnv.New64a()
	buf := make([]byte, 4)
	for _, e := range trace {
		buf[0] = byte(e)
		buf[1] = byte(e >> 8)
		buf[2] = byte(e >> 16)
		buf[3] = byte(e >> 24)
		h.Write(buf)
	}
	return h.Sum64()
}

func (f *Fake) NumEdges() int { return f.Edges }

func (f *Fake) Close() error { return nil }
