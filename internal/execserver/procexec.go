// Package execserver provides concrete executor.Executor implementations:
// Fake, an in-memory stand-in for unit tests, and ProcExecutor, which
// forks a target binary per run and reads its edge coverage back from a
// pinned eBPF array map, the way the teacher's eBPF tracer instruments
// ASIC device calls.
package execserver

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cilium/ebpf"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/crypto/blake2b"

	"github.com/raresmith/branchfuzz/internal/executor"
)

// ProcConfig controls how ProcExecutor spawns and monitors the target.
type ProcConfig struct {
	// Path is the target binary. Args are appended after Path; the
	// mutated input is written to the target's stdin.
	Path string
	Args []string

	// CoverageMapPin is the bpffs path of a pinned BPF_MAP_TYPE_ARRAY
	// coverage map the target's instrumentation writes edge hit-counts
	// into, one uint32 count per edge index, reset before each run.
	CoverageMapPin string
	NumEdges       int

	Timeout     time.Duration
	MaxRSSBytes uint64
}

func DefaultProcConfig(path string, numEdges int) ProcConfig {
	return ProcConfig{
		Path:        path,
		NumEdges:    numEdges,
		Timeout:     2 * time.Second,
		MaxRSSBytes: 512 << 20,
	}
}

// ProcExecutor runs the target as a child process per call, resetting and
// re-reading the per-run coverage map around each run while diffing
// every trace against a persistent, process-lifetime edge set to decide
// whether the run touched new coverage. Only one Run may be in flight at
// a time: the coverage map is a single shared resource, not
// per-invocation, matching the teacher's single-device Tracer model.
type ProcExecutor struct {
	cfg   ProcConfig
	queue executor.Queue

	mu     sync.Mutex
	cov    *ebpf.Map
	global *globalCoverage
	queued int
}

// NewProcExecutor opens (without creating) the pinned coverage map. The
// map must already exist, created by loading the target's instrumented
// eBPF object ahead of time; ProcExecutor only consumes it. queue may be
// nil for callers that don't want ProcExecutor to grow the corpus
// itself; when set, Run enqueues every input whose trace touches an
// edge no prior Run has seen, spec.md's "on new coverage, enqueues it".
func NewProcExecutor(cfg ProcConfig, queue executor.Queue) (*ProcExecutor, error) {
	m, err := ebpf.LoadPinnedMap(cfg.CoverageMapPin, nil)
	if err != nil {
		return nil, fmt.Errorf("execserver: loading pinned coverage map %s: %w", cfg.CoverageMapPin, err)
	}
	if int(m.MaxEntries()) < cfg.NumEdges {
		m.Close()
		return nil, fmt.Errorf("execserver: coverage map has %d entries, need >= %d", m.MaxEntries(), cfg.NumEdges)
	}
	return &ProcExecutor{cfg: cfg, queue: queue, cov: m, global: newGlobalCoverage(cfg.NumEdges)}, nil
}

func (p *ProcExecutor) resetCoverage() error {
	zero := make([]byte, 4)
	for i := uint32(0); i < uint32(p.cfg.NumEdges); i++ {
		if err := p.cov.Put(i, zero); err != nil {
			return err
		}
	}
	return nil
}

func (p *ProcExecutor) readCoverage() ([]uint32, error) {
	var trace []uint32
	var val uint32
	for i := uint32(0); i < uint32(p.cfg.NumEdges); i++ {
		if err := p.cov.Lookup(i, &val); err != nil {
			return nil, err
		}
		if val > 0 {
			trace = append(trace, i)
		}
	}
	return trace, nil
}

// Run spawns the target once, feeding buf on stdin, watches its resource
// usage while it runs, and reads the coverage map once it exits or is
// killed for exceeding cfg.Timeout / cfg.MaxRSSBytes.
func (p *ProcExecutor) Run(ctx context.Context, buf []byte) (executor.RunResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.resetCoverage(); err != nil {
		return executor.RunResult{}, fmt.Errorf("execserver: resetting coverage map: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, p.cfg.Path, p.cfg.Args...)
	cmd.Stdin = bytes.NewReader(buf)

	if err := cmd.Start(); err != nil {
		return executor.RunResult{}, fmt.Errorf("execserver: starting target: %w", err)
	}

	stop := make(chan struct{})
	var rssKilled atomic.Bool
	go p.watchResources(runCtx, cmd.Process.Pid, stop, &rssKilled)

	err := cmd.Wait()
	close(stop)

	status := executor.StatusOK
	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		status = executor.StatusTimeout
	case rssKilled.Load():
		status = executor.StatusCrash
	case err != nil:
		if _, ok := err.(*exec.ExitError); ok {
			status = executor.StatusCrash
		} else {
			status = executor.StatusError
		}
	}

	trace, covErr := p.readCoverage()
	if covErr != nil {
		return executor.RunResult{}, fmt.Errorf("execserver: reading coverage map: %w", covErr)
	}

	queued, err := recordIfNovel(p.queue, p.global, p.cfg.NumEdges, buf, trace, &p.queued)
	if err != nil {
		return executor.RunResult{}, fmt.Errorf("execserver: enqueuing new coverage: %w", err)
	}

	return executor.RunResult{Status: status, Trace: trace, QueuedPaths: queued}, nil
}

// watchResources polls the child's RSS and kills it if it exceeds
// cfg.MaxRSSBytes, turning a memory-exploding target into a crash instead
// of letting the OOM killer take down the whole fuzzing host. killed is
// set before the kill signal is sent so Run can tell a resource kill
// apart from an ordinary crash.
func (p *ProcExecutor) watchResources(ctx context.Context, pid int, stop <-chan struct{}, killed *atomic.Bool) {
	if p.cfg.MaxRSSBytes == 0 {
		return
	}
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return
	}
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			mem, err := proc.MemoryInfo()
			if err != nil {
				continue
			}
			if mem.RSS > p.cfg.MaxRSSBytes {
				killed.Store(true)
				proc.Kill()
				return
			}
		}
	}
}

func (p *ProcExecutor) TraceContains(edge uint32) bool {
	var val uint32
	if err := p.cov.Lookup(edge, &val); err != nil {
		return false
	}
	return val > 0
}

// ExecCksum hashes the sorted-by-construction trace with blake2b, the
// cheap non-cryptographic-strength checksum spec.md §6 wants for
// deduplicating identical coverage signatures.
func (p *ProcExecutor) ExecCksum(trace []uint32) uint64 {
	buf := make([]byte, 4*len(trace))
	for i, e := range trace {
		binary.LittleEndian.PutUint32(buf[i*4:], e)
	}
	sum := blake2b.Sum256(buf)
	return binary.LittleEndian.Uint64(sum[:8])
}

func (p *ProcExecutor) NumEdges() int { return p.cfg.NumEdges }

func (p *ProcExecutor) Close() error {
	if p.cov == nil {
		return nil
	}
	return p.cov.Close()
}

