// Package executor defines the external collaborator contracts spec.md
// §6 specifies only at the interface: the Executor (process-forking and
// running the instrumented target) and the Queue (seed corpus). Concrete
// implementations live in internal/execserver and internal/corpus; every
// core algorithm package in this module only ever sees these interfaces.
package executor

import "context"

// Status is the Executor's classification of one run, forwarded
// unchanged to the core (spec §7: "Executor crashes and timeouts are not
// errors to the core").
type Status int

const (
	StatusOK Status = iota
	StatusCrash
	StatusTimeout
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusCrash:
		return "crash"
	case StatusTimeout:
		return "timeout"
	default:
		return "error"
	}
}

// RunResult is what one Executor.Run call returns.
type RunResult struct {
	Status Status
	// Trace lists the ids of the edges the run touched, each at most
	// once; it is read-only until the next run.
	Trace []uint32
	// QueuedPaths is the cumulative count of corpus entries the executor
	// has enqueued so far (from new-coverage discoveries); havoc reward
	// (spec §4.9 step 5) is 1 iff this increased since the prior
	// iteration.
	QueuedPaths int
}

// Executor is the process-forking, coverage-reporting collaborator the
// spec treats as external. Run executes bytes once against the
// instrumented target.
type Executor interface {
	Run(ctx context.Context, input []byte) (RunResult, error)

	// TraceContains reports whether the most recent Run's trace touched
	// edge.
	TraceContains(edge uint32) bool

	// ExecCksum hashes a coverage trace (spec §6: exec_cksum(current_trace)
	// -> u64), used by the deterministic stages' effector map and
	// auto-dictionary mining to detect "this mutation changed coverage".
	ExecCksum(trace []uint32) uint64

	// NumEdges is the size of the coverage map (map_size in spec §3).
	NumEdges() int

	Close() error
}
