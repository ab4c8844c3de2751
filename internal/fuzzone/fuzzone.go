// Package fuzzone orchestrates one seed through the full pipeline
// (spec.md §2's FuzzOne driver): calibrate, trim, rare-branch target
// selection, deterministic stages, havoc, and splice.
package fuzzone

import (
	"context"

	"github.com/raresmith/branchfuzz/internal/bandit"
	"github.com/raresmith/branchfuzz/internal/branchmask"
	"github.com/raresmith/branchfuzz/internal/deterministic"
	"github.com/raresmith/branchfuzz/internal/executor"
	"github.com/raresmith/branchfuzz/internal/havoc"
	"github.com/raresmith/branchfuzz/internal/rarebranch"
	"github.com/raresmith/branchfuzz/internal/rng"
	"github.com/raresmith/branchfuzz/internal/trim"
)

// Status is the driver's sole return value (spec §7: "a two-valued
// status {fuzzed-to-completion, skipped-or-aborted}"), split into three
// cases here so callers can distinguish a clean skip from an abort.
type Status int

const (
	StatusCompleted Status = iota
	StatusSkipped
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusSkipped:
		return "skipped"
	default:
		return "aborted"
	}
}

// Config bundles every stage's tunables plus the driver-level switches
// named in spec §6 and §9 (vanilla mode, shadow mode).
type Config struct {
	Deterministic deterministic.Config
	Havoc         havoc.Config
	Trim          trim.Config
	SpliceCycles  int
	VanillaMode   bool // skip RareBranchSelector entirely; mask stays default
	ShadowMode    bool
}

func DefaultConfig() Config {
	return Config{
		Deterministic: deterministic.DefaultConfig(),
		Havoc:         havoc.DefaultConfig(),
		Trim:          trim.DefaultConfig(),
		SpliceCycles:  5,
	}
}

// Stats accumulates the per-call counters the surrounding program
// renders: stage finds, stage cycles and executions. The blacklist size
// and rare_branch_exp are not kept here; they are read from the
// rarebranch.Selector.
type Stats struct {
	StageFinds   int
	StageCycles  int
	Executions   int
}

// Driver holds everything one FuzzOne call needs: the external
// collaborators (Executor, Queue), the process-wide shared state
// (HitBits-backed Selector, the bandit Grid), and the dictionary mined
// across seeds.
type Driver struct {
	Exec     executor.Executor
	Queue    executor.Queue
	Selector *rarebranch.Selector
	Grid     *bandit.Grid
	Dict     *deterministic.Dictionary
	Cfg      Config
	RNG      *rng.Source
}

func New(exec executor.Executor, queue executor.Queue, selector *rarebranch.Selector, grid *bandit.Grid, dict *deterministic.Dictionary, cfg Config, r *rng.Source) *Driver {
	return &Driver{Exec: exec, Queue: queue, Selector: selector, Grid: grid, Dict: dict, Cfg: cfg, RNG: r}
}

type queueCorpus struct {
	q executor.Queue
	r *rng.Source
}

func (c queueCorpus) RandomEntry(_ *rng.Source) ([]byte, bool) {
	e, ok := c.q.RandomEntry()
	if !ok {
		return nil, false
	}
	return e.Bytes, true
}

// FuzzOne runs the full pipeline against entry. A nil error with
// StatusAborted means a recoverable abort (spec §7); a non-nil error
// means a fatal executor failure the caller should treat as terminal.
func (d *Driver) FuzzOne(ctx context.Context, entry *executor.QueueEntry) (Status, Stats, error) {
	stats := Stats{}

	baseRes, err := d.Exec.Run(ctx, entry.Bytes)
	if err != nil {
		return StatusAborted, stats, err
	}
	stats.Executions++
	if baseRes.Status != executor.StatusOK {
		return StatusAborted, stats, nil
	}

	buf := append([]byte(nil), entry.Bytes...)
	var mask branchmask.Mask
	var target uint32
	haveTarget := false
	skipDeterministic := false

	if !d.Cfg.VanillaMode {
		fp := rarebranch.Bitset(entry.Footprint)
		fb := rarebranch.Bitset(entry.FuzzedBranches)

		edge, ok, allFuzzed := d.Selector.SelectTarget(fp, fb)
		if ok {
			target = edge
			haveTarget = true
			skipDeterministic = allFuzzed
		}
	}

	if !haveTarget && !d.Cfg.VanillaMode {
		return StatusSkipped, stats, nil
	}

	if haveTarget {
		trimmed, err := trim.Run(ctx, d.Exec, buf, target)
		if err != nil {
			return StatusAborted, stats, err
		}
		buf = trimmed

		built, err := branchmask.Build(ctx, d.Exec, buf, target, d.RNG, d.Selector)
		if err != nil {
			return StatusAborted, stats, err
		}
		mask = built.Mask
		if built.Blacklisted {
			skipDeterministic = true
		}
	} else {
		mask = branchmask.Default(len(buf))
	}

	if !skipDeterministic {
		if err := d.runDeterministic(ctx, &buf, mask, &stats); err != nil {
			return StatusAborted, stats, err
		}
	}

	bucket := bandit.BucketFor(len(buf))
	opB := d.Grid.Op[bucket]
	batchB := d.Grid.Batch[bucket]

	var peer []byte
	if d.Queue != nil && d.Queue.Len() > 1 {
		if e, ok := d.Queue.RandomEntry(); ok {
			peer = e.Bytes
		}
	}

	in := havoc.Input{
		Buf:         buf,
		Mask:        mask,
		Score:       100,
		UserExtras:  d.Dict.User,
		AutoExtras:  d.Dict.Auto,
		Peer:        peer,
		QueuedPaths: baseRes.QueuedPaths,
	}

	var corpus havoc.Corpus
	if d.Queue != nil {
		corpus = queueCorpus{q: d.Queue, r: d.RNG}
	}

	out, err := havoc.RunWithSplice(ctx, d.Exec, opB, batchB, in, d.Cfg.Havoc, corpus, d.Cfg.SpliceCycles, d.RNG)
	stats.Executions += out.Executions
	stats.StageFinds += out.NewFindings
	if err != nil {
		return StatusAborted, stats, err
	}

	stats.StageCycles++
	return StatusCompleted, stats, nil
}

// ShadowResult reports both runs' outcomes when shadow mode is active.
type ShadowResult struct {
	Shadow Stats // the untargeted, discarded-effort run
	Real   Stats
}

// FuzzOneWithShadow runs the pipeline twice when Cfg.ShadowMode is set:
// once in vanilla mode to measure what plain mutation alone would have
// found, then again with rare-branch targeting as the authoritative run
// (spec §9 "shadow mode"). The shadow run's queue/coverage effects are
// not rolled back: inputs it enqueued stay in the Queue and edges it
// covered stay recorded by the Executor, which does no rollback either;
// this driver only discards the shadow run's Stats. Treat shadow mode as a
// diagnostic: crash findings from the shadow run may be under-counted if
// the Executor doesn't separately track them.
func (d *Driver) FuzzOneWithShadow(ctx context.Context, entry *executor.QueueEntry) (Status, ShadowResult, error) {
	if !d.Cfg.ShadowMode {
		status, stats, err := d.FuzzOne(ctx, entry)
		return status, ShadowResult{Real: stats}, err
	}

	shadowCfg := d.Cfg
	shadowCfg.VanillaMode = true
	shadowEntry := &executor.QueueEntry{
		ID:        entry.ID,
		Bytes:     append([]byte(nil), entry.Bytes...),
		Footprint: entry.Footprint,
	}
	shadowDriver := &Driver{Exec: d.Exec, Queue: d.Queue, Selector: d.Selector, Grid: d.Grid, Dict: d.Dict, Cfg: shadowCfg, RNG: d.RNG}
	_, shadowStats, _ := shadowDriver.FuzzOne(ctx, shadowEntry)

	status, realStats, err := d.FuzzOne(ctx, entry)
	return status, ShadowResult{Shadow: shadowStats, Real: realStats}, err
}

func (d *Driver) runDeterministic(ctx context.Context, buf *[]byte, mask branchmask.Mask, stats *Stats) error {
	if len(*buf) == 0 {
		return nil
	}
	eff := deterministic.NewEffectorMap(len(*buf))
	r := deterministic.NewRunner(d.Exec, d.Cfg.Deterministic)

	type stage func(context.Context, []byte, branchmask.Mask, *deterministic.EffectorMap) (deterministic.StageResult, error)

	res, err := r.Flip1(ctx, *buf, mask, eff, d.Dict)
	stats.Executions += res.Executions
	if err != nil {
		return err
	}

	res, err = r.Flip8(ctx, *buf, mask, eff)
	stats.Executions += res.Executions
	if err != nil {
		return err
	}

	stages := []stage{r.Flip2, r.Flip4}
	if len(*buf) >= 2 {
		stages = append(stages, r.Flip16)
	}
	if len(*buf) >= 4 {
		stages = append(stages, r.Flip32, r.Arith32, r.Interest32)
	}
	stages = append(stages, r.Arith8, r.Interest8)
	if len(*buf) >= 2 {
		stages = append(stages, r.Arith16, r.Interest16)
	}

	for _, s := range stages {
		sr, err := s(ctx, *buf, mask, eff)
		stats.Executions += sr.Executions
		if err != nil {
			return err
		}
	}

	uo, err := r.ExtrasOverwrite(ctx, *buf, mask, d.Dict.User)
	stats.Executions += uo.Executions
	if err != nil {
		return err
	}

	newBuf, ui, err := r.ExtrasInsert(ctx, *buf, mask, d.Dict.User)
	stats.Executions += ui.Executions
	if err != nil {
		return err
	}
	*buf = newBuf

	ao, err := r.ExtrasOverwrite(ctx, *buf, mask, d.Dict.TopAuto(d.Cfg.Deterministic.UseAutoExtras))
	stats.Executions += ao.Executions
	if err != nil {
		return err
	}

	return nil
}
