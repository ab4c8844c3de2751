// Command fuzzctl runs a fuzzing campaign: it loads configuration, wires
// the core algorithm packages to a target executor and a corpus, and
// drives FuzzOne in a loop while optionally exposing a live dashboard,
// a status endpoint, a gRPC control plane, and an interactive console,
// mirroring the teacher's cmd/cli entry point's flag-gated background
// goroutines and signal-driven shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/raresmith/branchfuzz/internal/bandit"
	"github.com/raresmith/branchfuzz/internal/corpus"
	"github.com/raresmith/branchfuzz/internal/deterministic"
	"github.com/raresmith/branchfuzz/internal/execserver"
	"github.com/raresmith/branchfuzz/internal/executor"
	"github.com/raresmith/branchfuzz/internal/flog"
	"github.com/raresmith/branchfuzz/internal/fuzzconfig"
	"github.com/raresmith/branchfuzz/internal/fuzzone"
	"github.com/raresmith/branchfuzz/internal/fuzzrpc"
	"github.com/raresmith/branchfuzz/internal/rarebranch"
	"github.com/raresmith/branchfuzz/internal/repl"
	"github.com/raresmith/branchfuzz/internal/rng"
	"github.com/raresmith/branchfuzz/internal/statusd"
	"github.com/raresmith/branchfuzz/internal/tui"
)

var (
	configPath  = pflag.String("config", "fuzzctl.json", "HuJSON config file")
	targetPath  = pflag.String("target", "", "instrumented target binary; empty runs an in-memory fake executor")
	coverageMap = pflag.String("coverage-map", "", "bpffs path of the target's pinned coverage map (required with --target)")
	numEdges    = pflag.Int("num-edges", 65536, "coverage map size")
	corpusPath  = pflag.String("corpus", "corpus.db", "bbolt corpus database path")
	dumpDir     = pflag.String("dump-dir", "corpus-dump", "directory raw corpus entries are snapshotted to")
	seedInput   = pflag.String("seed", "", "initial seed file; required when the corpus is empty")

	withTUI    = pflag.Bool("ui", false, "launch the live bubbletea dashboard")
	withStatus = pflag.String("status-addr", "", "address to serve the status HTTP endpoint on, e.g. 127.0.0.1:8090 (empty disables it)")
	withRPC    = pflag.String("rpc-addr", "", "address to serve the gRPC control plane on, e.g. 127.0.0.1:9090 (empty disables it)")
	withREPL   = pflag.Bool("repl", false, "run the interactive console on stdin/stdout")

	logLevel = pflag.String("log-level", "info", "debug|info|warn|error")
)

func parseLogLevel(s string) flog.Level {
	switch s {
	case "debug":
		return flog.LevelDebug
	case "warn":
		return flog.LevelWarn
	case "error":
		return flog.LevelError
	default:
		return flog.LevelInfo
	}
}

// buildExecutor wires queue into the chosen Executor so that every Run,
// not just the bootstrap seed, enqueues inputs whose trace touches
// coverage no prior run has touched (spec.md's Queue contract: "on new
// coverage, enqueues it").
func buildExecutor(queue *corpus.Queue, log *flog.Logger) (executor.Executor, error) {
	if *targetPath == "" {
		log.Infof("fuzzctl: no --target given, running the in-memory fake executor")
		return execserver.NewFake(*numEdges, queue), nil
	}
	if *coverageMap == "" {
		return nil, fmt.Errorf("fuzzctl: --coverage-map is required when --target is set")
	}
	cfg := execserver.DefaultProcConfig(*targetPath, *numEdges)
	cfg.CoverageMapPin = *coverageMap
	return execserver.NewProcExecutor(cfg, queue)
}

// seedCorpus bootstraps an empty corpus with one entry. exec's own
// novelty tracking normally enqueues it as a side effect of Run (the
// first run against an empty global coverage map almost always touches
// new edges); the explicit Enqueue below only fires as a fallback, so a
// seed with a genuinely empty trace still leaves the corpus non-empty.
func seedCorpus(q *corpus.Queue, exec executor.Executor) error {
	if q.Len() > 0 {
		return nil
	}
	var buf []byte
	if *seedInput != "" {
		data, err := os.ReadFile(*seedInput)
		if err != nil {
			return fmt.Errorf("fuzzctl: reading seed file: %w", err)
		}
		buf = data
	}
	if _, err := exec.Run(context.Background(), buf); err != nil {
		return fmt.Errorf("fuzzctl: running initial seed: %w", err)
	}
	if q.Len() > 0 {
		return nil
	}
	_, err := q.Enqueue(buf, make([]byte, (exec.NumEdges()+7)/8))
	return err
}

func buildGrid(cfg fuzzconfig.Config, r *rng.Source) (*bandit.Grid, error) {
	var buildErr error
	newOp := func() bandit.Strategy {
		s, err := bandit.New(cfg.OpBanditKind, bandit.NumHavocOps, cfg.BanditParams(), r)
		if err != nil {
			buildErr = err
		}
		return s
	}
	newBatch := func() bandit.Strategy {
		s, err := bandit.New(cfg.BatchBanditKind, bandit.NumBatchArms, cfg.BanditParams(), r)
		if err != nil {
			buildErr = err
		}
		return s
	}
	grid := bandit.NewGrid(newOp, newBatch)
	return grid, buildErr
}

func main() {
	pflag.Parse()
	log := flog.New(parseLogLevel(*logLevel))

	cfg, err := fuzzconfig.LoadFile(*configPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	cfg.BindFlags(pflag.CommandLine)
	pflag.Parse()

	queue, err := corpus.Open(*corpusPath, *dumpDir)
	if err != nil {
		log.Fatalf("fuzzctl: opening corpus: %v", err)
	}
	defer queue.Close()

	exec, err := buildExecutor(queue, log)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer exec.Close()

	if err := seedCorpus(queue, exec); err != nil {
		log.Fatalf("%v", err)
	}

	r := rng.New(cfg.Seed)
	hits := rarebranch.NewHitBits(exec.NumEdges())
	selector := rarebranch.New(cfg.RareBranchConfig(), hits)
	grid, err := buildGrid(cfg, r)
	if err != nil {
		log.Fatalf("fuzzctl: building bandit grid: %v", err)
	}
	dict := deterministic.NewDictionary(cfg.DeterministicConfig())
	driver := fuzzone.New(exec, queue, selector, grid, dict, cfg.FuzzOneConfig(), r)

	var statsMu sync.RWMutex
	var liveStats fuzzone.Stats
	readStats := func() fuzzone.Stats {
		statsMu.RLock()
		defer statsMu.RUnlock()
		return liveStats
	}
	addStats := func(delta fuzzone.Stats) {
		statsMu.Lock()
		defer statsMu.Unlock()
		liveStats.Executions += delta.Executions
		liveStats.StageFinds += delta.StageFinds
		liveStats.StageCycles += delta.StageCycles
	}
	queueLen := func() int { return queue.Len() }

	campaign := fuzzrpc.NewCampaign(readStats, queueLen)
	startedAt := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			log.Infof("fuzzctl: shutdown signal received")
			cancel()
		case <-campaign.ShutdownRequested():
			log.Infof("fuzzctl: shutdown requested over control plane")
			cancel()
		}
	}()

	cliArgs := append([]string(nil), os.Args[1:]...)
	watcher := fuzzconfig.NewWatcher(*configPath, func(c *fuzzconfig.Config) {
		fs := pflag.NewFlagSet("reload", pflag.ContinueOnError)
		c.BindFlags(fs)
		fs.Parse(cliArgs)
	}, log)
	go func() {
		if err := watcher.Run(ctx, func(fuzzconfig.Config) {
			log.Infof("fuzzctl: config reload observed; the running campaign keeps its startup configuration")
		}); err != nil {
			log.Warnf("fuzzctl: config watcher stopped: %v", err)
		}
	}()

	if *withStatus != "" {
		router := statusd.NewRouter(statusd.Sources{
			Stats:     readStats,
			QueueLen:  queueLen,
			Grid:      grid,
			Selector:  selector,
			Cfg:       cfg,
			StartedAt: startedAt,
		})
		srv := &http.Server{Addr: *withStatus, Handler: router}
		go func() {
			log.Infof("fuzzctl: status endpoint listening on %s", *withStatus)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warnf("fuzzctl: status server stopped: %v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	if *withRPC != "" {
		rpcSrv := fuzzrpc.NewServer(campaign)
		go func() {
			log.Infof("fuzzctl: gRPC control plane listening on %s", *withRPC)
			if err := rpcSrv.ListenAndServe(*withRPC); err != nil {
				log.Warnf("fuzzctl: gRPC server stopped: %v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			rpcSrv.GracefulStop()
		}()
	}

	if *withREPL {
		go func() {
			console := repl.New(campaign, os.Stdout)
			if err := console.Run(ctx); err != nil {
				log.Warnf("fuzzctl: console exited: %v", err)
			}
		}()
	}

	var program *tea.Program
	if *withTUI {
		snap := func() tui.Snapshot {
			return tui.BuildSnapshot(&tui.Campaign{
				Driver:    driver,
				Grid:      grid,
				Selector:  selector,
				Cfg:       cfg,
				Stats:     readStats,
				QueueLen:  queueLen,
				StartedAt: startedAt,
			})
		}
		program = tea.NewProgram(tui.New(snap), tea.WithAltScreen())
		go func() {
			if _, err := program.Run(); err != nil {
				log.Warnf("fuzzctl: dashboard exited: %v", err)
			}
			cancel()
		}()
	}

	log.Infof("fuzzctl: campaign starting")
	runLoop(ctx, driver, queue, campaign, addStats, log)

	if program != nil {
		program.Quit()
	}
	log.Infof("fuzzctl: campaign stopped")
}

func runLoop(ctx context.Context, driver *fuzzone.Driver, queue *corpus.Queue, campaign *fuzzrpc.Campaign, addStats func(fuzzone.Stats), log *flog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if campaign.Paused() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}

		entry, ok := queue.RandomEntry()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		_, result, err := driver.FuzzOneWithShadow(ctx, entry)
		if err != nil {
			log.Warnf("fuzzctl: FuzzOne aborted on entry %d: %v", entry.ID, err)
			continue
		}
		addStats(result.Real)

		if err := queue.Save(entry); err != nil {
			log.Warnf("fuzzctl: saving entry %d: %v", entry.ID, err)
		}
	}
}
