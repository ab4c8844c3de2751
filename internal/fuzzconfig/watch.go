package fuzzconfig

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"github.com/raresmith/branchfuzz/internal/flog"
)

// Watcher reloads a config file on write and hands the new Config to
// Apply. Flag overrides bound via BindFlags are re-applied to each
// reload so a CLI flag always wins over whatever the file says, mirroring
// the precedence a one-shot LoadFile+BindFlags call establishes at
// startup.
type Watcher struct {
	path    string
	reapply func(*Config)
	log     *flog.Logger
}

// NewWatcher builds a Watcher for path. reapply re-binds any flag
// overrides onto a freshly loaded Config before Apply sees it; pass a
// no-op func if nothing should override the file.
func NewWatcher(path string, reapply func(*Config), log *flog.Logger) *Watcher {
	if reapply == nil {
		reapply = func(*Config) {}
	}
	return &Watcher{path: path, reapply: reapply, log: log}
}

// Run blocks, calling apply with every successfully reloaded Config until
// ctx is canceled or the underlying watch fails unrecoverably.
func (w *Watcher) Run(ctx context.Context, apply func(Config)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.path); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warnf("fuzzconfig: watch error on %s: %v", w.path, err)
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := LoadFile(w.path)
			if err != nil {
				w.log.Warnf("fuzzconfig: reload of %s failed, keeping prior config: %v", w.path, err)
				continue
			}
			w.reapply(&cfg)
			w.log.Infof("fuzzconfig: reloaded %s", w.path)
			apply(cfg)
		}
	}
}
