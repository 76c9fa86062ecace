package rules

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads the catalog when rule files change on disk. Every reload
// goes back through the admission gate; a file that turns invalid keeps the
// previously admitted rules in place.
type Watcher struct {
	catalog *Catalog
	dir     string
	logger  *zap.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewWatcher(catalog *Catalog, dir string, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{catalog: catalog, dir: dir, logger: logger}
}

func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.dir); err != nil {
		fw.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})

	go w.loop(runCtx, fw)
	w.logger.Info("watching rules directory", zap.String("dir", w.dir))
	return nil
}

func (w *Watcher) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.cancel = nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	defer close(w.done)
	defer fw.Close()

	// Editors fire bursts of events per save; debounce before reloading.
	var pending *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			ext := strings.ToLower(filepath.Ext(ev.Name))
			if ext != ".yml" && ext != ".yaml" {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(250*time.Millisecond, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("rules watcher error", zap.Error(err))
		case <-reload:
			admitted, errs := w.catalog.LoadPath(w.dir)
			for _, e := range errs {
				w.logger.Warn("rule rejected on reload", zap.Error(e))
			}
			w.logger.Info("rules reloaded", zap.Int("admitted", admitted))
		}
	}
}
