package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/teranos/FINQ/errors"
)

// DefaultDebounce is how long a dropped file must stay quiet before it is
// ingested.
const DefaultDebounce = 500 * time.Millisecond

// ResultFunc observes each drop-directory ingestion.
type ResultFunc func(path string, res *Result, err error)

// DropWatcher ingests .json files written into a directory. Files named
// "<dataset>__<anything>.json" go to that dataset, all others to the
// default dataset. Ingestions run one at a time on a single worker. A file
// is ingested again only after its size or modification time changes.
type DropWatcher struct {
	dir            string
	defaultDataset string
	loader         *Loader
	logger         *zap.SugaredLogger
	watcher        *fsnotify.Watcher
	debouncePeriod time.Duration
	onResult       ResultFunc

	mu     sync.Mutex
	timers map[string]*time.Timer
	seen   map[string]fileStamp
	ctx    context.Context

	queue chan string
	stop  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// NewDropWatcher watches dir, creating it when missing.
func NewDropWatcher(dir, defaultDataset string, loader *Loader, logger *zap.SugaredLogger) (*DropWatcher, error) {
	if strings.TrimSpace(defaultDataset) == "" {
		return nil, errors.NewInvalidRequestError("drop directory needs a default dataset")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create drop directory %s", dir)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create fsnotify watcher")
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, errors.Wrapf(err, "watch %s", dir)
	}

	return &DropWatcher{
		dir:            dir,
		defaultDataset: defaultDataset,
		loader:         loader,
		logger:         logger,
		watcher:        w,
		debouncePeriod: DefaultDebounce,
		timers:         make(map[string]*time.Timer),
		seen:           make(map[string]fileStamp),
		ctx:            context.Background(),
		queue:          make(chan string, 64),
		stop:           make(chan struct{}),
	}, nil
}

// SetDebounce overrides DefaultDebounce. Call before Start.
func (dw *DropWatcher) SetDebounce(d time.Duration) {
	dw.debouncePeriod = d
}

// OnResult registers a hook called after every ingestion attempt.
// Call before Start.
func (dw *DropWatcher) OnResult(fn ResultFunc) {
	dw.onResult = fn
}

// Dir returns the watched directory.
func (dw *DropWatcher) Dir() string {
	return dw.dir
}

// Start runs the event loop and the ingestion worker until ctx is done or
// Close is called.
func (dw *DropWatcher) Start(ctx context.Context) {
	dw.mu.Lock()
	dw.ctx = ctx
	dw.mu.Unlock()

	dw.wg.Add(2)
	go dw.watchLoop(ctx)
	go dw.worker(ctx)
	dw.logger.Infow("Drop directory watcher started", "file", dw.dir, "dataset_id", dw.defaultDataset)
}

func (dw *DropWatcher) watchLoop(ctx context.Context) {
	defer dw.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-dw.stop:
			return
		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !isDropFile(event.Name) {
				continue
			}
			dw.schedule(event.Name)
		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			dw.logger.Warnw("Drop directory watcher error", "error", err)
		}
	}
}

// schedule restarts the quiet-period timer of path
func (dw *DropWatcher) schedule(path string) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if t, ok := dw.timers[path]; ok {
		t.Stop()
	}
	dw.timers[path] = time.AfterFunc(dw.debouncePeriod, func() {
		dw.mu.Lock()
		delete(dw.timers, path)
		dw.mu.Unlock()
		dw.enqueue(path)
	})
}

// enqueue blocks while the queue is full, until the worker is gone
func (dw *DropWatcher) enqueue(path string) bool {
	dw.mu.Lock()
	ctx := dw.ctx
	dw.mu.Unlock()

	select {
	case dw.queue <- path:
		return true
	case <-dw.stop:
		return false
	case <-ctx.Done():
		return false
	}
}

// fileStamp identifies one version of a dropped file
type fileStamp struct {
	size    int64
	modTime time.Time
}

func stampOf(info os.FileInfo) fileStamp {
	return fileStamp{size: info.Size(), modTime: info.ModTime()}
}

func (dw *DropWatcher) ingested(path string, st fileStamp) bool {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	prev, ok := dw.seen[path]
	return ok && prev.size == st.size && prev.modTime.Equal(st.modTime)
}

func (dw *DropWatcher) remember(path string, st fileStamp) {
	dw.mu.Lock()
	dw.seen[path] = st
	dw.mu.Unlock()
}

func (dw *DropWatcher) worker(ctx context.Context) {
	defer dw.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-dw.stop:
			return
		case path := <-dw.queue:
			dw.ingest(ctx, path)
		}
	}
}

func (dw *DropWatcher) ingest(ctx context.Context, path string) {
	datasetID := DatasetFor(path, dw.defaultDataset)

	info, statErr := os.Stat(path)
	if statErr == nil && dw.ingested(path, stampOf(info)) {
		dw.logger.Debugw("Drop file unchanged, skipped", "file", path)
		return
	}

	res, err := func() (*Result, error) {
		src, err := Describe(path, "")
		if err != nil {
			return nil, err
		}
		return dw.loader.Ingest(ctx, datasetID, src)
	}()
	if err != nil {
		dw.logger.Warnw("Drop file not ingested", "file", path, "dataset_id", datasetID, "error", err)
	}
	// A bad file stays bad until it is rewritten; storage failures are retried
	if statErr == nil && (err == nil || errors.IsInputError(err)) {
		dw.remember(path, stampOf(info))
	}

	if dw.onResult != nil {
		dw.onResult(path, res, err)
	}
}

// Sweep queues every .json file in the directory that is new or changed
// since it was last ingested and returns how many were queued.
func (dw *DropWatcher) Sweep() (int, error) {
	entries, err := os.ReadDir(dw.dir)
	if err != nil {
		return 0, errors.Wrapf(err, "read drop directory %s", dw.dir)
	}

	n := 0
	for _, e := range entries {
		if e.IsDir() || !isDropFile(e.Name()) {
			continue
		}
		path := filepath.Join(dw.dir, e.Name())
		if info, err := e.Info(); err == nil && dw.ingested(path, stampOf(info)) {
			continue
		}
		if !dw.enqueue(path) {
			break
		}
		n++
	}
	dw.logger.Debugw("Drop directory swept", "file", dw.dir, "count", n)
	return n, nil
}

// Close stops watching and waits for the in-flight ingestion to finish.
func (dw *DropWatcher) Close() error {
	var err error
	dw.once.Do(func() {
		close(dw.stop)
		dw.mu.Lock()
		for _, t := range dw.timers {
			t.Stop()
		}
		dw.mu.Unlock()
		err = dw.watcher.Close()
		dw.wg.Wait()
	})
	return err
}

// DatasetFor picks the dataset of a dropped file: the part of the file name
// before "__" when present, fallback otherwise.
func DatasetFor(path, fallback string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if ds, _, ok := strings.Cut(stem, "__"); ok && strings.TrimSpace(ds) != "" {
		return ds
	}
	return fallback
}

func isDropFile(name string) bool {
	base := filepath.Base(name)
	return strings.EqualFold(filepath.Ext(base), ".json") && !strings.HasPrefix(base, ".")
}
