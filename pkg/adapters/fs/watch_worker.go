package fs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/inkwell/pkg/core"
)

// DefaultWatchDelay coalesces the events of a single editor save.
const DefaultWatchDelay = 50 * time.Millisecond

// WatchWorker follows a note file edited by an external program and emits its
// decoded fields whenever the content changes.
//
// The parent directory is watched rather than the file because many editors
// save by writing a temp file and renaming it over the original.
type WatchWorker struct {
	*worker.BaseWorker
	path   string
	out    chan<- core.Fields
	logger *slog.Logger
	delay  time.Duration

	watcher   *fsnotify.Watcher
	debouncer *debouncer
	cancel    context.CancelFunc

	mu      sync.Mutex
	last    core.Fields
	emitted int
}

// NewWatchWorker creates a worker for path. Decoded fields are sent on out.
func NewWatchWorker(path string, out chan<- core.Fields, logger *slog.Logger) *WatchWorker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &WatchWorker{
		BaseWorker: worker.NewBaseWorker("note-watcher"),
		path:       filepath.Clean(path),
		out:        out,
		logger:     logger,
		delay:      DefaultWatchDelay,
	}
}

// Start reads the current content as the baseline and begins watching.
func (w *WatchWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	if f, err := w.read(); err == nil {
		w.mu.Lock()
		w.last = f
		w.mu.Unlock()
	} else if !os.IsNotExist(err) {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	w.watcher = watcher
	w.debouncer = newDebouncer(w.delay)

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

// Stop ends the watch loop.
func (w *WatchWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}
	return w.BaseWorker.Stop(ctx)
}

// State reports the worker status with the watched path.
func (w *WatchWorker) State() worker.State {
	w.mu.Lock()
	emitted := w.emitted
	w.mu.Unlock()

	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
			"path":              w.path,
			"emitted":           fmt.Sprint(emitted),
		}
	})
}

// Acknowledge records f as the file's known content, e.g. after the host
// rewrote the file itself, so it is not echoed back.
func (w *WatchWorker) Acknowledge(f core.Fields) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.last = f.Clone()
}

// Write replaces the file with f and acknowledges it.
func (w *WatchWorker) Write(f core.Fields) error {
	data, err := EncodeFields(f)
	if err != nil {
		return err
	}
	// Acknowledge what a reader will decode, not what was passed in.
	if known, err := DecodeFields(data); err == nil {
		w.Acknowledge(known)
	}
	return writeAtomic(w.path, data, 0o644)
}

func (w *WatchWorker) read() (core.Fields, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return core.Fields{}, err
	}
	return DecodeFields(data)
}

func (w *WatchWorker) run(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("watcher panic: %v", recovered)
			if w.logger.Enabled(ctx, slog.LevelDebug) {
				w.logger.Error("watcher panic", "error", err, "stack", string(debug.Stack()))
			} else {
				w.logger.Error("watcher panic", "error", err)
			}
		}
	}()
	defer w.watcher.Close()

	err = w.loop(ctx)

	// Pending emits must finish before the caller may close out.
	w.debouncer.stopAndWait(5 * time.Second)
	return err
}

func (w *WatchWorker) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			w.handle(ctx, event)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("fsnotify error", "error", wErr)
		}
	}
}

func (w *WatchWorker) handle(ctx context.Context, event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	w.logger.Debug("note file event", "path", event.Name, "op", event.Op.String())

	w.debouncer.add(w.path, func() { w.emit(ctx) })
}

func (w *WatchWorker) emit(ctx context.Context) {
	f, err := w.read()
	if err != nil {
		// Rename-based saves leave a short window without the file.
		w.logger.Debug("note file unreadable", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	if f.Equal(w.last) {
		w.mu.Unlock()
		return
	}
	w.last = f.Clone()
	w.emitted++
	w.mu.Unlock()

	select {
	case w.out <- f:
	case <-ctx.Done():
	}
}
