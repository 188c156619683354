// Package watch parses build logs as they appear in a directory.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/newhook/plclog/internal/logging"
	"github.com/newhook/plclog/internal/logparser"
	"github.com/newhook/plclog/internal/model"
	"github.com/newhook/plclog/internal/rules"
	"github.com/newhook/plclog/internal/service"
)

// DefaultDebounce is how long a file must be quiet before it is parsed.
const DefaultDebounce = 200 * time.Millisecond

// Config configures a Watcher.
type Config struct {
	// Dir is the directory watched for *.log files. It is not recursive.
	Dir string
	// DebounceDur coalesces bursts of writes to the same file.
	DebounceDur time.Duration
	// Parser defaults to logparser.NewParser().
	Parser *logparser.Parser
	// Classifier is optional. When set, logs with errors are classified.
	Classifier service.Classifier
}

// Summary is the outcome of processing one log file.
type Summary struct {
	Path           string
	Result         *model.ParseResult
	Classification *model.Classification
	Err            error
}

// String renders the summary as a single line.
func (s Summary) String() string {
	name := filepath.Base(s.Path)
	if s.Result == nil {
		return fmt.Sprintf("%s: error: %v", name, s.Err)
	}
	n := len(s.Result.Errors)
	if n == 0 {
		return name + ": no errors"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d error", name, n)
	if n != 1 {
		b.WriteString("s")
	}
	if s.Result.HasCascadingErrors {
		b.WriteString(", cascading")
	}
	primary := s.Result.Errors[rules.PrimaryError(s.Result)]
	fmt.Fprintf(&b, ", primary %s (%s)", primary.ErrorType, primary.Stage)
	switch {
	case s.Classification != nil:
		c := s.Classification
		fmt.Fprintf(&b, " -> %s/%s/%s", c.Severity, c.Stage, c.Complexity)
	case s.Err != nil:
		fmt.Fprintf(&b, " -> classify failed: %v", s.Err)
	}
	return b.String()
}

// Watcher reports a Summary for every *.log file created or written in a
// directory.
type Watcher struct {
	cfg       Config
	fsw       *fsnotify.Watcher
	summaries chan Summary
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

// New validates cfg and registers the directory with fsnotify.
func New(cfg Config) (*Watcher, error) {
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", cfg.Dir)
	}
	if cfg.DebounceDur <= 0 {
		cfg.DebounceDur = DefaultDebounce
	}
	if cfg.Parser == nil {
		cfg.Parser = logparser.NewParser()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(cfg.Dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", cfg.Dir, err)
	}

	return &Watcher{
		cfg:       cfg,
		fsw:       fsw,
		summaries: make(chan Summary, 16),
		done:      make(chan struct{}),
	}, nil
}

// Summaries returns the channel summaries are delivered on. It is closed
// after Stop or once the context passed to Start is cancelled.
func (w *Watcher) Summaries() <-chan Summary {
	return w.summaries
}

// Start begins processing events in the background.
func (w *Watcher) Start(ctx context.Context) error {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer close(w.summaries)
		w.loop(ctx)
	}()
	logging.Info("watching for build logs", "dir", w.cfg.Dir)
	return nil
}

// Stop ends the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	deb := newDebouncer(w.cfg.DebounceDur, w.done, ctx.Done())
	defer deb.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if relevant(ev) {
				deb.touch(ev.Name)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Warn("watcher error", "dir", w.cfg.Dir, "error", err)

		case f := <-deb.fired:
			if !deb.take(f) {
				continue
			}
			s := w.process(ctx, f.path)
			select {
			case w.summaries <- s:
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}
}

// firing reports that a path has been quiet for the debounce period. gen
// identifies the timer that fired.
type firing struct {
	path string
	gen  uint64
}

type pendingTimer struct {
	timer *time.Timer
	gen   uint64
}

// debouncer coalesces touches of a path into one firing. It is owned by the
// event loop; only the timer callbacks run on other goroutines.
type debouncer struct {
	delay   time.Duration
	pending map[string]pendingTimer
	fired   chan firing
	gen     uint64
	done    <-chan struct{}
	ctxDone <-chan struct{}
}

func newDebouncer(delay time.Duration, done, ctxDone <-chan struct{}) *debouncer {
	return &debouncer{
		delay:   delay,
		pending: make(map[string]pendingTimer),
		fired:   make(chan firing),
		done:    done,
		ctxDone: ctxDone,
	}
}

// touch restarts the quiet period for path. A timer that already fired but
// whose firing has not been taken yet becomes stale and is dropped by take.
func (d *debouncer) touch(path string) {
	if p, ok := d.pending[path]; ok {
		p.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending[path] = pendingTimer{
		gen: gen,
		timer: time.AfterFunc(d.delay, func() {
			select {
			case d.fired <- firing{path: path, gen: gen}:
			case <-d.done:
			case <-d.ctxDone:
			}
		}),
	}
}

// take reports whether f is the current firing for its path and, if so,
// clears the path.
func (d *debouncer) take(f firing) bool {
	p, ok := d.pending[f.path]
	if !ok || p.gen != f.gen {
		return false
	}
	delete(d.pending, f.path)
	return true
}

func (d *debouncer) stop() {
	for _, p := range d.pending {
		p.timer.Stop()
	}
}

func relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	return strings.EqualFold(filepath.Ext(ev.Name), ".log")
}

func (w *Watcher) process(ctx context.Context, path string) Summary {
	s := Summary{Path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		s.Err = fmt.Errorf("failed to read log: %w", err)
		return s
	}

	s.Result = w.cfg.Parser.Parse(string(data))
	logging.Debug("parsed build log", "path", path, "errors", len(s.Result.Errors))
	if w.cfg.Classifier == nil || len(s.Result.Errors) == 0 {
		return s
	}

	cls, err := w.cfg.Classifier.Classify(ctx, s.Result)
	if err == nil {
		err = cls.Validate()
	}
	if err != nil {
		logging.Warn("classification failed", "path", path, "error", err)
		s.Err = err
		return s
	}
	s.Classification = &cls
	return s
}
