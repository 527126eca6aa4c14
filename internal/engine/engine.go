// Package engine runs the concealment engine against one live document.
//
// An Engine owns a host loop and drives everything from it: the initial
// scan after settings load, mutation delivery, the periodic reconciliation
// scan, pointer activation and settings broadcasts. Because all of these
// are loop turns, none of them ever run concurrently and the current
// settings snapshot has exactly one writer, the broadcast turn.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/blurguard/internal/dom"
	"github.com/nao1215/blurguard/internal/loop"
	"github.com/nao1215/blurguard/internal/pattern"
	"github.com/nao1215/blurguard/internal/scan"
	"github.com/nao1215/blurguard/internal/settings"
	"github.com/nao1215/blurguard/internal/watch"
)

// DefaultRescanInterval is the period of the reconciliation scan.
const DefaultRescanInterval = 100 * time.Millisecond

// subscriptionBuffer is how many broadcasts may wait for the loop.
const subscriptionBuffer = 16

// ErrAlreadyRunning is returned when Run is called twice.
var ErrAlreadyRunning = errors.New("engine is already running")

// Engine conceals PII in one document for as long as Run runs.
type Engine struct {
	doc     *dom.Document
	loop    *loop.Loop
	scanner *scan.Scanner
	watcher *watch.Watcher
	logger  *slog.Logger

	store    settings.Store
	hub      *settings.Hub
	interval time.Duration
	matcher  *pattern.Matcher
	initial  *settings.Settings

	// cfg is only read and written on the loop goroutine.
	cfg settings.Settings

	ready   chan struct{}
	started bool
	mu      sync.Mutex
	stats   scan.Result
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore sets the settings store read at start. Without one, the engine
// starts with the initial settings (or the defaults).
func WithStore(store settings.Store) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithHub subscribes the engine to settings broadcasts.
func WithHub(hub *settings.Hub) Option {
	return func(e *Engine) {
		e.hub = hub
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRescanInterval sets the reconciliation period. Zero or negative
// disables reconciliation.
func WithRescanInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.interval = d
	}
}

// WithMatcher replaces the default pattern matcher.
func WithMatcher(m *pattern.Matcher) Option {
	return func(e *Engine) {
		e.matcher = m
	}
}

// WithInitialSettings sets the settings used when no store is configured
// or the store cannot be read.
func WithInitialSettings(s settings.Settings) Option {
	return func(e *Engine) {
		e.initial = &s
	}
}

// New creates an engine for doc. Nothing happens until Run.
func New(doc *dom.Document, opts ...Option) *Engine {
	e := &Engine{
		doc:      doc,
		loop:     loop.New(),
		interval: DefaultRescanInterval,
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.scanner = scan.New(doc, scan.WithMatcher(e.matcher), scan.WithLogger(e.logger))
	e.watcher = watch.New(doc, e.scanner, e.current, e.logger)
	return e
}

func (e *Engine) current() settings.Settings {
	return e.cfg
}

// Run starts the engine and blocks until ctx is cancelled or Close is
// called. Settings are loaded asynchronously; the initial scan, the
// observer and the reconciliation task start in the turn after the load
// completes. On return the engine is torn down and further broadcasts are
// dropped.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	e.started = true
	e.mu.Unlock()

	e.doc.SetScheduler(e.loop)

	var sub *settings.Subscription
	if e.hub != nil {
		sub = e.hub.Subscribe(subscriptionBuffer)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := e.loop.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		cfg := e.loadSettings(ctx)
		e.loop.Post(func() { e.init(cfg) })
		return nil
	})
	if sub != nil {
		g.Go(func() error {
			e.pump(ctx, sub)
			return nil
		})
	}

	err := g.Wait()
	if sub != nil {
		sub.Close()
	}
	e.teardown()
	return err
}

// loadSettings reads the store. A failed read falls back to the initial or
// default settings rather than stopping the engine.
func (e *Engine) loadSettings(ctx context.Context) settings.Settings {
	fallback := settings.Default()
	if e.initial != nil {
		fallback = *e.initial
	}
	if e.store == nil {
		return fallback
	}
	cfg, err := settings.Load(ctx, e.store)
	if err != nil {
		e.logger.Warn("using default settings", "error", err)
		return fallback
	}
	return cfg
}

// init runs as the first engine turn.
func (e *Engine) init(cfg settings.Settings) {
	e.cfg = cfg

	res := e.watcher.Reconcile()
	e.record(res)
	e.logger.Debug("initial scan complete",
		"settings", cfg.String(),
		"text_nodes", res.TextNodes,
		"units", res.Units,
	)

	e.watcher.Start()
	if e.interval > 0 {
		e.loop.Every(e.interval, func() {
			e.record(e.watcher.Reconcile())
		})
	}
	close(e.ready)
}

// pump turns each broadcast into one loop turn.
func (e *Engine) pump(ctx context.Context, sub *settings.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.loop.Done():
			return
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			if msg.Action != settings.ActionUpdateSettings {
				continue
			}
			next := msg.Settings
			e.loop.Post(func() { e.applySettings(next) })
		}
	}
}

// applySettings is the only writer of e.cfg after init.
func (e *Engine) applySettings(msg settings.Settings) {
	next := e.cfg.Next(msg.HideEmails, msg.HideIps)
	e.cfg = next
	e.record(e.watcher.ApplySettings(next))
	e.logger.Debug("settings updated", "settings", next.String())
}

func (e *Engine) teardown() {
	e.watcher.Stop()
	e.loop.Close()
	e.doc.SetScheduler(nil)
}

func (e *Engine) record(res scan.Result) {
	e.mu.Lock()
	e.stats.Add(res)
	e.mu.Unlock()
}

// Ready is closed once settings are loaded and the initial scan is done.
func (e *Engine) Ready() <-chan struct{} {
	return e.ready
}

// WaitReady blocks until Ready or ctx is done.
func (e *Engine) WaitReady(ctx context.Context) error {
	select {
	case <-e.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.loop.Done():
		return loop.ErrClosed
	}
}

// Do runs fn as a loop turn and waits for it. Host code that touches the
// document while the engine runs must go through Do.
func (e *Engine) Do(ctx context.Context, fn func(doc *dom.Document)) error {
	return e.loop.Do(ctx, func() { fn(e.doc) })
}

// Settings returns the snapshot in effect. Call it from inside Do.
func (e *Engine) Settings() settings.Settings {
	return e.cfg
}

// Reconcile runs one full re-scan as a loop turn and waits for it.
func (e *Engine) Reconcile(ctx context.Context) (scan.Result, error) {
	var res scan.Result
	err := e.loop.Do(ctx, func() {
		res = e.watcher.Reconcile()
		e.record(res)
	})
	return res, err
}

// Settle runs a no-op turn, so that mutation records queued by earlier
// turns have been delivered when it returns.
func (e *Engine) Settle(ctx context.Context) error {
	// Delivery posted by the last mutation turn precedes this one; a second
	// turn covers records queued by that delivery.
	for range 2 {
		if err := e.loop.Do(ctx, func() {}); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns the totals of every scan so far.
func (e *Engine) Stats() scan.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Close stops the engine. Run returns shortly after.
func (e *Engine) Close() {
	e.loop.Close()
}
