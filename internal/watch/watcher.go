// Package watch keeps a live document concealed as it changes.
//
// A Watcher reacts to mutation records with the narrowest re-scan that
// covers them, runs a periodic full re-scan for changes the observer cannot
// see (shadow roots are outside its subtree), and re-evaluates existing
// units when settings change.
package watch

import (
	"log/slog"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/nao1215/blurguard/internal/conceal"
	"github.com/nao1215/blurguard/internal/dom"
	"github.com/nao1215/blurguard/internal/scan"
	"github.com/nao1215/blurguard/internal/settings"
)

// unitSelector matches every unit wrapper in a tree.
var unitSelector = cascadia.MustCompile(conceal.Selector)

// SettingsFunc returns the snapshot in effect for the current turn.
type SettingsFunc func() settings.Settings

// Watcher applies the re-scan policy for one document.
type Watcher struct {
	doc      *dom.Document
	scanner  *scan.Scanner
	current  SettingsFunc
	logger   *slog.Logger
	observer *dom.Observer
}

// New creates a watcher. current is called on every callback to read the
// settings in effect.
func New(doc *dom.Document, scanner *scan.Scanner, current SettingsFunc, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		doc:     doc,
		scanner: scanner,
		current: current,
		logger:  logger,
	}
}

// Start observes childList and characterData changes under the document.
func (w *Watcher) Start() {
	if w.observer != nil {
		return
	}
	w.observer = w.doc.NewObserver(func(records []dom.MutationRecord, _ *dom.Observer) {
		w.Handle(records)
	})
	w.observer.Observe(w.doc.Root(), dom.ObserveOptions{
		ChildList:     true,
		CharacterData: true,
		Subtree:       true,
	})
}

// Stop disconnects the observer. Pending records are dropped.
func (w *Watcher) Stop() {
	if w.observer == nil {
		return
	}
	w.observer.Disconnect()
	w.observer = nil
}

// Flush delivers pending records synchronously.
func (w *Watcher) Flush() {
	if w.observer != nil {
		w.observer.Flush()
	}
}

// Handle processes one batch of records.
//
// A characterData record re-processes only the edited text node. A
// childList record scans each added element and processes each added text
// node that still has a parent. Removed nodes need no work.
func (w *Watcher) Handle(records []dom.MutationRecord) scan.Result {
	var res scan.Result
	cfg := w.current()
	if !cfg.AnyEnabled() {
		return res
	}
	for _, rec := range records {
		switch rec.Type {
		case dom.CharacterData:
			res.Add(w.scanner.ProcessText(rec.Target, cfg))
		case dom.ChildList:
			for _, n := range rec.AddedNodes {
				switch {
				case n.Type == html.ElementNode:
					// A node added and removed again in the same batch is gone.
					if n.Parent != nil {
						res.Add(w.scanner.Scan(n, cfg))
					}
				case n.Type == html.TextNode && n.Parent != nil:
					res.Add(w.scanner.ProcessText(n, cfg))
				}
			}
		}
	}
	if res.Rewritten > 0 {
		w.logger.Debug("mutation scan", "rewritten", res.Rewritten, "units", res.Units)
	}
	return res
}

// Reconcile performs a full re-scan of the document. It is the periodic
// safety net for changes no record reported.
func (w *Watcher) Reconcile() scan.Result {
	res := w.scanner.Scan(w.doc.Root(), w.current())
	if res.Rewritten > 0 {
		w.logger.Debug("reconcile scan", "rewritten", res.Rewritten, "units", res.Units)
	}
	return res
}

// Units returns every unit wrapper in the document and its shadow roots.
func (w *Watcher) Units() []*html.Node {
	return Units(w.doc)
}

// Units returns every unit wrapper in doc, shadow roots included, in
// document order with each shadow root after its host's light tree.
func Units(doc *dom.Document) []*html.Node {
	units := unitSelector.MatchAll(doc.Root())
	for _, sr := range doc.ShadowRoots() {
		units = append(units, unitSelector.MatchAll(sr)...)
	}
	return units
}

// ApplySettings re-evaluates every existing unit under next in place and,
// when next enables any kind, runs one full scan to pick up text that was
// left alone while concealment was off.
func (w *Watcher) ApplySettings(next settings.Settings) scan.Result {
	changed := 0
	for _, wrapper := range w.Units() {
		u, ok := conceal.Load(wrapper)
		if !ok {
			continue
		}
		updated := u.ApplySettings(next)
		if updated != u {
			conceal.Store(wrapper, updated)
			changed++
		}
	}
	w.logger.Debug("settings applied to units",
		"settings", next.String(),
		"changed", changed,
	)

	if !next.AnyEnabled() {
		return scan.Result{}
	}
	return w.scanner.Scan(w.doc.Root(), next)
}
