package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/nao1215/blurguard/internal/dom"
	"github.com/nao1215/blurguard/internal/scan"
	"github.com/nao1215/blurguard/internal/settings"
)

// settlePoll is how often a broadcast step checks that the engine has
// applied the new settings.
const settlePoll = 5 * time.Millisecond

// ErrNoPanel is returned by a broadcast step when the runner has no panel.
var ErrNoPanel = errors.New("broadcast step requires a settings panel")

// Session is the running engine a script acts on.
type Session interface {
	// Do runs fn as one loop turn.
	Do(ctx context.Context, fn func(doc *dom.Document)) error
	// Reconcile runs a full re-scan as one loop turn.
	Reconcile(ctx context.Context) (scan.Result, error)
	// Settle waits until queued mutation records have been delivered.
	Settle(ctx context.Context) error
	// Settings returns the snapshot in effect. It is only called from Do.
	Settings() settings.Settings
}

// Runner executes scripts against a session.
type Runner struct {
	session Session
	panel   *settings.Panel
	logger  *slog.Logger
}

// NewRunner creates a runner. panel may be nil when the script has no
// broadcast step.
func NewRunner(session Session, panel *settings.Panel, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		session: session,
		panel:   panel,
		logger:  logger,
	}
}

// Run executes every step in order and returns the number of steps that
// completed. It stops at the first failing step.
func (r *Runner) Run(ctx context.Context, script *Script) (int, error) {
	for i := range script.Steps {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		st := &script.Steps[i]
		r.logger.Debug("replay step", "index", i+1, "action", string(st.Action))
		if err := r.step(ctx, st); err != nil {
			return i, fmt.Errorf("step %d (%s): %w", i+1, st.Action, err)
		}
	}
	return len(script.Steps), nil
}

func (r *Runner) step(ctx context.Context, st *Step) error {
	switch st.Action {
	case ActionWait:
		return sleep(ctx, st.Duration)
	case ActionReconcile:
		res, err := r.session.Reconcile(ctx)
		if err != nil {
			return err
		}
		r.logger.Debug("replay reconcile", "rewritten", res.Rewritten, "units", res.Units)
		return nil
	case ActionBroadcast:
		return r.broadcast(ctx, st)
	}

	var stepErr error
	if err := r.session.Do(ctx, func(doc *dom.Document) {
		stepErr = apply(doc, st)
	}); err != nil {
		return err
	}
	if stepErr != nil {
		return stepErr
	}
	return r.session.Settle(ctx)
}

// apply performs one DOM step inside a loop turn.
func apply(doc *dom.Document, st *Step) error {
	target, err := resolve(doc, st)
	if err != nil {
		return err
	}

	switch st.Action {
	case ActionAppend:
		nodes, err := doc.ParseFragment(target, st.HTML)
		if err != nil {
			return err
		}
		for _, n := range nodes {
			if err := doc.AppendChild(target, n); err != nil {
				return err
			}
		}
		return nil
	case ActionInsertText:
		return doc.AppendChild(target, dom.NewText(st.Text))
	case ActionSetText:
		for c := target.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				return doc.SetText(c, st.Text)
			}
		}
		return doc.AppendChild(target, dom.NewText(st.Text))
	case ActionRemove:
		return doc.RemoveChild(target.Parent, target)
	case ActionAttachShadow:
		root, err := doc.AttachShadow(target, dom.ShadowMode(st.Mode))
		if err != nil {
			return err
		}
		if st.HTML == "" {
			return nil
		}
		return doc.SetInnerHTML(root, st.HTML)
	case ActionClick:
		doc.Click(target)
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownAction, st.Action)
}

// resolve finds the step's target, looking inside a shadow root when the
// step names a host.
func resolve(doc *dom.Document, st *Step) (*html.Node, error) {
	root := doc.Root()
	if st.shadow != nil {
		host := pick(st.shadow, root, 0)
		if host == nil {
			return nil, fmt.Errorf("%w: shadow host %q", ErrNoMatch, st.Shadow)
		}
		root = doc.ShadowRoot(host)
		if root == nil {
			return nil, fmt.Errorf("%w: %q has no shadow root", ErrNoMatch, st.Shadow)
		}
	}
	target := pick(st.target, root, st.Index)
	if target == nil {
		return nil, fmt.Errorf("%w: %q[%d]", ErrNoMatch, st.Target, st.Index)
	}
	return target, nil
}

func pick(sel cascadia.Selector, root *html.Node, index int) *html.Node {
	matches := sel.MatchAll(root)
	if index < 0 {
		index += len(matches)
	}
	if index < 0 || index >= len(matches) {
		return nil
	}
	return matches[index]
}

// broadcast writes the new flags through the panel and waits until the
// engine has applied them. Flags the step leaves out keep their current
// value.
func (r *Runner) broadcast(ctx context.Context, st *Step) error {
	if r.panel == nil {
		return ErrNoPanel
	}

	var before settings.Settings
	if err := r.session.Do(ctx, func(*dom.Document) {
		before = r.session.Settings()
	}); err != nil {
		return err
	}
	hideEmails, hideIps := before.HideEmails, before.HideIps
	if st.HideEmails != nil {
		hideEmails = *st.HideEmails
	}
	if st.HideIps != nil {
		hideIps = *st.HideIps
	}

	receivers, err := r.panel.Update(ctx, hideEmails, hideIps)
	if err != nil {
		return err
	}
	if receivers == 0 {
		r.logger.Warn("settings broadcast reached no engine")
		return nil
	}

	for {
		var current settings.Settings
		if err := r.session.Do(ctx, func(*dom.Document) {
			current = r.session.Settings()
		}); err != nil {
			return err
		}
		if current.Version > before.Version {
			return r.session.Settle(ctx)
		}
		if err := sleep(ctx, settlePoll); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
