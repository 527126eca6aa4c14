package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/net/html"

	"github.com/nao1215/blurguard/internal/conceal"
	"github.com/nao1215/blurguard/internal/dom"
	"github.com/nao1215/blurguard/internal/engine"
	"github.com/nao1215/blurguard/internal/model"
	"github.com/nao1215/blurguard/internal/pattern"
	"github.com/nao1215/blurguard/internal/present"
	"github.com/nao1215/blurguard/internal/replay"
	"github.com/nao1215/blurguard/internal/settings"
	"github.com/nao1215/blurguard/internal/watch"
)

// ParseStep reads and parses the job's document.
type ParseStep struct{}

// NewParseStep creates a parse step.
func NewParseStep() *ParseStep {
	return &ParseStep{}
}

// Name returns the step name.
func (s *ParseStep) Name() string {
	return "parse"
}

// Do parses job.Source, or the file at job.Path when Source is empty.
func (s *ParseStep) Do(_ context.Context, job *Job) error {
	src := job.Source
	if src == nil {
		data, err := os.ReadFile(job.Path) //nolint:gosec // input path is given by the user
		if err != nil {
			return fmt.Errorf("failed to read document: %w", err)
		}
		src = data
	}
	doc, err := dom.Parse(bytes.NewReader(src))
	if err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}
	job.Doc = doc
	return nil
}

// SessionStep runs a concealment engine against the job's document: the
// initial scan, then the replay script if any, then a final settle.
// The rendered state is collected into the report before the engine stops.
type SessionStep struct {
	store    settings.Store
	interval time.Duration
	timeout  time.Duration
	matcher  *pattern.Matcher
	logger   *slog.Logger
}

// SessionStepOption configures a SessionStep.
type SessionStepOption func(*SessionStep)

// WithRescanInterval sets the engine's reconciliation period.
func WithRescanInterval(d time.Duration) SessionStepOption {
	return func(s *SessionStep) {
		s.interval = d
	}
}

// WithSessionTimeout bounds the whole session. Zero means no bound.
func WithSessionTimeout(d time.Duration) SessionStepOption {
	return func(s *SessionStep) {
		s.timeout = d
	}
}

// WithMatcher replaces the default pattern matcher.
func WithMatcher(m *pattern.Matcher) SessionStepOption {
	return func(s *SessionStep) {
		s.matcher = m
	}
}

// WithSessionLogger sets a custom logger for the session step.
func WithSessionLogger(logger *slog.Logger) SessionStepOption {
	return func(s *SessionStep) {
		s.logger = logger
	}
}

// NewSessionStep creates a session step reading settings from store.
// A nil store starts every session with the default settings.
func NewSessionStep(store settings.Store, opts ...SessionStepOption) *SessionStep {
	s := &SessionStep{
		store:    store,
		interval: engine.DefaultRescanInterval,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *SessionStep) Name() string {
	return "session"
}

// Do runs the session.
//
// The engine reads a per-session copy of the settings, so broadcasts from
// a replay script change this document only and never the shared store.
func (s *SessionStep) Do(ctx context.Context, job *Job) error {
	if job.Doc == nil {
		return ErrNoDocument
	}

	initial := s.initialSettings(ctx, job)
	sessionStore := settings.NewMemoryStore(initial.Values())
	hub := settings.NewHub()
	panel := settings.NewPanel(sessionStore, hub, s.logger)

	eng := engine.New(job.Doc,
		engine.WithStore(sessionStore),
		engine.WithHub(hub),
		engine.WithLogger(s.logger),
		engine.WithRescanInterval(s.interval),
		engine.WithMatcher(s.matcher),
	)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	runErr := make(chan error, 1)
	go func() {
		runErr <- eng.Run(ctx)
	}()

	err := s.drive(ctx, eng, panel, job)
	eng.Close()
	if rerr := <-runErr; err == nil {
		err = rerr
	}

	stats := eng.Stats()
	job.Report.TextNodes = stats.TextNodes
	job.Report.Rewritten = stats.Rewritten

	if errors.Is(err, context.DeadlineExceeded) {
		job.Report.TimedOut = true
	}
	return err
}

func (s *SessionStep) drive(ctx context.Context, eng *engine.Engine, panel *settings.Panel, job *Job) error {
	if err := eng.WaitReady(ctx); err != nil {
		return err
	}

	if job.Script != nil {
		n, err := replay.NewRunner(eng, panel, s.logger).Run(ctx, job.Script)
		job.Report.ReplaySteps = n
		if err != nil {
			return fmt.Errorf("replay failed: %w", err)
		}
	}

	if err := eng.Settle(ctx); err != nil {
		return err
	}
	return eng.Do(ctx, func(doc *dom.Document) {
		collect(doc, eng.Settings(), job.Report)
	})
}

// initialSettings reads the shared store and applies the job's overrides.
// An unreadable store is logged and the defaults are used.
func (s *SessionStep) initialSettings(ctx context.Context, job *Job) settings.Settings {
	cfg := settings.Default()
	if s.store != nil {
		loaded, err := settings.Load(ctx, s.store)
		if err != nil {
			s.logger.Warn("using default settings", "path", job.Path, "error", err)
		} else {
			cfg = loaded
		}
	}
	if job.HideEmails != nil {
		cfg.HideEmails = *job.HideEmails
	}
	if job.HideIps != nil {
		cfg.HideIps = *job.HideIps
	}
	return cfg
}

// collect records the current units and settings. It runs as a loop turn.
func collect(doc *dom.Document, cfg settings.Settings, report *model.DocumentReport) {
	report.Settings = cfg
	report.ShadowRoots = len(doc.ShadowRoots())
	report.Units = report.Units[:0]
	for _, wrapper := range watch.Units(doc) {
		u, ok := conceal.Load(wrapper)
		if !ok {
			continue
		}
		report.Units = append(report.Units, model.NewUnitRecord(u, inShadowRoot(doc, wrapper)))
	}
}

// inShadowRoot reports whether n's tree root is a shadow root.
func inShadowRoot(doc *dom.Document, n *html.Node) bool {
	for n.Parent != nil {
		n = n.Parent
	}
	return doc.IsShadowRoot(n)
}

// StylesheetStep injects the concealment stylesheet.
type StylesheetStep struct{}

// NewStylesheetStep creates a stylesheet step.
func NewStylesheetStep() *StylesheetStep {
	return &StylesheetStep{}
}

// Name returns the step name.
func (s *StylesheetStep) Name() string {
	return "stylesheet"
}

// Do injects the stylesheet unless the job opts out.
func (s *StylesheetStep) Do(_ context.Context, job *Job) error {
	if job.Doc == nil {
		return ErrNoDocument
	}
	if job.NoStylesheet {
		return nil
	}
	if _, err := present.InjectStylesheet(job.Doc); err != nil {
		return fmt.Errorf("failed to inject stylesheet: %w", err)
	}
	return nil
}

// RenderStep writes the document back out as HTML.
type RenderStep struct {
	// outputDir receives one file per job, named after the input.
	outputDir string

	// fallback receives the document when no output dir is set.
	fallback io.Writer
}

// NewRenderStep creates a render step. When outputDir is empty, documents
// are written to fallback.
func NewRenderStep(outputDir string, fallback io.Writer) *RenderStep {
	return &RenderStep{outputDir: outputDir, fallback: fallback}
}

// Name returns the step name.
func (s *RenderStep) Name() string {
	return "render"
}

// Do renders the document to job.Output, the output directory or the
// fallback writer, in that order of preference.
func (s *RenderStep) Do(_ context.Context, job *Job) error {
	if job.Doc == nil {
		return ErrNoDocument
	}
	if job.Output != nil {
		return job.Doc.Render(job.Output)
	}
	if s.outputDir == "" {
		if s.fallback == nil {
			return errors.New("no render destination")
		}
		return job.Doc.Render(s.fallback)
	}

	if err := os.MkdirAll(s.outputDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(s.outputDir, filepath.Base(job.Path))
	f, err := os.Create(path) //nolint:gosec // output path is built from user input
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := job.Doc.Render(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to render document: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	job.Report.Output = path
	return nil
}

// SummaryStep finalizes the report and logs a one-line summary.
type SummaryStep struct {
	logger *slog.Logger
}

// NewSummaryStep creates a summary step.
func NewSummaryStep(logger *slog.Logger) *SummaryStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryStep{logger: logger}
}

// Name returns the step name.
func (s *SummaryStep) Name() string {
	return "summary"
}

// Do sets the duration and logs the counts.
func (s *SummaryStep) Do(_ context.Context, job *Job) error {
	r := job.Report
	r.Duration = time.Since(r.DateProcessed)

	counts := r.CountByKind()
	s.logger.Info("document processed",
		"path", job.Path,
		"units", r.TotalUnits(),
		"email", counts[pattern.KindEmail.String()],
		"ipv4", counts[pattern.KindIPv4.String()],
		"ipv6", counts[pattern.KindIPv6.String()],
		"exposed", r.Exposed(),
		"elapsed", r.Duration,
	)
	return nil
}

// DefaultSteps returns the standard step sequence.
func DefaultSteps(session *SessionStep, render *RenderStep, logger *slog.Logger) []Step {
	return []Step{
		NewParseStep(),
		session,
		NewStylesheetStep(),
		render,
		NewSummaryStep(logger),
	}
}
