package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/blurguard/internal/config"
	"github.com/nao1215/blurguard/internal/database"
	blurlog "github.com/nao1215/blurguard/internal/log"
	"github.com/nao1215/blurguard/internal/model"
	"github.com/nao1215/blurguard/internal/pipeline"
	"github.com/nao1215/blurguard/internal/replay"
	"github.com/nao1215/blurguard/internal/report"
	"github.com/nao1215/blurguard/internal/settings"
)

// NewRenderCmd creates the render command.
func NewRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render [html-file...]",
		Short: "Conceal emails and IP addresses in HTML documents",
		Long: `Render loads each HTML document, conceals every email address and IP
address found in its text, and writes the document back out together with
the concealment stylesheet.

A single document is written to stdout unless --output-dir is given; the
report then goes to stderr. Several documents need --output-dir, where each
is written under its base name.

Examples:
  # Render one document to stdout
  blurguard render page.html > page.blurred.html

  # Render several documents concurrently
  blurguard render -d out/ a.html b.html c.html

  # Run a replay script against the live document before rendering
  blurguard render --script session.yaml page.html

  # Keep IP addresses visible for this run only
  blurguard render --hide-ips=false page.html

  # Write a Markdown report
  blurguard render -d out/ -m -o report.md *.html

Configuration file (.blurguard) example:
  defaults:
    stylesheet: true
  documents:
    "admin/*.html":
      hideIps: false
    "support.html":
      script: scripts/support.yaml`,
		Args: cobra.ArbitraryArgs,
		RunE: runRenderCmd,
	}

	cmd.Flags().StringP("output-dir", "d", "",
		"Directory that receives the rendered documents (default: stdout for a single document)")
	cmd.Flags().Bool("no-stylesheet", false,
		"Do not inject the concealment stylesheet")
	addSessionFlags(cmd)

	return cmd
}

// addSessionFlags registers the flags shared by render and inspect.
func addSessionFlags(cmd *cobra.Command) {
	// Settings flags
	cmd.Flags().Bool("hide-emails", true,
		"Hide email addresses (overrides the stored setting when given)")
	cmd.Flags().Bool("hide-ips", true,
		"Hide IP addresses (overrides the stored setting when given)")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the settings database")
	cmd.Flags().Bool("no-store", false,
		"Ignore the settings database and start from the defaults")

	// Session flags
	cmd.Flags().StringP("script", "s", "",
		"Replay script run against every document")
	cmd.Flags().Duration("rescan-interval", config.DefaultRescanInterval,
		"Period of the reconciliation scan (0 disables it)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each document")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of documents processed concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .blurguard in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("report-file", "o", "",
		"Write report to specified file path (creates directories if needed)")
}

// runRenderCmd executes the render command.
func runRenderCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	return execute(cmd, cfg)
}

// execute validates cfg and processes every input with signal handling.
func execute(cmd *cobra.Command, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runRender(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, _ = cmd.InheritedFlags().GetBool("verbose")
	}
	return verbose
}

// buildConfig creates a Config from command flags and the configuration
// file. Flags that a command does not define keep their defaults.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Inputs = args
	cfg.Verbose = getVerboseFlag(cmd)

	flags := cmd.Flags()
	var err error

	if flags.Lookup("output-dir") != nil {
		if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Lookup("no-stylesheet") != nil {
		if cfg.NoStylesheet, err = flags.GetBool("no-stylesheet"); err != nil {
			return nil, err
		}
	}

	// Only flags given on the command line override the stored settings.
	if flags.Changed("hide-emails") {
		v, err := flags.GetBool("hide-emails")
		if err != nil {
			return nil, err
		}
		cfg.HideEmails = &v
	}
	if flags.Changed("hide-ips") {
		v, err := flags.GetBool("hide-ips")
		if err != nil {
			return nil, err
		}
		cfg.HideIps = &v
	}

	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.NoStore, err = flags.GetBool("no-store"); err != nil {
		return nil, err
	}
	if cfg.ScriptPath, err = flags.GetString("script"); err != nil {
		return nil, err
	}
	if cfg.RescanInterval, err = flags.GetDuration("rescan-interval"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("report-file"); err != nil {
		return nil, err
	}

	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	found := config.FindConfigFile(configPath)
	if found == "" {
		// An explicit path that does not exist is an error; a missing
		// default file is not.
		if configPath != "" {
			return nil, fmt.Errorf("configuration file not found: %s", configPath)
		}
		return cfg, nil
	}

	cf, err := config.LoadConfigFile(found)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration file %s: %w", found, err)
	}
	cfg.ConfigFilePath = found
	cfg.DocumentConfigs = cf

	return cfg, nil
}

// setupLogger creates the redacting logger used by every command.
func setupLogger(w io.Writer, verbose bool) *slog.Logger {
	return blurlog.NewSecureLogger(w, verbose)
}

// runRender processes every input and writes the report.
func runRender(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) error {
	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	jobs, err := buildJobs(cfg)
	if err != nil {
		return err
	}

	// A document rendered to stdout pushes the report to stderr.
	var fallback io.Writer
	reportOut := stdout
	switch {
	case cfg.Discard:
		fallback = io.Discard
	case cfg.OutputDir == "":
		fallback = stdout
		reportOut = stderr
	}
	outputDir := cfg.OutputDir
	if cfg.Discard {
		outputDir = ""
	}

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return createPipeline(cfg, store, outputDir, fallback, logger)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	startTime := time.Now()
	reports := make([]*model.DocumentReport, len(jobs))
	var mu sync.Mutex
	err = bp.ProcessBatchWithCallback(ctx, jobs, func(r *model.DocumentReport, index int) {
		mu.Lock()
		defer mu.Unlock()

		reports[index] = r
		if len(jobs) > 1 {
			fmt.Fprintf(stderr, "[%d/%d] Processed: %s\n", index+1, len(jobs), r.Path)
		}
	})
	// Jobs skipped by cancellation still carry their report.
	for i, job := range jobs {
		if reports[i] == nil {
			reports[i] = job.Report
		}
	}
	logger.Debug("run completed", "documents", len(jobs), "elapsed", time.Since(startTime).Round(time.Millisecond))

	if reportErr := outputReport(cfg, reportOut, reports); reportErr != nil {
		return errors.Join(err, reportErr)
	}
	if err != nil {
		return err
	}

	failed := model.NewBatchReport(reports).Failed()
	if failed > 0 {
		return fmt.Errorf("%d of %d document(s) failed", failed, len(reports))
	}
	return nil
}

// openStore opens the settings database unless the run ignores it. The
// returned store is nil when sessions start from the defaults.
func openStore(cfg *config.Config, logger *slog.Logger) (settings.Store, func(), error) {
	if cfg.NoStore {
		return nil, func() {}, nil
	}

	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open settings database: %w", err)
	}
	logger.Debug("settings database opened", "path", db.Path())

	return db, func() {
		if err := db.Close(); err != nil {
			logger.Warn("failed to close settings database", "error", err)
		}
	}, nil
}

// buildJobs creates one job per input. Command-line settings flags win over
// the configuration file; a script named in the file wins over --script.
func buildJobs(cfg *config.Config) ([]*pipeline.Job, error) {
	scripts := make(map[string]*replay.Script)
	loadScript := func(path string) (*replay.Script, error) {
		if path == "" {
			return nil, nil
		}
		if s, ok := scripts[path]; ok {
			return s, nil
		}
		s, err := replay.LoadFile(path)
		if err != nil {
			return nil, err
		}
		scripts[path] = s
		return s, nil
	}

	jobs := make([]*pipeline.Job, 0, len(cfg.Inputs))
	for _, path := range cfg.Inputs {
		job := pipeline.NewJob(path)
		job.HideEmails = cfg.HideEmails
		job.HideIps = cfg.HideIps
		job.NoStylesheet = cfg.NoStylesheet

		scriptPath := cfg.ScriptPath
		if cfg.DocumentConfigs != nil {
			doc := cfg.DocumentConfigs.GetDocumentConfig(path)
			if job.HideEmails == nil {
				job.HideEmails = doc.HideEmails
			}
			if job.HideIps == nil {
				job.HideIps = doc.HideIps
			}
			if doc.Script != "" {
				scriptPath = doc.Script
			}
			if doc.Stylesheet != nil && !*doc.Stylesheet {
				job.NoStylesheet = true
			}
		}

		script, err := loadScript(scriptPath)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		job.Script = script
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// createPipeline builds the step sequence for one document.
func createPipeline(cfg *config.Config, store settings.Store, outputDir string, fallback io.Writer, logger *slog.Logger) *pipeline.Pipeline {
	session := pipeline.NewSessionStep(store,
		pipeline.WithRescanInterval(cfg.RescanInterval),
		pipeline.WithSessionTimeout(cfg.Timeout),
		pipeline.WithSessionLogger(logger),
	)
	p := pipeline.New(pipeline.WithLogger(logger))
	p.AddSteps(pipeline.DefaultSteps(session, pipeline.NewRenderStep(outputDir, fallback), logger)...)
	return p
}

// outputReport writes the report of one document, or a batch report for
// several, to the report file or w.
func outputReport(cfg *config.Config, w io.Writer, reports []*model.DocumentReport) error {
	output := w
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports list document paths, so only the owner may read them.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	writer := newReportWriter(cfg, output)
	if len(reports) == 1 {
		_, err := writer.Write(reports[0])
		return err
	}
	_, err := writer.WriteBatch(model.NewBatchReport(reports))
	return err
}

// newReportWriter selects the writer for the configured format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}
