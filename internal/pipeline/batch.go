package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/blurguard/internal/model"
)

// DefaultConcurrency is the number of documents processed at once when no
// limit is configured.
const DefaultConcurrency = 4

// BatchProcessor handles concurrent processing of multiple documents.
// It uses errgroup to manage goroutines and respect concurrency limits.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each job, so no step
	// state leaks between documents.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of concurrent jobs.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed reports in job order.
	results []*model.DocumentReport
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent jobs.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch runs every job concurrently, at most concurrency at a time.
//
// A failing job does not stop the others; its error is recorded in its
// report. Every job gets a report, in input order. The error return is
// only set when the batch itself was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, jobs []*Job) ([]*model.DocumentReport, error) {
	bp.logger.Debug("starting batch processing",
		"total_documents", len(jobs),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()
	bp.results = make([]*model.DocumentReport, len(jobs))

	err := bp.run(ctx, jobs, func(job *Job, index int) {
		bp.mu.Lock()
		bp.results[index] = job.Report
		bp.mu.Unlock()
	})

	// Jobs skipped by cancellation still get a report.
	for i, job := range jobs {
		if bp.results[i] == nil {
			if job.Report.Error == "" && err != nil {
				job.Report.Error = err.Error()
			}
			bp.results[i] = job.Report
		}
	}

	bp.logger.Debug("batch processing complete",
		"total_documents", len(jobs),
		"elapsed", time.Since(startTime),
	)

	return bp.results, err
}

// ProcessBatchWithCallback runs every job and calls callback as each one
// completes. The callback runs on the job's goroutine and must be safe for
// concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	jobs []*Job,
	callback func(report *model.DocumentReport, index int),
) error {
	return bp.run(ctx, jobs, func(job *Job, index int) {
		callback(job.Report, index)
	})
}

func (bp *BatchProcessor) run(ctx context.Context, jobs []*Job, done func(job *Job, index int)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Debug("processing document",
				"path", job.Path,
				"index", i+1,
				"total", len(jobs),
			)

			pipeline := bp.pipelineFactory()
			if err := pipeline.Execute(ctx, job); err != nil {
				// Recorded in the report; other jobs continue.
				bp.logger.Warn("document failed",
					"path", job.Path,
					"error", err,
				)
			}

			done(job, i)
			return nil
		})
	}

	return g.Wait()
}
