package pipeline

import (
	"errors"
	"io"

	"github.com/nao1215/blurguard/internal/dom"
	"github.com/nao1215/blurguard/internal/model"
	"github.com/nao1215/blurguard/internal/replay"
)

// ErrNoDocument is returned by steps that need a parsed document when
// ParseStep has not run.
var ErrNoDocument = errors.New("job has no parsed document")

// Job is one document moving through the pipeline.
type Job struct {
	// Path is the input file. It also names the job in logs and reports.
	Path string

	// Source, when set, is parsed instead of reading Path.
	Source []byte

	// HideEmails and HideIps override the stored settings when non-nil.
	HideEmails *bool
	HideIps    *bool

	// Script is run against the live document after the initial scan.
	Script *replay.Script

	// NoStylesheet skips stylesheet injection.
	NoStylesheet bool

	// Output receives the rendered document instead of a file.
	Output io.Writer

	// Doc is set by ParseStep.
	Doc *dom.Document

	// Report accumulates the results of every step.
	Report *model.DocumentReport
}

// NewJob creates a job for path.
func NewJob(path string) *Job {
	return &Job{
		Path:   path,
		Report: model.NewDocumentReport(path),
	}
}
