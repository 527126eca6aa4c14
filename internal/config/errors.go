package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so callers can use
// errors.Is() while users still get a readable message.
var (
	// ErrNoInput is returned when no input document is given.
	ErrNoInput = errors.New("no input specified: provide at least one HTML file")

	// ErrInvalidTimeout is returned when the session timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidRescanInterval is returned when the rescan interval is negative.
	// Use 0 to disable the periodic re-scan.
	ErrInvalidRescanInterval = errors.New("invalid rescan interval: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrOutputDirRequired is returned when several inputs are given without
	// an output directory.
	ErrOutputDirRequired = errors.New("multiple inputs require --output-dir")

	// ErrInvalidPattern is returned when a document pattern in the config
	// file is not a valid glob.
	ErrInvalidPattern = errors.New("invalid document pattern")
)
