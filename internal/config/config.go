package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultRescanInterval is the period of the reconciliation scan that
	// picks up changes the mutation observer cannot see, such as text
	// inside shadow roots attached after the initial scan.
	DefaultRescanInterval = 100 * time.Millisecond

	// DefaultTimeout bounds one document session, from parse to render.
	// Replay scripts with long waits need this raised via --timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultBatchSize of 4 concurrent documents keeps memory bounded;
	// every document owns its own tree, loop and engine.
	DefaultBatchSize = 4

	// AppName is the application name used for XDG directory paths.
	AppName = "blurguard"
)

// Config holds all configuration options for blurguard.
// It is populated from CLI flags and passed down explicitly rather than
// kept in global state.
type Config struct {
	// Inputs are the HTML files to process.
	Inputs []string

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// BatchSize is the number of documents processed concurrently.
	BatchSize int

	// RescanInterval is the reconciliation period. Zero disables the
	// periodic re-scan.
	RescanInterval time.Duration

	// Timeout bounds each document session.
	Timeout time.Duration

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .blurguard in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// DocumentConfigs holds per-document overrides loaded from the config file.
	DocumentConfigs *File

	// HideEmails and HideIps override the stored settings when non-nil.
	HideEmails *bool
	HideIps    *bool

	// ScriptPath is a replay script run against every document unless the
	// config file names one for it.
	ScriptPath string

	// NoStylesheet disables injecting the concealment stylesheet.
	NoStylesheet bool

	// OutputDir receives the rendered documents. When empty, a single
	// input is rendered to stdout.
	OutputDir string

	// Discard drops the rendered documents; only the report is produced.
	Discard bool

	// JSONReport enables JSON report output instead of human-readable format.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output instead of human-readable format.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	ReportFile string

	// DBDir is the directory of the settings database.
	// Defaults to XDG data directory (~/.local/share/blurguard on Linux).
	DBDir string

	// NoStore disables reading settings from the database.
	NoStore bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		RescanInterval: DefaultRescanInterval,
		Timeout:        DefaultTimeout,
		DBDir:          XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for blurguard.
// On Linux: ~/.local/share/blurguard
// On macOS: ~/Library/Application Support/blurguard
// On Windows: %LOCALAPPDATA%\blurguard
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for blurguard.
// On Linux: ~/.config/blurguard
// On macOS: ~/Library/Application Support/blurguard
// On Windows: %APPDATA%\blurguard
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Inputs) == 0 {
		return ErrNoInput
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	// Zero disables reconciliation; negative is a typo.
	if c.RescanInterval < 0 {
		return ErrInvalidRescanInterval
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	// Several outputs cannot share stdout.
	if len(c.Inputs) > 1 && c.OutputDir == "" && !c.Discard {
		return ErrOutputDirRequired
	}

	if c.DocumentConfigs != nil {
		if err := c.DocumentConfigs.Validate(); err != nil {
			return err
		}
	}

	return nil
}
