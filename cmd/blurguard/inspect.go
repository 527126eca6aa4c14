package main

import (
	"github.com/spf13/cobra"
)

// NewInspectCmd creates the inspect command.
func NewInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [html-file...]",
		Short: "Report what render would conceal without writing documents",
		Long: `Inspect runs the same session as render, replay script included, and
prints the report only. Reports name each unit by kind, state and a one-way
fingerprint; the concealed values themselves are never printed.

Examples:
  # Count the emails and IP addresses of a document
  blurguard inspect page.html

  # JSON report for several documents
  blurguard inspect --json a.html b.html`,
		Args: cobra.ArbitraryArgs,
		RunE: runInspectCmd,
	}

	addSessionFlags(cmd)

	return cmd
}

// runInspectCmd executes the inspect command.
func runInspectCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	cfg.Discard = true
	return execute(cmd, cfg)
}
