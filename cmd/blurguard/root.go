package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for blurguard.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blurguard",
		Short: "Conceal email addresses and IP addresses in HTML documents",
		Long: `blurguard finds email addresses and IPv4/IPv6 addresses in the text of
HTML documents and wraps each one in a blurred concealment unit that a
reader reveals with two clicks.

Documents are loaded into a live tree, including declarative shadow roots,
and watched for changes while an optional replay script edits them, so
content added after the first scan is concealed as well.

Whether emails and IP addresses are hidden is read from a settings
database shared by every run; use "blurguard settings" to change it.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewRenderCmd())
	cmd.AddCommand(NewInspectCmd())
	cmd.AddCommand(NewSettingsCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
