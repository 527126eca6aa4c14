package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/blurguard/internal/config"
	"github.com/nao1215/blurguard/internal/database"
	"github.com/nao1215/blurguard/internal/settings"
)

// defaultHistoryLimit is the number of history entries shown by default.
const defaultHistoryLimit = 20

// NewSettingsCmd creates the settings command and its subcommands.
func NewSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the stored concealment settings",
		Long: `Settings manages the flags every render reads at start-up: whether email
addresses and IP addresses are hidden. Flags never written are true.

The settings live in a SQLite database under the XDG data directory
(~/.local/share/blurguard on Linux) and every change is kept in a history.

Examples:
  # Show the current settings
  blurguard settings get

  # Leave IP addresses visible
  blurguard settings set --hide-ips=false

  # Show the last 5 changes
  blurguard settings history -n 5`,
	}

	cmd.PersistentFlags().String("db-dir", config.XDGDataDir(),
		"Directory of the settings database")

	cmd.AddCommand(newSettingsGetCmd())
	cmd.AddCommand(newSettingsSetCmd())
	cmd.AddCommand(newSettingsHistoryCmd())

	return cmd
}

func newSettingsGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, err := cmd.Flags().GetBool("json")
			if err != nil {
				return err
			}
			return withSettingsDB(cmd, func(db *database.SettingsDB) error {
				current, err := settings.NewPanel(db, nil, nil).Load(cmd.Context())
				if err != nil {
					return err
				}
				return printSettings(cmd.OutOrStdout(), current, asJSON)
			})
		},
	}
	cmd.Flags().BoolP("json", "j", false, "Output JSON")
	return cmd
}

func newSettingsSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change the stored settings",
		Long: `Set writes the given flags to the settings database. Flags left out keep
their current value. Renders already running are not affected.`,
		Args: cobra.NoArgs,
		RunE: runSettingsSetCmd,
	}
	cmd.Flags().Bool("hide-emails", true, "Hide email addresses")
	cmd.Flags().Bool("hide-ips", true, "Hide IP addresses")
	return cmd
}

// runSettingsSetCmd executes the settings set command.
func runSettingsSetCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	if !flags.Changed("hide-emails") && !flags.Changed("hide-ips") {
		return fmt.Errorf("nothing to set: use --hide-emails and/or --hide-ips")
	}

	return withSettingsDB(cmd, func(db *database.SettingsDB) error {
		logger := setupLogger(cmd.ErrOrStderr(), getVerboseFlag(cmd))
		panel := settings.NewPanel(db, nil, logger)

		current, err := panel.Load(cmd.Context())
		if err != nil {
			return err
		}
		hideEmails, hideIps := current.HideEmails, current.HideIps
		if flags.Changed("hide-emails") {
			if hideEmails, err = flags.GetBool("hide-emails"); err != nil {
				return err
			}
		}
		if flags.Changed("hide-ips") {
			if hideIps, err = flags.GetBool("hide-ips"); err != nil {
				return err
			}
		}

		if _, err := panel.Update(cmd.Context(), hideEmails, hideIps); err != nil {
			return err
		}
		return printSettings(cmd.OutOrStdout(), current.Next(hideEmails, hideIps), false)
	})
}

func newSettingsHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent settings changes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return err
			}
			asJSON, err := cmd.Flags().GetBool("json")
			if err != nil {
				return err
			}
			return withSettingsDB(cmd, func(db *database.SettingsDB) error {
				entries, err := db.History(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return printHistory(cmd.OutOrStdout(), entries, asJSON)
			})
		},
	}
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit, "Maximum number of entries (0 for all)")
	cmd.Flags().BoolP("json", "j", false, "Output JSON")
	return cmd
}

// withSettingsDB opens the settings database named by --db-dir, runs fn and
// closes it.
func withSettingsDB(cmd *cobra.Command, fn func(db *database.SettingsDB) error) error {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open settings database: %w", err)
	}
	defer db.Close()
	return fn(db)
}

func printSettings(w io.Writer, s settings.Settings, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	_, err := fmt.Fprintf(w, "%s: %t\n%s: %t\n",
		settings.KeyHideEmails, s.HideEmails,
		settings.KeyHideIps, s.HideIps)
	return err
}

func printHistory(w io.Writer, entries []database.HistoryEntry, asJSON bool) error {
	if asJSON {
		if entries == nil {
			entries = []database.HistoryEntry{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No settings changes recorded.")
		return err
	}
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "%-25s  %-10s  %t\n",
			e.ChangedAt.Local().Format(time.DateTime), e.Key, e.Value); err != nil {
			return err
		}
	}
	return nil
}
