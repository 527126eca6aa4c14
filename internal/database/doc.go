// Package database provides SQLite-based storage for blurguard.
//
// SettingsDB persists the concealment flags shared by every render and the
// settings command, and keeps:
//   - the current value of each flag
//   - an append-only history of every write
//
// The database is a single file (via modernc.org/sqlite, CGO-free) under
// the XDG data directory unless a directory is given explicitly.
package database
