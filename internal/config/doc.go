// Package config provides configuration structures and utilities for
// blurguard: CLI defaults, validation, XDG directories and the optional
// .blurguard file with per-document overrides.
package config
