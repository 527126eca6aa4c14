package config

import (
	"fmt"
	"path/filepath"
	"slices"
)

// DocumentConfig holds overrides for the documents matching one pattern.
type DocumentConfig struct {
	// HideEmails and HideIps override the stored settings for the
	// document. Nil keeps the inherited value.
	HideEmails *bool `yaml:"hideEmails,omitempty"`
	HideIps    *bool `yaml:"hideIps,omitempty"`

	// Script is a replay script run against the document.
	Script string `yaml:"script,omitempty"`

	// Stylesheet disables stylesheet injection when set to false.
	Stylesheet *bool `yaml:"stylesheet,omitempty"`
}

// File represents the structure of the .blurguard configuration file.
type File struct {
	// Documents maps glob patterns (filepath.Match syntax, matched against
	// the input path and its base name) to overrides.
	Documents map[string]DocumentConfig `yaml:"documents,omitempty"`

	// Defaults apply to every document unless a matching pattern
	// overrides them.
	Defaults DocumentConfig `yaml:"defaults,omitempty"`
}

// Validate reports the first pattern that is not a valid glob.
func (cf *File) Validate() error {
	for pattern := range cf.Documents {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("%w %q: %v", ErrInvalidPattern, pattern, err)
		}
	}
	return nil
}

// GetDocumentConfig returns the merged configuration for path: defaults
// first, then every matching pattern in lexical order, later patterns
// winning field by field.
func (cf *File) GetDocumentConfig(path string) DocumentConfig {
	result := cf.Defaults

	patterns := make([]string, 0, len(cf.Documents))
	for pattern := range cf.Documents {
		patterns = append(patterns, pattern)
	}
	slices.Sort(patterns)

	base := filepath.Base(path)
	for _, pattern := range patterns {
		if !matches(pattern, path) && !matches(pattern, base) {
			continue
		}
		doc := cf.Documents[pattern]
		if doc.HideEmails != nil {
			result.HideEmails = doc.HideEmails
		}
		if doc.HideIps != nil {
			result.HideIps = doc.HideIps
		}
		if doc.Script != "" {
			result.Script = doc.Script
		}
		if doc.Stylesheet != nil {
			result.Stylesheet = doc.Stylesheet
		}
	}

	return result
}

func matches(pattern, name string) bool {
	ok, err := filepath.Match(pattern, name)
	return err == nil && ok
}
