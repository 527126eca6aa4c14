// Package pipeline runs documents through the concealment steps.
//
// Each document is a Job that passes through parsing, a live engine
// session (with an optional replay script), stylesheet injection,
// rendering and a summary. Steps share the Job and record what they did in
// its report.
//
// The BatchProcessor runs many jobs concurrently with errgroup. Every job
// owns its document, loop and engine, so jobs share nothing but the
// settings store they read at start.
package pipeline
