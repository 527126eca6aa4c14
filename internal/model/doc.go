// Package model defines the report data produced for each processed
// document.
//
// Reports describe concealment units by kind, state and a one-way
// fingerprint. They never carry the concealed text itself, so a report can
// be shared without undoing the concealment it describes.
package model
