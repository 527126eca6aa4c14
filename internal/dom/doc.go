// Package dom provides a live, mutable HTML document for the concealment
// engine to run against.
//
// The tree itself is a plain golang.org/x/net/html node tree. Document adds
// the pieces a browser would normally supply around it:
//
//   - Encapsulated sub-trees (shadow roots) attached to host elements,
//     lifted from declarative <template shadowrootmode> markup on Parse and
//     written back the same way by Render
//   - Mutation observers that receive childList and characterData records
//     asynchronously, one batch per scheduler turn
//   - Event listeners with bubbling from a target to the document node,
//     crossing shadow roots into their hosts
//   - A computed font size for any connected node, resolved from inline
//     styles and user-agent defaults
//
// All mutations that observers should see must go through Document methods.
// Code that edits *html.Node fields directly bypasses observation.
//
// # Concurrency
//
// A Document is not safe for concurrent use. It is meant to be driven from
// a single host loop (see package loop): mutations, observer delivery and
// event dispatch all happen on that loop's goroutine.
package dom
