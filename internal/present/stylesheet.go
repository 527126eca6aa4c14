package present

import (
	_ "embed"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/nao1215/blurguard/internal/dom"
)

//go:embed stylesheet.css
var stylesheet string

// StylesheetID is the id of the injected <style> element.
const StylesheetID = "blurguard-style"

// Stylesheet returns the CSS implementing the concealment classes.
func Stylesheet() string {
	return stylesheet
}

// InjectStylesheet adds the stylesheet to <head> (or to the document
// element when there is no head). It reports whether a style element was
// added; a second call is a no-op.
func InjectStylesheet(doc *dom.Document) (bool, error) {
	var existing bool
	dom.Walk(doc.Root(), func(n *html.Node) bool {
		if existing {
			return false
		}
		if dom.IsElement(n, atom.Style) {
			if id, _ := dom.Attr(n, "id"); id == StylesheetID {
				existing = true
				return false
			}
		}
		return true
	})
	if existing {
		return false, nil
	}

	parent := doc.Head()
	if parent == nil {
		parent = doc.DocumentElement()
	}
	if parent == nil {
		return false, dom.ErrDetached
	}
	style := dom.NewElement("style", "id", StylesheetID)
	style.AppendChild(dom.NewText(stylesheet))
	if err := doc.AppendChild(parent, style); err != nil {
		return false, err
	}
	return true, nil
}
