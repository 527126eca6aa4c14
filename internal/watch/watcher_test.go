package watch

import (
	"testing"

	"golang.org/x/net/html"

	"github.com/nao1215/blurguard/internal/conceal"
	"github.com/nao1215/blurguard/internal/dom"
	"github.com/nao1215/blurguard/internal/scan"
	"github.com/nao1215/blurguard/internal/settings"
)

// fixture is a watcher started on a document without a scheduler, so
// records are only delivered by flush.
type fixture struct {
	doc *dom.Document
	w   *Watcher
	cfg settings.Settings
}

func newFixture(t *testing.T, markup string, cfg settings.Settings) *fixture {
	t.Helper()

	doc, err := dom.ParseString(markup)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	f := &fixture{doc: doc, cfg: cfg}
	f.w = New(doc, scan.New(doc), func() settings.Settings { return f.cfg }, nil)
	f.w.Reconcile()
	f.w.Start()
	t.Cleanup(f.w.Stop)
	return f
}

// flush delivers records until the watcher stops producing new ones.
func (f *fixture) flush() {
	for range 8 {
		f.w.Flush()
	}
}

func (f *fixture) byID(id string) *html.Node {
	var found *html.Node
	dom.Walk(f.doc.Root(), func(n *html.Node) bool {
		if v, ok := dom.Attr(n, "id"); ok && v == id {
			found = n
		}
		return found == nil
	})
	return found
}

func (f *fixture) states() []conceal.State {
	var states []conceal.State
	for _, wrapper := range f.w.Units() {
		u, _ := conceal.Load(wrapper)
		states = append(states, u.State)
	}
	return states
}

func TestWatcherAddedContent(t *testing.T) {
	t.Parallel()

	t.Run("appended element", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, `<div id="feed"></div>`, settings.Default())
		frag, err := f.doc.ParseFragment(f.byID("feed"), `<p>new post by a@b.com</p>`)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.doc.AppendChild(f.byID("feed"), frag[0]); err != nil {
			t.Fatal(err)
		}
		f.flush()

		if got := len(f.w.Units()); got != 1 {
			t.Errorf("units = %d, want 1", got)
		}
	})

	t.Run("appended text node", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, `<p id="p">hello</p>`, settings.Default())
		if err := f.doc.AppendChild(f.byID("p"), dom.NewText(" from 10.0.0.1")); err != nil {
			t.Fatal(err)
		}
		f.flush()

		if got := len(f.w.Units()); got != 1 {
			t.Errorf("units = %d, want 1", got)
		}
	})

	t.Run("edited text", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, `<p id="p">no address yet</p>`, settings.Default())
		if err := f.doc.SetText(f.byID("p").FirstChild, "write to a@b.com"); err != nil {
			t.Fatal(err)
		}
		f.flush()

		if got := len(f.w.Units()); got != 1 {
			t.Errorf("units = %d, want 1", got)
		}
	})

	t.Run("mixed kinds settle through follow-up records", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, `<p id="p"></p>`, settings.Default())
		if err := f.doc.AppendChild(f.byID("p"), dom.NewText("a@b.com via 10.0.0.1")); err != nil {
			t.Fatal(err)
		}
		f.flush()

		if got := len(f.w.Units()); got != 2 {
			t.Errorf("units = %d, want 2", got)
		}
		if got := dom.TextContent(f.byID("p")); got != "a@b.com via 10.0.0.1" {
			t.Errorf("text = %q", got)
		}
	})

	t.Run("nothing happens with both flags off", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, `<p id="p"></p>`, settings.Settings{})
		if err := f.doc.AppendChild(f.byID("p"), dom.NewText("a@b.com")); err != nil {
			t.Fatal(err)
		}
		f.flush()

		if got := len(f.w.Units()); got != 0 {
			t.Errorf("units = %d, want 0", got)
		}
	})
}

func TestWatcherReconcileShadow(t *testing.T) {
	t.Parallel()

	f := newFixture(t, `<div id="host"></div>`, settings.Default())
	root, err := f.doc.AttachShadow(f.byID("host"), dom.ShadowOpen)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.doc.SetInnerHTML(root, `<p>a@b.com</p>`); err != nil {
		t.Fatal(err)
	}
	f.flush()

	if got := len(f.w.Units()); got != 0 {
		t.Fatalf("observer should not see shadow content, got %d units", got)
	}

	res := f.w.Reconcile()
	if res.Units != 1 {
		t.Errorf("Reconcile() Units = %d, want 1", res.Units)
	}
	units := Units(f.doc)
	if len(units) != 1 {
		t.Fatalf("Units() = %d, want 1", len(units))
	}
	for n := units[0]; ; n = n.Parent {
		if n.Parent == nil {
			if !f.doc.IsShadowRoot(n) {
				t.Error("unit should live in the shadow root")
			}
			break
		}
	}
}

func TestWatcherApplySettings(t *testing.T) {
	t.Parallel()

	f := newFixture(t, `<p>a@b.com</p><p>10.0.0.1</p>`, settings.Default())
	if got := len(f.w.Units()); got != 2 {
		t.Fatalf("units = %d, want 2", got)
	}

	// The user reveals the address.
	ip := f.w.Units()[1]
	surface := ip.FirstChild
	conceal.HandleActivation(surface)
	conceal.HandleActivation(surface)

	next := f.cfg.Next(false, true)
	f.cfg = next
	f.w.ApplySettings(next)

	email, _ := conceal.Load(f.w.Units()[0])
	if email.State != conceal.Revealed || !email.DisabledBySetting {
		t.Errorf("email after disabling = %+v", email)
	}
	addr, _ := conceal.Load(f.w.Units()[1])
	if addr.State != conceal.Hidden || addr.DisabledBySetting {
		t.Errorf("user-revealed ip should be hidden again, got %+v", addr)
	}

	next = next.Next(true, true)
	f.cfg = next
	f.w.ApplySettings(next)

	states := f.states()
	if len(states) != 2 || states[0] != conceal.Hidden || states[1] != conceal.Hidden {
		t.Errorf("states after re-enabling = %v, want [hidden hidden]", states)
	}
	email, _ = conceal.Load(f.w.Units()[0])
	if email.DisabledBySetting {
		t.Error("disabled flag should clear when the kind is enabled again")
	}
}

func TestWatcherApplySettingsScansNewText(t *testing.T) {
	t.Parallel()

	f := newFixture(t, `<p id="p">a@b.com</p>`, settings.Settings{})
	if got := len(f.w.Units()); got != 0 {
		t.Fatalf("units = %d, want 0", got)
	}

	next := f.cfg.Next(true, false)
	f.cfg = next
	res := f.w.ApplySettings(next)
	if res.Units != 1 {
		t.Errorf("ApplySettings() Units = %d, want 1", res.Units)
	}
}
