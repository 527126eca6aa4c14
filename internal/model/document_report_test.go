package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/nao1215/blurguard/internal/conceal"
	"github.com/nao1215/blurguard/internal/pattern"
)

func TestFingerprint(t *testing.T) {
	t.Parallel()

	a := Fingerprint(pattern.KindEmail, "a@b.com")
	if len(a) != fingerprintLength {
		t.Fatalf("fingerprint length = %d, want %d", len(a), fingerprintLength)
	}
	if a != Fingerprint(pattern.KindEmail, "a@b.com") {
		t.Error("fingerprint should be deterministic")
	}
	if a == Fingerprint(pattern.KindEmail, "c@d.com") {
		t.Error("different values should not share a fingerprint")
	}
	if strings.Contains(a, "a@b.com") {
		t.Error("fingerprint must not contain the value")
	}
}

func TestNewUnitRecord(t *testing.T) {
	t.Parallel()

	u := conceal.Unit{
		Kind:              pattern.KindIPv4,
		OriginalText:      "10.0.0.1",
		State:             conceal.Revealed,
		DisabledBySetting: true,
	}
	rec := NewUnitRecord(u, true)

	if rec.Kind != "ipv4" || rec.Group != "ip" || rec.State != "revealed" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if !rec.DisabledBySetting || !rec.InShadowRoot {
		t.Errorf("flags not carried over: %+v", rec)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "10.0.0.1") {
		t.Errorf("record JSON leaks the concealed value: %s", data)
	}
}

func TestDocumentReport_Counts(t *testing.T) {
	t.Parallel()

	r := NewDocumentReport("index.html")
	r.Units = []UnitRecord{
		{Kind: "email", State: "hidden", Fingerprint: "aa"},
		{Kind: "email", State: "revealed", Fingerprint: "aa"},
		{Kind: "ipv4", State: "armed", Fingerprint: "bb"},
	}

	if r.TotalUnits() != 3 || !r.HasUnits() {
		t.Errorf("TotalUnits() = %d, HasUnits() = %v", r.TotalUnits(), r.HasUnits())
	}
	if got := r.CountByKind(); got["email"] != 2 || got["ipv4"] != 1 {
		t.Errorf("CountByKind() = %v", got)
	}
	if got := r.CountByState(); got["hidden"] != 1 || got["armed"] != 1 || got["revealed"] != 1 {
		t.Errorf("CountByState() = %v", got)
	}
	if r.Exposed() != 1 {
		t.Errorf("Exposed() = %d, want 1", r.Exposed())
	}
	if r.DistinctValues() != 2 {
		t.Errorf("DistinctValues() = %d, want 2", r.DistinctValues())
	}
	if r.Failed() {
		t.Error("report without error should not be failed")
	}
}

func TestBatchReport(t *testing.T) {
	t.Parallel()

	ok := NewDocumentReport("a.html")
	ok.Units = []UnitRecord{{Kind: "email"}, {Kind: "ipv6"}}
	failed := NewDocumentReport("b.html")
	failed.Error = "parse error"
	failed.Units = []UnitRecord{{Kind: "email"}}

	b := NewBatchReport([]*DocumentReport{ok, failed})
	if b.TotalUnits() != 3 {
		t.Errorf("TotalUnits() = %d, want 3", b.TotalUnits())
	}
	if b.Failed() != 1 {
		t.Errorf("Failed() = %d, want 1", b.Failed())
	}
	if got := b.CountByKind(); got["email"] != 2 || got["ipv6"] != 1 {
		t.Errorf("CountByKind() = %v", got)
	}
}

func TestNames(t *testing.T) {
	t.Parallel()

	if got := strings.Join(KindNames(), ","); got != "email,ipv4,ipv6" {
		t.Errorf("KindNames() = %s", got)
	}
	if got := strings.Join(StateNames(), ","); got != "hidden,armed,revealed" {
		t.Errorf("StateNames() = %s", got)
	}
}
