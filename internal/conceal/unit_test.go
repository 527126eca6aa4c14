package conceal

import (
	"testing"

	"github.com/nao1215/blurguard/internal/pattern"
	"github.com/nao1215/blurguard/internal/settings"
)

func TestStateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state State
		want  string
	}{
		{Hidden, "hidden"},
		{Armed, "armed"},
		{Revealed, "revealed"},
		{State(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()

			if got := tt.state.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnitActivate(t *testing.T) {
	t.Parallel()

	u := NewUnit(pattern.Match{Kind: pattern.KindEmail, Text: "a@b.com"})
	if u.State != Hidden {
		t.Fatalf("new unit state = %v, want hidden", u.State)
	}

	u = u.Activate()
	if u.State != Armed {
		t.Errorf("after first activation state = %v, want armed", u.State)
	}
	if !u.Concealed() {
		t.Error("armed unit should still be concealed")
	}

	u = u.Activate()
	if u.State != Revealed {
		t.Errorf("after second activation state = %v, want revealed", u.State)
	}
	if u.Concealed() {
		t.Error("revealed unit should not be concealed")
	}

	u = u.Activate()
	if u.State != Revealed {
		t.Errorf("activation on revealed unit changed state to %v", u.State)
	}
	if u.OriginalText != "a@b.com" {
		t.Errorf("OriginalText = %q, want a@b.com", u.OriginalText)
	}
}

func TestUnitRehide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		state State
		want  State
	}{
		{"revealed becomes hidden", Revealed, Hidden},
		{"armed is unchanged", Armed, Armed},
		{"hidden is unchanged", Hidden, Hidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			u := Unit{Kind: pattern.KindIPv4, OriginalText: "10.0.0.1", State: tt.state}
			if got := u.Rehide().State; got != tt.want {
				t.Errorf("Rehide() state = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("rehide resets arming", func(t *testing.T) {
		t.Parallel()

		u := NewUnit(pattern.Match{Kind: pattern.KindEmail, Text: "a@b.com"})
		u = u.Activate().Activate().Rehide().Activate()
		if u.State != Armed {
			t.Errorf("first activation after rehide gave %v, want armed", u.State)
		}
	})
}

func TestUnitApplySettings(t *testing.T) {
	t.Parallel()

	both := settings.Default()
	emailsOff := both.Next(false, true)
	ipsOff := both.Next(true, false)

	tests := []struct {
		name         string
		unit         Unit
		next         settings.Settings
		wantState    State
		wantDisabled bool
	}{
		{
			name:         "disabled kind is revealed and flagged",
			unit:         Unit{Kind: pattern.KindEmail, State: Hidden},
			next:         emailsOff,
			wantState:    Revealed,
			wantDisabled: true,
		},
		{
			name:         "re-enabled kind is hidden again",
			unit:         Unit{Kind: pattern.KindEmail, State: Revealed, DisabledBySetting: true},
			next:         emailsOff.Next(true, true),
			wantState:    Hidden,
			wantDisabled: false,
		},
		{
			name:         "broadcast about another kind hides a user reveal",
			unit:         Unit{Kind: pattern.KindEmail, State: Revealed},
			next:         ipsOff,
			wantState:    Hidden,
			wantDisabled: false,
		},
		{
			name:         "unchanged flags hide a user reveal",
			unit:         Unit{Kind: pattern.KindEmail, State: Revealed},
			next:         both.Next(true, true),
			wantState:    Hidden,
			wantDisabled: false,
		},
		{
			name:         "broadcast resets arming",
			unit:         Unit{Kind: pattern.KindIPv6, State: Armed},
			next:         emailsOff,
			wantState:    Hidden,
			wantDisabled: false,
		},
		{
			name:         "ipv6 follows the ip flag",
			unit:         Unit{Kind: pattern.KindIPv6, State: Hidden},
			next:         ipsOff,
			wantState:    Revealed,
			wantDisabled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := tt.unit.ApplySettings(tt.next)
			if got.State != tt.wantState {
				t.Errorf("state = %v, want %v", got.State, tt.wantState)
			}
			if got.DisabledBySetting != tt.wantDisabled {
				t.Errorf("DisabledBySetting = %v, want %v", got.DisabledBySetting, tt.wantDisabled)
			}
		})
	}
}
