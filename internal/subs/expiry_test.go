package subs

import "testing"

func TestNormalizeExpiry(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"iso with time", "2025-02-13T06:00:00.000Z", "2025-02-13", true},
		{"rfc3339", "2025-02-13T06:00:00Z", "2025-02-13", true},
		{"broker form", "13-Feb-2025", "2025-02-13", true},
		{"bare iso", "2025-02-13", "2025-02-13", true},
		{"padded", "  2025-02-13  ", "2025-02-13", true},
		{"empty", "", "", false},
		{"garbage", "next thursday", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeExpiry(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("NormalizeExpiry(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestWireExpiry(t *testing.T) {
	if got := WireExpiry("2025-02-13T06:00:00.000Z"); got != "13-Feb-2025" {
		t.Errorf("WireExpiry iso-with-time = %q, want 13-Feb-2025", got)
	}
	if got := WireExpiry("2025-02-13"); got != "13-Feb-2025" {
		t.Errorf("WireExpiry bare iso = %q, want 13-Feb-2025", got)
	}
	// Unparseable input passes through for the upstream to reject.
	if got := WireExpiry("bogus"); got != "bogus" {
		t.Errorf("WireExpiry bogus = %q, want pass-through", got)
	}
}

func TestNormalizeRight(t *testing.T) {
	tests := []struct{ in, want string }{
		{"CE", "CALL"},
		{"ce", "CALL"},
		{"call", "CALL"},
		{"PE", "PUT"},
		{"Put", "PUT"},
		{"other", "OTHER"},
	}
	for _, tt := range tests {
		if got := NormalizeRight(tt.in); got != tt.want {
			t.Errorf("NormalizeRight(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeStrike(t *testing.T) {
	if got, ok := NormalizeStrike("23600.0"); !ok || got != 23600 {
		t.Errorf("NormalizeStrike(23600.0) = %d, %v; want 23600, true", got, ok)
	}
	if got, ok := NormalizeStrike("23600"); !ok || got != 23600 {
		t.Errorf("NormalizeStrike(23600) = %d, %v; want 23600, true", got, ok)
	}
	if _, ok := NormalizeStrike("n/a"); ok {
		t.Error("NormalizeStrike(n/a) ok = true, want false")
	}
}

func TestOptionAlias(t *testing.T) {
	got := OptionAlias("NIFTY", "2025-02-13", "CALL", 23600)
	want := "NIFTY|2025-02-13|CALL|23600"
	if got != want {
		t.Errorf("OptionAlias = %q, want %q", got, want)
	}
}

func TestFoldIndex(t *testing.T) {
	tests := []struct{ in, want string }{
		{"NIFTY 50", "NIFTY"},
		{"CNXBAN", "CNXBAN"},
		{"NIFTY BANK", "BANKNIFTY"},
		{"BANKNIFTY", "BANKNIFTY"},
		{"FINNIFTY", "FINNIFTY"},
		{"NIFTY FIN SERVICE", "FINNIFTY"},
		{"nifty", "NIFTY"},
		{"RELIANCE", "RELIANCE"},
	}
	for _, tt := range tests {
		if got := FoldIndex(tt.in); got != tt.want {
			t.Errorf("FoldIndex(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
