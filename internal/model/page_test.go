package model

import "testing"

// TestFingerprint tests the ordered item sequence digest.
func TestFingerprint(t *testing.T) {
	t.Parallel()

	t.Run("empty sequence has empty fingerprint", func(t *testing.T) {
		t.Parallel()
		if got := Fingerprint(nil); got != "" {
			t.Errorf("expected empty fingerprint, got %q", got)
		}
	})

	t.Run("same sequence yields same fingerprint", func(t *testing.T) {
		t.Parallel()
		a := Fingerprint([]string{"Milk", "Bread"})
		b := Fingerprint([]string{"Milk", "Bread"})
		if a != b {
			t.Errorf("expected equal fingerprints, got %q and %q", a, b)
		}
		if len(a) != 64 {
			t.Errorf("expected 64 hex characters, got %d", len(a))
		}
	})

	t.Run("order matters", func(t *testing.T) {
		t.Parallel()
		if Fingerprint([]string{"Milk", "Bread"}) == Fingerprint([]string{"Bread", "Milk"}) {
			t.Error("expected different fingerprints for different orderings")
		}
	})

	t.Run("item boundaries matter", func(t *testing.T) {
		t.Parallel()
		if Fingerprint([]string{"ab", "c"}) == Fingerprint([]string{"a", "bc"}) {
			t.Error("expected different fingerprints for different boundaries")
		}
	})
}

// TestPageRecordNumber tests the one-based page number.
func TestPageRecordNumber(t *testing.T) {
	t.Parallel()

	p := PageRecord{Index: 0}
	if p.Number() != 1 {
		t.Errorf("expected page number 1, got %d", p.Number())
	}
	p.Index = 4
	if p.Number() != 5 {
		t.Errorf("expected page number 5, got %d", p.Number())
	}
}
