// Package uuid provides unit tests for identifier generation.
package uuid

import "testing"

// TestNew tests that New() generates valid UUID v4 strings.
func TestNew(t *testing.T) {
	id := New()

	if id == "" {
		t.Fatal("Expected non-empty UUID string")
	}

	if !IsValid(id) {
		t.Errorf("Generated UUID does not match v4 format: %s", id)
	}
}

// TestNewUniqueness tests that identifiers generated back-to-back differ.
// Actions captured in the same tick must still get distinct IDs.
func TestNewUniqueness(t *testing.T) {
	ids := make(map[string]bool)

	for i := 0; i < 1000; i++ {
		id := New()
		if ids[id] {
			t.Fatalf("Duplicate UUID generated: %s", id)
		}
		ids[id] = true
	}
}

// TestValidate tests validation of malformed identifiers.
func TestValidate(t *testing.T) {
	cases := []struct {
		input string
		valid bool
	}{
		{"550e8400-e29b-41d4-a716-446655440000", true},
		{"550e8400-e29b-11d4-a716-446655440000", false}, // v1, not v4
		{"not-a-uuid", false},
		{"", false},
	}

	for _, c := range cases {
		if got := IsValid(c.input); got != c.valid {
			t.Errorf("IsValid(%q) = %v, want %v", c.input, got, c.valid)
		}

		err := Validate(c.input)
		if c.valid && err != nil {
			t.Errorf("Validate(%q) = %v, want nil", c.input, err)
		}
		if !c.valid && err == nil {
			t.Errorf("Validate(%q) = nil, want error", c.input)
		}
	}
}
