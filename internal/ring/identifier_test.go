package ring

import "testing"

func TestBetween(t *testing.T) {
	sp, _ := NewSpace(8, 3)
	id := func(h string) ID {
		i, err := sp.FromHexString(h)
		if err != nil {
			t.Fatalf("FromHexString(%q): %v", h, err)
		}
		return i
	}

	tests := []struct {
		name   string
		a, b, x string
		want   bool
	}{
		{"linear inside", "10", "20", "18", true},
		{"linear at right edge (inclusive)", "10", "20", "20", true},
		{"linear at left edge (exclusive)", "10", "20", "10", false},
		{"linear outside", "10", "20", "30", false},
		{"wrap inside", "f0", "10", "f8", true},
		{"wrap inside low side", "f0", "10", "05", true},
		{"wrap at right edge", "f0", "10", "10", true},
		{"wrap at left edge", "f0", "10", "f0", false},
		{"equal endpoints covers whole ring", "42", "42", "00", true},
		{"equal endpoints excludes the point itself", "42", "42", "42", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := id(tt.x).Between(id(tt.a), id(tt.b))
			if got != tt.want {
				t.Errorf("Between(%s,%s,%s) = %v, want %v", tt.a, tt.b, tt.x, got, tt.want)
			}
		})
	}
}

func TestBetweenOpenEqualEndpoints(t *testing.T) {
	sp, _ := NewSpace(8, 3)
	a, _ := sp.FromHexString("42")
	if a.BetweenOpen(a, a) {
		t.Errorf("BetweenOpen(a,a,a) should be false when endpoints are equal")
	}
}

func TestBetweenOpenExcludesEndpoints(t *testing.T) {
	sp, _ := NewSpace(8, 3)
	id := func(h string) ID {
		i, _ := sp.FromHexString(h)
		return i
	}
	if id("10").BetweenOpen(id("10"), id("20")) {
		t.Errorf("left endpoint must be excluded")
	}
	if id("20").BetweenOpen(id("10"), id("20")) {
		t.Errorf("right endpoint must be excluded")
	}
	if !id("18").BetweenOpen(id("10"), id("20")) {
		t.Errorf("strictly interior point must be included")
	}
}

func TestAddModWraps(t *testing.T) {
	sp, _ := NewSpace(8, 3)
	a, _ := sp.FromHexString("ff")
	got, err := sp.AddMod(a, sp.FromUint64(2))
	if err != nil {
		t.Fatalf("AddMod: %v", err)
	}
	if got.ToHexString(false) != "01" {
		t.Errorf("AddMod wraparound = %s, want 01", got.ToHexString(false))
	}
}

func TestHashStringDeterministic(t *testing.T) {
	sp, _ := NewSpace(160, 3)
	a := sp.HashString("node-1:9000")
	b := sp.HashString("node-1:9000")
	if !a.Equal(b) {
		t.Errorf("HashString must be deterministic")
	}
	if err := sp.IsValidID(a); err != nil {
		t.Errorf("hashed id must be valid: %v", err)
	}
}

func TestPow2(t *testing.T) {
	sp, _ := NewSpace(8, 3)
	got := sp.Pow2(3)
	if got.ToHexString(false) != "08" {
		t.Errorf("Pow2(3) = %s, want 08", got.ToHexString(false))
	}
}
