package slug

import "testing"

func TestDerive(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Ferry Building", "ferry-building"},
		{"noisy punctuation", "FERRY   Building!!", "ferry-building"},
		{"leading and trailing junk", "  --Golden Gate Bridge-- ", "golden-gate-bridge"},
		{"diacritics fold", "Café du Nord", "cafe-du-nord"},
		{"digits kept", "Pier 39", "pier-39"},
		{"empty", "", ""},
		{"only punctuation", "?!*", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Derive(tc.in); got != tc.want {
				t.Fatalf("Derive(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestDeriveDeterministic(t *testing.T) {
	a := Derive("Ferry Building")
	b := Derive("FERRY   Building!!")
	if a != b || a != "ferry-building" {
		t.Fatalf("expected identical ids, got %q and %q", a, b)
	}
}
