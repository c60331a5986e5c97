package util

import "testing"

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"100%", `100\%`},
		{"scroll_up", `scroll\_up`},
		{`a\b`, `a\\b`},
		{`%_\`, `\%\_\\`},
		{"Orange", "Orange"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := EscapeLike(tt.in); got != tt.want {
				t.Errorf("EscapeLike(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestClampInt(t *testing.T) {
	tests := []struct {
		name      string
		v, lo, hi int
		want      int
	}{
		{"before first row", -1, 0, 2, 0},
		{"past last row", 20, 0, 2, 2},
		{"inside", 1, 0, 2, 1},
		{"first row", 0, 0, 2, 0},
		{"last row", 2, 0, 2, 2},
		{"empty list", 3, 0, -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampInt(tt.v, tt.lo, tt.hi); got != tt.want {
				t.Errorf("ClampInt(%d, %d, %d) = %d, want %d", tt.v, tt.lo, tt.hi, got, tt.want)
			}
		})
	}
}

func TestFirstNonEmpty(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want string
	}{
		{"error code wins", []string{"duplicate_option", "invalid_request"}, "duplicate_option"},
		{"fallback", []string{"", "invalid_request"}, "invalid_request"},
		{"blank skipped and trimmed", []string{" \t", "  not_found "}, "not_found"},
		{"nothing", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FirstNonEmpty(tt.in...); got != tt.want {
				t.Errorf("FirstNonEmpty(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
