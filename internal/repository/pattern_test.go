package repository

import "testing"

func TestPatternToLike(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"*123*", "%123%"},
		{"+1*888", "+1%888"},
		{"555", "555"},
		{"*", "%"},
		{"50%", `50\%`},
		{"a_b", `a\_b`},
		{`back\slash*`, `back\\slash%`},
	}
	for _, tc := range cases {
		if got := PatternToLike(tc.in); got != tc.want {
			t.Errorf("PatternToLike(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
