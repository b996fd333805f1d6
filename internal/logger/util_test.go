package logger

import (
	"testing"
	"time"
)

func TestRoundMS(t *testing.T) {
	if got := RoundMS(1499 * time.Microsecond); got != 1*time.Millisecond {
		t.Fatalf("RoundMS(1.499ms) = %v", got)
	}
	if got := RoundMS(-5 * time.Millisecond); got != 0 {
		t.Fatalf("RoundMS(negative) = %v, expected 0", got)
	}
}

func TestSanitizeLimit(t *testing.T) {
	got := SanitizeLimit("a\nb\tc", 0)
	if got != "a b c" {
		t.Fatalf("SanitizeLimit = %q", got)
	}
	if got := SanitizeLimit("abcdef", 3); got != "abc" {
		t.Fatalf("SanitizeLimit truncation = %q", got)
	}
}

func TestSummarizeStrings(t *testing.T) {
	vals := []string{"a", "b", "c"}
	s, truncated := SummarizeStrings(vals, 2)
	if s != "a, b" || !truncated {
		t.Fatalf("SummarizeStrings = %q truncated=%v", s, truncated)
	}
	s, truncated = SummarizeStrings(vals, 5)
	if s != "a, b, c" || truncated {
		t.Fatalf("SummarizeStrings full = %q truncated=%v", s, truncated)
	}
}

func TestBuildAndCompactRID(t *testing.T) {
	rid := BuildRID(42, 7, 9)
	if rid != "42:7:9" {
		t.Fatalf("BuildRID = %q", rid)
	}
	if CompactRID(rid) != rid {
		t.Fatalf("short rid should pass through")
	}
	long := "123456789012345678901234567890:1:2"
	if got := CompactRID(long); got != "123456789012345678901234567890" {
		t.Fatalf("CompactRID(long) = %q", got)
	}
}
