package util

import "testing"

func TestFormatMillions(t *testing.T) {
	if got := FormatMillions(12500000); got != "12.5M" {
		t.Fatalf("unexpected %q", got)
	}
	if got := FormatMillions(-2500000); got != "-2.5M" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestRoundTo(t *testing.T) {
	if got := RoundTo(1.2345, 2); got != 1.23 {
		t.Fatalf("unexpected %v", got)
	}
	if got := RoundTo(1.345, 1); got != 1.3 {
		t.Fatalf("unexpected %v", got)
	}
}
