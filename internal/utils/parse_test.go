package utils

import (
	"errors"
	"testing"
	"time"
)

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		s    string
		def  int
		want int
	}{
		{"", 10, 10},
		{"42", 0, 42},
		{"-13", 1, -13},
		{"0012", 99, 12},
		{"x", 5, 5},
		{" 42 ", 7, 42},
		{"999999999999999999999999", -1, -1},
	}

	for _, tc := range cases {
		if got := AtoiDefault(tc.s, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.want)
		}
	}
}

func TestParseID(t *testing.T) {
	if id, err := ParseID(" 17 "); err != nil || id != 17 {
		t.Fatalf("ParseID(17) = %d, %v", id, err)
	}
	for _, bad := range []string{"", "0", "-3", "abc", "1.5"} {
		if _, err := ParseID(bad); err == nil {
			t.Fatalf("ParseID(%q) should fail", bad)
		}
	}
	if got := UintDefault("nope", 9); got != 9 {
		t.Fatalf("UintDefault fallback = %d", got)
	}
}

func TestParseRange(t *testing.T) {
	lo, hi, err := ParseRange("25-75")
	if err != nil || *lo != 25 || *hi != 75 {
		t.Fatalf("ParseRange(25-75) = %v %v %v", lo, hi, err)
	}
	lo, hi, err = ParseRange("")
	if err != nil || lo != nil || hi != nil {
		t.Fatalf("empty range should be unbounded")
	}
	for _, bad := range []string{"50", "80-20", "-1-10", "0-101", "a-b"} {
		if _, _, err := ParseRange(bad); !errors.Is(err, ErrBadRange) {
			t.Fatalf("ParseRange(%q) err = %v", bad, err)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-20")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if !d.Equal(time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("got %v", d)
	}
	if d, err := ParseDate("  "); d != nil || err != nil {
		t.Fatalf("blank should yield nil, nil")
	}
	if _, err := ParseDate("20/03/2025"); err == nil {
		t.Fatalf("expected error for non ISO date")
	}
}
