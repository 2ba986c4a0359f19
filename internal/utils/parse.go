// Package utils parses the query and path values the handlers accept.
package utils

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// AtoiDefault parses s as an int, returning def for blank or bad input.
func AtoiDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// ParseID parses a positive decimal id. Zero, negatives and garbage fail.
func ParseID(s string) (uint, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || n == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(n), nil
}

// UintDefault is ParseID with a fallback for empty or invalid input.
func UintDefault(s string, def uint) uint {
	if n, err := ParseID(s); err == nil {
		return n
	}
	return def
}

// ErrBadRange is returned by ParseRange for malformed "min-max" input.
var ErrBadRange = errors.New(`range must look like "min-max" with 0 <= min <= max <= 100`)

// ParseRange parses a progress range "min-max" (e.g. "25-75"). An empty
// string yields (nil, nil, nil). Both bounds must lie in [0,100].
func ParseRange(s string) (lo, hi *int, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil, nil
	}
	a, b, ok := strings.Cut(s, "-")
	if !ok {
		return nil, nil, ErrBadRange
	}
	x, err1 := strconv.Atoi(strings.TrimSpace(a))
	y, err2 := strconv.Atoi(strings.TrimSpace(b))
	if err1 != nil || err2 != nil || x < 0 || y > 100 || x > y {
		return nil, nil, ErrBadRange
	}
	return &x, &y, nil
}

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// ParseDate parses YYYY-MM-DD as a UTC date. Empty input yields nil.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
