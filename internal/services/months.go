package services

import (
	"strconv"
	"strings"

	"github.com/nicoiwnl/SGC-Maule/internal/search"
)

// MonthNames are the Spanish month names used by filters and reports,
// January first.
var MonthNames = []string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// AllMonths is the filter value meaning "no month restriction".
const AllMonths = "Todos"

var monthByFolded = func() map[string]int {
	m := make(map[string]int, len(MonthNames)+1)
	for i, name := range MonthNames {
		m[search.Fold(name)] = i + 1
	}
	m["setiembre"] = 9
	return m
}()

// MonthNumber maps a Spanish month name (any case, accents optional) or a
// number 1..12 to its month number. "Todos", blanks and anything unknown
// return 0, meaning no filter.
func MonthNumber(name string) int {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0
	}
	if n, err := strconv.Atoi(name); err == nil {
		if n >= 1 && n <= 12 {
			return n
		}
		return 0
	}
	return monthByFolded[search.Fold(name)]
}

// MonthName returns the Spanish name of month n, or "" outside 1..12.
func MonthName(n int) string {
	if n < 1 || n > 12 {
		return ""
	}
	return MonthNames[n-1]
}
