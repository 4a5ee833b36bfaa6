package sheets

import (
	"strconv"
	"strings"
	"time"
)

// dateFormats are the formats the deals sheet is known to contain.
var dateFormats = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	"2006-01-02 15:04:05",
}

// ParseDate parses a sheet date cell. Unparseable values yield nil.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}

// ExpiryFrom computes the listing expiry: signing date plus two months,
// clamped to the last day of the target month (Jan 31 -> Mar 31, but
// Dec 31 -> Feb 28/29).
func ExpiryFrom(dateSigned *time.Time) *time.Time {
	if dateSigned == nil {
		return nil
	}

	year, month := dateSigned.Year(), int(dateSigned.Month())+2
	if month > 12 {
		month -= 12
		year++
	}

	day := dateSigned.Day()
	if last := lastDayOfMonth(year, time.Month(month)); day > last {
		day = last
	}

	expires := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &expires
}

func lastDayOfMonth(year int, month time.Month) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ParsePrice parses a price cell into whole currency units. Handles
// "млн"/"тыс" (and English) multipliers and comma decimal separators.
// Unparseable values yield nil.
func ParsePrice(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	lower := strings.ToLower(s)
	multiplier := float64(1)
	switch {
	case strings.Contains(lower, "млн") || strings.Contains(lower, "million"):
		multiplier = 1_000_000
	case strings.Contains(lower, "тыс") || strings.Contains(lower, "thousand"):
		multiplier = 1_000
	}

	var cleaned strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			cleaned.WriteRune(r)
		}
	}
	if cleaned.Len() == 0 {
		return nil
	}

	base, err := strconv.ParseFloat(strings.ReplaceAll(cleaned.String(), ",", "."), 64)
	if err != nil {
		return nil
	}

	price := int64(base * multiplier)
	return &price
}

// truthyCells are the cell values the sheet uses for checked checkboxes
var truthyCells = map[string]bool{
	"TRUE": true, "1": true, "ДА": true, "YES": true, "Y": true,
	"✓": true, "☑": true, "CHECKED": true,
}

// ParseBool parses a checkbox-style cell.
func ParseBool(s string) bool {
	return truthyCells[strings.ToUpper(strings.TrimSpace(s))]
}

// ParseInt parses an integer cell, returning 0 for anything unparseable.
func ParseInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
