package normalizer

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ISODate is the layout every coerced date is rendered with.
const ISODate = "2006-01-02"

// Serial numbers inside this open interval are read as spreadsheet dates
// (roughly 1982 to 2064).
const (
	serialMin = 30000
	serialMax = 60000
)

var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var (
	dayFirstPattern  = regexp.MustCompile(`^(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2}|\d{4})$`)
	yearFirstPattern = regexp.MustCompile(`^(\d{4})[/\-.](\d{1,2})[/\-.](\d{1,2})(?:[T\s].*)?$`)
	dayMonthPattern  = regexp.MustCompile(`^(\d{1,2})(?:\s+de)?[\s/\-.]+([a-z]{3,9})\.?(?:(?:\s+de)?[\s/\-.]+(\d{2}|\d{4}))?$`)
)

var monthNames = map[string]time.Month{
	"jan": time.January, "fev": time.February, "feb": time.February,
	"mar": time.March, "abr": time.April, "apr": time.April,
	"mai": time.May, "may": time.May, "jun": time.June, "jul": time.July,
	"ago": time.August, "aug": time.August, "set": time.September, "sep": time.September,
	"out": time.October, "oct": time.October, "nov": time.November,
	"dez": time.December, "dec": time.December,
}

var fallbackLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"Jan 2, 2006",
	"January 2, 2006",
	"02-Jan-2006",
	"2 Jan 2006",
}

// now is replaced in tests to pin the year of "DD mon" dates.
var now = time.Now

// IsSerialDate reports whether a native number looks like a spreadsheet
// date serial.
func IsSerialDate(v float64) bool {
	return v > serialMin && v < serialMax
}

// SerialToDate converts a spreadsheet serial (days since 1899-12-30) into
// an ISO date.
func SerialToDate(v float64) (string, bool) {
	if v < 1 || math.IsNaN(v) || math.IsInf(v, 0) {
		return "", false
	}
	days := int(math.Floor(v))
	return excelEpoch.AddDate(0, 0, days).Format(ISODate), true
}

// ParseDate coerces a textual date into YYYY-MM-DD. Day-first forms are
// assumed for ambiguous slashes; two-digit years land in 20xx. A bare
// integer in the serial range is read as a spreadsheet serial.
func ParseDate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	if m := dayFirstPattern.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year := expandYear(m[3])
		return buildDate(year, month, day)
	}

	if m := yearFirstPattern.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return buildDate(year, month, day)
	}

	if m := dayMonthPattern.FindStringSubmatch(Fold(s)); m != nil {
		if month, ok := monthNames[m[2][:3]]; ok {
			day, _ := strconv.Atoi(m[1])
			year := now().Year()
			if m[3] != "" {
				year = expandYear(m[3])
			}
			return buildDate(year, int(month), day)
		}
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil && IsSerialDate(v) {
		return SerialToDate(v)
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(ISODate), true
		}
	}

	return "", false
}

// LooksLikeDate reports whether s matches one of the textual date shapes
// the analyzer counts as date-like.
func LooksLikeDate(s string) bool {
	s = strings.TrimSpace(s)
	if dayFirstPattern.MatchString(s) || yearFirstPattern.MatchString(s) {
		return true
	}
	if m := dayMonthPattern.FindStringSubmatch(Fold(s)); m != nil {
		_, ok := monthNames[m[2][:3]]
		return ok
	}
	return false
}

func expandYear(s string) int {
	year, _ := strconv.Atoi(s)
	if len(s) == 2 {
		year += 2000
	}
	return year
}

// buildDate rejects overflowing values such as 31/02.
func buildDate(year, month, day int) (string, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return "", false
	}
	return t.Format(ISODate), true
}
