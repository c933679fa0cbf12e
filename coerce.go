package formula

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// OLE Automation date constants. day 0 is December 30, 1899 00:00:00 UTC,
// the epoch used by the common spreadsheet formats.
var oaEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

const msPerDay = 86400000

// ToOADate converts a date into its OLE Automation day count. the wall clock
// of t is read as UTC. negative values keep a positive time-of-day part,
// so -1.25 is December 29, 1899 06:00.
func ToOADate(t time.Time) float64 {
	utc := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	days := float64(utc.UnixMilli()-oaEpoch.UnixMilli()) / msPerDay
	if days < 0 {
		whole := math.Floor(days)
		if frac := days - whole; frac != 0 {
			return whole - frac
		}
	}
	return days
}

// FromOADate converts an OLE Automation day count back into a UTC date,
// rounded to the millisecond
func FromOADate(oa float64) time.Time {
	whole := math.Trunc(oa)
	frac := math.Abs(oa - whole)
	ms := int64(math.Round((whole + frac) * msPerDay))
	return time.UnixMilli(oaEpoch.UnixMilli() + ms).UTC()
}

// ToNumber converts a value to a number. unparsable strings and values
// that have no numeric reading produce NaN; the caller decides whether
// NaN is an error.
func ToNumber(value Primitive) float64 {
	switch v := Unwrap(value).(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case time.Time:
		return ToOADate(v)
	case string:
		if v == "" {
			return 0
		}
		return parseNumber(v)
	case nil:
		return 0
	default:
		return math.NaN()
	}
}

// parseNumber reads a numeric literal, honoring a trailing percent sign
func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	divisor := 1.0
	if strings.HasSuffix(s, "%") {
		s = strings.TrimSpace(s[:len(s)-1])
		divisor = 100
	}
	if s == "" {
		return math.NaN()
	}
	num, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return num / divisor
}

// isNumeric reports whether a value reads as a number without falling back
// to NaN. empty values are not numeric.
func isNumeric(value Primitive) bool {
	switch v := Unwrap(value).(type) {
	case float64:
		return !math.IsNaN(v)
	case int, int64, time.Time:
		return true
	case string:
		return v != "" && !math.IsNaN(parseNumber(v))
	default:
		return false
	}
}

// ToBoolean converts a value to a boolean
func ToBoolean(value Primitive) (bool, error) {
	switch v := Unwrap(value).(type) {
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case nil:
		return false, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return true, nil
		case "false", "":
			return false, nil
		}
		if num := parseNumber(v); !math.IsNaN(num) {
			return num != 0, nil
		}
		return false, typeErrorf("cannot convert %q to a boolean", v)
	default:
		return false, typeErrorf("cannot convert %v to a boolean", v)
	}
}

// ToDate converts a value to a date
func ToDate(value Primitive) (time.Time, error) {
	switch v := Unwrap(value).(type) {
	case time.Time:
		return v, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return time.Time{}, typeErrorf("cannot convert %v to a date", v)
		}
		return FromOADate(v), nil
	case int:
		return FromOADate(float64(v)), nil
	case int64:
		return FromOADate(float64(v)), nil
	case bool:
		return FromOADate(ToNumber(v)), nil
	case string:
		if t, ok := ParseDate(v); ok {
			return t, nil
		}
		if num := parseNumber(v); !math.IsNaN(num) {
			return FromOADate(num), nil
		}
		return time.Time{}, typeErrorf("cannot convert %q to a date", v)
	default:
		return time.Time{}, typeErrorf("cannot convert %v to a date", v)
	}
}

// ToString converts a value to its default text form
func ToString(value Primitive) string {
	switch v := Unwrap(value).(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return formatGeneral(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			return formatDate(v, "M/d/yyyy")
		}
		return formatDate(v, "M/d/yyyy h:mm tt")
	case *RangeReference:
		return v.String()
	case []Primitive:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = ToString(item)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(v)
	}
}

// formatGeneral renders a number the way a script runtime would: shortest
// round-trip digits, exponent only for very large or very small values
func formatGeneral(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	abs := math.Abs(v)
	if abs != 0 && (abs < 1e-7 || abs >= 1e21) {
		// strconv pads the exponent to two digits: 1e-08 becomes 1e-8
		text := strconv.FormatFloat(v, 'e', -1, 64)
		i := strings.IndexByte(text, 'e')
		return text[:i+2] + strings.TrimLeft(text[i+2:], "0")
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// dateLayouts are tried in order by ParseDate
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"1/2/2006",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 3:04 PM",
	"1/2/2006 3:04:05 PM",
	"2006/1/2",
	"2006/1/2 15:04",
	"2006/1/2 15:04:05",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"Mon, 02 Jan 2006",
	"15:04",
	"15:04:05",
	"3:04 PM",
	"3:04:05 PM",
}

// ParseDate is the generic date parser used by #date# literals and by
// string-to-date coercion. results are UTC; a bare time lands on the OA
// epoch day.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Year() == 0 {
			// time-only layouts
			t = time.Date(oaEpoch.Year(), oaEpoch.Month(), oaEpoch.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
		}
		return t.UTC(), true
	}
	return time.Time{}, false
}
