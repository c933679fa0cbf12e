package formula

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// numberPrinter groups digits for the n, p and c number formats
var numberPrinter = message.NewPrinter(language.English)

// standard single-letter date formats
var standardDateFormats = map[string]string{
	"d": "M/d/yyyy",
	"D": "dddd, MMMM d, yyyy",
	"t": "h:mm tt",
	"T": "h:mm:ss tt",
	"g": "M/d/yyyy h:mm tt",
	"G": "M/d/yyyy h:mm:ss tt",
	"f": "dddd, MMMM d, yyyy h:mm tt",
	"F": "dddd, MMMM d, yyyy h:mm:ss tt",
}

// FormatValue renders a value with a display format. numeric formats are
// the single-letter standard forms (n2, f0, p2, c, d4, e3, g, x) or a
// custom pattern such as #,##0.00; date formats are the standard letters
// or a pattern such as yyyy-MM-dd h:mm. a FormattedValue supplies its own
// format when format is empty.
func FormatValue(value Primitive, format string) string {
	if fv, ok := value.(FormattedValue); ok && format == "" {
		format = fv.Format
	}
	value = Unwrap(value)
	if format == "" {
		return ToString(value)
	}

	switch v := value.(type) {
	case time.Time:
		return formatDate(v, format)
	case float64, int, int64:
		num := ToNumber(v)
		if isDateFormat(format) {
			return formatDate(FromOADate(num), format)
		}
		return formatNumber(num, format)
	case string:
		num := parseNumber(v)
		if math.IsNaN(num) {
			return v
		}
		if isDateFormat(format) {
			return formatDate(FromOADate(num), format)
		}
		return formatNumber(num, format)
	default:
		return ToString(v)
	}
}

// isDateFormat reports whether a multi-character pattern holds date parts
// and no digit placeholders
func isDateFormat(format string) bool {
	if len(format) < 2 {
		return false
	}
	if _, _, ok := standardNumberFormat(format); ok {
		return false
	}
	text := stripFormatLiterals(format)
	return strings.ContainsAny(text, "yMdhHms") && !strings.ContainsAny(text, "0#")
}

// stripFormatLiterals drops quoted text and escaped characters
func stripFormatLiterals(format string) string {
	var sb strings.Builder
	var quote rune
	escaped := false
	for _, ch := range format {
		switch {
		case escaped:
			escaped = false
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\\':
			escaped = true
		case ch == charQuote || ch == charApostrophe:
			quote = ch
		default:
			sb.WriteRune(ch)
		}
	}
	return sb.String()
}

func formatNumber(v float64, format string) string {
	if math.IsNaN(v) || math.IsInf(v, 0) || strings.EqualFold(format, "General") {
		return formatGeneral(v)
	}
	if letter, digits, ok := standardNumberFormat(format); ok {
		return formatStandardNumber(v, letter, digits)
	}
	return formatCustomNumber(v, format)
}

// standardNumberFormat splits n2 into its letter and precision. digits is
// -1 when no precision is given.
func standardNumberFormat(format string) (letter byte, digits int, ok bool) {
	letter = format[0]
	if !strings.ContainsRune("nNfFpPcCdDeEgGxX", rune(letter)) {
		return 0, 0, false
	}
	if len(format) == 1 {
		return letter, -1, true
	}
	digits, err := strconv.Atoi(format[1:])
	if err != nil || digits < 0 || digits > 99 {
		return 0, 0, false
	}
	return letter, digits, true
}

func formatStandardNumber(v float64, letter byte, digits int) string {
	precision := func(def int) int {
		if digits < 0 {
			return def
		}
		return digits
	}

	switch letter {
	case 'n', 'N':
		return groupDigits(v, precision(2))
	case 'f', 'F':
		return strconv.FormatFloat(v, 'f', precision(2), 64)
	case 'p', 'P':
		return groupDigits(v*100, precision(2)) + "%"
	case 'c', 'C':
		text := "$" + groupDigits(math.Abs(v), precision(2))
		if v < 0 {
			return "-" + text
		}
		return text
	case 'd', 'D':
		n := int64(math.Trunc(v))
		text := strconv.FormatInt(absInt64(n), 10)
		if pad := precision(0) - len(text); pad > 0 {
			text = strings.Repeat("0", pad) + text
		}
		if n < 0 {
			return "-" + text
		}
		return text
	case 'e', 'E':
		text := strconv.FormatFloat(v, 'e', precision(6), 64)
		if letter == 'E' {
			return strings.ToUpper(text)
		}
		return text
	case 'g', 'G':
		if digits <= 0 {
			return formatGeneral(v)
		}
		return strconv.FormatFloat(v, 'g', digits, 64)
	case 'x', 'X':
		text := strconv.FormatInt(int64(math.Trunc(v)), 16)
		if pad := precision(0) - len(text); pad > 0 {
			text = strings.Repeat("0", pad) + text
		}
		if letter == 'X' {
			return strings.ToUpper(text)
		}
		return text
	}
	return formatGeneral(v)
}

func groupDigits(v float64, digits int) string {
	return numberPrinter.Sprintf(fmt.Sprintf("%%.%df", digits), v)
}

func absInt64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

// splitFormatSections splits pos;neg;zero sections outside quotes
func splitFormatSections(format string) []string {
	var sections []string
	var quote rune
	start := 0
	for i, ch := range format {
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == charQuote:
			quote = ch
		case ch == ';':
			sections = append(sections, format[start:i])
			start = i + 1
		}
	}
	return append(sections, format[start:])
}

// formatCustomNumber applies a pattern built from 0 # , . % and literal text
func formatCustomNumber(v float64, format string) string {
	sections := splitFormatSections(format)
	section := sections[0]
	negative := v < 0
	switch {
	case negative && len(sections) > 1:
		section = sections[1]
		v = -v
		negative = false
	case v == 0 && len(sections) > 2:
		section = sections[2]
	}

	var prefix, suffix strings.Builder
	intZeros, fracZeros, fracOptional := 0, 0, 0
	grouping, percent, inFraction, seenDigit := false, false, false, false

	literal := func(text string) {
		if seenDigit {
			suffix.WriteString(text)
		} else {
			prefix.WriteString(text)
		}
	}

	runes := []rune(section)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch ch {
		case '0':
			seenDigit = true
			if inFraction {
				fracZeros += 1 + fracOptional
				fracOptional = 0
			} else {
				intZeros++
			}
		case '#':
			seenDigit = true
			if inFraction {
				fracOptional++
			}
		case '.':
			if suffix.Len() == 0 {
				inFraction = true
				seenDigit = true
			} else {
				literal(".")
			}
		case ',':
			if seenDigit && !inFraction {
				grouping = true
			} else {
				literal(",")
			}
		case '%':
			percent = true
			literal("%")
		case '\\':
			if i+1 < len(runes) {
				i++
				literal(string(runes[i]))
			}
		case charQuote:
			end := i + 1
			for end < len(runes) && runes[end] != charQuote {
				end++
			}
			literal(string(runes[i+1 : min(end, len(runes))]))
			i = end
		default:
			literal(string(ch))
		}
	}

	if percent {
		v *= 100
	}
	if !seenDigit {
		return prefix.String()
	}

	text := strconv.FormatFloat(math.Abs(v), 'f', fracZeros+fracOptional, 64)
	intPart, fracPart, _ := strings.Cut(text, ".")
	for len(fracPart) > fracZeros && strings.HasSuffix(fracPart, "0") {
		fracPart = fracPart[:len(fracPart)-1]
	}
	if pad := intZeros - len(intPart); pad > 0 {
		intPart = strings.Repeat("0", pad) + intPart
	}
	if intZeros == 0 && intPart == "0" {
		intPart = ""
	}
	if grouping {
		intPart = insertGroupSeparators(intPart)
	}

	number := intPart
	if fracPart != "" {
		number += "." + fracPart
	}
	if negative && strings.Trim(number, "0.,") != "" {
		return "-" + prefix.String() + number + suffix.String()
	}
	return prefix.String() + number + suffix.String()
}

func insertGroupSeparators(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var sb strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		sb.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(digits[i : i+3])
	}
	return sb.String()
}

// dateToken is one run of a date pattern
type dateToken struct {
	letter  rune
	count   int
	literal string
}

func tokenizeDatePattern(pattern string) []dateToken {
	var tokens []dateToken
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch {
		case strings.EqualFold(string(runes[i:min(i+5, len(runes))]), "AM/PM"):
			tokens = append(tokens, dateToken{letter: 't', count: 2})
			i += 4
		case strings.ContainsRune("yMdhHmstf", ch):
			count := 1
			for i+1 < len(runes) && runes[i+1] == ch {
				count++
				i++
			}
			tokens = append(tokens, dateToken{letter: ch, count: count})
		case ch == charQuote || ch == charApostrophe:
			end := i + 1
			for end < len(runes) && runes[end] != ch {
				end++
			}
			tokens = append(tokens, dateToken{literal: string(runes[i+1 : min(end, len(runes))])})
			i = end
		case ch == '\\' && i+1 < len(runes):
			i++
			tokens = append(tokens, dateToken{literal: string(runes[i])})
		default:
			tokens = append(tokens, dateToken{literal: string(ch)})
		}
	}
	return tokens
}

// formatDate renders t with a .NET style pattern. when the pattern has no
// M part, m means month unless it follows an hour or precedes seconds.
func formatDate(t time.Time, pattern string) string {
	if std, ok := standardDateFormats[pattern]; ok {
		pattern = std
	}
	tokens := tokenizeDatePattern(pattern)
	excelMinutes := true
	for _, tok := range tokens {
		if tok.letter == 'M' {
			excelMinutes = false
			break
		}
	}

	// the neighbouring date part of each token, skipping literals
	neighbour := func(i, step int) rune {
		for j := i + step; j >= 0 && j < len(tokens); j += step {
			if tokens[j].letter != 0 {
				return tokens[j].letter
			}
		}
		return 0
	}

	var sb strings.Builder
	for i, tok := range tokens {
		letter := tok.letter
		if letter == 'm' && excelMinutes {
			prev, next := neighbour(i, -1), neighbour(i, 1)
			if prev != 'h' && prev != 'H' && next != 's' {
				letter = 'M'
			}
		}

		switch letter {
		case 0:
			sb.WriteString(tok.literal)
		case 'y':
			if tok.count <= 2 {
				sb.WriteString(fmt.Sprintf("%02d", t.Year()%100))
			} else {
				sb.WriteString(fmt.Sprintf("%04d", t.Year()))
			}
		case 'M':
			switch tok.count {
			case 1:
				sb.WriteString(strconv.Itoa(int(t.Month())))
			case 2:
				sb.WriteString(fmt.Sprintf("%02d", int(t.Month())))
			case 3:
				sb.WriteString(t.Month().String()[:3])
			default:
				sb.WriteString(t.Month().String())
			}
		case 'd':
			switch tok.count {
			case 1:
				sb.WriteString(strconv.Itoa(t.Day()))
			case 2:
				sb.WriteString(fmt.Sprintf("%02d", t.Day()))
			case 3:
				sb.WriteString(t.Weekday().String()[:3])
			default:
				sb.WriteString(t.Weekday().String())
			}
		case 'h':
			hour := t.Hour() % 12
			if hour == 0 {
				hour = 12
			}
			sb.WriteString(padNumber(hour, tok.count))
		case 'H':
			sb.WriteString(padNumber(t.Hour(), tok.count))
		case 'm':
			sb.WriteString(padNumber(t.Minute(), tok.count))
		case 's':
			sb.WriteString(padNumber(t.Second(), tok.count))
		case 'f':
			frac := fmt.Sprintf("%09d", t.Nanosecond())
			sb.WriteString(frac[:min(tok.count, 9)])
		case 't':
			marker := "AM"
			if t.Hour() >= 12 {
				marker = "PM"
			}
			if tok.count == 1 {
				marker = marker[:1]
			}
			sb.WriteString(marker)
		}
	}
	return sb.String()
}

func padNumber(n, width int) string {
	if width >= 2 {
		return fmt.Sprintf("%02d", n)
	}
	return strconv.Itoa(n)
}
