package formula

import (
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func registerTextFunctions(t functionTable) {
	t.add("CHAR", fnChar, 1, 1)
	t.add("CODE", fnCode, 1, 1)
	t.add("CONCATENATE", fnConcatenate, NoLimit, 1)
	t.add("FIND", fnFind, 3, 2)
	t.add("LEFT", fnLeft, 2, 1)
	t.add("LEN", fnLen, 1, 1)
	t.add("LOWER", caseFunction(func() cases.Caser { return cases.Lower(language.Und) }), 1, 1)
	t.add("MID", fnMid, 3, 3)
	t.add("PROPER", caseFunction(func() cases.Caser { return cases.Title(language.Und) }), 1, 1)
	t.add("REPLACE", fnReplace, 4, 4)
	t.add("REPT", fnRept, 2, 2)
	t.add("RIGHT", fnRight, 2, 1)
	t.add("SEARCH", fnSearch, 3, 2)
	t.add("SUBSTITUTE", fnSubstitute, 4, 3)
	t.add("TEXT", fnText, 2, 2)
	t.add("TRIM", fnTrim, 1, 1)
	t.add("UPPER", caseFunction(func() cases.Caser { return cases.Upper(language.Und) }), 1, 1)
	t.add("VALUE", fnValue, 1, 1)
}

func fnChar(ec *EvalContext, args []Expression) (Primitive, error) {
	code, err := argInt(ec, args, 0)
	if err != nil {
		return nil, err
	}
	if code < 1 || code > utf8.MaxRune {
		return nil, domainErrorf("CHAR: %d is not a valid character code", code)
	}
	return string(rune(code)), nil
}

func fnCode(ec *EvalContext, args []Expression) (Primitive, error) {
	text, err := argString(ec, args, 0)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, domainErrorf("CODE: text is empty")
	}
	r, _ := utf8.DecodeRuneInString(text)
	return float64(r), nil
}

// fnConcatenate joins its arguments; ranges contribute every cell
func fnConcatenate(ec *EvalContext, args []Expression) (Primitive, error) {
	items, err := flatten(ec, args, true)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	for _, it := range items {
		sb.WriteString(ToString(it.value))
	}
	return sb.String(), nil
}

// fnFind is a case-sensitive search returning a 1-based position
func fnFind(ec *EvalContext, args []Expression) (Primitive, error) {
	return findText(ec, args, "FIND", func(find string) func(string) int {
		return func(within string) int {
			if idx := strings.Index(within, find); idx >= 0 {
				return utf8.RuneCountInString(within[:idx])
			}
			return -1
		}
	})
}

// fnSearch is case-insensitive and understands * and ? wildcards
func fnSearch(ec *EvalContext, args []Expression) (Primitive, error) {
	return findText(ec, args, "SEARCH", func(find string) func(string) int {
		pattern := wildcardPattern(find, false)
		return func(within string) int {
			if loc := pattern.FindStringIndex(within); loc != nil {
				return utf8.RuneCountInString(within[:loc[0]])
			}
			return -1
		}
	})
}

// findText runs a matcher from the 1-based start position
func findText(ec *EvalContext, args []Expression, name string, matcher func(string) func(string) int) (Primitive, error) {
	find, err := argString(ec, args, 0)
	if err != nil {
		return nil, err
	}
	within, err := argString(ec, args, 1)
	if err != nil {
		return nil, err
	}
	start, err := argIntOr(ec, args, 2, 1)
	if err != nil {
		return nil, err
	}
	runes := []rune(within)
	if start < 1 || start > len(runes)+1 {
		return nil, domainErrorf("%s: start position %d is out of range", name, start)
	}
	idx := matcher(find)(string(runes[start-1:]))
	if idx < 0 {
		return nil, domainErrorf("%s: '%s' was not found", name, find)
	}
	return float64(start + idx), nil
}

func fnLeft(ec *EvalContext, args []Expression) (Primitive, error) {
	text, n, err := textAndCount(ec, args, "LEFT")
	if err != nil {
		return nil, err
	}
	runes := []rune(text)
	return string(runes[:min(n, len(runes))]), nil
}

func fnRight(ec *EvalContext, args []Expression) (Primitive, error) {
	text, n, err := textAndCount(ec, args, "RIGHT")
	if err != nil {
		return nil, err
	}
	runes := []rune(text)
	return string(runes[len(runes)-min(n, len(runes)):]), nil
}

// textAndCount reads LEFT/RIGHT arguments; the count defaults to one
func textAndCount(ec *EvalContext, args []Expression, name string) (string, int, error) {
	text, err := argString(ec, args, 0)
	if err != nil {
		return "", 0, err
	}
	n, err := argIntOr(ec, args, 1, 1)
	if err != nil {
		return "", 0, err
	}
	if n < 0 {
		return "", 0, domainErrorf("%s: count cannot be negative", name)
	}
	return text, n, nil
}

func fnLen(ec *EvalContext, args []Expression) (Primitive, error) {
	text, err := argString(ec, args, 0)
	if err != nil {
		return nil, err
	}
	return float64(utf8.RuneCountInString(text)), nil
}

func caseFunction(caser func() cases.Caser) FunctionImpl {
	return func(ec *EvalContext, args []Expression) (Primitive, error) {
		text, err := argString(ec, args, 0)
		if err != nil {
			return nil, err
		}
		return caser().String(text), nil
	}
}

func fnMid(ec *EvalContext, args []Expression) (Primitive, error) {
	text, err := argString(ec, args, 0)
	if err != nil {
		return nil, err
	}
	start, err := argInt(ec, args, 1)
	if err != nil {
		return nil, err
	}
	n, err := argInt(ec, args, 2)
	if err != nil {
		return nil, err
	}
	if start < 1 || n < 0 {
		return nil, domainErrorf("MID: invalid start or length")
	}
	runes := []rune(text)
	if start > len(runes) {
		return "", nil
	}
	return string(runes[start-1 : min(start-1+n, len(runes))]), nil
}

// fnReplace swaps count characters starting at a 1-based position
func fnReplace(ec *EvalContext, args []Expression) (Primitive, error) {
	text, err := argString(ec, args, 0)
	if err != nil {
		return nil, err
	}
	start, err := argInt(ec, args, 1)
	if err != nil {
		return nil, err
	}
	n, err := argInt(ec, args, 2)
	if err != nil {
		return nil, err
	}
	replacement, err := argString(ec, args, 3)
	if err != nil {
		return nil, err
	}
	if start < 1 || n < 0 {
		return nil, domainErrorf("REPLACE: invalid start or length")
	}
	runes := []rune(text)
	from := min(start-1, len(runes))
	to := min(from+n, len(runes))
	return string(runes[:from]) + replacement + string(runes[to:]), nil
}

func fnRept(ec *EvalContext, args []Expression) (Primitive, error) {
	text, err := argString(ec, args, 0)
	if err != nil {
		return nil, err
	}
	n, err := argInt(ec, args, 1)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, domainErrorf("REPT: count cannot be negative")
	}
	return strings.Repeat(text, n), nil
}

// fnSubstitute replaces every occurrence, or only the nth when an instance
// number is given
func fnSubstitute(ec *EvalContext, args []Expression) (Primitive, error) {
	text, err := argString(ec, args, 0)
	if err != nil {
		return nil, err
	}
	old, err := argString(ec, args, 1)
	if err != nil {
		return nil, err
	}
	replacement, err := argString(ec, args, 2)
	if err != nil {
		return nil, err
	}
	if old == "" {
		return text, nil
	}
	if len(args) < 4 {
		return strings.ReplaceAll(text, old, replacement), nil
	}
	instance, err := argInt(ec, args, 3)
	if err != nil {
		return nil, err
	}
	if instance < 1 {
		return nil, domainErrorf("SUBSTITUTE: instance must be at least 1")
	}
	offset := 0
	for i := 1; ; i++ {
		idx := strings.Index(text[offset:], old)
		if idx < 0 {
			return text, nil
		}
		pos := offset + idx
		if i == instance {
			return text[:pos] + replacement + text[pos+len(old):], nil
		}
		offset = pos + len(old)
	}
}

func fnText(ec *EvalContext, args []Expression) (Primitive, error) {
	value, err := argValue(ec, args, 0)
	if err != nil {
		return nil, err
	}
	format, err := argString(ec, args, 1)
	if err != nil {
		return nil, err
	}
	return FormatValue(value, format), nil
}

// fnTrim strips the ends and collapses inner runs of spaces
func fnTrim(ec *EvalContext, args []Expression) (Primitive, error) {
	text, err := argString(ec, args, 0)
	if err != nil {
		return nil, err
	}
	return strings.Join(strings.Fields(text), " "), nil
}

func fnValue(ec *EvalContext, args []Expression) (Primitive, error) {
	value, err := argValue(ec, args, 0)
	if err != nil {
		return nil, err
	}
	num := ToNumber(value)
	if math.IsNaN(num) {
		return nil, typeErrorf("VALUE: cannot convert '%s' to a number", ToString(value))
	}
	return num, nil
}
