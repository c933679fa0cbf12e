package formula

import (
	"regexp"
	"strings"
)

// criteriaOperators are tried longest first
var criteriaOperators = []struct {
	text string
	id   TokenID
}{
	{"<>", TokenNotEqual},
	{">=", TokenGreaterEqual},
	{"<=", TokenLessEqual},
	{"=", TokenEqual},
	{">", TokenGreaterThan},
	{"<", TokenLessThan},
}

// criterion is a parsed COUNTIF style condition: either a wildcard pattern
// or an operator and an operand
type criterion struct {
	op      TokenID
	operand Primitive
	pattern *regexp.Regexp
}

// parseCriterion reads ">5", "<>x", "a?c", "=", 10 and similar. bare
// values compare with '='; operands that read as numbers compare
// numerically, everything else as text.
func parseCriterion(value Primitive) (*criterion, error) {
	value = Unwrap(value)
	text, isText := value.(string)
	if !isText {
		if _, isRange := value.(*RangeReference); isRange {
			return nil, domainErrorf("invalid criteria: a range is not a condition")
		}
		return &criterion{op: TokenEqual, operand: value}, nil
	}

	c := &criterion{op: TokenEqual}
	for _, op := range criteriaOperators {
		if strings.HasPrefix(text, op.text) {
			c.op = op.id
			text = text[len(op.text):]
			break
		}
	}

	if hasWildcards(text) {
		if c.op != TokenEqual && c.op != TokenNotEqual {
			return nil, domainErrorf("invalid criteria: wildcards need '=' or '<>'")
		}
		c.pattern = wildcardPattern(text, true)
		return c, nil
	}

	if text == "" {
		if c.op != TokenEqual && c.op != TokenNotEqual {
			return nil, domainErrorf("invalid criteria: missing operand")
		}
		c.operand = ""
		return c, nil
	}
	if isNumeric(text) {
		c.operand = parseNumber(text)
	} else {
		c.operand = text
	}
	return c, nil
}

// matches tests one cell value against the criterion
func (c *criterion) matches(value Primitive) bool {
	value = Unwrap(value)
	if c.pattern != nil {
		if value == nil {
			value = ""
		}
		matched := c.pattern.MatchString(ToString(value))
		if c.op == TokenNotEqual {
			return !matched
		}
		return matched
	}

	// blanks only answer to an empty operand or to <>
	if isBlank(value) || isBlank(c.operand) {
		both := isBlank(value) && isBlank(c.operand)
		switch c.op {
		case TokenEqual:
			return both
		case TokenNotEqual:
			return !both
		}
		return false
	}
	return compareValues(c.op, value, c.operand)
}

func hasWildcards(s string) bool {
	return strings.ContainsAny(s, "*?")
}

// wildcardPattern compiles * and ? into a case-insensitive regexp. a ~
// escapes the next wildcard.
func wildcardPattern(s string, anchored bool) *regexp.Regexp {
	var sb strings.Builder
	sb.WriteString("(?is)")
	if anchored {
		sb.WriteString("^")
	}
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		switch ch := runes[i]; {
		case ch == '~' && i+1 < len(runes) && (runes[i+1] == '*' || runes[i+1] == '?'):
			i++
			sb.WriteString(regexp.QuoteMeta(string(runes[i])))
		case ch == '*':
			sb.WriteString(".*")
		case ch == '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	if anchored {
		sb.WriteString("$")
	}
	return regexp.MustCompile(sb.String())
}
