package formula

import (
	"strconv"
	"strings"
)

// TokenType groups tokens into precedence classes
type TokenType int

const (
	TokenTypeCompare TokenType = iota
	TokenTypeAddSub
	TokenTypeMulDiv
	TokenTypePower
	TokenTypeConcat
	TokenTypeGroup
	TokenTypeLiteral
	TokenTypeIdentifier
)

var tokenTypeNames = map[TokenType]string{
	TokenTypeCompare:    "Compare",
	TokenTypeAddSub:     "AddSub",
	TokenTypeMulDiv:     "MulDiv",
	TokenTypePower:      "Power",
	TokenTypeConcat:     "Concat",
	TokenTypeGroup:      "Group",
	TokenTypeLiteral:    "Literal",
	TokenTypeIdentifier: "Identifier",
}

func (t TokenType) String() string {
	return tokenTypeNames[t]
}

// TokenID identifies an individual operator or token kind
type TokenID int

const (
	// compare
	TokenGreaterThan TokenID = iota
	TokenLessThan
	TokenGreaterEqual
	TokenLessEqual
	TokenEqual
	TokenNotEqual
	// add/sub
	TokenAdd
	TokenSubtract
	// mul/div
	TokenMultiply
	TokenDivide
	TokenDivideInt
	// power
	TokenPower
	// concat
	TokenConcat
	// group
	TokenOpen
	TokenClose
	TokenEnd
	TokenComma
	TokenPeriod
	// literal and identifier
	TokenLiteral
	TokenIdentifier
)

// operatorText renders an operator token back into formula text
var operatorText = map[TokenID]string{
	TokenGreaterThan:  ">",
	TokenLessThan:     "<",
	TokenGreaterEqual: ">=",
	TokenLessEqual:    "<=",
	TokenEqual:        "=",
	TokenNotEqual:     "<>",
	TokenAdd:          "+",
	TokenSubtract:     "-",
	TokenMultiply:     "*",
	TokenDivide:       "/",
	TokenDivideInt:    "\\",
	TokenPower:        "^",
	TokenConcat:       "&",
	TokenOpen:         "(",
	TokenClose:        ")",
	TokenComma:        ",",
	TokenPeriod:       ".",
}

// Token is one lexical unit of a formula. Pos is the rune offset of the
// token's first character.
type Token struct {
	Value Primitive
	ID    TokenID
	Type  TokenType
	Pos   int
}

func (t Token) String() string {
	if text, ok := operatorText[t.ID]; ok {
		return text
	}
	if t.ID == TokenEnd {
		return "end of formula"
	}
	return ToString(t.Value)
}

// operatorTable is the static table of operator tokens. two character
// entries are only tried after '<' or '>'.
var operatorTable = map[string]Token{
	"+":  {ID: TokenAdd, Type: TokenTypeAddSub},
	"-":  {ID: TokenSubtract, Type: TokenTypeAddSub},
	"(":  {ID: TokenOpen, Type: TokenTypeGroup},
	")":  {ID: TokenClose, Type: TokenTypeGroup},
	"*":  {ID: TokenMultiply, Type: TokenTypeMulDiv},
	",":  {ID: TokenComma, Type: TokenTypeGroup},
	".":  {ID: TokenPeriod, Type: TokenTypeGroup},
	"/":  {ID: TokenDivide, Type: TokenTypeMulDiv},
	"\\": {ID: TokenDivideInt, Type: TokenTypeMulDiv},
	"=":  {ID: TokenEqual, Type: TokenTypeCompare},
	">":  {ID: TokenGreaterThan, Type: TokenTypeCompare},
	"<":  {ID: TokenLessThan, Type: TokenTypeCompare},
	"^":  {ID: TokenPower, Type: TokenTypePower},
	"&":  {ID: TokenConcat, Type: TokenTypeConcat},
	"<>": {ID: TokenNotEqual, Type: TokenTypeCompare},
	">=": {ID: TokenGreaterEqual, Type: TokenTypeCompare},
	"<=": {ID: TokenLessEqual, Type: TokenTypeCompare},
}

// character classification constants. slightly easier to read.
const (
	charNull       = 0
	charSpace      = ' '
	charQuote      = '"'
	charApostrophe = '\''
	charHash       = '#'
	charPercent    = '%'
	charPeriod     = '.'
	charColon      = ':'
	charLess       = '<'
	charGreater    = '>'
	charUnderscore = '_'
	charDollar     = '$'
	charExclaim    = '!'
	charPlus       = '+'
	charMinus      = '-'
)

// Lexer produces one token per call to Next over a single formula. a lexer
// is created per parse and never shared.
type Lexer struct {
	runes []rune
	pos   int
}

// NewLexer creates a lexer over the formula text. a leading '=' is not
// stripped here; the caller passes the expression part.
func NewLexer(input string) *Lexer {
	return &Lexer{
		runes: []rune(input),
	}
}

// Tokenize reads every token up to and including End
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.ID == TokenEnd {
			return tokens, nil
		}
	}
}

// Next scans the next token, advancing the cursor
func (l *Lexer) Next() (Token, error) {
	for l.current() == charSpace {
		l.pos++
	}

	start := l.pos
	if l.pos >= len(l.runes) {
		return Token{ID: TokenEnd, Type: TokenTypeGroup, Pos: start}, nil
	}

	ch := l.current()

	// '.' is an operator unless it starts a decimal
	if isDigit(ch) || (ch == charPeriod && isDigit(l.peek(1))) {
		return l.scanNumber()
	}

	if ch == charLess || ch == charGreater {
		if tok, ok := operatorTable[string([]rune{ch, l.peek(1)})]; ok {
			l.pos += 2
			tok.Pos = start
			return tok, nil
		}
	}
	if tok, ok := operatorTable[string(ch)]; ok {
		l.pos++
		tok.Pos = start
		return tok, nil
	}

	switch {
	case ch == charQuote:
		return l.scanString()
	case ch == charHash:
		return l.scanDate()
	case ch == charApostrophe || isIdentifierStart(ch):
		return l.scanIdentifier()
	}

	return Token{}, syntaxErrorf("unexpected character '%c' at position %d", ch, start)
}

// scanNumber reads an integer or decimal literal. digits accumulate with a
// running divisor; scientific notation falls back to strconv.
func (l *Lexer) scanNumber() (Token, error) {
	start := l.pos
	val := 0.0
	div := -1.0
	sci := false

	for l.pos < len(l.runes) {
		ch := l.current()
		switch {
		case isDigit(ch):
			if !sci {
				val = val*10 + float64(ch-'0')
				if div > -1 {
					div *= 10
				}
			}
			l.pos++
			continue
		case ch == charPeriod && div < 0 && !sci:
			div = 1
			l.pos++
			continue
		case (ch == 'e' || ch == 'E') && !sci:
			next := 1
			if sign := l.peek(1); sign == charPlus || sign == charMinus {
				next = 2
			}
			if isDigit(l.peek(next)) {
				sci = true
				l.pos += next
				continue
			}
		}
		break
	}

	if sci {
		text := string(l.runes[start:l.pos])
		num, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Token{}, syntaxErrorf("invalid number %q", text)
		}
		val = num
	} else if div > 1 {
		val /= div
	}

	if l.current() == charPercent {
		val /= 100
		l.pos++
	}

	return Token{Value: val, ID: TokenLiteral, Type: TokenTypeLiteral, Pos: start}, nil
}

// scanString reads a double quoted literal. "" is an escaped quote.
func (l *Lexer) scanString() (Token, error) {
	start := l.pos
	l.pos++ // opening quote

	var sb strings.Builder
	for {
		if l.pos >= len(l.runes) {
			return Token{}, syntaxErrorf("unterminated string starting at position %d", start)
		}
		ch := l.current()
		if ch == charQuote {
			if l.peek(1) == charQuote {
				sb.WriteRune(charQuote)
				l.pos += 2
				continue
			}
			l.pos++
			break
		}
		sb.WriteRune(ch)
		l.pos++
	}

	if l.current() == charExclaim {
		return Token{}, syntaxErrorf("illegal cross-sheet reference: use single quotes around sheet names")
	}

	return Token{Value: sb.String(), ID: TokenLiteral, Type: TokenTypeLiteral, Pos: start}, nil
}

// scanDate reads a #date# literal
func (l *Lexer) scanDate() (Token, error) {
	start := l.pos
	l.pos++ // opening hash

	end := l.pos
	for end < len(l.runes) && l.runes[end] != charHash {
		end++
	}
	if end >= len(l.runes) {
		return Token{}, syntaxErrorf("unterminated date starting at position %d", start)
	}

	text := string(l.runes[l.pos:end])
	l.pos = end + 1

	date, ok := ParseDate(text)
	if !ok {
		return Token{}, syntaxErrorf("invalid date literal #%s#", text)
	}
	return Token{Value: date, ID: TokenLiteral, Type: TokenTypeLiteral, Pos: start}, nil
}

// scanIdentifier reads a name, a cell reference or a range. quoted sheet
// names are unquoted and joined with the reference that follows them, so
// 'My Sheet'!A1:B2 becomes My Sheet!A1:B2.
func (l *Lexer) scanIdentifier() (Token, error) {
	start := l.pos
	var sb strings.Builder
	var last rune = charNull

	for l.pos < len(l.runes) {
		ch := l.current()
		if ch == charApostrophe && (last == charNull || last == charColon) {
			name, err := l.scanSheetName()
			if err != nil {
				return Token{}, err
			}
			sb.WriteString(name)
			sb.WriteRune(charExclaim)
			last = charExclaim
			continue
		}
		if !isIdentifierPart(ch) {
			break
		}
		sb.WriteRune(ch)
		last = ch
		l.pos++
	}

	return Token{Value: sb.String(), ID: TokenIdentifier, Type: TokenTypeIdentifier, Pos: start}, nil
}

// scanSheetName reads a quoted sheet name followed by '!', where doubled
// apostrophes stand for one, and consumes the '!'
func (l *Lexer) scanSheetName() (string, error) {
	start := l.pos
	l.pos++ // opening apostrophe

	var sb strings.Builder
	for {
		if l.pos >= len(l.runes) {
			return "", syntaxErrorf("unterminated sheet reference starting at position %d", start)
		}
		ch := l.current()
		if ch == charApostrophe {
			if l.peek(1) == charApostrophe {
				sb.WriteRune(charApostrophe)
				l.pos += 2
				continue
			}
			l.pos++
			break
		}
		sb.WriteRune(ch)
		l.pos++
	}

	if l.current() != charExclaim {
		return "", syntaxErrorf("expected '!' after sheet name '%s'", sb.String())
	}
	l.pos++
	return sb.String(), nil
}

func (l *Lexer) current() rune {
	if l.pos >= len(l.runes) {
		return charNull
	}
	return l.runes[l.pos]
}

func (l *Lexer) peek(offset int) rune {
	pos := l.pos + offset
	if pos >= len(l.runes) || pos < 0 {
		return charNull
	}
	return l.runes[pos]
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

// isLetter accepts ASCII letters and the CJK, kana and hangul blocks
func isLetter(ch rune) bool {
	switch {
	case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z':
		return true
	case ch >= 0x4E00 && ch <= 0x9FFF: // CJK unified ideographs
		return true
	case ch >= 0x3400 && ch <= 0x4DBF: // CJK extension A
		return true
	case ch >= 0x3040 && ch <= 0x30FF: // hiragana, katakana
		return true
	case ch >= 0xAC00 && ch <= 0xD7AF: // hangul syllables
		return true
	}
	return false
}

func isIdentifierStart(ch rune) bool {
	return isLetter(ch) || ch == charUnderscore || ch == charDollar || ch == charColon || ch == charExclaim
}

func isIdentifierPart(ch rune) bool {
	return isIdentifierStart(ch) || isDigit(ch)
}
