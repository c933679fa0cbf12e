package formula

import (
	"strings"
)

// Parser turns a token stream into an expression tree. It is created for a
// single parse and never shared, so parses can nest (an unknown-function
// hook may evaluate cells that parse their own formulas).
type Parser struct {
	engine *Engine
	ec     *EvalContext
	tokens []Token
	pos    int
}

func newParser(engine *Engine, ec *EvalContext) *Parser {
	return &Parser{
		engine: engine,
		ec:     ec,
	}
}

// Parse parses a formula, with or without its leading '='
func (p *Parser) Parse(formula string) (Expression, error) {
	formula = strings.TrimPrefix(formula, "=")

	tokens, err := NewLexer(formula).Tokenize()
	if err != nil {
		return nil, err
	}
	p.tokens = tokens
	p.pos = 0

	expr, err := p.parseCompare()
	if err != nil {
		return nil, err
	}

	// ensure we've consumed all tokens
	if tok := p.token(); tok.ID != TokenEnd {
		if tok.ID == TokenClose {
			return nil, syntaxErrorf("unbalanced parentheses: unexpected ')' at position %d", tok.Pos)
		}
		return nil, syntaxErrorf("unexpected token '%s' at position %d", tok.String(), tok.Pos)
	}
	return expr, nil
}

func (p *Parser) token() Token {
	return p.tokens[p.pos]
}

func (p *Parser) advance() Token {
	tok := p.tokens[p.pos]
	if tok.ID != TokenEnd {
		p.pos++
	}
	return tok
}

// parseCompare handles comparison and concatenation (lowest precedence)
func (p *Parser) parseCompare() (Expression, error) {
	left, err := p.parseAddSub()
	if err != nil {
		return nil, err
	}
	for tok := p.token(); tok.Type == TokenTypeCompare || tok.Type == TokenTypeConcat; tok = p.token() {
		p.advance()
		right, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Op: tok, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAddSub() (Expression, error) {
	left, err := p.parseMulDiv()
	if err != nil {
		return nil, err
	}
	for tok := p.token(); tok.Type == TokenTypeAddSub; tok = p.token() {
		p.advance()
		right, err := p.parseMulDiv()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Op: tok, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMulDiv() (Expression, error) {
	left, err := p.parsePower()
	if err != nil {
		return nil, err
	}
	for tok := p.token(); tok.Type == TokenTypeMulDiv; tok = p.token() {
		p.advance()
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Op: tok, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parsePower() (Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for tok := p.token(); tok.Type == TokenTypePower; tok = p.token() {
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Op: tok, Left: left, Right: right}
	}
	return left, nil
}

// parseUnary allows a single sign in front of an atom
func (p *Parser) parseUnary() (Expression, error) {
	tok := p.token()
	if tok.Type != TokenTypeAddSub {
		return p.parseAtom()
	}
	p.advance()
	operand, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	return &UnaryNode{Op: tok, Operand: operand, constant: isContextFree(operand)}, nil
}

func (p *Parser) parseAtom() (Expression, error) {
	tok := p.token()
	switch tok.Type {
	case TokenTypeLiteral:
		p.advance()
		return &LiteralNode{Token: tok}, nil

	case TokenTypeIdentifier:
		p.advance()
		return p.parseIdentifier(tok)

	case TokenTypeGroup:
		if tok.ID == TokenOpen {
			p.advance()
			expr, err := p.parseCompare()
			if err != nil {
				return nil, err
			}
			if p.token().ID != TokenClose {
				return nil, syntaxErrorf("unbalanced parentheses: expected ')' at position %d", p.token().Pos)
			}
			p.advance()
			return expr, nil
		}
		if tok.ID == TokenEnd {
			return nil, syntaxErrorf("unexpected end of formula")
		}
	}
	return nil, syntaxErrorf("unexpected token '%s' at position %d", tok.String(), tok.Pos)
}

// parseIdentifier resolves a name as, in order, a function call, a cell or
// range reference, or a value supplied by an unknown-function handler
func (p *Parser) parseIdentifier(tok Token) (Expression, error) {
	name, _ := tok.Value.(string)

	if def, ok := p.engine.functions[strings.ToLower(name)]; ok {
		args, err := p.parseParameters()
		if err != nil {
			return nil, err
		}
		if def.ParamMin != NoLimit && len(args) < def.ParamMin {
			return nil, arityErrorf("too few parameters for %s: expected at least %d, got %d", strings.ToUpper(name), def.ParamMin, len(args))
		}
		if def.ParamMax != NoLimit && len(args) > def.ParamMax {
			return nil, arityErrorf("too many parameters for %s: expected at most %d, got %d", strings.ToUpper(name), def.ParamMax, len(args))
		}
		constant := !def.Volatile
		for _, arg := range args {
			constant = constant && isContextFree(arg)
		}
		return &FunctionCallNode{Name: name, Definition: def, Args: args, constant: constant}, nil
	}

	rng, sheet, ok, err := ParseRangeRef(name)
	if err != nil {
		return nil, err
	}
	if ok {
		return &CellRangeNode{Range: rng, SheetRef: sheet}, nil
	}

	args, err := p.parseParameters()
	if err != nil {
		return nil, err
	}
	params, err := p.engine.evalEager(p.ec, args)
	if err != nil {
		return nil, err
	}
	value, ok := p.engine.resolveUnknown(name, params)
	if !ok {
		return nil, syntaxErrorf("unexpected identifier '%s'", name)
	}
	return &LiteralNode{Token: Token{Value: value, ID: TokenLiteral, Type: TokenTypeLiteral, Pos: tok.Pos}}, nil
}

// parseParameters reads an optional parenthesized, comma separated argument
// list. a name with no '(' has no arguments.
func (p *Parser) parseParameters() ([]Expression, error) {
	if p.token().ID != TokenOpen {
		return nil, nil
	}
	p.advance()

	// empty parameter list
	if p.token().ID == TokenClose {
		p.advance()
		return nil, nil
	}

	var args []Expression
	for {
		arg, err := p.parseCompare()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		switch tok := p.token(); tok.ID {
		case TokenComma:
			p.advance()
		case TokenClose:
			p.advance()
			return args, nil
		case TokenEnd:
			return nil, syntaxErrorf("unbalanced parentheses: missing ')' in parameter list")
		default:
			return nil, syntaxErrorf("expected ',' or ')' but found '%s' at position %d", tok.String(), tok.Pos)
		}
	}
}
