package formula

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the engine can raise. Kinds are
// informational; the boundary only ever shows the message.
type ErrorKind uint8

const (
	ErrorKindSyntax    ErrorKind = 1 // unexpected token, unbalanced parens, bad literal
	ErrorKindArity     ErrorKind = 2 // too few / too many function parameters
	ErrorKindReference ErrorKind = 3 // bad cell or sheet reference, index out of range, cycles
	ErrorKindDomain    ErrorKind = 4 // invalid numeric domain, non-convergence, bad criteria
	ErrorKindType      ErrorKind = 5 // value cannot be coerced to the required type
)

// ErrorKindNames maps error kinds to their display names
var ErrorKindNames = map[ErrorKind]string{
	ErrorKindSyntax:    "SyntaxError",
	ErrorKindArity:     "ArityError",
	ErrorKindReference: "ReferenceError",
	ErrorKindDomain:    "DomainError",
	ErrorKindType:      "TypeError",
}

func (k ErrorKind) String() string {
	if name, ok := ErrorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// CalcError is returned by every layer of the engine, from the lexer to
// the function implementations. it is never recovered internally.
type CalcError struct {
	Kind    ErrorKind
	Message string
}

func (e *CalcError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.String()
}

func NewCalcError(kind ErrorKind, message string) *CalcError {
	if message == "" {
		message = kind.String()
	}
	return &CalcError{
		Kind:    kind,
		Message: message,
	}
}

func syntaxErrorf(format string, args ...any) *CalcError {
	return NewCalcError(ErrorKindSyntax, fmt.Sprintf(format, args...))
}

func arityErrorf(format string, args ...any) *CalcError {
	return NewCalcError(ErrorKindArity, fmt.Sprintf(format, args...))
}

func referenceErrorf(format string, args ...any) *CalcError {
	return NewCalcError(ErrorKindReference, fmt.Sprintf(format, args...))
}

func domainErrorf(format string, args ...any) *CalcError {
	return NewCalcError(ErrorKindDomain, fmt.Sprintf(format, args...))
}

func typeErrorf(format string, args ...any) *CalcError {
	return NewCalcError(ErrorKindType, fmt.Sprintf(format, args...))
}

// IsKind reports whether err, or any error it wraps, is a CalcError of
// the given kind
func IsKind(err error, kind ErrorKind) bool {
	var calcErr *CalcError
	if errors.As(err, &calcErr) {
		return calcErr.Kind == kind
	}
	return false
}

// ErrCircularReference is the message carried by the reference error
// raised when a range read re-enters itself
const ErrCircularReference = "circular reference"
