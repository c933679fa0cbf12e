package formula

import (
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

// NoLimit marks an unbounded ParamMin or ParamMax
const NoLimit = -1

// FunctionImpl receives the unevaluated argument expressions, so an
// implementation decides which arguments to evaluate and when
type FunctionImpl func(ec *EvalContext, args []Expression) (Primitive, error)

// FunctionDefinition is one entry of the function table. Volatile functions
// depend on something other than their arguments (the clock, the caller's
// position, a random source) and are never memoized.
type FunctionDefinition struct {
	Impl     FunctionImpl
	ParamMax int
	ParamMin int
	Volatile bool
}

// NewFunctionDefinition creates a definition. note the max-before-min order.
func NewFunctionDefinition(impl FunctionImpl, paramMax, paramMin int) *FunctionDefinition {
	return &FunctionDefinition{
		Impl:     impl,
		ParamMax: paramMax,
		ParamMin: paramMin,
	}
}

// functionTable maps lower-case names to definitions
type functionTable map[string]*FunctionDefinition

func (t functionTable) add(name string, impl FunctionImpl, paramMax, paramMin int) *FunctionDefinition {
	def := NewFunctionDefinition(impl, paramMax, paramMin)
	t[strings.ToLower(name)] = def
	return def
}

// volatile registers a definition that must be re-run on every evaluation
func (t functionTable) volatile(name string, impl FunctionImpl, paramMax, paramMin int) {
	t.add(name, impl, paramMax, paramMin).Volatile = true
}

// newFunctionTable builds the built-in library
func newFunctionTable() functionTable {
	t := functionTable{}
	registerAggregateFunctions(t)
	registerMathFunctions(t)
	registerLogicalFunctions(t)
	registerTextFunctions(t)
	registerDateFunctions(t)
	registerLookupFunctions(t)
	registerFinancialFunctions(t)
	return t
}

// Clock interface provides time functionality for testing
type Clock interface {
	Now() time.Time
}

// WallClock is the default implementation using system time
type WallClock struct{}

func (w *WallClock) Now() time.Time {
	return time.Now()
}

// RandomSource interface provides random number generation for testing
type RandomSource interface {
	Float64() float64
}

// DefaultRandomSource uses the standard library's rand package
type DefaultRandomSource struct{}

func (d *DefaultRandomSource) Float64() float64 {
	return rand.Float64()
}

// argument helpers. every helper evaluates one argument, collapses range
// results to a scalar and unwraps formatting before coercing.

func argValue(ec *EvalContext, args []Expression, i int) (Primitive, error) {
	val, err := evalScalar(ec, args[i])
	if err != nil {
		return nil, err
	}
	return Unwrap(val), nil
}

func argNumber(ec *EvalContext, args []Expression, i int) (float64, error) {
	val, err := argValue(ec, args, i)
	if err != nil {
		return 0, err
	}
	num := ToNumber(val)
	if math.IsNaN(num) {
		if _, isNum := val.(float64); !isNum {
			return 0, typeErrorf("cannot convert '%s' to a number", ToString(val))
		}
	}
	return num, nil
}

// argNumberOr returns def when the argument is absent
func argNumberOr(ec *EvalContext, args []Expression, i int, def float64) (float64, error) {
	if i >= len(args) {
		return def, nil
	}
	return argNumber(ec, args, i)
}

// argInt truncates a numeric argument toward zero
func argInt(ec *EvalContext, args []Expression, i int) (int, error) {
	num, err := argNumber(ec, args, i)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(num) || math.IsInf(num, 0) {
		return 0, domainErrorf("expected a finite number")
	}
	return int(math.Trunc(num)), nil
}

func argIntOr(ec *EvalContext, args []Expression, i int, def int) (int, error) {
	if i >= len(args) {
		return def, nil
	}
	return argInt(ec, args, i)
}

func argString(ec *EvalContext, args []Expression, i int) (string, error) {
	val, err := argValue(ec, args, i)
	if err != nil {
		return "", err
	}
	return ToString(val), nil
}

func argBool(ec *EvalContext, args []Expression, i int) (bool, error) {
	val, err := argValue(ec, args, i)
	if err != nil {
		return false, err
	}
	return ToBoolean(val)
}

func argBoolOr(ec *EvalContext, args []Expression, i int, def bool) (bool, error) {
	if i >= len(args) {
		return def, nil
	}
	return argBool(ec, args, i)
}

func argDate(ec *EvalContext, args []Expression, i int) (time.Time, error) {
	val, err := argValue(ec, args, i)
	if err != nil {
		return time.Time{}, err
	}
	return ToDate(val)
}

// argReference requires the argument to denote a range
func argReference(ec *EvalContext, args []Expression, i int, fn string) (*RangeReference, error) {
	ref, _, err := evalReference(ec, args[i])
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, typeErrorf("%s expects a range for argument %d", fn, i+1)
	}
	return ref, nil
}

// item is one flattened argument value. direct values came from a scalar
// argument rather than a range, which matters for type classification.
type item struct {
	value  Primitive
	direct bool
}

// flatten evaluates every argument and expands ranges into their values
func flatten(ec *EvalContext, args []Expression, includeHidden bool) ([]item, error) {
	var items []item
	for _, arg := range args {
		ref, value, err := evalReference(ec, arg)
		if err != nil {
			return nil, err
		}
		if ref == nil {
			items = append(items, item{value: Unwrap(value), direct: true})
			continue
		}
		values, err := ec.engine.readRange(ref, includeHidden, -1)
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			items = append(items, item{value: v})
		}
	}
	return items, nil
}

// numericValue classifies an item for the aggregates. range cells count
// only when they hold a number or date; direct arguments also accept
// booleans and numeric text.
func (it item) numericValue() (num float64, isDate, ok bool) {
	switch v := it.value.(type) {
	case float64:
		return v, false, !math.IsNaN(v)
	case int, int64:
		return ToNumber(v), false, true
	case time.Time:
		return ToOADate(v), true, true
	case bool:
		return ToNumber(v), false, it.direct
	case string:
		if !it.direct {
			return 0, false, false
		}
		num := parseNumber(v)
		return num, false, !math.IsNaN(num)
	}
	return 0, false, false
}

// isBlank reports whether a cell value counts as empty
func isBlank(v Primitive) bool {
	switch val := Unwrap(v).(type) {
	case nil:
		return true
	case string:
		return val == ""
	}
	return false
}
