package formula

import (
	"math"
	"strconv"
)

func registerMathFunctions(t functionTable) {
	t.add("ABS", unaryMath(math.Abs), 1, 1)
	t.add("ACOS", unaryDomain("ACOS", math.Acos, func(x float64) bool { return x >= -1 && x <= 1 }), 1, 1)
	t.add("ASIN", unaryDomain("ASIN", math.Asin, func(x float64) bool { return x >= -1 && x <= 1 }), 1, 1)
	t.add("ATAN", unaryMath(math.Atan), 1, 1)
	t.add("ATAN2", fnAtan2, 2, 2)
	t.add("CEILING", fnCeiling, 2, 1)
	t.add("COS", unaryMath(math.Cos), 1, 1)
	t.add("EXP", unaryMath(math.Exp), 1, 1)
	t.add("FLOOR", fnFloor, 2, 1)
	t.add("INT", unaryMath(math.Floor), 1, 1)
	t.add("LN", unaryDomain("LN", math.Log, positive), 1, 1)
	t.add("LOG", fnLog, 2, 1)
	t.add("LOG10", unaryDomain("LOG10", math.Log10, positive), 1, 1)
	t.add("MOD", fnMod, 2, 2)
	t.add("PI", fnPi, 0, 0)
	t.add("POWER", fnPower, 2, 2)
	t.add("ROUND", roundFunction(roundHalfAway), 2, 1)
	t.add("ROUNDDOWN", roundFunction(math.Floor), 2, 1)
	t.add("ROUNDUP", roundFunction(math.Ceil), 2, 1)
	t.add("SIGN", fnSign, 1, 1)
	t.add("SIN", unaryMath(math.Sin), 1, 1)
	t.add("SQRT", unaryDomain("SQRT", math.Sqrt, func(x float64) bool { return x >= 0 }), 1, 1)
	t.add("TAN", unaryMath(math.Tan), 1, 1)
	t.add("TRUNC", fnTrunc, 2, 1)
	t.volatile("RAND", fnRand, 0, 0)
	t.volatile("RANDBETWEEN", fnRandBetween, 2, 2)
}

func positive(x float64) bool {
	return x > 0
}

func unaryMath(fn func(float64) float64) FunctionImpl {
	return func(ec *EvalContext, args []Expression) (Primitive, error) {
		x, err := argNumber(ec, args, 0)
		if err != nil {
			return nil, err
		}
		return fn(x), nil
	}
}

// unaryDomain is unaryMath with an argument range check
func unaryDomain(name string, fn func(float64) float64, valid func(float64) bool) FunctionImpl {
	return func(ec *EvalContext, args []Expression) (Primitive, error) {
		x, err := argNumber(ec, args, 0)
		if err != nil {
			return nil, err
		}
		if !valid(x) {
			return nil, domainErrorf("%s: %s is outside the function's domain", name, formatGeneral(x))
		}
		return fn(x), nil
	}
}

// fnAtan2 takes x before y, like the spreadsheet ATAN2
func fnAtan2(ec *EvalContext, args []Expression) (Primitive, error) {
	x, err := argNumber(ec, args, 0)
	if err != nil {
		return nil, err
	}
	y, err := argNumber(ec, args, 1)
	if err != nil {
		return nil, err
	}
	if x == 0 && y == 0 {
		return nil, domainErrorf("ATAN2: x and y cannot both be zero")
	}
	return math.Atan2(y, x), nil
}

// roundToMultiple rounds x to a multiple of significance with fn
func roundToMultiple(name string, fn func(float64) float64) FunctionImpl {
	return func(ec *EvalContext, args []Expression) (Primitive, error) {
		x, err := argNumber(ec, args, 0)
		if err != nil {
			return nil, err
		}
		significance, err := argNumberOr(ec, args, 1, 1)
		if err != nil {
			return nil, err
		}
		if significance == 0 {
			return 0.0, nil
		}
		if x > 0 && significance < 0 {
			return nil, domainErrorf("%s: number and significance must have the same sign", name)
		}
		return fn(x/significance) * significance, nil
	}
}

var (
	fnCeiling = roundToMultiple("CEILING", math.Ceil)
	fnFloor   = roundToMultiple("FLOOR", math.Floor)
)

func fnLog(ec *EvalContext, args []Expression) (Primitive, error) {
	x, err := argNumber(ec, args, 0)
	if err != nil {
		return nil, err
	}
	base, err := argNumberOr(ec, args, 1, 10)
	if err != nil {
		return nil, err
	}
	if x <= 0 || base <= 0 || base == 1 {
		return nil, domainErrorf("LOG: invalid number or base")
	}
	return math.Log(x) / math.Log(base), nil
}

// fnMod is a floored modulo: the result takes the divisor's sign
func fnMod(ec *EvalContext, args []Expression) (Primitive, error) {
	n, err := argNumber(ec, args, 0)
	if err != nil {
		return nil, err
	}
	d, err := argNumber(ec, args, 1)
	if err != nil {
		return nil, err
	}
	if d == 0 {
		return nil, domainErrorf("MOD: division by zero")
	}
	return n - d*math.Floor(n/d), nil
}

func fnPi(ec *EvalContext, args []Expression) (Primitive, error) {
	return math.Pi, nil
}

func fnPower(ec *EvalContext, args []Expression) (Primitive, error) {
	base, err := argNumber(ec, args, 0)
	if err != nil {
		return nil, err
	}
	exp, err := argNumber(ec, args, 1)
	if err != nil {
		return nil, err
	}
	return math.Pow(base, exp), nil
}

func fnSign(ec *EvalContext, args []Expression) (Primitive, error) {
	x, err := argNumber(ec, args, 0)
	if err != nil {
		return nil, err
	}
	switch {
	case x > 0:
		return 1.0, nil
	case x < 0:
		return -1.0, nil
	}
	return 0.0, nil
}

func roundHalfAway(x float64) float64 {
	return math.Floor(x + 0.5)
}

// roundFunction builds ROUND, ROUNDDOWN and ROUNDUP. rounding applies to
// the magnitude and the sign is restored, so ROUNDDOWN(-1.5) is -1. the
// result carries an n<digits> display format.
func roundFunction(fn func(float64) float64) FunctionImpl {
	return func(ec *EvalContext, args []Expression) (Primitive, error) {
		x, err := argNumber(ec, args, 0)
		if err != nil {
			return nil, err
		}
		digits, err := argIntOr(ec, args, 1, 0)
		if err != nil {
			return nil, err
		}
		factor := math.Pow(10, float64(digits))
		result := fn(math.Abs(x)*factor) / factor
		if x < 0 {
			result = -result
		}
		return FormattedValue{Value: result, Format: "n" + strconv.Itoa(max(digits, 0))}, nil
	}
}

// fnTrunc drops digits toward zero
func fnTrunc(ec *EvalContext, args []Expression) (Primitive, error) {
	x, err := argNumber(ec, args, 0)
	if err != nil {
		return nil, err
	}
	digits, err := argIntOr(ec, args, 1, 0)
	if err != nil {
		return nil, err
	}
	factor := math.Pow(10, float64(digits))
	return math.Trunc(x*factor) / factor, nil
}

func fnRand(ec *EvalContext, args []Expression) (Primitive, error) {
	return ec.engine.rng.Float64(), nil
}

// fnRandBetween returns an integer in [low, high]
func fnRandBetween(ec *EvalContext, args []Expression) (Primitive, error) {
	low, err := argNumber(ec, args, 0)
	if err != nil {
		return nil, err
	}
	high, err := argNumber(ec, args, 1)
	if err != nil {
		return nil, err
	}
	low, high = math.Ceil(low), math.Floor(high)
	if low > high {
		return nil, domainErrorf("RANDBETWEEN: bottom is greater than top")
	}
	return low + math.Floor(ec.engine.rng.Float64()*(high-low+1)), nil
}
