package formula

import "math"

const (
	rateEpsilon    = 1e-7
	rateIterations = 20
)

func registerFinancialFunctions(t functionTable) {
	t.add("FV", fnFV, 5, 3)
	t.add("PMT", fnPMT, 5, 3)
	t.add("PV", fnPV, 5, 3)
	t.add("RATE", fnRate, 6, 3)
}

// cashFlowArgs reads the three required numbers and the optional fourth
// value and payment type shared by FV, PMT and PV
func cashFlowArgs(ec *EvalContext, args []Expression) (a, b, c, d, due float64, err error) {
	for i, dst := range []*float64{&a, &b, &c} {
		if *dst, err = argNumber(ec, args, i); err != nil {
			return
		}
	}
	if d, err = argNumberOr(ec, args, 3, 0); err != nil {
		return
	}
	due, err = argNumberOr(ec, args, 4, 0)
	return
}

// growth returns (1+rate)^nper and the accumulated payment factor, so that
// pv*f + pmt*k + fv = 0 holds for every consistent set of cash flows
func growth(rate, nper, due float64) (f, k float64) {
	if rate == 0 {
		return 1, nper
	}
	f = math.Pow(1+rate, nper)
	return f, (1 + rate*due) * (f - 1) / rate
}

// fnFV is the future value: rate, nper, pmt, [pv], [type]
func fnFV(ec *EvalContext, args []Expression) (Primitive, error) {
	rate, nper, pmt, pv, due, err := cashFlowArgs(ec, args)
	if err != nil {
		return nil, err
	}
	f, k := growth(rate, nper, due)
	return FormattedValue{Value: -(pv*f + pmt*k) + 0, Format: "c2"}, nil
}

// fnPMT is the periodic payment: rate, nper, pv, [fv], [type]
func fnPMT(ec *EvalContext, args []Expression) (Primitive, error) {
	rate, nper, pv, fv, due, err := cashFlowArgs(ec, args)
	if err != nil {
		return nil, err
	}
	f, k := growth(rate, nper, due)
	if k == 0 {
		return nil, domainErrorf("PMT: the number of periods must not be zero")
	}
	return FormattedValue{Value: -(pv*f+fv)/k + 0, Format: "c2"}, nil
}

// fnPV is the present value: rate, nper, pmt, [fv], [type]
func fnPV(ec *EvalContext, args []Expression) (Primitive, error) {
	rate, nper, pmt, fv, due, err := cashFlowArgs(ec, args)
	if err != nil {
		return nil, err
	}
	f, k := growth(rate, nper, due)
	if f == 0 {
		return nil, domainErrorf("PV: the rate must be greater than -1")
	}
	return FormattedValue{Value: -(fv+pmt*k)/f + 0, Format: "c2"}, nil
}

// fnRate solves the annuity equation for the periodic interest rate.
// arguments: nper, pmt, pv, [fv], [type], [guess].
func fnRate(ec *EvalContext, args []Expression) (Primitive, error) {
	nper, err := argNumber(ec, args, 0)
	if err != nil {
		return nil, err
	}
	pmt, err := argNumber(ec, args, 1)
	if err != nil {
		return nil, err
	}
	pv, err := argNumber(ec, args, 2)
	if err != nil {
		return nil, err
	}
	fv, err := argNumberOr(ec, args, 3, 0)
	if err != nil {
		return nil, err
	}
	due, err := argNumberOr(ec, args, 4, 0)
	if err != nil {
		return nil, err
	}
	guess, err := argNumberOr(ec, args, 5, 0.1)
	if err != nil {
		return nil, err
	}

	rate, ok := solveRate(nper, pmt, pv, fv, due, guess)
	if !ok {
		return nil, domainErrorf("RATE: the calculation did not converge")
	}
	// the secant step can land on -0
	return FormattedValue{Value: rate + 0, Format: "p2"}, nil
}

// annuity is the value of the cash flows at rate; a root is the answer
func annuity(rate, nper, pmt, pv, fv, due float64) float64 {
	if math.Abs(rate) < rateEpsilon {
		return pv*(1+nper*rate) + pmt*(1+rate*due)*nper + fv
	}
	f := math.Exp(nper * math.Log(1+rate))
	return pv*f + pmt*(1/rate+due)*(f-1) + fv
}

// solveRate runs a secant iteration from rate 0 and the guess
func solveRate(nper, pmt, pv, fv, due, guess float64) (float64, bool) {
	x0, x1 := 0.0, guess
	y0 := pv + pmt*nper + fv
	y1 := annuity(x1, nper, pmt, pv, fv, due)

	rate := x1
	i := 0
	for ; math.Abs(y0-y1) > rateEpsilon && i < rateIterations; i++ {
		rate = (y1*x0 - y0*x1) / (y1 - y0)
		x0, x1 = x1, rate
		y0, y1 = y1, annuity(rate, nper, pmt, pv, fv, due)
	}

	if math.IsNaN(rate) || math.IsInf(rate, 0) || math.IsNaN(y1) || math.Abs(y0-y1) > rateEpsilon {
		return 0, false
	}
	return rate, true
}
