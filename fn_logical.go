package formula

func registerLogicalFunctions(t functionTable) {
	t.add("AND", fnAnd, NoLimit, 1)
	t.add("OR", fnOr, NoLimit, 1)
	t.add("NOT", fnNot, 1, 1)
	t.add("IF", fnIf, 3, 2)
	t.add("TRUE", fnTrue, 0, 0)
	t.add("FALSE", fnFalse, 0, 0)
}

// fnAnd stops at the first false argument
func fnAnd(ec *EvalContext, args []Expression) (Primitive, error) {
	for i := range args {
		ok, err := argBool(ec, args, i)
		if err != nil {
			return nil, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// fnOr stops at the first true argument
func fnOr(ec *EvalContext, args []Expression) (Primitive, error) {
	for i := range args {
		ok, err := argBool(ec, args, i)
		if err != nil {
			return nil, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func fnNot(ec *EvalContext, args []Expression) (Primitive, error) {
	ok, err := argBool(ec, args, 0)
	if err != nil {
		return nil, err
	}
	return !ok, nil
}

// fnIf only evaluates the selected branch. a missing else branch is FALSE.
func fnIf(ec *EvalContext, args []Expression) (Primitive, error) {
	cond, err := argBool(ec, args, 0)
	if err != nil {
		return nil, err
	}
	if cond {
		return args[1].Eval(ec)
	}
	if len(args) > 2 {
		return args[2].Eval(ec)
	}
	return false, nil
}

func fnTrue(ec *EvalContext, args []Expression) (Primitive, error) {
	return true, nil
}

func fnFalse(ec *EvalContext, args []Expression) (Primitive, error) {
	return false, nil
}
