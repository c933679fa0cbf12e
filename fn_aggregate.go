package formula

import (
	"math"
	"sort"
	"strings"
)

type aggregateKind int

const (
	aggSum aggregateKind = iota
	aggAverage
	aggMax
	aggMin
	aggVar
	aggVarP
	aggStdev
	aggStdevP
	aggProduct
	aggCount
	aggCountA
	aggCountBlank
)

var aggregateNames = map[aggregateKind]string{
	aggSum:        "SUM",
	aggAverage:    "AVERAGE",
	aggMax:        "MAX",
	aggMin:        "MIN",
	aggVar:        "VAR",
	aggVarP:       "VARP",
	aggStdev:      "STDEV",
	aggStdevP:     "STDEVP",
	aggProduct:    "PRODUCT",
	aggCount:      "COUNT",
	aggCountA:     "COUNTA",
	aggCountBlank: "COUNTBLANK",
}

// subtotalKinds maps SUBTOTAL function codes to aggregates
var subtotalKinds = map[int]aggregateKind{
	1:  aggAverage,
	2:  aggCount,
	3:  aggCountA,
	4:  aggMax,
	5:  aggMin,
	6:  aggProduct,
	7:  aggStdev,
	8:  aggStdevP,
	9:  aggSum,
	10: aggVar,
	11: aggVarP,
}

func registerAggregateFunctions(t functionTable) {
	for kind, name := range aggregateNames {
		t.add(name, aggregateFunction(kind), NoLimit, 1)
	}
	t.add("COUNTIF", fnCountIf, 2, 2)
	t.add("COUNTIFS", fnCountIfs, NoLimit, 2)
	t.add("SUMIF", fnSumIf, 3, 2)
	t.add("SUMIFS", fnSumIfs, NoLimit, 3)
	t.add("RANK", fnRank, 3, 2)
	t.add("SUBTOTAL", fnSubtotal, NoLimit, 2)
	t.add("DCOUNT", fnDCount, 3, 3)
	t.add("SUMPRODUCT", fnSumProduct, NoLimit, 1)
}

func aggregateFunction(kind aggregateKind) FunctionImpl {
	return func(ec *EvalContext, args []Expression) (Primitive, error) {
		items, err := flatten(ec, args, true)
		if err != nil {
			return nil, err
		}
		return aggregate(kind, items)
	}
}

// aggregate is the shared reducer behind the statistical functions. date
// inputs make SUM, AVERAGE, MAX and MIN return a date.
func aggregate(kind aggregateKind, items []item) (Primitive, error) {
	name := aggregateNames[kind]

	switch kind {
	case aggCount, aggCountA, aggCountBlank:
		count := 0
		for _, it := range items {
			switch kind {
			case aggCount:
				if _, _, ok := it.numericValue(); ok {
					count++
				}
			case aggCountA:
				if !isBlank(it.value) {
					count++
				}
			case aggCountBlank:
				if num, isNum := it.value.(float64); isBlank(it.value) || (isNum && math.IsNaN(num)) {
					count++
				}
			}
		}
		return float64(count), nil
	}

	var nums []float64
	hasDate := false
	for _, it := range items {
		num, isDate, ok := it.numericValue()
		if !ok {
			if it.direct && !isBlank(it.value) {
				if _, isBool := it.value.(bool); !isBool {
					return nil, typeErrorf("%s: cannot convert '%s' to a number", name, ToString(it.value))
				}
			}
			continue
		}
		hasDate = hasDate || isDate
		nums = append(nums, num)
	}

	var result float64
	switch kind {
	case aggSum:
		for _, n := range nums {
			result += n
		}
	case aggAverage:
		if len(nums) == 0 {
			return nil, domainErrorf("AVERAGE: no numeric values")
		}
		for _, n := range nums {
			result += n
		}
		result /= float64(len(nums))
	case aggMax, aggMin:
		if len(nums) == 0 {
			return 0.0, nil
		}
		result = nums[0]
		for _, n := range nums[1:] {
			if (kind == aggMax && n > result) || (kind == aggMin && n < result) {
				result = n
			}
		}
	case aggVar, aggStdev, aggVarP, aggStdevP:
		sample := kind == aggVar || kind == aggStdev
		if (sample && len(nums) < 2) || len(nums) == 0 {
			return nil, domainErrorf("%s: not enough numeric values", name)
		}
		result = variance(nums, sample)
		if kind == aggStdev || kind == aggStdevP {
			result = math.Sqrt(result)
		}
		return result, nil
	case aggProduct:
		if len(nums) == 0 {
			return 0.0, nil
		}
		result = 1
		for _, n := range nums {
			result *= n
		}
		return result, nil
	}

	if hasDate {
		return FromOADate(result), nil
	}
	return result, nil
}

func variance(nums []float64, sample bool) float64 {
	mean := 0.0
	for _, n := range nums {
		mean += n
	}
	mean /= float64(len(nums))

	sum := 0.0
	for _, n := range nums {
		sum += (n - mean) * (n - mean)
	}
	if sample {
		return sum / float64(len(nums)-1)
	}
	return sum / float64(len(nums))
}

// criteriaMask evaluates range/criteria pairs and ANDs them position by
// position. every range must have the shape of the first.
func criteriaMask(ec *EvalContext, pairs []Expression, fn string) ([]bool, *RangeReference, error) {
	if len(pairs)%2 != 0 {
		return nil, nil, arityErrorf("%s expects range and criteria pairs", fn)
	}

	var mask []bool
	var first *RangeReference
	for i := 0; i < len(pairs); i += 2 {
		ref, err := argReference(ec, pairs, i, fn)
		if err != nil {
			return nil, nil, err
		}
		if first == nil {
			first = ref
		} else if !sameShape(first.Range, ref.Range) {
			return nil, nil, referenceErrorf("%s: criteria ranges must have the same size", fn)
		}

		critValue, err := argValue(ec, pairs, i+1)
		if err != nil {
			return nil, nil, err
		}
		crit, err := parseCriterion(critValue)
		if err != nil {
			return nil, nil, err
		}

		values, err := ec.engine.readRange(ref, true, -1)
		if err != nil {
			return nil, nil, err
		}
		if mask == nil {
			mask = make([]bool, len(values))
			for j := range mask {
				mask[j] = true
			}
		}
		for j, v := range values {
			mask[j] = mask[j] && crit.matches(v)
		}
	}
	return mask, first, nil
}

func sameShape(a, b CellRange) bool {
	return a.RowSpan() == b.RowSpan() && a.ColumnSpan() == b.ColumnSpan()
}

func fnCountIf(ec *EvalContext, args []Expression) (Primitive, error) {
	return countMatching(ec, args, "COUNTIF")
}

func fnCountIfs(ec *EvalContext, args []Expression) (Primitive, error) {
	return countMatching(ec, args, "COUNTIFS")
}

func countMatching(ec *EvalContext, args []Expression, fn string) (Primitive, error) {
	mask, _, err := criteriaMask(ec, args, fn)
	if err != nil {
		return nil, err
	}
	count := 0
	for _, ok := range mask {
		if ok {
			count++
		}
	}
	return float64(count), nil
}

func fnSumIf(ec *EvalContext, args []Expression) (Primitive, error) {
	mask, ref, err := criteriaMask(ec, args[:2], "SUMIF")
	if err != nil {
		return nil, err
	}
	sumRef := ref
	if len(args) > 2 {
		if sumRef, err = argReference(ec, args, 2, "SUMIF"); err != nil {
			return nil, err
		}
	}
	return sumMasked(ec, sumRef, ref, mask, "SUMIF")
}

func fnSumIfs(ec *EvalContext, args []Expression) (Primitive, error) {
	sumRef, err := argReference(ec, args, 0, "SUMIFS")
	if err != nil {
		return nil, err
	}
	mask, ref, err := criteriaMask(ec, args[1:], "SUMIFS")
	if err != nil {
		return nil, err
	}
	return sumMasked(ec, sumRef, ref, mask, "SUMIFS")
}

func sumMasked(ec *EvalContext, sumRef, critRef *RangeReference, mask []bool, fn string) (Primitive, error) {
	if !sameShape(sumRef.Range, critRef.Range) {
		return nil, referenceErrorf("%s: sum range must match the criteria range size", fn)
	}
	values, err := ec.engine.readRange(sumRef, true, -1)
	if err != nil {
		return nil, err
	}
	sum := 0.0
	for i, v := range values {
		if i < len(mask) && mask[i] {
			if num, _, ok := (item{value: v}).numericValue(); ok {
				sum += num
			}
		}
	}
	return sum, nil
}

// fnRank reports the 1-based position of number in ref, descending unless
// order is non-zero
func fnRank(ec *EvalContext, args []Expression) (Primitive, error) {
	number, err := argNumber(ec, args, 0)
	if err != nil {
		return nil, err
	}
	ref, err := argReference(ec, args, 1, "RANK")
	if err != nil {
		return nil, err
	}
	order, err := argNumberOr(ec, args, 2, 0)
	if err != nil {
		return nil, err
	}

	values, err := ec.engine.readRange(ref, true, -1)
	if err != nil {
		return nil, err
	}
	var nums []float64
	for _, v := range values {
		if num, _, ok := (item{value: v}).numericValue(); ok {
			nums = append(nums, num)
		}
	}
	if order != 0 {
		sort.Float64s(nums)
	} else {
		sort.Sort(sort.Reverse(sort.Float64Slice(nums)))
	}
	for i, n := range nums {
		if n == number {
			return float64(i + 1), nil
		}
	}
	return nil, referenceErrorf("RANK: %s is not in the range", formatGeneral(number))
}

// fnSubtotal applies a SUBTOTAL code. 1-11 include hidden rows, 101-111
// leave them out.
func fnSubtotal(ec *EvalContext, args []Expression) (Primitive, error) {
	code, err := argInt(ec, args, 0)
	if err != nil {
		return nil, err
	}
	includeHidden := code < 100
	kind, ok := subtotalKinds[code%100]
	if !ok || code > 111 || (code > 11 && code < 101) {
		return nil, domainErrorf("SUBTOTAL: invalid function code %d", code)
	}
	items, err := flatten(ec, args[1:], includeHidden)
	if err != nil {
		return nil, err
	}
	return aggregate(kind, items)
}

// fnDCount counts numeric values of a database field over the rows that
// pass the criteria table. criteria cells on one row are ANDed, rows are
// ORed.
func fnDCount(ec *EvalContext, args []Expression) (Primitive, error) {
	db, err := argReference(ec, args, 0, "DCOUNT")
	if err != nil {
		return nil, err
	}
	field, err := argValue(ec, args, 1)
	if err != nil {
		return nil, err
	}
	crit, err := argReference(ec, args, 2, "DCOUNT")
	if err != nil {
		return nil, err
	}

	dbRange := db.Range.Normalized()
	headers, err := ec.engine.readRange(headerRow(db), true, -1)
	if err != nil {
		return nil, err
	}
	fieldCol, err := fieldOffset(headers, field)
	if err != nil {
		return nil, err
	}
	if dbRange.RowSpan() < 2 {
		return 0.0, nil
	}
	body := &RangeReference{
		Sheet: db.Sheet,
		Range: NewCellRange(dbRange.Row+1, dbRange.Col, dbRange.Row2, dbRange.Col2),
	}

	// condition rows of the criteria table
	critValues, err := ec.engine.readRange(crit, true, -1)
	if err != nil {
		return nil, err
	}
	width := crit.Range.ColumnSpan()
	type condition struct {
		col  int
		test *criterion
	}
	var rows [][]condition
	for r := 1; r < crit.Range.RowSpan(); r++ {
		var conds []condition
		for c := 0; c < width; c++ {
			cell := critValues[r*width+c]
			if isBlank(cell) {
				continue
			}
			col, err := fieldOffset(headers, critValues[c])
			if err != nil {
				return nil, err
			}
			test, err := parseCriterion(cell)
			if err != nil {
				return nil, err
			}
			conds = append(conds, condition{col: col, test: test})
		}
		rows = append(rows, conds)
	}

	// read each referenced column once
	columns := map[int][]Primitive{}
	readColumn := func(col int) ([]Primitive, error) {
		if values, ok := columns[col]; ok {
			return values, nil
		}
		values, err := ec.engine.readRange(body, true, col)
		if err != nil {
			return nil, err
		}
		columns[col] = values
		return values, nil
	}

	fieldValues, err := readColumn(fieldCol)
	if err != nil {
		return nil, err
	}
	count := 0
	for i, v := range fieldValues {
		if _, _, ok := (item{value: v}).numericValue(); !ok {
			continue
		}
		pass := len(rows) == 0
		for _, conds := range rows {
			rowPass := true
			for _, cond := range conds {
				values, err := readColumn(cond.col)
				if err != nil {
					return nil, err
				}
				if !cond.test.matches(values[i]) {
					rowPass = false
					break
				}
			}
			if rowPass {
				pass = true
				break
			}
		}
		if pass {
			count++
		}
	}
	return float64(count), nil
}

func headerRow(ref *RangeReference) *RangeReference {
	rng := ref.Range.Normalized()
	return &RangeReference{Sheet: ref.Sheet, Range: NewCellRange(rng.Row, rng.Col, rng.Row, rng.Col2)}
}

// fieldOffset resolves a header name or a 1-based column number
func fieldOffset(headers []Primitive, field Primitive) (int, error) {
	if name, ok := Unwrap(field).(string); ok && !isNumeric(name) {
		for i, header := range headers {
			if strings.EqualFold(strings.TrimSpace(ToString(header)), strings.TrimSpace(name)) {
				return i, nil
			}
		}
		return 0, referenceErrorf("unknown field '%s'", name)
	}
	n := int(math.Trunc(ToNumber(field)))
	if n < 1 || n > len(headers) {
		return 0, referenceErrorf("field index %d is out of range", n)
	}
	return n - 1, nil
}

// fnSumProduct multiplies same-shaped ranges position by position and sums
// the products. text and blanks count as zero.
func fnSumProduct(ec *EvalContext, args []Expression) (Primitive, error) {
	var products []float64
	var shape CellRange
	for i := range args {
		ref, err := argReference(ec, args, i, "SUMPRODUCT")
		if err != nil {
			return nil, err
		}
		if i == 0 {
			shape = ref.Range
		} else if !sameShape(shape, ref.Range) {
			return nil, referenceErrorf("SUMPRODUCT: ranges must have the same size")
		}
		values, err := ec.engine.readRange(ref, true, -1)
		if err != nil {
			return nil, err
		}
		if products == nil {
			products = make([]float64, len(values))
			for j := range products {
				products[j] = 1
			}
		}
		for j, v := range values {
			num, _, ok := (item{value: v}).numericValue()
			if !ok {
				num = 0
			}
			products[j] *= num
		}
	}
	sum := 0.0
	for _, p := range products {
		sum += p
	}
	return sum, nil
}
