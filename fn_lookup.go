package formula

import (
	"strings"
	"time"
)

func registerLookupFunctions(t functionTable) {
	t.volatile("COLUMN", fnColumn, 1, 0)
	t.volatile("ROW", fnRow, 1, 0)
	t.add("COLUMNS", fnColumns, 1, 1)
	t.add("ROWS", fnRows, 1, 1)
	t.add("CHOOSE", fnChoose, NoLimit, 2)
	t.add("INDEX", fnIndex, 3, 2)
	t.add("HLOOKUP", fnHLookup, 4, 3)
	t.add("VLOOKUP", fnVLookup, 4, 3)
}

// fnColumn is the 1-based column of a reference, or of the current cell
func fnColumn(ec *EvalContext, args []Expression) (Primitive, error) {
	if len(args) == 0 {
		if ec.Col < 0 {
			return nil, referenceErrorf("COLUMN: there is no current cell")
		}
		return float64(ec.Col + 1), nil
	}
	ref, err := argReference(ec, args, 0, "COLUMN")
	if err != nil {
		return nil, err
	}
	return float64(ref.Range.LeftCol() + 1), nil
}

// fnRow is the 1-based row of a reference, or of the current cell
func fnRow(ec *EvalContext, args []Expression) (Primitive, error) {
	if len(args) == 0 {
		if ec.Row < 0 {
			return nil, referenceErrorf("ROW: there is no current cell")
		}
		return float64(ec.Row + 1), nil
	}
	ref, err := argReference(ec, args, 0, "ROW")
	if err != nil {
		return nil, err
	}
	return float64(ref.Range.TopRow() + 1), nil
}

func fnColumns(ec *EvalContext, args []Expression) (Primitive, error) {
	ref, err := argReference(ec, args, 0, "COLUMNS")
	if err != nil {
		return nil, err
	}
	return float64(ref.Range.ColumnSpan()), nil
}

func fnRows(ec *EvalContext, args []Expression) (Primitive, error) {
	ref, err := argReference(ec, args, 0, "ROWS")
	if err != nil {
		return nil, err
	}
	return float64(ref.Range.RowSpan()), nil
}

// fnChoose evaluates only the selected branch. a range branch stays a
// range so CHOOSE can feed SUM and friends.
func fnChoose(ec *EvalContext, args []Expression) (Primitive, error) {
	index, err := argInt(ec, args, 0)
	if err != nil {
		return nil, err
	}
	if index < 1 || index >= len(args) {
		return nil, referenceErrorf("CHOOSE: index %d is out of range", index)
	}
	ref, value, err := evalReference(ec, args[index])
	if err != nil {
		return nil, err
	}
	if ref != nil {
		return ref, nil
	}
	return value, nil
}

// fnIndex offsets into a range. a zero row or column selects the whole
// column or row; both zero returns the range itself.
func fnIndex(ec *EvalContext, args []Expression) (Primitive, error) {
	ref, err := argReference(ec, args, 0, "INDEX")
	if err != nil {
		return nil, err
	}
	row, err := argInt(ec, args, 1)
	if err != nil {
		return nil, err
	}
	col, err := argIntOr(ec, args, 2, -1)
	if err != nil {
		return nil, err
	}

	rng := ref.Range.Normalized()
	if col < 0 {
		switch {
		case rng.ColumnSpan() == 1:
			col = 1
		case rng.RowSpan() == 1:
			row, col = 1, row
		default:
			col = 0
		}
	}
	if row < 0 || row > rng.RowSpan() || col < 0 || col > rng.ColumnSpan() {
		return nil, referenceErrorf("INDEX: row %d, column %d is outside %s", row, col, rng.String())
	}

	switch {
	case row == 0 && col == 0:
		return ref, nil
	case row == 0:
		c := rng.Col + col - 1
		return &RangeReference{Sheet: ref.Sheet, Range: NewCellRange(rng.Row, c, rng.Row2, c)}, nil
	case col == 0:
		r := rng.Row + row - 1
		return &RangeReference{Sheet: ref.Sheet, Range: NewCellRange(r, rng.Col, r, rng.Col2)}, nil
	}
	return ec.engine.readCell(&RangeReference{Sheet: ref.Sheet, Range: SingleCell(rng.Row+row-1, rng.Col+col-1)})
}

func fnHLookup(ec *EvalContext, args []Expression) (Primitive, error) {
	return lookup(ec, args, true, "HLOOKUP")
}

func fnVLookup(ec *EvalContext, args []Expression) (Primitive, error) {
	return lookup(ec, args, false, "VLOOKUP")
}

// lookup searches the first row (horizontal) or column of a table. an exact
// case-insensitive match wins, with wildcard support for text; failing that
// and when approximate matching is on, the largest key not above the value.
func lookup(ec *EvalContext, args []Expression, horizontal bool, name string) (Primitive, error) {
	value, err := argValue(ec, args, 0)
	if err != nil {
		return nil, err
	}
	table, err := argReference(ec, args, 1, name)
	if err != nil {
		return nil, err
	}
	index, err := argInt(ec, args, 2)
	if err != nil {
		return nil, err
	}
	approx, err := argBoolOr(ec, args, 3, true)
	if err != nil {
		return nil, err
	}

	rng := table.Range.Normalized()
	keyRange := NewCellRange(rng.Row, rng.Col, rng.Row2, rng.Col)
	span := rng.ColumnSpan()
	if horizontal {
		keyRange = NewCellRange(rng.Row, rng.Col, rng.Row, rng.Col2)
		span = rng.RowSpan()
	}
	if index < 1 || index > span {
		return nil, referenceErrorf("%s: index %d is out of range", name, index)
	}

	keys, err := ec.engine.readRange(&RangeReference{Sheet: table.Sheet, Range: keyRange}, true, -1)
	if err != nil {
		return nil, err
	}

	pos := exactMatch(keys, value)
	if pos < 0 && approx {
		pos = approximateMatch(keys, value)
	}
	if pos < 0 {
		return nil, referenceErrorf("%s: '%s' was not found", name, ToString(value))
	}

	cell := SingleCell(rng.Row+pos, rng.Col+index-1)
	if horizontal {
		cell = SingleCell(rng.Row+index-1, rng.Col+pos)
	}
	return ec.engine.readCell(&RangeReference{Sheet: table.Sheet, Range: cell})
}

func exactMatch(keys []Primitive, value Primitive) int {
	if text, ok := value.(string); ok && !isNumeric(text) {
		if hasWildcards(text) {
			pattern := wildcardPattern(text, true)
			for i, key := range keys {
				if !isBlank(key) && pattern.MatchString(ToString(key)) {
					return i
				}
			}
			return -1
		}
		for i, key := range keys {
			if !isBlank(key) && strings.EqualFold(ToString(key), text) {
				return i
			}
		}
		return -1
	}
	for i, key := range keys {
		if !isBlank(key) && isLookupNumber(key) && compareValues(TokenEqual, key, value) {
			return i
		}
	}
	return -1
}

// approximateMatch picks the largest key that is not greater than value.
// numbers only compare with numbers and text with text.
func approximateMatch(keys []Primitive, value Primitive) int {
	numeric := isLookupNumber(value)
	best := -1
	for i, key := range keys {
		if isBlank(key) || isLookupNumber(key) != numeric {
			continue
		}
		if !lessOrEqual(key, value, numeric) {
			continue
		}
		if best < 0 || lessOrEqual(keys[best], key, numeric) {
			best = i
		}
	}
	return best
}

func lessOrEqual(a, b Primitive, numeric bool) bool {
	if numeric {
		return ToNumber(a) <= ToNumber(b)
	}
	return strings.ToLower(ToString(a)) <= strings.ToLower(ToString(b))
}

func isLookupNumber(v Primitive) bool {
	switch val := v.(type) {
	case float64, int, int64, bool, time.Time:
		return true
	case string:
		return isNumeric(val)
	}
	return false
}
