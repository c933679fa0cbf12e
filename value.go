package formula

// Primitive represents every value the engine produces or consumes.
// types:
//   - float64: numeric values
//   - string: text values
//   - bool: boolean values
//   - time.Time: dates and times (UTC wall clock)
//   - nil: empty cells
//   - FormattedValue: any of the above plus a default display format
//   - *RangeReference: a resolved range, e.g. the result of INDEX
//   - []Primitive: a flattened range, only ever passed to custom functions
type Primitive any

// FormattedValue attaches a default display format to a value. functions
// such as ROUND, TIME or RATE return one; consumers unwrap it before
// coercing.
type FormattedValue struct {
	Value  Primitive
	Format string
}

// Unwrap strips any FormattedValue layers from v
func Unwrap(v Primitive) Primitive {
	for {
		fv, ok := v.(FormattedValue)
		if !ok {
			return v
		}
		v = fv.Value
	}
}

// Sheet is the part of a host worksheet the engine needs
type Sheet interface {
	Name() string
	IsRowVisible(row int) bool
	IsColumnVisible(col int) bool
}

// Grid is the host collaborator. CellValue may call back into
// Engine.Calculate for formula cells, so evaluation is reentrant. the host
// must call Engine.ClearCache after every structural mutation because
// cached trees hold positional references.
type Grid interface {
	// CellValue returns the value at row/col (0-based) of sheet, either raw
	// or as a FormattedValue when formatted is true
	CellValue(sheet Sheet, row, col int, formatted bool) (Primitive, error)
	// SheetByName looks a sheet up by name
	SheetByName(name string) (Sheet, bool)
	// SelectedSheet is the fallback when a formula has no ambient sheet
	SelectedSheet() Sheet
}
