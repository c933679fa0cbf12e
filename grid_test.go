package formula

import (
	"math"
	"strings"
	"testing"
	"time"
)

// testSheet is a map-backed sheet holding raw cell input
type testSheet struct {
	name       string
	cells      map[[2]int]Primitive
	hiddenRows map[int]bool
	hiddenCols map[int]bool
}

func newTestSheet(name string) *testSheet {
	return &testSheet{
		name:       name,
		cells:      make(map[[2]int]Primitive),
		hiddenRows: make(map[int]bool),
		hiddenCols: make(map[int]bool),
	}
}

func (s *testSheet) Name() string {
	return s.name
}

func (s *testSheet) IsRowVisible(row int) bool {
	return !s.hiddenRows[row]
}

func (s *testSheet) IsColumnVisible(col int) bool {
	return !s.hiddenCols[col]
}

// testGrid computes formula cells by calling back into the engine, the way
// a real host does
type testGrid struct {
	engine   *Engine
	sheets   []*testSheet
	selected *testSheet
	reads    int
}

func (g *testGrid) CellValue(sheet Sheet, row, col int, formatted bool) (Primitive, error) {
	g.reads++
	ts := sheet.(*testSheet)
	raw := ts.cells[[2]int{row, col}]
	if text, ok := raw.(string); ok && strings.HasPrefix(text, "=") {
		value, err := g.engine.Calculate(text, sheet, row, col)
		if err != nil {
			return nil, err
		}
		if formatted {
			return FormatValue(value, ""), nil
		}
		return value, nil
	}
	return raw, nil
}

func (g *testGrid) SheetByName(name string) (Sheet, bool) {
	for _, s := range g.sheets {
		if strings.EqualFold(s.name, name) {
			return s, true
		}
	}
	return nil, false
}

func (g *testGrid) SelectedSheet() Sheet {
	if g.selected == nil {
		return nil
	}
	return g.selected
}

// fixedClock always reports the same instant
type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.now
}

// fixedRandom always returns the same number
type fixedRandom struct {
	value float64
}

func (r *fixedRandom) Float64() float64 {
	return r.value
}

var testNow = time.Date(2024, time.March, 15, 14, 30, 0, 0, time.UTC)

type EngineTestCase struct {
	t      *testing.T
	name   string
	grid   *testGrid
	engine *Engine
}

func NewEngineTestCase(t *testing.T, name string, opts ...Option) *EngineTestCase {
	grid := &testGrid{}
	opts = append([]Option{
		WithClock(&fixedClock{now: testNow}),
		WithRandomSource(&fixedRandom{value: 0.25}),
	}, opts...)
	grid.engine = NewEngine(grid, opts...)
	tc := &EngineTestCase{
		t:      t,
		name:   name,
		grid:   grid,
		engine: grid.engine,
	}
	tc.AddSheet("Sheet1")
	grid.selected = grid.sheets[0]
	return tc
}

func (tc *EngineTestCase) AddSheet(name string) *EngineTestCase {
	tc.grid.sheets = append(tc.grid.sheets, newTestSheet(name))
	return tc
}

// locate resolves Sheet!A1 or A1 (on the selected sheet)
func (tc *EngineTestCase) locate(address string) (*testSheet, int, int) {
	tc.t.Helper()
	rng, sheetName, ok, err := ParseRangeRef(address)
	if !ok || err != nil {
		tc.t.Fatalf("%s: bad address %q", tc.name, address)
	}
	sheet := tc.grid.selected
	if sheetName != "" {
		s, found := tc.grid.SheetByName(sheetName)
		if !found {
			tc.t.Fatalf("%s: unknown sheet in %q", tc.name, address)
		}
		sheet = s.(*testSheet)
	}
	return sheet, rng.Row, rng.Col
}

func (tc *EngineTestCase) Set(address string, value Primitive) *EngineTestCase {
	sheet, row, col := tc.locate(address)
	sheet.cells[[2]int{row, col}] = value
	tc.engine.ClearCache()
	return tc
}

func (tc *EngineTestCase) HideRow(sheetName string, row int) *EngineTestCase {
	s, _ := tc.grid.SheetByName(sheetName)
	s.(*testSheet).hiddenRows[row] = true
	return tc
}

func (tc *EngineTestCase) HideColumn(sheetName string, col int) *EngineTestCase {
	s, _ := tc.grid.SheetByName(sheetName)
	s.(*testSheet).hiddenCols[col] = true
	return tc
}

// Get evaluates a cell through the error-free boundary
func (tc *EngineTestCase) Get(address string) Primitive {
	sheet, row, col := tc.locate(address)
	raw := sheet.cells[[2]int{row, col}]
	if text, ok := raw.(string); ok {
		return tc.engine.Evaluate(text, "", sheet, row, col)
	}
	return raw
}

func (tc *EngineTestCase) AssertCellEq(address string, expected Primitive) *EngineTestCase {
	tc.t.Helper()
	assertValueEq(tc.t, tc.name+": cell "+address, tc.Get(address), expected)
	return tc
}

func (tc *EngineTestCase) AssertCellErr(address string, contains string) *EngineTestCase {
	tc.t.Helper()
	assertErrorValue(tc.t, tc.name+": cell "+address, tc.Get(address), contains)
	return tc
}

func (tc *EngineTestCase) AssertCellFn(address string, fn func(value Primitive, t *testing.T)) *EngineTestCase {
	tc.t.Helper()
	fn(tc.Get(address), tc.t)
	return tc
}

// AssertFormulaEq evaluates a formula on the selected sheet outside any cell
func (tc *EngineTestCase) AssertFormulaEq(formula string, expected Primitive) *EngineTestCase {
	tc.t.Helper()
	actual := tc.engine.Evaluate(formula, "", tc.grid.selected, -1, -1)
	assertValueEq(tc.t, tc.name+": "+formula, actual, expected)
	return tc
}

func (tc *EngineTestCase) AssertFormulaErr(formula string, contains string) *EngineTestCase {
	tc.t.Helper()
	actual := tc.engine.Evaluate(formula, "", tc.grid.selected, -1, -1)
	assertErrorValue(tc.t, tc.name+": "+formula, actual, contains)
	return tc
}

func (tc *EngineTestCase) End() {
}

func assertValueEq(t *testing.T, label string, actual, expected Primitive) {
	t.Helper()
	if _, wantFormatted := expected.(FormattedValue); !wantFormatted {
		actual = Unwrap(actual)
	}
	switch exp := expected.(type) {
	case float64:
		act, ok := actual.(float64)
		if !ok {
			t.Errorf("%s = %v (%T), want %v (float64)", label, actual, actual, expected)
		} else if math.Abs(act-exp) > 1e-9 {
			t.Errorf("%s = %v, want %v", label, actual, expected)
		}
	case int:
		assertValueEq(t, label, actual, float64(exp))
	case time.Time:
		act, ok := actual.(time.Time)
		if !ok || !act.Equal(exp) {
			t.Errorf("%s = %v, want %v", label, actual, expected)
		}
	default:
		if actual != expected {
			t.Errorf("%s = %v (%T), want %v (%T)", label, actual, actual, expected, expected)
		}
	}
}

func assertErrorValue(t *testing.T, label string, actual Primitive, contains string) {
	t.Helper()
	text, ok := actual.(string)
	if !ok || !strings.HasPrefix(text, "Error: ") {
		t.Errorf("%s = %v, want an error", label, actual)
		return
	}
	if !strings.Contains(text, contains) {
		t.Errorf("%s = %q, want an error containing %q", label, text, contains)
	}
}
