package formula

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CustomFunction is a host-supplied function. unlike the built-ins it gets
// its parameters already evaluated; multi-cell range arguments arrive as
// a flattened []Primitive of the range's cells.
type CustomFunction func(params []Primitive) (Primitive, error)

// UnknownFunctionHandler may supply a value for a name the engine does not
// know. params are evaluated eagerly, as for custom functions.
type UnknownFunctionHandler func(name string, params []Primitive) (Primitive, bool)

// Engine parses and evaluates formulas against a host grid. It is
// single-threaded: evaluation re-enters the engine through the grid, and
// callers serialize access.
type Engine struct {
	grid       Grid
	functions  functionTable
	cache      *ExpressionCache
	evaluating map[string]struct{}
	unknown    []UnknownFunctionHandler

	logger     *zap.Logger
	clock      Clock
	rng        RandomSource
	cacheLimit int
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger; the default discards everything
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithCacheLimit sets the expression cache flush threshold
func WithCacheLimit(limit int) Option {
	return func(e *Engine) {
		e.cacheLimit = limit
	}
}

// WithClock replaces the clock behind NOW and TODAY
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithRandomSource replaces the source behind RAND and RANDBETWEEN
func WithRandomSource(rng RandomSource) Option {
	return func(e *Engine) {
		if rng != nil {
			e.rng = rng
		}
	}
}

// NewEngine creates an engine over grid. a nil grid behaves as a workbook
// with no sheets, so only formulas without references evaluate.
func NewEngine(grid Grid, opts ...Option) *Engine {
	if grid == nil {
		grid = emptyGrid{}
	}
	e := &Engine{
		grid:       grid,
		functions:  newFunctionTable(),
		evaluating: make(map[string]struct{}),
		logger:     zap.NewNop(),
		clock:      &WallClock{},
		rng:        &DefaultRandomSource{},
		cacheLimit: DefaultCacheLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cache = NewExpressionCache(e.cacheLimit)
	return e
}

// Evaluate is the error-free boundary. text that does not start with '='
// is returned unchanged; failures become "Error: <message>". a non-empty
// format is attached to number and date results.
func (e *Engine) Evaluate(formula, format string, sheet Sheet, row, col int) Primitive {
	if !strings.HasPrefix(formula, "=") {
		return formula
	}

	result, err := e.Calculate(formula, sheet, row, col)
	if err != nil {
		e.logger.Debug("formula evaluation failed",
			zap.String("formula", formula),
			zap.Int("row", row),
			zap.Int("col", col),
			zap.Error(err))
		return "Error: " + err.Error()
	}

	if format != "" {
		switch Unwrap(result).(type) {
		case float64, time.Time:
			result = FormattedValue{Value: Unwrap(result), Format: format}
		}
	}
	return result
}

// Calculate parses (through the cache) and evaluates a formula, returning
// any failure as an error. hosts call it to compute formula cells, which
// makes evaluation reentrant. a leading '=' is optional.
func (e *Engine) Calculate(formula string, sheet Sheet, row, col int) (Primitive, error) {
	ec := &EvalContext{Sheet: sheet, Row: row, Col: col, engine: e}

	flushes := e.cache.Flushes()
	expr, err := e.cache.Get(formula, func(text string) (Expression, error) {
		return newParser(e, ec).Parse(text)
	})
	if err != nil {
		return nil, err
	}
	if e.cache.Flushes() != flushes {
		e.logger.Debug("expression cache flushed", zap.Int("limit", e.cacheLimit))
	}

	result, err := evalScalar(ec, expr)
	if err != nil {
		return nil, err
	}
	if num, ok := Unwrap(result).(float64); ok && math.IsNaN(num) {
		return nil, domainErrorf("the result is not a number")
	}
	return result, nil
}

// Parse parses a formula without touching the cache. unknown-function
// handlers run against an empty context.
func (e *Engine) Parse(formula string) (Expression, error) {
	return newParser(e, &EvalContext{Row: -1, Col: -1, engine: e}).Parse(formula)
}

// AddCustomFunction registers fn under name, replacing any function of the
// same name. use NoLimit for an unbounded parameter count. custom functions
// are never memoized.
func (e *Engine) AddCustomFunction(name string, fn CustomFunction, minParams, maxParams int) {
	impl := func(ec *EvalContext, args []Expression) (Primitive, error) {
		params, err := e.evalEager(ec, args)
		if err != nil {
			return nil, err
		}
		return fn(params)
	}
	e.functions.volatile(name, impl, maxParams, minParams)
	// trees parsed earlier may have resolved the name differently
	e.cache.Clear()
}

// OnUnknownFunction adds a handler for unknown identifiers. handlers run in
// registration order and the first one to supply a value wins.
func (e *Engine) OnUnknownFunction(handler UnknownFunctionHandler) {
	e.unknown = append(e.unknown, handler)
}

// ClearCache drops every parsed tree. hosts call it after any structural
// edit because trees hold positional references.
func (e *Engine) ClearCache() {
	e.cache.Clear()
}

// CacheLen is the number of cached trees
func (e *Engine) CacheLen() int {
	return e.cache.Len()
}

// FunctionNames lists the registered functions, upper-case and sorted
func (e *Engine) FunctionNames() []string {
	names := make([]string, 0, len(e.functions))
	for name := range e.functions {
		names = append(names, strings.ToUpper(name))
	}
	sort.Strings(names)
	return names
}

func (e *Engine) resolveUnknown(name string, params []Primitive) (Primitive, bool) {
	for _, handler := range e.unknown {
		if value, ok := handler(name, params); ok {
			return value, true
		}
	}
	e.logger.Debug("unknown function", zap.String("name", name), zap.Int("params", len(params)))
	return nil, false
}

// evalEager evaluates arguments for custom functions and unknown-function
// handlers. multi-cell ranges are flattened into []Primitive; a single
// cell passes its value.
func (e *Engine) evalEager(ec *EvalContext, args []Expression) ([]Primitive, error) {
	params := make([]Primitive, 0, len(args))
	for _, arg := range args {
		ref, value, err := evalReference(ec, arg)
		if err != nil {
			return nil, err
		}
		if ref == nil {
			params = append(params, Unwrap(value))
			continue
		}
		if ref.Range.IsSingleCell() {
			value, err := e.readCell(ref)
			if err != nil {
				return nil, err
			}
			params = append(params, Unwrap(value))
			continue
		}
		values, err := e.readRange(ref, true, -1)
		if err != nil {
			return nil, err
		}
		params = append(params, values)
	}
	return params, nil
}

// guardKey identifies a range read for the circular-reference guard
func guardKey(ref *RangeReference) string {
	r := ref.Range
	return fmt.Sprintf("%s:%d,%d-%d,%d", ref.Sheet.Name(), r.TopRow(), r.LeftCol(), r.BottomRow(), r.RightCol())
}

// enter marks a range read as in progress. seeing the same read again
// before it finishes means a cell of the range depends on the range itself.
func (e *Engine) enter(ref *RangeReference) (string, error) {
	key := guardKey(ref)
	if _, busy := e.evaluating[key]; busy {
		e.logger.Debug("circular reference", zap.String("range", ref.String()))
		return "", NewCalcError(ErrorKindReference, ErrCircularReference)
	}
	e.evaluating[key] = struct{}{}
	return key, nil
}

// readCell reads the top-left cell of ref under the circular guard
func (e *Engine) readCell(ref *RangeReference) (Primitive, error) {
	key, err := e.enter(ref)
	if err != nil {
		return nil, err
	}
	defer delete(e.evaluating, key)

	return e.grid.CellValue(ref.Sheet, ref.Range.TopRow(), ref.Range.LeftCol(), false)
}

// MaxRangeCells is the largest range, in cells, a function may read
const MaxRangeCells = 1 << 24

// readRange reads every cell of ref row-major under the circular guard.
// values are unwrapped. hidden rows and columns are skipped unless
// includeHidden is set; column >= 0 keeps only that column offset.
func (e *Engine) readRange(ref *RangeReference, includeHidden bool, column int) ([]Primitive, error) {
	key, err := e.enter(ref)
	if err != nil {
		return nil, err
	}
	defer delete(e.evaluating, key)

	rng := ref.Range
	if column >= rng.ColumnSpan() {
		return nil, referenceErrorf("column offset %d is outside %s", column, rng.String())
	}

	rows, cols := rng.RowSpan(), rng.ColumnSpan()
	if rows > MaxRangeCells/cols {
		return nil, referenceErrorf("range %s is too large", rng.String())
	}

	values := make([]Primitive, 0, min(rows*cols, 1024))
	for row, col := range rng.Cells() {
		if column >= 0 && col != rng.LeftCol()+column {
			continue
		}
		if !includeHidden && (!ref.Sheet.IsRowVisible(row) || !ref.Sheet.IsColumnVisible(col)) {
			continue
		}
		value, err := e.grid.CellValue(ref.Sheet, row, col, false)
		if err != nil {
			return nil, err
		}
		values = append(values, Unwrap(value))
	}
	return values, nil
}

// emptyGrid backs engines created without a host
type emptyGrid struct{}

func (emptyGrid) CellValue(sheet Sheet, row, col int, formatted bool) (Primitive, error) {
	return nil, nil
}

func (emptyGrid) SheetByName(name string) (Sheet, bool) {
	return nil, false
}

func (emptyGrid) SelectedSheet() Sheet {
	return nil
}
