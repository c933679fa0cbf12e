package workbook

import (
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

// Workbook is the in-memory host the engine evaluates against. it owns the
// engine and implements formula.Grid, computing formula cells on read by
// calling back into the engine. every mutation clears the engine's
// expression cache. a Workbook is not safe for concurrent use.
type Workbook struct {
	sheets   *SheetTable
	strings  *StringTable
	engine   *formula.Engine
	selected *Sheet
	logger   *zap.Logger
}

type options struct {
	logger        *zap.Logger
	engineOptions []formula.Option
}

// Option configures a Workbook
type Option func(*options)

// WithLogger sets the workbook logger. the engine logs under it as "engine".
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEngineOptions passes options through to the workbook's engine
func WithEngineOptions(opts ...formula.Option) Option {
	return func(o *options) {
		o.engineOptions = append(o.engineOptions, opts...)
	}
}

// New creates a workbook with no sheets
func New(opts ...Option) *Workbook {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	wb := &Workbook{
		sheets:  NewSheetTable(),
		strings: NewStringTable(),
		logger:  o.logger,
	}
	engineOptions := append([]formula.Option{formula.WithLogger(o.logger.Named("engine"))}, o.engineOptions...)
	wb.engine = formula.NewEngine(wb, engineOptions...)
	return wb
}

// Engine returns the workbook's engine, e.g. to register custom functions
func (wb *Workbook) Engine() *formula.Engine {
	return wb.engine
}

func (wb *Workbook) changed() {
	wb.engine.ClearCache()
}

// CellValue implements formula.Grid
func (wb *Workbook) CellValue(sheet formula.Sheet, row, col int, formatted bool) (formula.Primitive, error) {
	s, ok := sheet.(*Sheet)
	if !ok || s == nil {
		return nil, appErrorf(Internal, "sheet %v does not belong to this workbook", sheet)
	}

	value, kind := s.value(row, col)
	if kind == kindFormula {
		result, err := wb.engine.Calculate(value.(string), s, row, col)
		if err != nil {
			return nil, err
		}
		value = result
	}

	if formatted {
		if format := s.formats[cellPos{row, col}]; format != "" {
			return formula.FormattedValue{Value: formula.Unwrap(value), Format: format}, nil
		}
	}
	return value, nil
}

// SheetByName implements formula.Grid
func (wb *Workbook) SheetByName(name string) (formula.Sheet, bool) {
	sheet, exists := wb.sheets.Get(name)
	if !exists {
		return nil, false
	}
	return sheet, true
}

// SelectedSheet implements formula.Grid
func (wb *Workbook) SelectedSheet() formula.Sheet {
	if wb.selected == nil {
		return nil
	}
	return wb.selected
}

// AddSheet appends a sheet. the first sheet added becomes the selected one.
func (wb *Workbook) AddSheet(name string) (*Sheet, error) {
	sheet := newSheet(name, wb.strings)
	if err := wb.sheets.Define(sheet); err != nil {
		return nil, err
	}
	if wb.selected == nil {
		wb.selected = sheet
	}
	wb.changed()
	wb.logger.Debug("sheet added", zap.String("sheet", name))
	return sheet, nil
}

// Sheet returns the sheet called name, ignoring case
func (wb *Workbook) Sheet(name string) (*Sheet, bool) {
	return wb.sheets.Get(name)
}

// SheetNames lists sheet names in tab order
func (wb *Workbook) SheetNames() []string {
	return wb.sheets.Names()
}

// SelectSheet makes name the sheet unqualified addresses refer to
func (wb *Workbook) SelectSheet(name string) error {
	sheet, exists := wb.sheets.Get(name)
	if !exists {
		return appErrorf(NotFound, "sheet %s not found", name)
	}
	wb.selected = sheet
	wb.changed()
	return nil
}

// RenameSheet renames a sheet. formulas that name the old sheet stop
// resolving.
func (wb *Workbook) RenameSheet(oldName, newName string) error {
	if _, err := wb.sheets.Rename(oldName, newName); err != nil {
		return err
	}
	wb.changed()
	wb.logger.Debug("sheet renamed", zap.String("from", oldName), zap.String("to", newName))
	return nil
}

// RemoveSheet drops a sheet and its cells
func (wb *Workbook) RemoveSheet(name string) error {
	sheet, err := wb.sheets.Remove(name)
	if err != nil {
		return err
	}
	sheet.clear()
	if wb.selected == sheet {
		wb.selected = wb.sheets.First()
	}
	wb.changed()
	wb.logger.Debug("sheet removed", zap.String("sheet", name))
	return nil
}

// resolve finds the sheet and 0-based coordinates of a plain A1 address.
// an empty sheet name means the selected sheet.
func (wb *Workbook) resolve(sheetName, address string) (*Sheet, int, int, error) {
	sheet, err := wb.lookup(sheetName)
	if err != nil {
		return nil, 0, 0, err
	}
	row, col, ok := formula.ParseCellAddress(strings.TrimSpace(address))
	if !ok {
		return nil, 0, 0, appErrorf(InvalidArgument, "invalid cell address %q", address)
	}
	if row >= MaxRows || col >= MaxColumns {
		return nil, 0, 0, appErrorf(OutOfRange, "cell %s is outside the sheet", address)
	}
	return sheet, row, col, nil
}

func (wb *Workbook) lookup(sheetName string) (*Sheet, error) {
	if sheetName == "" {
		if wb.selected == nil {
			return nil, NewApplicationError(FailedPrecondition, "workbook has no sheets")
		}
		return wb.selected, nil
	}
	sheet, exists := wb.sheets.Get(sheetName)
	if !exists {
		return nil, appErrorf(NotFound, "sheet %s not found", sheetName)
	}
	return sheet, nil
}

// parseInput classifies raw cell input the way a user types it: '=' starts a
// formula, a leading apostrophe forces text, then numbers and TRUE/FALSE
func parseInput(input string) storedCell {
	switch {
	case input == "":
		return storedCell{kind: kindEmpty}
	case len(input) > 1 && input[0] == '=':
		return storedCell{kind: kindFormula, text: input}
	case input[0] == '\'':
		return storedCell{kind: kindString, text: input[1:]}
	}

	trimmed := strings.TrimSpace(input)
	if number, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsNaN(number) && !math.IsInf(number, 0) {
		return storedCell{kind: kindNumber, number: number}
	}
	switch {
	case strings.EqualFold(trimmed, "TRUE"):
		return storedCell{kind: kindBoolean, number: 1}
	case strings.EqualFold(trimmed, "FALSE"):
		return storedCell{kind: kindBoolean}
	}
	return storedCell{kind: kindString, text: input}
}

// Set stores raw input at sheet!address; "" clears the cell
func (wb *Workbook) Set(sheetName, address, input string) error {
	sheet, row, col, err := wb.resolve(sheetName, address)
	if err != nil {
		return err
	}
	cell := parseInput(input)
	cell.pos = cellPos{row, col}
	sheet.store(cell)
	wb.changed()
	wb.logger.Debug("cell set",
		zap.String("sheet", sheet.name),
		zap.String("cell", formula.CellAddress(row, col)),
		zap.String("input", input))
	return nil
}

// SetValue stores a typed value. strings go through the same
// classification as Set; dates are stored as OA date numbers.
func (wb *Workbook) SetValue(sheetName, address string, value formula.Primitive) error {
	var input string
	switch v := value.(type) {
	case nil:
	case string:
		input = v
	case bool:
		input = strconv.FormatBool(v)
	case float64:
		input = strconv.FormatFloat(v, 'g', -1, 64)
	case int64:
		input = strconv.FormatInt(v, 10)
	case int:
		input = strconv.Itoa(v)
	case time.Time:
		input = strconv.FormatFloat(formula.ToOADate(v), 'g', -1, 64)
	default:
		return appErrorf(InvalidArgument, "unsupported value type %T for cell %s", value, address)
	}
	return wb.Set(sheetName, address, input)
}

// SetFormat sets the default display format of a cell; "" removes it
func (wb *Workbook) SetFormat(sheetName, address, format string) error {
	sheet, row, col, err := wb.resolve(sheetName, address)
	if err != nil {
		return err
	}
	if format == "" {
		delete(sheet.formats, cellPos{row, col})
	} else {
		sheet.formats[cellPos{row, col}] = format
	}
	wb.changed()
	return nil
}

// Input returns the raw input stored at sheet!address
func (wb *Workbook) Input(sheetName, address string) (string, error) {
	sheet, row, col, err := wb.resolve(sheetName, address)
	if err != nil {
		return "", err
	}
	return sheet.Input(row, col), nil
}

// Get returns the value of sheet!address. formula cells are evaluated
// through the engine's error-free boundary, so failures come back as
// "Error: ..." text and err only reports addressing problems.
func (wb *Workbook) Get(sheetName, address string) (formula.Primitive, error) {
	sheet, row, col, err := wb.resolve(sheetName, address)
	if err != nil {
		return nil, err
	}

	format := sheet.formats[cellPos{row, col}]
	value, kind := sheet.value(row, col)
	if kind == kindFormula {
		return wb.engine.Evaluate(value.(string), format, sheet, row, col), nil
	}
	if format != "" && kind == kindNumber {
		return formula.FormattedValue{Value: value, Format: format}, nil
	}
	return value, nil
}

// Display returns the formatted text of sheet!address
func (wb *Workbook) Display(sheetName, address string) (string, error) {
	value, err := wb.Get(sheetName, address)
	if err != nil {
		return "", err
	}
	return formula.FormatValue(value, ""), nil
}

// Evaluate runs a formula that belongs to no cell against sheetName (or the
// selected sheet). a missing leading '=' is supplied.
func (wb *Workbook) Evaluate(sheetName, text string) (formula.Primitive, error) {
	var sheet formula.Sheet
	if sheetName != "" {
		s, err := wb.lookup(sheetName)
		if err != nil {
			return nil, err
		}
		sheet = s
	}
	if !strings.HasPrefix(text, "=") {
		text = "=" + text
	}
	return wb.engine.Evaluate(text, "", sheet, -1, -1), nil
}

func (wb *Workbook) structural(sheetName string, index, count int, rows bool, verb string) error {
	sheet, err := wb.lookup(sheetName)
	if err != nil {
		return err
	}
	if index < 0 || count <= 0 {
		return appErrorf(InvalidArgument, "cannot %s %d lines at %d", verb, count, index)
	}
	if verb == "delete" {
		count = -count
	}
	if err := sheet.shift(index, count, rows); err != nil {
		return err
	}
	wb.changed()
	wb.logger.Debug("structural edit",
		zap.String("sheet", sheet.name),
		zap.String("op", verb),
		zap.Bool("rows", rows),
		zap.Int("index", index),
		zap.Int("count", count))
	return nil
}

// InsertRows inserts count empty rows before the 0-based row index. formula
// text is not rewritten, so references keep pointing at the same addresses.
func (wb *Workbook) InsertRows(sheetName string, index, count int) error {
	return wb.structural(sheetName, index, count, true, "insert")
}

// DeleteRows deletes count rows starting at the 0-based row index
func (wb *Workbook) DeleteRows(sheetName string, index, count int) error {
	return wb.structural(sheetName, index, count, true, "delete")
}

// InsertColumns inserts count empty columns before the 0-based column index
func (wb *Workbook) InsertColumns(sheetName string, index, count int) error {
	return wb.structural(sheetName, index, count, false, "insert")
}

// DeleteColumns deletes count columns starting at the 0-based column index
func (wb *Workbook) DeleteColumns(sheetName string, index, count int) error {
	return wb.structural(sheetName, index, count, false, "delete")
}

// SetRowHidden hides or shows a row. SUBTOTAL codes 101-111 skip hidden
// rows.
func (wb *Workbook) SetRowHidden(sheetName string, row int, hidden bool) error {
	sheet, err := wb.lookup(sheetName)
	if err != nil {
		return err
	}
	if row < 0 || row >= MaxRows {
		return appErrorf(OutOfRange, "row %d is outside the sheet", row)
	}
	if hidden {
		sheet.hiddenRows[row] = struct{}{}
	} else {
		delete(sheet.hiddenRows, row)
	}
	wb.changed()
	return nil
}

// SetColumnHidden hides or shows a column
func (wb *Workbook) SetColumnHidden(sheetName string, col int, hidden bool) error {
	sheet, err := wb.lookup(sheetName)
	if err != nil {
		return err
	}
	if col < 0 || col >= MaxColumns {
		return appErrorf(OutOfRange, "column %d is outside the sheet", col)
	}
	if hidden {
		sheet.hiddenCols[col] = struct{}{}
	} else {
		delete(sheet.hiddenCols, col)
	}
	wb.changed()
	return nil
}
