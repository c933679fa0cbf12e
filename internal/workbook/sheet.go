package workbook

import (
	"sort"
	"strconv"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

type cellKind uint8

const (
	kindEmpty cellKind = iota
	kindNumber
	kindBoolean
	kindString
	kindFormula
)

const (
	ChunkRows = 256                   // rows per chunk - power of 2 for efficient modulo
	ChunkCols = 256                   // columns per chunk - matches typical viewport size
	ChunkSize = ChunkRows * ChunkCols // 65536 cells per chunk

	MaxRows    = 1 << 20
	MaxColumns = 1 << 14
)

type chunkKey struct {
	chunkRow int
	chunkCol int
}

// chunk is a 256x256 region in structure-of-arrays layout. only kinds
// exists up front; numbers and stringIDs are allocated on first use.
type chunk struct {
	kinds     []uint8
	count     int
	numbers   []float64 // NUMBER and BOOLEAN cells
	stringIDs []uint32  // STRING and FORMULA cells
}

type cellPos struct {
	row int
	col int
}

// storedCell is one cell lifted out of its chunk, used while structural edits
// rebuild the sheet
type storedCell struct {
	pos    cellPos
	kind   cellKind
	number float64
	text   string
}

// Cell is the raw input of one non-empty cell
type Cell struct {
	Row   int
	Col   int
	Input string
}

// Address returns the A1 address of the cell
func (c Cell) Address() string {
	return formula.CellAddress(c.Row, c.Col)
}

// Sheet is sparse cell storage partitioned into 256x256 chunks. cells hold
// raw input: a number, a boolean, text, or formula text starting with '='.
// formulas are evaluated on read, never stored as results.
type Sheet struct {
	name       string
	chunks     map[chunkKey]*chunk
	strings    *StringTable
	formats    map[cellPos]string
	hiddenRows map[int]struct{}
	hiddenCols map[int]struct{}
	cells      int
}

func newSheet(name string, strings *StringTable) *Sheet {
	return &Sheet{
		name:       name,
		chunks:     make(map[chunkKey]*chunk),
		strings:    strings,
		formats:    make(map[cellPos]string),
		hiddenRows: make(map[int]struct{}),
		hiddenCols: make(map[int]struct{}),
	}
}

func (s *Sheet) Name() string {
	return s.name
}

func (s *Sheet) IsRowVisible(row int) bool {
	_, hidden := s.hiddenRows[row]
	return !hidden
}

func (s *Sheet) IsColumnVisible(col int) bool {
	_, hidden := s.hiddenCols[col]
	return !hidden
}

// Len returns the number of non-empty cells
func (s *Sheet) Len() int {
	return s.cells
}

func locate(row, col int) (chunkKey, int) {
	key := chunkKey{chunkRow: row / ChunkRows, chunkCol: col / ChunkCols}
	// column-first indexing for better cache locality
	return key, (col%ChunkCols)*ChunkRows + row%ChunkRows
}

func (s *Sheet) getChunk(key chunkKey) *chunk {
	c, exists := s.chunks[key]
	if !exists {
		c = &chunk{kinds: make([]uint8, ChunkSize)}
		s.chunks[key] = c
	}
	return c
}

// load returns the stored cell at row/col; kind is kindEmpty when there is
// nothing
func (s *Sheet) load(row, col int) storedCell {
	cell := storedCell{pos: cellPos{row, col}}
	key, idx := locate(row, col)
	c, exists := s.chunks[key]
	if !exists {
		return cell
	}

	cell.kind = cellKind(c.kinds[idx])
	switch cell.kind {
	case kindNumber, kindBoolean:
		cell.number = c.numbers[idx]
	case kindString, kindFormula:
		cell.text, _ = s.strings.Lookup(c.stringIDs[idx])
	}
	return cell
}

// value returns the raw value of a non-formula cell, or the formula text
func (s *Sheet) value(row, col int) (formula.Primitive, cellKind) {
	cell := s.load(row, col)
	switch cell.kind {
	case kindNumber:
		return cell.number, cell.kind
	case kindBoolean:
		return cell.number != 0, cell.kind
	case kindString, kindFormula:
		return cell.text, cell.kind
	default:
		return nil, kindEmpty
	}
}

func (s *Sheet) store(cell storedCell) {
	if cell.kind == kindEmpty {
		s.remove(cell.pos.row, cell.pos.col)
		return
	}

	key, idx := locate(cell.pos.row, cell.pos.col)
	c := s.getChunk(key)
	if cellKind(c.kinds[idx]) == kindEmpty {
		c.count++
		s.cells++
	} else {
		s.releaseText(c, idx)
	}

	c.kinds[idx] = uint8(cell.kind)
	switch cell.kind {
	case kindNumber, kindBoolean:
		if c.numbers == nil {
			c.numbers = make([]float64, ChunkSize)
		}
		c.numbers[idx] = cell.number
	case kindString, kindFormula:
		if c.stringIDs == nil {
			c.stringIDs = make([]uint32, ChunkSize)
		}
		c.stringIDs[idx] = s.strings.Intern(cell.text)
	}
}

func (s *Sheet) releaseText(c *chunk, idx int) {
	kind := cellKind(c.kinds[idx])
	if (kind == kindString || kind == kindFormula) && c.stringIDs[idx] != 0 {
		s.strings.Release(c.stringIDs[idx])
		c.stringIDs[idx] = 0
	}
}

func (s *Sheet) remove(row, col int) {
	key, idx := locate(row, col)
	c, exists := s.chunks[key]
	if !exists || cellKind(c.kinds[idx]) == kindEmpty {
		return
	}

	s.releaseText(c, idx)
	c.kinds[idx] = uint8(kindEmpty)
	c.count--
	s.cells--
	if c.count == 0 {
		delete(s.chunks, key)
	}
}

// snapshot lifts every non-empty cell out of the chunks, row-major
func (s *Sheet) snapshot() []storedCell {
	cells := make([]storedCell, 0, s.cells)
	for key, c := range s.chunks {
		for idx, kind := range c.kinds {
			if cellKind(kind) == kindEmpty {
				continue
			}
			row := key.chunkRow*ChunkRows + idx%ChunkRows
			col := key.chunkCol*ChunkCols + idx/ChunkRows
			cells = append(cells, s.load(row, col))
		}
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].pos.row != cells[j].pos.row {
			return cells[i].pos.row < cells[j].pos.row
		}
		return cells[i].pos.col < cells[j].pos.col
	})
	return cells
}

// Cells returns the raw input of every non-empty cell, row-major
func (s *Sheet) Cells() []Cell {
	stored := s.snapshot()
	cells := make([]Cell, len(stored))
	for i, cell := range stored {
		cells[i] = Cell{Row: cell.pos.row, Col: cell.pos.col, Input: cell.input()}
	}
	return cells
}

// Input returns the raw input text at row/col, "" when empty
func (s *Sheet) Input(row, col int) string {
	return s.load(row, col).input()
}

func (c storedCell) input() string {
	switch c.kind {
	case kindNumber:
		return strconv.FormatFloat(c.number, 'g', -1, 64)
	case kindBoolean:
		if c.number != 0 {
			return "TRUE"
		}
		return "FALSE"
	case kindString, kindFormula:
		return c.text
	default:
		return ""
	}
}

// shiftIndex moves i for an insert (count > 0) or delete (count < 0) of
// |count| lines at index. ok is false when i is deleted.
func shiftIndex(i, index, count int) (int, bool) {
	if i < index {
		return i, true
	}
	if count >= 0 {
		return i + count, true
	}
	if i < index-count {
		return 0, false
	}
	return i + count, true
}

// shift rebuilds the sheet with rows (or columns) moved by count at index.
// formula text is kept as written.
func (s *Sheet) shift(index, count int, rows bool) error {
	limit := MaxColumns
	if rows {
		limit = MaxRows
	}

	cells := s.snapshot()
	if count > 0 {
		for _, cell := range cells {
			line := cell.pos.col
			if rows {
				line = cell.pos.row
			}
			if line >= index && line+count >= limit {
				return appErrorf(ResourceExhausted, "inserting %d lines at %d pushes cells past the end of sheet %s", count, index, s.name)
			}
		}
	}

	for _, cell := range cells {
		s.remove(cell.pos.row, cell.pos.col)
	}
	move := func(pos cellPos) (cellPos, bool) {
		var ok bool
		if rows {
			pos.row, ok = shiftIndex(pos.row, index, count)
		} else {
			pos.col, ok = shiftIndex(pos.col, index, count)
		}
		return pos, ok
	}
	for _, cell := range cells {
		if pos, ok := move(cell.pos); ok {
			cell.pos = pos
			s.store(cell)
		}
	}

	formats := make(map[cellPos]string, len(s.formats))
	for pos, format := range s.formats {
		if moved, ok := move(pos); ok {
			formats[moved] = format
		}
	}
	s.formats = formats

	hidden := s.hiddenCols
	if rows {
		hidden = s.hiddenRows
	}
	shifted := make(map[int]struct{}, len(hidden))
	for line := range hidden {
		if moved, ok := shiftIndex(line, index, count); ok {
			shifted[moved] = struct{}{}
		}
	}
	if rows {
		s.hiddenRows = shifted
	} else {
		s.hiddenCols = shifted
	}
	return nil
}

func (s *Sheet) clear() {
	for _, cell := range s.snapshot() {
		s.remove(cell.pos.row, cell.pos.col)
	}
}
