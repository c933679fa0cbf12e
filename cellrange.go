package formula

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// maxColumnLetters bounds column names so base-26 accumulation stays well
// inside int range
const maxColumnLetters = 5

// CellRange is a rectangular block of cells with 0-based indices. the two
// corners may be given in any order; the derived accessors normalize them.
type CellRange struct {
	Row  int
	Col  int
	Row2 int
	Col2 int
}

// NewCellRange creates a range spanning both corners
func NewCellRange(row, col, row2, col2 int) CellRange {
	return CellRange{Row: row, Col: col, Row2: row2, Col2: col2}
}

// SingleCell creates a one-cell range
func SingleCell(row, col int) CellRange {
	return CellRange{Row: row, Col: col, Row2: row, Col2: col}
}

func (r CellRange) TopRow() int {
	return min(r.Row, r.Row2)
}

func (r CellRange) BottomRow() int {
	return max(r.Row, r.Row2)
}

func (r CellRange) LeftCol() int {
	return min(r.Col, r.Col2)
}

func (r CellRange) RightCol() int {
	return max(r.Col, r.Col2)
}

// RowSpan is the number of rows covered, always at least 1
func (r CellRange) RowSpan() int {
	return r.BottomRow() - r.TopRow() + 1
}

// ColumnSpan is the number of columns covered, always at least 1
func (r CellRange) ColumnSpan() int {
	return r.RightCol() - r.LeftCol() + 1
}

func (r CellRange) IsSingleCell() bool {
	return r.RowSpan() == 1 && r.ColumnSpan() == 1
}

// Normalized returns the range with Row/Col as the top-left corner
func (r CellRange) Normalized() CellRange {
	return CellRange{Row: r.TopRow(), Col: r.LeftCol(), Row2: r.BottomRow(), Col2: r.RightCol()}
}

// Cells iterates row-major over every (row, col) in the range
func (r CellRange) Cells() iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		for row := r.TopRow(); row <= r.BottomRow(); row++ {
			for col := r.LeftCol(); col <= r.RightCol(); col++ {
				if !yield(row, col) {
					return
				}
			}
		}
	}
}

func (r CellRange) String() string {
	if r.IsSingleCell() {
		return CellAddress(r.TopRow(), r.LeftCol())
	}
	return CellAddress(r.TopRow(), r.LeftCol()) + ":" + CellAddress(r.BottomRow(), r.RightCol())
}

// ColumnName converts a 0-based column index to letters (0 -> A, 26 -> AA)
func ColumnName(col int) string {
	if col < 0 {
		return ""
	}
	var letters []byte
	for n := col + 1; n > 0; n = (n - 1) / 26 {
		letters = append([]byte{byte('A' + (n-1)%26)}, letters...)
	}
	return string(letters)
}

// ColumnIndex converts column letters to a 0-based index. letters
// accumulate base-26 with A=1..Z=26 and the result is decremented.
func ColumnIndex(letters string) (int, bool) {
	if letters == "" || len(letters) > maxColumnLetters {
		return 0, false
	}
	col := 0
	for _, ch := range strings.ToUpper(letters) {
		if ch < 'A' || ch > 'Z' {
			return 0, false
		}
		col = col*26 + int(ch-'A'+1)
	}
	return col - 1, true
}

// CellAddress renders a 0-based row/col as A1 notation
func CellAddress(row, col int) string {
	return ColumnName(col) + strconv.Itoa(row+1)
}

// ParseCellAddress parses $?COL$?ROW into 0-based indices. absolute
// markers are consumed and otherwise ignored.
func ParseCellAddress(address string) (row, col int, ok bool) {
	s := address
	s = strings.TrimPrefix(s, "$")

	letterEnd := 0
	for letterEnd < len(s) && isASCIILetter(s[letterEnd]) {
		letterEnd++
	}
	if letterEnd == 0 {
		return 0, 0, false
	}
	col, ok = ColumnIndex(s[:letterEnd])
	if !ok {
		return 0, 0, false
	}

	digits := strings.TrimPrefix(s[letterEnd:], "$")
	if digits == "" {
		return 0, 0, false
	}
	for i := 0; i < len(digits); i++ {
		if !isDigit(rune(digits[i])) {
			return 0, 0, false
		}
	}
	rowNum, err := strconv.Atoi(digits)
	if err != nil || rowNum < 1 {
		return 0, 0, false
	}
	return rowNum - 1, col, true
}

// splitSheetRef splits "Sheet1!A1" into its sheet and address parts. the
// sheet part is empty when there is no '!'.
func splitSheetRef(ref string) (sheet, address string) {
	idx := strings.LastIndexByte(ref, charExclaim)
	if idx < 0 {
		return "", ref
	}
	return ref[:idx], ref[idx+1:]
}

// ParseRangeRef parses [sheet!]A1[:[sheet!]B2]. ok is false when the text
// is not cell syntax at all; err is set when it is cell syntax whose
// endpoints name different sheets.
func ParseRangeRef(ref string) (rng CellRange, sheet string, ok bool, err error) {
	first, second, isRange := strings.Cut(ref, string(charColon))

	sheet, address := splitSheetRef(first)
	row, col, ok := ParseCellAddress(address)
	if !ok {
		return CellRange{}, "", false, nil
	}
	rng = SingleCell(row, col)
	if !isRange {
		return rng, sheet, true, nil
	}

	sheet2, address2 := splitSheetRef(second)
	row2, col2, ok := ParseCellAddress(address2)
	if !ok {
		return CellRange{}, "", false, nil
	}
	if sheet2 != "" && !strings.EqualFold(sheet2, sheet) {
		if sheet != "" {
			return CellRange{}, "", true, referenceErrorf("range %s spans sheets %s and %s", ref, sheet, sheet2)
		}
		sheet = sheet2
	}
	rng.Row2, rng.Col2 = row2, col2
	return rng, sheet, true, nil
}

func isASCIILetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

// RangeReference is a range bound to a resolved sheet. INDEX returns one and
// range-aware functions accept it wherever they accept a range argument.
type RangeReference struct {
	Sheet Sheet
	Range CellRange
}

func (r *RangeReference) String() string {
	if r.Sheet == nil {
		return r.Range.String()
	}
	return fmt.Sprintf("%s!%s", r.Sheet.Name(), r.Range.String())
}
