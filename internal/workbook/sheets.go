package workbook

import (
	"strings"
)

// SheetTable keeps sheets in tab order with case-insensitive name lookup
type SheetTable struct {
	byName map[string]*Sheet // lower-cased name -> sheet
	order  []*Sheet
}

// NewSheetTable creates an empty sheet table
func NewSheetTable() *SheetTable {
	return &SheetTable{byName: make(map[string]*Sheet)}
}

func sheetKey(name string) string {
	return strings.ToLower(name)
}

// Define adds sheet under its name
func (st *SheetTable) Define(sheet *Sheet) error {
	if err := st.validate(sheet); err != nil {
		return err
	}
	key := sheetKey(sheet.name)
	if _, exists := st.byName[key]; exists {
		return appErrorf(AlreadyExists, "sheet %s already exists", sheet.name)
	}
	st.byName[key] = sheet
	st.order = append(st.order, sheet)
	return nil
}

// Get returns the sheet called name, ignoring case
func (st *SheetTable) Get(name string) (*Sheet, bool) {
	sheet, exists := st.byName[sheetKey(name)]
	return sheet, exists
}

// Rename changes a sheet's name, keeping its position
func (st *SheetTable) Rename(oldName, newName string) (*Sheet, error) {
	sheet, exists := st.Get(oldName)
	if !exists {
		return nil, appErrorf(NotFound, "sheet %s not found", oldName)
	}
	if other, exists := st.Get(newName); exists && other != sheet {
		return nil, appErrorf(AlreadyExists, "sheet %s already exists", newName)
	}

	delete(st.byName, sheetKey(oldName))
	previous := sheet.name
	sheet.name = newName
	if err := st.validate(sheet); err != nil {
		sheet.name = previous
		st.byName[sheetKey(previous)] = sheet
		return nil, err
	}
	st.byName[sheetKey(newName)] = sheet
	return sheet, nil
}

func (st *SheetTable) validate(sheet *Sheet) error {
	if strings.TrimSpace(sheet.name) == "" {
		return NewApplicationError(InvalidArgument, "sheet name must not be empty")
	}
	if strings.ContainsAny(sheet.name, "![]*?:/\\") {
		return appErrorf(InvalidArgument, "sheet name %q contains a reserved character", sheet.name)
	}
	return nil
}

// Remove drops the sheet called name
func (st *SheetTable) Remove(name string) (*Sheet, error) {
	sheet, exists := st.Get(name)
	if !exists {
		return nil, appErrorf(NotFound, "sheet %s not found", name)
	}
	delete(st.byName, sheetKey(name))
	for i, s := range st.order {
		if s == sheet {
			st.order = append(st.order[:i], st.order[i+1:]...)
			break
		}
	}
	return sheet, nil
}

// Names lists sheet names in tab order
func (st *SheetTable) Names() []string {
	names := make([]string, len(st.order))
	for i, sheet := range st.order {
		names[i] = sheet.name
	}
	return names
}

// First returns the first sheet in tab order, or nil
func (st *SheetTable) First() *Sheet {
	if len(st.order) == 0 {
		return nil
	}
	return st.order[0]
}

// Len returns the number of sheets
func (st *SheetTable) Len() int {
	return len(st.order)
}
