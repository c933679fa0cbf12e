package workbook

import (
	"fmt"
	"io"
	"sort"

	"github.com/BurntSushi/toml"
	"go.uber.org/multierr"
)

// File is the TOML description of a workbook:
//
//	selected = "Data"
//
//	[[sheets]]
//	name = "Data"
//	hidden_rows = [3]
//
//	[sheets.cells]
//	A1 = 10
//	A2 = "=A1*2"
//
//	[sheets.formats]
//	A2 = "n2"
type File struct {
	Selected string      `toml:"selected"`
	Sheets   []SheetFile `toml:"sheets"`
}

// SheetFile describes one sheet of a File. rows and columns are 0-based.
type SheetFile struct {
	Name          string            `toml:"name"`
	Cells         map[string]any    `toml:"cells"`
	Formats       map[string]string `toml:"formats"`
	HiddenRows    []int             `toml:"hidden_rows"`
	HiddenColumns []int             `toml:"hidden_columns"`
}

// LoadTOML builds a workbook from a TOML document. every bad sheet or cell is
// reported, not just the first.
func LoadTOML(r io.Reader, opts ...Option) (*Workbook, error) {
	var file File
	if _, err := toml.NewDecoder(r).Decode(&file); err != nil {
		return nil, NewApplicationError(InvalidArgument, fmt.Sprintf("decoding workbook: %v", err))
	}
	return Build(file, opts...)
}

// Build creates a workbook from an already decoded File
func Build(file File, opts ...Option) (*Workbook, error) {
	wb := New(opts...)

	var errs error
	for _, sf := range file.Sheets {
		if _, err := wb.AddSheet(sf.Name); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("sheet %q: %w", sf.Name, err))
			continue
		}

		// sorted so that error order is stable
		addresses := make([]string, 0, len(sf.Cells))
		for address := range sf.Cells {
			addresses = append(addresses, address)
		}
		sort.Strings(addresses)
		for _, address := range addresses {
			if err := wb.SetValue(sf.Name, address, sf.Cells[address]); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("sheet %q: %w", sf.Name, err))
			}
		}

		for address, format := range sf.Formats {
			if err := wb.SetFormat(sf.Name, address, format); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("sheet %q format: %w", sf.Name, err))
			}
		}
		for _, row := range sf.HiddenRows {
			errs = multierr.Append(errs, wb.SetRowHidden(sf.Name, row, true))
		}
		for _, col := range sf.HiddenColumns {
			errs = multierr.Append(errs, wb.SetColumnHidden(sf.Name, col, true))
		}
	}

	if file.Selected != "" {
		errs = multierr.Append(errs, wb.SelectSheet(file.Selected))
	}
	if errs != nil {
		return nil, errs
	}
	return wb, nil
}
