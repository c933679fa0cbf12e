package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/packages/formula/internal/style"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/workbook"
)

func newCalcCmd(opts *rootOptions) *cobra.Command {
	var sheets []string
	cmd := &cobra.Command{
		Use:   "calc <workbook.toml>",
		Short: "Recalculate a workbook and print every cell",
		Long: `Load a workbook from TOML, evaluate every cell and print one table per
sheet with the raw input, the result and its display text.

Example workbook:
  selected = "Report"

  [[sheets]]
  name = "Report"
  [sheets.cells]
  A1 = 10
  A2 = "=A1*3.05"
  [sheets.formats]
  A2 = "n2"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			wb, err := openWorkbook(cfg, logger, args[0])
			if err != nil {
				return err
			}

			names := wb.SheetNames()
			if len(sheets) > 0 {
				names = names[:0]
				for _, want := range sheets {
					sheet, ok := wb.Sheet(want)
					if !ok {
						return workbook.NewApplicationError(workbook.NotFound, fmt.Sprintf("sheet %s not found", want))
					}
					names = append(names, sheet.Name())
				}
			}

			out := cmd.OutOrStdout()
			for i, name := range names {
				if i > 0 {
					fmt.Fprintln(out)
				}
				table, err := sheetTable(wb, name)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, style.Bold.Render(name))
				fmt.Fprint(out, table.Render())
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&sheets, "sheet", nil, "Only print these sheets")
	return cmd
}

func sheetTable(wb *workbook.Workbook, name string) (*style.Table, error) {
	sheet, _ := wb.Sheet(name)
	table := style.NewTable("Cell", "Input", "Value").AlignRight(2)
	for _, c := range sheet.Cells() {
		address := c.Address()
		value, err := wb.Get(name, address)
		if err != nil {
			return nil, fmt.Errorf("%s!%s: %w", name, address, err)
		}
		table.AddRow(style.Dim.Render(address), c.Input, render(value, ""))
	}
	return table, nil
}
