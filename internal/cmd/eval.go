package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

func newEvalCmd(opts *rootOptions) *cobra.Command {
	var (
		workbookPath string
		sheet        string
		format       string
	)
	cmd := &cobra.Command{
		Use:   "eval <formula>",
		Short: "Evaluate one formula",
		Long: `Evaluate a formula and print its formatted result.

The leading '=' is optional. References resolve against --workbook, or
against an empty sheet named Sheet1 when no workbook is given.

Examples:
  formulacalc eval "=SUM(1, 2, 3)"
  formulacalc eval "A1*2" --workbook budget.toml --sheet Report
  formulacalc eval "=PMT(0.05/12, 360, 250000)"
  formulacalc eval "=RATE(48, -200, 8000)" --format p3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			wb, err := openWorkbook(cfg, logger, workbookPath)
			if err != nil {
				return err
			}
			value, err := wb.Evaluate(sheet, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), render(value, format))
			return nil
		},
	}
	cmd.Flags().StringVarP(&workbookPath, "workbook", "w", "", "TOML workbook the formula refers to")
	cmd.Flags().StringVarP(&sheet, "sheet", "s", "", "Sheet used for unqualified references (default: the selected sheet)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Display format applied to the result")
	return cmd
}

func newParseCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <formula>",
		Short: "Print the parse tree of a formula",
		Long: `Parse a formula without evaluating it and print the tree in its
canonical form. Unknown functions and malformed input are reported as
errors.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			engine := formula.NewEngine(nil, append(cfg.EngineOptions(), formula.WithLogger(logger))...)
			expr, err := engine.Parse(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), expr.String())
			return nil
		},
	}
}
