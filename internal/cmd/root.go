// Package cmd implements the formulacalc command line.
package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/config"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/style"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/workbook"
)

// DefaultSheet is created when a command runs without a workbook file
const DefaultSheet = "Sheet1"

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "formulacalc",
		Short: "Evaluate spreadsheet formulas",
		Long: `formulacalc parses and evaluates spreadsheet formulas.

It can evaluate a single formula, print the parse tree of one, recalculate
a workbook described in TOML, or serve a workbook over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a TOML config file")

	root.AddCommand(
		newEvalCmd(opts),
		newParseCmd(opts),
		newCalcCmd(opts),
		newFunctionsCmd(opts),
		newServeCmd(opts),
	)
	return root
}

// Execute runs the command line and returns the process exit code
func Execute() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), style.Error.Render("Error:"), err)
		return 1
	}
	return 0
}

func (o *rootOptions) load() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, nil, err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

// openWorkbook loads path, or returns a workbook holding one empty sheet
// when path is empty
func openWorkbook(cfg config.Config, logger *zap.Logger, path string) (*workbook.Workbook, error) {
	opts := []workbook.Option{
		workbook.WithLogger(logger),
		workbook.WithEngineOptions(cfg.EngineOptions()...),
	}
	if path == "" {
		wb := workbook.New(opts...)
		if _, err := wb.AddSheet(DefaultSheet); err != nil {
			return nil, err
		}
		return wb, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	wb, err := workbook.LoadTOML(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return wb, nil
}

func kindOf(value formula.Primitive) style.Kind {
	switch v := formula.Unwrap(value).(type) {
	case nil:
		return style.KindEmpty
	case float64, time.Time:
		return style.KindNumber
	case bool:
		return style.KindBoolean
	case string:
		if strings.HasPrefix(v, "Error: ") {
			return style.KindError
		}
		return style.KindText
	default:
		return style.KindText
	}
}

// render styles the display text of value
func render(value formula.Primitive, format string) string {
	return style.Render(kindOf(value), formula.FormatValue(value, format))
}
