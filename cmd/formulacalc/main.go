// formulacalc evaluates spreadsheet formulas from the command line.
package main

import (
	"os"

	"github.com/vogtb/go-spreadsheet/packages/formula/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
