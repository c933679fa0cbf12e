package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogtb/go-spreadsheet/packages/formula/internal/style"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/workbook"
)

const testWorkbook = `
selected = "Report"

[[sheets]]
name = "Report"
[sheets.cells]
A1 = 10
A2 = "=A1*3"
A3 = "=Other!B1"
[sheets.formats]
A2 = "n2"

[[sheets]]
name = "Other"
[sheets.cells]
B1 = true
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestEval(t *testing.T) {
	out, err := run(t, "eval", "=SUM(1, 2, 3)")
	require.NoError(t, err)
	assert.Contains(t, out, "6")

	out, err = run(t, "eval", "1/4", "--format", "0.00")
	require.NoError(t, err)
	assert.Contains(t, out, "0.25")

	out, err = run(t, "eval", "=PMT(0.05/12, 360, 250000)")
	require.NoError(t, err)
	assert.Contains(t, out, "-$1,342.05")

	out, err = run(t, "eval", "=RATE(48, -200, 8000)", "--format", "p3")
	require.NoError(t, err)
	assert.Contains(t, out, "0.770%")

	out, err = run(t, "eval", "=SUM(")
	require.NoError(t, err, "formula failures are results, not command errors")
	assert.Contains(t, out, "Error: ")
}

func TestEvalAgainstWorkbook(t *testing.T) {
	path := writeFile(t, "book.toml", testWorkbook)

	out, err := run(t, "eval", "A1+A2", "--workbook", path)
	require.NoError(t, err)
	assert.Contains(t, out, "40")

	out, err = run(t, "eval", "=NOT(B1)", "-w", path, "--sheet", "other")
	require.NoError(t, err)
	assert.Contains(t, out, "FALSE")

	_, err = run(t, "eval", "=1", "-w", path, "--sheet", "Missing")
	assert.Equal(t, workbook.NotFound, workbook.CodeOf(err))

	_, err = run(t, "eval", "=1", "-w", filepath.Join(t.TempDir(), "none.toml"))
	assert.ErrorContains(t, err, "opening workbook")

	_, err = run(t, "eval")
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	out, err := run(t, "parse", "=1+2*3")
	require.NoError(t, err)
	assert.Equal(t, "(1+(2*3))\n", out)

	_, err = run(t, "parse", "=SUM(")
	assert.Error(t, err)
}

func TestCalc(t *testing.T) {
	path := writeFile(t, "book.toml", testWorkbook)

	out, err := run(t, "calc", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Report")
	assert.Contains(t, out, "Other")
	assert.Contains(t, out, "=A1*3")
	assert.Contains(t, out, "30.00")
	assert.Contains(t, out, "TRUE")
	assert.Less(t, strings.Index(out, "Report"), strings.Index(out, "Other"))

	out, err = run(t, "calc", path, "--sheet", "other")
	require.NoError(t, err)
	assert.NotContains(t, out, "Report")
	assert.Contains(t, out, "B1")

	_, err = run(t, "calc", path, "--sheet", "Missing")
	assert.Equal(t, workbook.NotFound, workbook.CodeOf(err))

	bad := writeFile(t, "bad.toml", "[[sheets]]\nname = \"S\"\n[sheets.cells]\n1A = 1\n")
	_, err = run(t, "calc", bad)
	assert.Equal(t, workbook.InvalidArgument, workbook.CodeOf(err))
}

func TestFunctions(t *testing.T) {
	out, err := run(t, "functions", "--prefix", "su")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Contains(t, lines, "SUM")
	assert.Contains(t, lines, "SUMIF")
	assert.NotContains(t, lines, "AVERAGE")
}

func TestConfigFlag(t *testing.T) {
	path := writeFile(t, "formulacalc.toml", "[log]\nlevel = \"loud\"\n")
	_, err := run(t, "--config", path, "eval", "=1")
	assert.ErrorContains(t, err, "log.level")

	_, err = run(t, "serve", "-c", path)
	assert.ErrorContains(t, err, "log.level")

	path = writeFile(t, "formulacalc.toml", "[engine]\ncache_limit = 10\n[log]\nlevel = \"off\"\n")
	out, err := run(t, "-c", path, "eval", "=2*21")
	require.NoError(t, err)
	assert.Contains(t, out, "42")
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, style.KindEmpty, kindOf(nil))
	assert.Equal(t, style.KindNumber, kindOf(1.5))
	assert.Equal(t, style.KindBoolean, kindOf(true))
	assert.Equal(t, style.KindText, kindOf("abc"))
	assert.Equal(t, style.KindError, kindOf("Error: boom"))
}
