package formula

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, formula string) Expression {
	t.Helper()
	expr, err := NewEngine(nil).Parse(formula)
	require.NoError(t, err, formula)
	return expr
}

func TestParseStructure(t *testing.T) {
	cases := []struct {
		formula string
		want    string
	}{
		{"=1+2*3", "(1+(2*3))"},
		{"=(1+2)*3", "((1+2)*3)"},
		{"=2^3^2", "((2^3)^2)"},
		{"=-2^2", "(-2^2)"},
		{"=1+1=2", "((1+1)=2)"},
		{"=\"a\"&1+2", "(\"a\"&(1+2))"},
		{"=10\\3", "(10\\3)"},
		{"=SUM(A1:B2, 3)", "SUM(A1:B2,3)"},
		{"='My Sheet'!A1", "'My Sheet'!A1"},
		{"=Sheet1!$B$3", "Sheet1!B3"},
		{"=-A1", "-A1"},
		{"=\"a\"\"b\"", "\"a\"\"b\""},
		{"=#2024-01-15#", "#2024-01-15 00:00:00#"},
		{"1 + 2", "(1+2)"},
		{"=IF(A1>0,\"pos\",\"neg\")", "IF((A1>0),\"pos\",\"neg\")"},
	}
	for _, tc := range cases {
		t.Run(tc.formula, func(t *testing.T) {
			assert.Equal(t, tc.want, parse(t, tc.formula).String())
		})
	}
}

func TestParseNodeKinds(t *testing.T) {
	assert.IsType(t, &LiteralNode{}, parse(t, "=1"))
	assert.IsType(t, &UnaryNode{}, parse(t, "=-1"))
	assert.IsType(t, &BinaryNode{}, parse(t, "=1+1"))
	assert.IsType(t, &FunctionCallNode{}, parse(t, "=PI()"))

	node, ok := parse(t, "=Data!B2:A1").(*CellRangeNode)
	require.True(t, ok)
	assert.Equal(t, "Data", node.SheetRef)
	assert.Equal(t, NewCellRange(1, 1, 0, 0), node.Range)
	assert.Equal(t, "Data!A1:B2", node.String())
}

func TestParseFunctionsWithoutParentheses(t *testing.T) {
	engine := NewEngine(nil)
	value, err := engine.Calculate("=PI", nil, -1, -1)
	require.NoError(t, err)
	assert.Equal(t, math.Pi, value)

	value, err = engine.Calculate("=pi()", nil, -1, -1)
	require.NoError(t, err)
	assert.Equal(t, math.Pi, value)

	value, err = engine.Calculate("=TRUE", nil, -1, -1)
	require.NoError(t, err)
	assert.Equal(t, true, value)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		formula string
		kind    ErrorKind
		message string
	}{
		{"=ROUND()", ErrorKindArity, "too few parameters for ROUND: expected at least 1, got 0"},
		{"=NOT(1,2)", ErrorKindArity, "too many parameters for NOT: expected at most 1, got 2"},
		{"=FOO(1)", ErrorKindSyntax, "unexpected identifier 'FOO'"},
		{"=(1+2", ErrorKindSyntax, "unbalanced parentheses"},
		{"=1+2)", ErrorKindSyntax, "unbalanced parentheses: unexpected ')'"},
		{"=SUM(1,2", ErrorKindSyntax, "missing ')'"},
		{"=SUM(1 2)", ErrorKindSyntax, "expected ',' or ')'"},
		{"=1+", ErrorKindSyntax, "unexpected end of formula"},
		{"=1 2", ErrorKindSyntax, "unexpected token '2'"},
		{"=*2", ErrorKindSyntax, "unexpected token '*'"},
		{"=Sheet1!A1:Sheet2!B2", ErrorKindReference, "spans sheets"},
		{"=", ErrorKindSyntax, "unexpected end of formula"},
	}
	engine := NewEngine(nil)
	for _, tc := range cases {
		t.Run(tc.formula, func(t *testing.T) {
			_, err := engine.Parse(tc.formula)
			require.Error(t, err)
			assert.True(t, IsKind(err, tc.kind), "kind of %v", err)
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestParseUnknownFunctionHandler(t *testing.T) {
	engine := NewEngine(nil)
	var seen []Primitive
	engine.OnUnknownFunction(func(name string, params []Primitive) (Primitive, bool) {
		if name != "TAX" {
			return nil, false
		}
		seen = params
		return ToNumber(params[0]) * 0.2, true
	})

	expr, err := engine.Parse("=TAX(50+50)*2")
	require.NoError(t, err)
	assert.Equal(t, "(20*2)", expr.String())
	assert.Equal(t, []Primitive{100.0}, seen)

	_, err = engine.Parse("=OTHER(1)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected identifier 'OTHER'")
}

func TestParseContextFreeMarking(t *testing.T) {
	cases := []struct {
		formula  string
		constant bool
	}{
		{"=SUM(1,2)", true},
		{"=ABS(-(1+2))", true},
		{"=SUM(A1)", false},
		{"=RAND()", false},
		{"=ABS(RAND())", false},
		{"=ROW()", false},
		{"=ROUND(PI(),2)", true},
	}
	for _, tc := range cases {
		t.Run(tc.formula, func(t *testing.T) {
			node, ok := parse(t, tc.formula).(*FunctionCallNode)
			require.True(t, ok)
			assert.Equal(t, tc.constant, node.constant)
		})
	}

	unary, ok := parse(t, "=-(1+2)").(*UnaryNode)
	require.True(t, ok)
	assert.True(t, unary.constant)

	unary, ok = parse(t, "=-A1").(*UnaryNode)
	require.True(t, ok)
	assert.False(t, unary.constant)
}

func TestParseMemoizesConstantNodes(t *testing.T) {
	engine := NewEngine(nil)
	expr, err := engine.Parse("=ABS(-5)")
	require.NoError(t, err)
	node := expr.(*FunctionCallNode)
	assert.False(t, node.memo.done)

	value, err := expr.Eval(&EvalContext{Row: -1, Col: -1, engine: engine})
	require.NoError(t, err)
	assert.Equal(t, 5.0, value)
	assert.True(t, node.memo.done)
	assert.Equal(t, 5.0, node.memo.value)
}

func TestParseCellReferences(t *testing.T) {
	cases := []struct {
		ref   string
		rng   CellRange
		sheet string
	}{
		{"A1", SingleCell(0, 0), ""},
		{"$C$10", SingleCell(9, 2), ""},
		{"b2:d4", NewCellRange(1, 1, 3, 3), ""},
		{"Sheet2!AA1", SingleCell(0, 26), "Sheet2"},
		{"A1:Sheet2!B2", NewCellRange(0, 0, 1, 1), "Sheet2"},
		{"Sheet2!A1:sheet2!B2", NewCellRange(0, 0, 1, 1), "Sheet2"},
	}
	for _, tc := range cases {
		t.Run(tc.ref, func(t *testing.T) {
			rng, sheet, ok, err := ParseRangeRef(tc.ref)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tc.rng, rng)
			assert.Equal(t, tc.sheet, sheet)
		})
	}

	for _, ref := range []string{"SUM", "A", "1A", "A0", "ABCDEF1", "A1:B"} {
		_, _, ok, err := ParseRangeRef(ref)
		assert.NoError(t, err, ref)
		assert.False(t, ok, ref)
	}
}
