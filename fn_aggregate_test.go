package formula

import (
	"math"
	"testing"
	"time"
)

func TestAggregates(t *testing.T) {
	t.Run("ranges", func(t *testing.T) {
		NewEngineTestCase(t, "ranges").
			Set("A1", 1.0).
			Set("A2", 2.0).
			Set("A3", 3.0).
			Set("A4", "text").
			Set("A6", true).
			AssertFormulaEq("=SUM(A1:A6)", 6).
			AssertFormulaEq("=AVERAGE(A1:A6)", 2).
			AssertFormulaEq("=COUNT(A1:A6)", 3).
			AssertFormulaEq("=COUNTA(A1:A6)", 5).
			AssertFormulaEq("=COUNTBLANK(A1:A6)", 1).
			AssertFormulaEq("=MAX(A1:A6)", 3).
			AssertFormulaEq("=MIN(A1:A6)", 1).
			AssertFormulaEq("=PRODUCT(A1:A6)", 6).
			AssertFormulaEq("=VAR(A1:A3)", 1).
			AssertFormulaEq("=VARP(A1:A3)", 2.0/3.0).
			AssertFormulaEq("=STDEV(A1:A3)", 1).
			AssertFormulaEq("=STDEVP(A1:A3)", math.Sqrt(2.0/3.0)).
			AssertFormulaEq("=SUM(A1:A3, 10, A1)", 17).
			End()
	})

	t.Run("direct arguments", func(t *testing.T) {
		NewEngineTestCase(t, "direct").
			AssertFormulaEq("=SUM(1, \"2\", TRUE)", 4).
			AssertFormulaEq("=COUNT(1, \"2\", \"x\")", 2).
			AssertFormulaEq("=AVERAGE(2, 4)", 3).
			AssertFormulaErr("=SUM(\"abc\")", "SUM: cannot convert 'abc' to a number").
			End()
	})

	t.Run("empty inputs", func(t *testing.T) {
		NewEngineTestCase(t, "empty").
			AssertFormulaEq("=SUM(B1:B5)", 0).
			AssertFormulaEq("=MAX(B1:B5)", 0).
			AssertFormulaEq("=PRODUCT(B1:B5)", 0).
			AssertFormulaEq("=COUNTBLANK(B1:B5)", 5).
			AssertFormulaErr("=AVERAGE(B1:B5)", "AVERAGE: no numeric values").
			AssertFormulaErr("=STDEV(5)", "STDEV: not enough numeric values").
			End()
	})

	t.Run("dates", func(t *testing.T) {
		NewEngineTestCase(t, "dates").
			Set("A1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)).
			Set("A2", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)).
			AssertFormulaEq("=MAX(A1:A2)", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)).
			AssertFormulaEq("=MIN(A1:A2)", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)).
			AssertFormulaEq("=COUNT(A1:A2)", 2).
			End()
	})

	t.Run("formula cells", func(t *testing.T) {
		NewEngineTestCase(t, "formula cells").
			Set("A1", 1.0).
			Set("A2", "=A1*2").
			Set("A3", "=ROUND(A2/3, 2)").
			AssertFormulaEq("=SUM(A1:A3)", 3.67).
			End()
	})
}

func TestCountIf(t *testing.T) {
	NewEngineTestCase(t, "countif").
		Set("A1", "abc").
		Set("A2", "aXc").
		Set("A3", "abcd").
		Set("A4", "ac").
		Set("B1", 3.0).
		Set("B2", 6.0).
		Set("B3", 9.0).
		Set("B4", 5.0).
		AssertFormulaEq("=COUNTIF(A1:A4, \"a?c\")", 2).
		AssertFormulaEq("=COUNTIF(A1:A4, \"A*\")", 4).
		AssertFormulaEq("=COUNTIF(A1:A4, \"<>a?c\")", 2).
		AssertFormulaEq("=COUNTIF(A1:A4, \"ABC\")", 1).
		AssertFormulaEq("=COUNTIF(B1:B4, \">5\")", 2).
		AssertFormulaEq("=COUNTIF(B1:B4, \">=5\")", 3).
		AssertFormulaEq("=COUNTIF(B1:B4, \"<>6\")", 3).
		AssertFormulaEq("=COUNTIF(B1:B4, 9)", 1).
		AssertFormulaEq("=COUNTIF(B1:B4, \"9\")", 1).
		AssertFormulaEq("=COUNTIF(A1:A5, \"\")", 1).
		AssertFormulaEq("=COUNTIF(A1:A5, \"<>\")", 4).
		AssertFormulaErr("=COUNTIF(A1:A4, \">a*\")", "wildcards need '=' or '<>'").
		AssertFormulaErr("=COUNTIF(A1:A4, \">\")", "missing operand").
		AssertFormulaErr("=COUNTIF(5, 5)", "COUNTIF expects a range for argument 1").
		AssertFormulaErr("=COUNTIFS(A1:A4, \"a*\", 5, 5)", "COUNTIFS expects a range for argument 3").
		End()
}

func TestCountIfsAndSumIfs(t *testing.T) {
	NewEngineTestCase(t, "ifs").
		Set("A1", "abc").
		Set("A2", "aXc").
		Set("A3", "abcd").
		Set("A4", "ac").
		Set("B1", 3.0).
		Set("B2", 6.0).
		Set("B3", 9.0).
		Set("B4", 5.0).
		AssertFormulaEq("=SUMIF(B1:B4, \">5\")", 15).
		AssertFormulaEq("=SUMIF(A1:A2, \"a?c\", B1:B2)", 9).
		AssertFormulaEq("=SUMIFS(B1:B4, B1:B4, \">3\", B1:B4, \"<9\")", 11).
		AssertFormulaEq("=COUNTIFS(B1:B4, \">3\", A1:A4, \"a*\")", 3).
		AssertFormulaEq("=COUNTIFS(B1:B4, \">3\", A1:A4, \"a?c\")", 1).
		AssertFormulaErr("=COUNTIFS(B1:B4, \">3\", A1:A4)", "expects range and criteria pairs").
		AssertFormulaErr("=COUNTIFS(B1:B4, \">3\", A1:A3, \"a*\")", "must have the same size").
		AssertFormulaErr("=SUMIF(B1:B4, \">3\", A1:A2)", "must match the criteria range size").
		AssertFormulaErr("=COUNTIF(5, \">3\")", "expects a range").
		End()
}

func TestRank(t *testing.T) {
	NewEngineTestCase(t, "rank").
		Set("A1", 3.0).
		Set("A2", 6.0).
		Set("A3", 9.0).
		Set("A4", 5.0).
		AssertFormulaEq("=RANK(6, A1:A4)", 2).
		AssertFormulaEq("=RANK(6, A1:A4, 1)", 3).
		AssertFormulaEq("=RANK(9, A1:A4)", 1).
		AssertFormulaErr("=RANK(7, A1:A4)", "7 is not in the range").
		End()
}

func TestSubtotal(t *testing.T) {
	NewEngineTestCase(t, "subtotal").
		Set("A1", 10.0).
		Set("A2", 20.0).
		Set("A3", 30.0).
		HideRow("Sheet1", 1).
		AssertFormulaEq("=SUBTOTAL(9, A1:A3)", 60).
		AssertFormulaEq("=SUBTOTAL(109, A1:A3)", 40).
		AssertFormulaEq("=SUBTOTAL(101, A1:A3)", 20).
		AssertFormulaEq("=SUBTOTAL(2, A1:A3)", 3).
		AssertFormulaEq("=SUBTOTAL(102, A1:A3)", 2).
		AssertFormulaEq("=SUBTOTAL(4, A1:A3)", 30).
		AssertFormulaEq("=SUM(A1:A3)", 60).
		AssertFormulaErr("=SUBTOTAL(12, A1:A3)", "invalid function code 12").
		AssertFormulaErr("=SUBTOTAL(0, A1:A3)", "invalid function code 0").
		End()

	NewEngineTestCase(t, "subtotal hidden columns").
		Set("A1", 1.0).
		Set("B1", 2.0).
		Set("C1", 4.0).
		HideColumn("Sheet1", 2).
		AssertFormulaEq("=SUBTOTAL(109, A1:C1)", 3).
		AssertFormulaEq("=SUBTOTAL(9, A1:C1)", 7).
		End()
}

func TestDCount(t *testing.T) {
	NewEngineTestCase(t, "dcount").
		Set("A1", "Name").Set("B1", "Age").Set("C1", "Score").
		Set("A2", "Ann").Set("B2", 30.0).Set("C2", 90.0).
		Set("A3", "Bob").Set("B3", 25.0).Set("C3", "n/a").
		Set("A4", "Cid").Set("B4", 40.0).Set("C4", 70.0).
		Set("A5", "Dee").Set("B5", 35.0).Set("C5", 85.0).
		Set("E1", "Age").Set("E2", ">28").
		Set("G1", "Age").Set("H1", "Name").
		Set("G2", ">28").
		Set("H3", "Bob").
		Set("J1", "age").Set("K1", "score").
		Set("J2", ">28").Set("K2", ">80").
		AssertFormulaEq("=DCOUNT(A1:C5, \"Score\", E1:E2)", 3).
		AssertFormulaEq("=DCOUNT(A1:C5, 2, E1:E2)", 3).
		AssertFormulaEq("=DCOUNT(A1:C5, \"Age\", G1:H3)", 4).
		AssertFormulaEq("=DCOUNT(A1:C5, \"Score\", G1:H3)", 3).
		AssertFormulaEq("=DCOUNT(A1:C5, \"Score\", J1:K2)", 2).
		AssertFormulaEq("=DCOUNT(A1:C5, \"Name\", E1:E2)", 0).
		AssertFormulaErr("=DCOUNT(A1:C5, \"Height\", E1:E2)", "unknown field 'Height'").
		AssertFormulaErr("=DCOUNT(A1:C5, 4, E1:E2)", "field index 4 is out of range").
		End()
}

func TestSumProduct(t *testing.T) {
	NewEngineTestCase(t, "sumproduct").
		Set("A1", 1.0).Set("A2", 2.0).Set("A3", 3.0).
		Set("B1", 4.0).Set("B2", "x").Set("B3", 6.0).
		AssertFormulaEq("=SUMPRODUCT(A1:A3, B1:B3)", 22).
		AssertFormulaEq("=SUMPRODUCT(A1:A3)", 6).
		AssertFormulaErr("=SUMPRODUCT(A1:A3, B1:B2)", "ranges must have the same size").
		End()
}
