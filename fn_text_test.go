package formula

import "testing"

func TestLogicalFunctions(t *testing.T) {
	NewEngineTestCase(t, "logical").
		AssertFormulaEq("=AND(TRUE, 1)", true).
		AssertFormulaEq("=AND(TRUE, 0)", false).
		AssertFormulaEq("=AND(FALSE, SQRT(-1))", false).
		AssertFormulaEq("=OR(FALSE, 0, 1)", true).
		AssertFormulaEq("=OR(TRUE, SQRT(-1))", true).
		AssertFormulaEq("=OR(FALSE, \"false\")", false).
		AssertFormulaEq("=NOT(0)", true).
		AssertFormulaEq("=NOT(\"TRUE\")", false).
		AssertFormulaEq("=IF(1<2, \"yes\", \"no\")", "yes").
		AssertFormulaEq("=IF(\"\", \"yes\", \"no\")", "no").
		AssertFormulaEq("=TRUE", true).
		AssertFormulaEq("=FALSE()", false).
		AssertFormulaErr("=AND(\"abc\")", "cannot convert \"abc\" to a boolean").
		AssertFormulaErr("=IF(1)", "too few parameters for IF").
		End()
}

func TestTextFunctions(t *testing.T) {
	t.Run("characters", func(t *testing.T) {
		NewEngineTestCase(t, "characters").
			AssertFormulaEq("=CHAR(65)", "A").
			AssertFormulaEq("=CODE(\"Abc\")", 65).
			AssertFormulaEq("=LEN(\"héllo\")", 5).
			AssertFormulaEq("=LEN(\"\")", 0).
			AssertFormulaErr("=CHAR(0)", "not a valid character code").
			AssertFormulaErr("=CODE(\"\")", "CODE: text is empty").
			End()
	})

	t.Run("concatenation", func(t *testing.T) {
		NewEngineTestCase(t, "concatenation").
			Set("A1", "x").
			Set("A2", "y").
			Set("A3", 3.0).
			AssertFormulaEq("=CONCATENATE(\"a\", 1, TRUE)", "a1TRUE").
			AssertFormulaEq("=CONCATENATE(A1:A3, \"!\")", "xy3!").
			AssertFormulaEq("=REPT(\"ab\", 3)", "ababab").
			AssertFormulaEq("=REPT(\"ab\", 0)", "").
			End()
	})

	t.Run("searching", func(t *testing.T) {
		NewEngineTestCase(t, "searching").
			AssertFormulaEq("=FIND(\"b\", \"abcb\")", 2).
			AssertFormulaEq("=FIND(\"b\", \"abcb\", 3)", 4).
			AssertFormulaEq("=SEARCH(\"B\", \"abc\")", 2).
			AssertFormulaEq("=SEARCH(\"c?\", \"abcd\")", 3).
			AssertFormulaEq("=SEARCH(\"b*d\", \"abcd\")", 2).
			AssertFormulaEq("=FIND(\"é\", \"héllo\")", 2).
			AssertFormulaErr("=FIND(\"B\", \"abc\")", "FIND: 'B' was not found").
			AssertFormulaErr("=SEARCH(\"z\", \"abc\")", "SEARCH: 'z' was not found").
			AssertFormulaErr("=FIND(\"a\", \"abc\", 9)", "start position 9 is out of range").
			End()
	})

	t.Run("slicing", func(t *testing.T) {
		NewEngineTestCase(t, "slicing").
			AssertFormulaEq("=LEFT(\"hello\", 2)", "he").
			AssertFormulaEq("=LEFT(\"hello\")", "h").
			AssertFormulaEq("=RIGHT(\"hello\", 3)", "llo").
			AssertFormulaEq("=RIGHT(\"hi\", 5)", "hi").
			AssertFormulaEq("=MID(\"abcdef\", 2, 3)", "bcd").
			AssertFormulaEq("=MID(\"abc\", 5, 2)", "").
			AssertFormulaEq("=REPLACE(\"abcdef\", 2, 3, \"X\")", "aXef").
			AssertFormulaEq("=REPLACE(\"abc\", 4, 0, \"d\")", "abcd").
			AssertFormulaErr("=LEFT(\"abc\", -1)", "LEFT: count cannot be negative").
			AssertFormulaErr("=MID(\"abc\", 0, 1)", "MID: invalid start or length").
			End()
	})

	t.Run("case and spacing", func(t *testing.T) {
		NewEngineTestCase(t, "case").
			AssertFormulaEq("=LOWER(\"ABC def\")", "abc def").
			AssertFormulaEq("=UPPER(\"abc\")", "ABC").
			AssertFormulaEq("=PROPER(\"hello wORLD\")", "Hello World").
			AssertFormulaEq("=TRIM(\"  a   b  \")", "a b").
			End()
	})

	t.Run("substitution", func(t *testing.T) {
		NewEngineTestCase(t, "substitution").
			AssertFormulaEq("=SUBSTITUTE(\"a-b-c\", \"-\", \"+\")", "a+b+c").
			AssertFormulaEq("=SUBSTITUTE(\"a-b-c\", \"-\", \"+\", 2)", "a-b+c").
			AssertFormulaEq("=SUBSTITUTE(\"a-b-c\", \"-\", \"+\", 3)", "a-b-c").
			AssertFormulaEq("=SUBSTITUTE(\"abc\", \"\", \"x\")", "abc").
			AssertFormulaErr("=SUBSTITUTE(\"abc\", \"b\", \"x\", 0)", "instance must be at least 1").
			End()
	})

	t.Run("conversion", func(t *testing.T) {
		NewEngineTestCase(t, "conversion").
			AssertFormulaEq("=VALUE(\"12.5\")", 12.5).
			AssertFormulaEq("=VALUE(\"50%\")", 0.5).
			AssertFormulaEq("=TEXT(1234.5, \"n2\")", "1,234.50").
			AssertFormulaEq("=TEXT(0.125, \"0.0%\")", "12.5%").
			AssertFormulaEq("=TEXT(DATE(2024, 1, 5), \"yyyy-MM-dd\")", "2024-01-05").
			AssertFormulaEq("=TEXT(\"abc\", \"n2\")", "abc").
			AssertFormulaEq("=1&\"\"", "1").
			AssertFormulaErr("=VALUE(\"abc\")", "VALUE: cannot convert 'abc' to a number").
			End()
	})
}
