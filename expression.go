package formula

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// EvalContext is passed to every node and function implementation. Sheet
// is the ambient sheet of the formula (nil falls back to the grid's
// selected sheet); Row and Col locate the cell being computed, or -1.
type EvalContext struct {
	Sheet Sheet
	Row   int
	Col   int

	engine *Engine
}

// Engine returns the engine driving this evaluation
func (ec *EvalContext) Engine() *Engine {
	return ec.engine
}

// Grid returns the host grid
func (ec *EvalContext) Grid() Grid {
	return ec.engine.grid
}

// resolveSheet picks the explicit sheet, then the ambient one, then the
// grid's selected sheet
func (ec *EvalContext) resolveSheet(name string) (Sheet, error) {
	grid := ec.engine.grid
	if name != "" {
		sheet, ok := grid.SheetByName(name)
		if !ok || sheet == nil {
			return nil, referenceErrorf("unknown sheet '%s'", name)
		}
		return sheet, nil
	}
	if ec.Sheet != nil {
		return ec.Sheet, nil
	}
	if sheet := grid.SelectedSheet(); sheet != nil {
		return sheet, nil
	}
	return nil, referenceErrorf("no sheet to resolve the reference against")
}

// scalar collapses a range result to the value of its top-left cell
func (ec *EvalContext) scalar(value Primitive) (Primitive, error) {
	if ref, ok := value.(*RangeReference); ok {
		return ec.engine.readCell(ref)
	}
	return value, nil
}

// Expression is a node of a parsed formula. the set of implementations is
// closed: LiteralNode, UnaryNode, BinaryNode, CellRangeNode and
// FunctionCallNode.
type Expression interface {
	Eval(ec *EvalContext) (Primitive, error)
	String() string
	expression()
}

// memo is the write-once result slot of a context-free node
type memo struct {
	done  bool
	value Primitive
}

// LiteralNode returns its token's value
type LiteralNode struct {
	Token Token
}

func (n *LiteralNode) expression() {}

func (n *LiteralNode) Eval(ec *EvalContext) (Primitive, error) {
	if n.Token.Type != TokenTypeLiteral {
		return nil, syntaxErrorf("unexpected token '%s'", n.Token.String())
	}
	return n.Token.Value, nil
}

func (n *LiteralNode) String() string {
	switch v := n.Token.Value.(type) {
	case string:
		return "\"" + strings.ReplaceAll(v, "\"", "\"\"") + "\""
	case time.Time:
		return "#" + v.Format("2006-01-02 15:04:05") + "#"
	default:
		return ToString(v)
	}
}

// UnaryNode applies a numeric sign to its operand
type UnaryNode struct {
	Op      Token
	Operand Expression

	constant bool
	memo     memo
}

func (n *UnaryNode) expression() {}

func (n *UnaryNode) Eval(ec *EvalContext) (Primitive, error) {
	if n.memo.done {
		return n.memo.value, nil
	}

	val, err := n.Operand.Eval(ec)
	if err != nil {
		return nil, err
	}
	if val, err = ec.scalar(val); err != nil {
		return nil, err
	}

	num := ToNumber(val)
	if n.Op.ID == TokenSubtract {
		num = -num
	}

	if n.constant {
		n.memo = memo{done: true, value: num}
	}
	return num, nil
}

func (n *UnaryNode) String() string {
	return n.Op.String() + n.Operand.String()
}

// BinaryNode applies an arithmetic, comparison or concatenation operator
type BinaryNode struct {
	Op    Token
	Left  Expression
	Right Expression
}

func (n *BinaryNode) expression() {}

func (n *BinaryNode) Eval(ec *EvalContext) (Primitive, error) {
	left, err := evalScalar(ec, n.Left)
	if err != nil {
		return nil, err
	}
	right, err := evalScalar(ec, n.Right)
	if err != nil {
		return nil, err
	}
	left, right = Unwrap(left), Unwrap(right)

	if n.Op.ID == TokenConcat {
		return ToString(left) + ToString(right), nil
	}
	if n.Op.Type == TokenTypeCompare {
		return compareValues(n.Op.ID, left, right), nil
	}

	l, r := ToNumber(left), ToNumber(right)
	switch n.Op.ID {
	case TokenAdd:
		return l + r, nil
	case TokenSubtract:
		return l - r, nil
	case TokenMultiply:
		return l * r, nil
	case TokenDivide:
		return l / r, nil
	case TokenDivideInt:
		return math.Floor(l / r), nil
	case TokenPower:
		return math.Pow(l, r), nil
	}
	return nil, syntaxErrorf("unexpected operator '%s'", n.Op.String())
}

func (n *BinaryNode) String() string {
	return fmt.Sprintf("(%s%s%s)", n.Left.String(), n.Op.String(), n.Right.String())
}

// compareValues compares numerically. when either side has no numeric
// reading, = and <> fall back to case-insensitive text equality and the
// relational operators are false.
func compareValues(op TokenID, left, right Primitive) bool {
	diff := ToNumber(left) - ToNumber(right)
	if math.IsNaN(diff) {
		equal := strings.EqualFold(ToString(left), ToString(right))
		switch op {
		case TokenEqual:
			return equal
		case TokenNotEqual:
			return !equal
		}
		return false
	}
	switch op {
	case TokenGreaterThan:
		return diff > 0
	case TokenLessThan:
		return diff < 0
	case TokenGreaterEqual:
		return diff >= 0
	case TokenLessEqual:
		return diff <= 0
	case TokenEqual:
		return diff == 0
	case TokenNotEqual:
		return diff != 0
	}
	return false
}

// CellRangeNode references a cell or block of cells, optionally on a named
// sheet. as a scalar it reads its top-left cell; Values reads every cell.
type CellRangeNode struct {
	Range    CellRange
	SheetRef string
}

func (n *CellRangeNode) expression() {}

// Reference resolves the node's sheet and binds the range to it
func (n *CellRangeNode) Reference(ec *EvalContext) (*RangeReference, error) {
	sheet, err := ec.resolveSheet(n.SheetRef)
	if err != nil {
		return nil, err
	}
	return &RangeReference{Sheet: sheet, Range: n.Range}, nil
}

func (n *CellRangeNode) Eval(ec *EvalContext) (Primitive, error) {
	ref, err := n.Reference(ec)
	if err != nil {
		return nil, err
	}
	return ec.engine.readCell(ref)
}

// Values returns the range's values row-major. hidden rows and columns are
// skipped unless includeHidden is set; column >= 0 restricts the read to
// that column offset within the range.
func (n *CellRangeNode) Values(ec *EvalContext, includeHidden bool, column int) ([]Primitive, error) {
	ref, err := n.Reference(ec)
	if err != nil {
		return nil, err
	}
	return ec.engine.readRange(ref, includeHidden, column)
}

func (n *CellRangeNode) String() string {
	if n.SheetRef == "" {
		return n.Range.String()
	}
	return quoteSheetName(n.SheetRef) + "!" + n.Range.String()
}

// quoteSheetName wraps names that would not lex as a bare identifier
func quoteSheetName(name string) string {
	bare := name != ""
	for i, ch := range name {
		if !(isLetter(ch) || ch == charUnderscore || (i > 0 && isDigit(ch))) {
			bare = false
			break
		}
	}
	if bare {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// FunctionCallNode invokes a function with its unevaluated arguments
type FunctionCallNode struct {
	Name       string
	Definition *FunctionDefinition
	Args       []Expression

	constant bool
	memo     memo
}

func (n *FunctionCallNode) expression() {}

func (n *FunctionCallNode) Eval(ec *EvalContext) (Primitive, error) {
	if n.memo.done {
		return n.memo.value, nil
	}

	val, err := n.Definition.Impl(ec, n.Args)
	if err != nil {
		return nil, err
	}

	if n.constant {
		n.memo = memo{done: true, value: val}
	}
	return val, nil
}

func (n *FunctionCallNode) String() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.String()
	}
	return fmt.Sprintf("%s(%s)", strings.ToUpper(n.Name), strings.Join(args, ","))
}

// isContextFree reports whether an expression yields the same value in every
// cell: no range reads, no volatile or custom functions
func isContextFree(expr Expression) bool {
	switch n := expr.(type) {
	case *LiteralNode:
		return true
	case *UnaryNode:
		return n.constant
	case *BinaryNode:
		return isContextFree(n.Left) && isContextFree(n.Right)
	case *CellRangeNode:
		return false
	case *FunctionCallNode:
		return n.constant
	}
	return false
}

// evalScalar evaluates an expression and collapses range results to a
// single cell value
func evalScalar(ec *EvalContext, expr Expression) (Primitive, error) {
	val, err := expr.Eval(ec)
	if err != nil {
		return nil, err
	}
	return ec.scalar(val)
}

// evalReference returns the range an argument denotes, or nil when the
// argument is a plain value. value is only set in the latter case.
func evalReference(ec *EvalContext, expr Expression) (ref *RangeReference, value Primitive, err error) {
	if node, ok := expr.(*CellRangeNode); ok {
		ref, err = node.Reference(ec)
		return ref, nil, err
	}
	value, err = expr.Eval(ec)
	if err != nil {
		return nil, nil, err
	}
	if ref, ok := value.(*RangeReference); ok {
		return ref, nil, nil
	}
	return nil, value, nil
}
