package pyast

// Expr is implemented by every expression node.
type Expr interface {
	Node
	exprNode()
}

type exprBase struct{ base }

func (exprBase) exprNode() {}

// Name is a bare identifier reference.
type Name struct {
	exprBase
	Id string
}

// ConstKind tags the concrete type of a Constant literal.
type ConstKind int

const (
	ConstNone ConstKind = iota
	ConstBool
	ConstInt
	ConstBigInt // arbitrary-precision; Value holds decimal digits as a string
	ConstFloat
	ConstComplex
	ConstString
	ConstBytes
)

// Constant is a literal value.
type Constant struct {
	exprBase
	Kind  ConstKind
	Value interface{}
}

// BinOpKind enumerates binary arithmetic/bitwise operators.
type BinOpKind int

const (
	OpAdd BinOpKind = iota
	OpSub
	OpMul
	OpDiv
	OpFloorDiv
	OpMod
	OpPow
	OpBitAnd
	OpBitOr
	OpBitXor
	OpLShift
	OpRShift
	OpMatMul
)

// BinOp is a binary expression: Left Op Right.
type BinOp struct {
	exprBase
	Left  Expr
	Op    BinOpKind
	Right Expr
}

// UnaryOpKind enumerates unary operators.
type UnaryOpKind int

const (
	UnaryNeg UnaryOpKind = iota
	UnaryPos
	UnaryNot
	UnaryInvert // bitwise ~
)

// UnaryOp is a unary expression: Op Operand.
type UnaryOp struct {
	exprBase
	Op      UnaryOpKind
	Operand Expr
}

// BoolOpKind enumerates short-circuiting boolean operators.
type BoolOpKind int

const (
	BoolAnd BoolOpKind = iota
	BoolOr
)

// BoolOp is a chain of `and`/`or` over Values (all same operator).
type BoolOp struct {
	exprBase
	Op     BoolOpKind
	Values []Expr
}

// CmpOpKind enumerates comparison operators for a Compare chain.
type CmpOpKind int

const (
	CmpEq CmpOpKind = iota
	CmpNotEq
	CmpLt
	CmpLtE
	CmpGt
	CmpGtE
	CmpIs
	CmpIsNot
	CmpIn
	CmpNotIn
)

// Compare is a chained comparison: Left Ops[0] Comparators[0] Ops[1] ...
type Compare struct {
	exprBase
	Left        Expr
	Ops         []CmpOpKind
	Comparators []Expr
}

// Keyword is a `name=value` call argument, or `**value` when Name == "".
type Keyword struct {
	Name  string
	Value Expr
}

// Call is a function/method invocation.
type Call struct {
	exprBase
	Func     Expr
	Args     []Expr
	Keywords []Keyword
}

// Attribute is `Value.Attr`.
type Attribute struct {
	exprBase
	Value Expr
	Attr  string
}

// Subscript is `Value[Index]`.
type Subscript struct {
	exprBase
	Value Expr
	Index Expr
}

// Slice is a `start:stop:step` subscript index; any part may be nil.
type Slice struct {
	exprBase
	Lower Expr
	Upper Expr
	Step  Expr
}

// Tuple, List, Set are ordered/unordered literal collections.
type Tuple struct {
	exprBase
	Elts []Expr
}

type List struct {
	exprBase
	Elts []Expr
}

type Set struct {
	exprBase
	Elts []Expr
}

// DictEntry is a single `key: value` pair; Key is nil for a `**expr` unpack.
type DictEntry struct {
	Key   Expr
	Value Expr
}

type Dict struct {
	exprBase
	Entries []DictEntry
}

// Comprehension is a single `for Target in Iter [if Ifs]...` clause.
type Comprehension struct {
	Target Expr
	Iter   Expr
	Ifs    []Expr
}

// CompKind distinguishes the four comprehension forms, which share a shape.
type CompKind int

const (
	CompList CompKind = iota
	CompDict
	CompSet
	CompGenerator
)

// Comp is a list/dict/set comprehension or generator expression.
// For CompDict, Elt is the value expression and Key is the key expression;
// for the others, only Elt is used.
type Comp struct {
	exprBase
	Kind        CompKind
	Key         Expr // dict comprehensions only
	Elt         Expr
	Generators  []Comprehension
}

// IfExp is the ternary `Body if Test else Orelse`.
type IfExp struct {
	exprBase
	Test   Expr
	Body   Expr
	Orelse Expr
}

// Lambda is an anonymous function expression.
type Lambda struct {
	exprBase
	Params []Param
	Body   Expr
}

// Await suspends evaluation pending Value.
type Await struct {
	exprBase
	Value Expr
}

// Yield and YieldFrom mark the enclosing function as a generator.
type Yield struct {
	exprBase
	Value Expr // nil for a bare `yield`
}

type YieldFrom struct {
	exprBase
	Value Expr
}

// FormattedValue is one `{expr!conv:spec}` slot inside a JoinedStr.
type FormattedValue struct {
	exprBase
	Value      Expr
	Conversion rune // 0, 's', 'r', or 'a'
	FormatSpec Expr // nil if no format spec
}

// JoinedStr is an f-string: a sequence of literal Constant(string) and
// FormattedValue parts.
type JoinedStr struct {
	exprBase
	Parts []Expr
}

// Starred is a `*expr` unpack, valid as a call argument or assignment target.
type Starred struct {
	exprBase
	Value Expr
}
