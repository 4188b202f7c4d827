package tql

// Statement is the root interface for all TQL statements.
type Statement interface {
	stmtNode()
}

// ----- SELECT -----
type SelectStmt struct {
	Container string     // optional FROM target
	Aggregate *Aggregate // nil for SELECT *
	Where     Expr       // nil when absent
	OrderBy   *OrderBy
	Limit     int64 // -1 when absent
	Offset    int64
}

func (*SelectStmt) stmtNode() {}

type AggFunc string

const (
	AggCount AggFunc = "COUNT"
	AggSum   AggFunc = "SUM"
	AggAvg   AggFunc = "AVG"
	AggMin   AggFunc = "MIN"
	AggMax   AggFunc = "MAX"
)

type Aggregate struct {
	Func   AggFunc
	Column string // empty for COUNT(*)
}

type OrderBy struct {
	Column string
	Desc   bool
}

// ----- EXPLAIN -----
type ExplainStmt struct {
	Analyze bool
	Select  *SelectStmt
	Text    string // the explained statement as written
}

func (*ExplainStmt) stmtNode() {}

// ----- Expressions -----
type Expr interface {
	exprNode()
}

type CmpOp string

const (
	OpEq CmpOp = "="
	OpNe CmpOp = "!="
	OpLt CmpOp = "<"
	OpLe CmpOp = "<="
	OpGt CmpOp = ">"
	OpGe CmpOp = ">="
)

type CompareExpr struct {
	Column string
	Op     CmpOp
	Value  *LiteralExpr
}

func (*CompareExpr) exprNode() {}

type LogicalOp string

const (
	OpAnd LogicalOp = "AND"
	OpOr  LogicalOp = "OR"
)

type LogicalExpr struct {
	Op          LogicalOp
	Left, Right Expr
}

func (*LogicalExpr) exprNode() {}

// LiteralExpr holds nil, bool, int64, float64, string or time.Time.
type LiteralExpr struct {
	Value any
}

func (*LiteralExpr) exprNode() {}
