package pylite

// Node is any syntax tree node. Line is the 1-based source line it starts on.
type Node interface {
	Pos() int
}

// Stmt is a statement node. The tracer hook fires before each one executes.
type Stmt interface {
	Node
	stmt()
}

// Expr is an expression node.
type Expr interface {
	Node
	expr()
}

type pos struct{ Line int }

func (p pos) Pos() int { return p.Line }

// ---- statements ----

type ExprStmt struct {
	pos
	X Expr
}

// AssignStmt covers `a = b = value`; every target receives the same value.
type AssignStmt struct {
	pos
	Targets []Expr
	Value   Expr
}

type AugAssignStmt struct {
	pos
	Target Expr
	Op     string // binary operator without the '=' ("+", "//", ...)
	Value  Expr
}

// IfStmt represents if/elif/else; an elif chain is an IfStmt nested in Else.
type IfStmt struct {
	pos
	Cond Expr
	Body []Stmt
	Else []Stmt
}

type WhileStmt struct {
	pos
	Cond Expr
	Body []Stmt
	Else []Stmt
}

type ForStmt struct {
	pos
	Target Expr
	Iter   Expr
	Body   []Stmt
	Else   []Stmt
}

type BreakStmt struct{ pos }
type ContinueStmt struct{ pos }
type PassStmt struct{ pos }

type ReturnStmt struct {
	pos
	Value Expr // nil for a bare return
}

// Param is a positional parameter with an optional default.
type Param struct {
	Name    string
	Default Expr
	Kind    ParamKind
	KwOnly  bool // declared after *args or a bare *
}

type ParamKind int

const (
	ParamPlain  ParamKind = iota
	ParamVarArgs          // *args
	ParamKwArgs           // **kwargs
)

type FuncDef struct {
	pos
	Name   string
	Params []Param
	Body   []Stmt
}

type ClassDef struct {
	pos
	Name string
	Base Expr // nil when the class has no explicit base
	Body []Stmt
}

type GlobalStmt struct {
	pos
	Names []string
}

type NonlocalStmt struct {
	pos
	Names []string
}

type DelStmt struct {
	pos
	Targets []Expr
}

type AssertStmt struct {
	pos
	Test Expr
	Msg  Expr
}

type RaiseStmt struct {
	pos
	Exc Expr // nil re-raises the active exception
}

type ExceptHandler struct {
	Line int
	Type Expr // nil catches everything
	Name string
	Body []Stmt
}

type TryStmt struct {
	pos
	Body     []Stmt
	Handlers []ExceptHandler
	Else     []Stmt
	Finally  []Stmt
}

// ImportStmt is `import mod [as alias], ...`; ImportName.Name holds the module.
type ImportStmt struct {
	pos
	Names []ImportName
}

type ImportName struct {
	Name  string
	Alias string
}

// FromImportStmt is `from mod import a [as b], ...`.
type FromImportStmt struct {
	pos
	Module string
	Names  []ImportName
}

func (*ExprStmt) stmt()       {}
func (*AssignStmt) stmt()     {}
func (*AugAssignStmt) stmt()  {}
func (*IfStmt) stmt()         {}
func (*WhileStmt) stmt()      {}
func (*ForStmt) stmt()        {}
func (*BreakStmt) stmt()      {}
func (*ContinueStmt) stmt()   {}
func (*PassStmt) stmt()       {}
func (*ReturnStmt) stmt()     {}
func (*FuncDef) stmt()        {}
func (*ClassDef) stmt()       {}
func (*GlobalStmt) stmt()     {}
func (*NonlocalStmt) stmt()   {}
func (*DelStmt) stmt()        {}
func (*AssertStmt) stmt()     {}
func (*RaiseStmt) stmt()      {}
func (*TryStmt) stmt()        {}
func (*ImportStmt) stmt()     {}
func (*FromImportStmt) stmt() {}

// ---- expressions ----

type Name struct {
	pos
	ID string
}

// Constant holds None, bool, int64, float64 or string.
type Constant struct {
	pos
	Value any
}

// FStringPart is either literal text or an embedded expression.
type FStringPart struct {
	Text       string
	Expr       Expr
	Conversion byte   // 0, 'r' or 's'
	Spec       string // format spec after ':'
}

type FString struct {
	pos
	Parts []FStringPart
}

type BinOp struct {
	pos
	Op          string
	Left, Right Expr
}

type UnaryOp struct {
	pos
	Op      string // "-", "+", "~", "not"
	Operand Expr
}

type BoolOp struct {
	pos
	Op     string // "and" or "or"
	Values []Expr
}

// Compare is a possibly chained comparison: a < b <= c.
type Compare struct {
	pos
	Left        Expr
	Ops         []string
	Comparators []Expr
}

type IfExp struct {
	pos
	Cond, Then, Else Expr
}

// Keyword is `name=value` in a call. An empty Name is `**mapping`.
type Keyword struct {
	Name  string
	Value Expr
}

// Starred is `*value` in a call, a display or an assignment target.
type Starred struct {
	pos
	Value Expr
}

type Call struct {
	pos
	Func     Expr
	Args     []Expr
	Keywords []Keyword
}

type Attribute struct {
	pos
	Value Expr
	Attr  string
}

type Subscript struct {
	pos
	Value Expr
	Index Expr
}

type Slice struct {
	pos
	Lo, Hi, Step Expr
}

type ListExpr struct {
	pos
	Elts []Expr
}

type TupleExpr struct {
	pos
	Elts []Expr
}

type SetExpr struct {
	pos
	Elts []Expr
}

type DictExpr struct {
	pos
	Keys   []Expr
	Values []Expr
}

type CompFor struct {
	Target Expr
	Iter   Expr
	Ifs    []Expr
}

// Comprehension covers list, set and dict comprehensions and generator
// expressions (which evaluate eagerly to a list).
type Comprehension struct {
	pos
	Kind       string // "list", "set", "dict", "gen"
	Elt        Expr
	Value      Expr // dict comprehensions only
	Generators []CompFor
}

type Lambda struct {
	pos
	Params []Param
	Body   Expr
}

func (*Name) expr()          {}
func (*Constant) expr()      {}
func (*FString) expr()       {}
func (*BinOp) expr()         {}
func (*UnaryOp) expr()       {}
func (*BoolOp) expr()        {}
func (*Compare) expr()       {}
func (*IfExp) expr()         {}
func (*Call) expr()          {}
func (*Starred) expr()       {}
func (*Attribute) expr()     {}
func (*Subscript) expr()     {}
func (*Slice) expr()         {}
func (*ListExpr) expr()      {}
func (*TupleExpr) expr()     {}
func (*SetExpr) expr()       {}
func (*DictExpr) expr()      {}
func (*Comprehension) expr() {}
func (*Lambda) expr()        {}
