// Package ast defines the abstract syntax tree produced by internal/parser
// and walked by internal/eval. Each grammatical category (Expr, Statement,
// TopDecl) is modeled as a Go interface with an unexported marker method;
// the evaluator dispatches with an exhaustive type switch rather than a
// runtime "kind" field.
package ast

import "github.com/leafo/songc/internal/diag"

// Node is implemented by every AST node so callers can recover a position
// for diagnostics without a type switch.
type Node interface {
	Position() diag.Position
}

// Program is the root of a parsed compilation unit.
type Program struct {
	Imports []Import
	Body    []TopDecl
}

type Import struct {
	Names []string
	From  string
	Pos   diag.Position
}

func (i Import) Position() diag.Position { return i.Pos }

// TopDecl is a top-level declaration: a function, constant, type alias, or
// enum.
type TopDecl interface {
	Node
	declNode()
}

type Param struct {
	Name    string
	Default Expr // nil if no default
}

type FnDecl struct {
	Name     string
	Params   []Param
	Body     []Statement
	Exported bool
	Pos      diag.Position
}

func (d *FnDecl) Position() diag.Position { return d.Pos }
func (*FnDecl) declNode()                 {}

type ConstDecl struct {
	Target   Pattern
	Value    Expr
	Exported bool
	Pos      diag.Position
}

func (d *ConstDecl) Position() diag.Position { return d.Pos }
func (*ConstDecl) declNode()                 {}

type TypeAliasDecl struct {
	Name string
	Pos  diag.Position
}

func (d *TypeAliasDecl) Position() diag.Position { return d.Pos }
func (*TypeAliasDecl) declNode()                 {}

type EnumDecl struct {
	Name     string
	Variants []string
	Pos      diag.Position
}

func (d *EnumDecl) Position() diag.Position { return d.Pos }
func (*EnumDecl) declNode()                 {}

// Pattern is the LHS of a const/let declaration: either a single name or a
// tuple destructuring pattern with an optional rest element.
type Pattern struct {
	Names []string
	Rest  string // "" if no ...rest
	IsTuple bool
}

// Statement is implemented by every executable statement, including the
// score/clip block items — these are syntactically permitted anywhere a
// statement is, and are rejected dynamically by the evaluator's phase check
// (error E050) rather than by the grammar.
type Statement interface {
	Node
	stmtNode()
}

type LetStmt struct {
	Mutable bool // true for `let`, false for `const`
	Target  Pattern
	Value   Expr
	Pos     diag.Position
}

func (s *LetStmt) Position() diag.Position { return s.Pos }
func (*LetStmt) stmtNode()                 {}

type AssignStmt struct {
	Target Expr // Ident, MemberExpr, or IndexExpr
	Value  Expr
	Pos    diag.Position
}

func (s *AssignStmt) Position() diag.Position { return s.Pos }
func (*AssignStmt) stmtNode()                 {}

type ExprStmt struct {
	X   Expr
	Pos diag.Position
}

func (s *ExprStmt) Position() diag.Position { return s.Pos }
func (*ExprStmt) stmtNode()                 {}

type IfElseStmt struct {
	Cond Expr
	Then []Statement
	Else []Statement // nil if no else; may itself be a single IfElseStmt for "else if"
	Pos  diag.Position
}

func (s *IfElseStmt) Position() diag.Position { return s.Pos }
func (*IfElseStmt) stmtNode()                 {}

type ForInStmt struct {
	Var      string
	Iterable Expr
	Body     []Statement
	Pos      diag.Position
}

func (s *ForInStmt) Position() diag.Position { return s.Pos }
func (*ForInStmt) stmtNode()                 {}

type ForRangeStmt struct {
	Var   string
	Start Expr
	End   Expr
	Body  []Statement
	Pos   diag.Position
}

func (s *ForRangeStmt) Position() diag.Position { return s.Pos }
func (*ForRangeStmt) stmtNode()                 {}

type WhileStmt struct {
	Cond Expr
	Body []Statement
	Pos  diag.Position
}

func (s *WhileStmt) Position() diag.Position { return s.Pos }
func (*WhileStmt) stmtNode()                 {}

type MatchStmtArm struct {
	IsElse  bool
	Pattern Expr
	Guard   Expr // nil if no guard
	Body    []Statement
}

type MatchStmt struct {
	Subject Expr
	Arms    []MatchStmtArm
	Pos     diag.Position
}

func (s *MatchStmt) Position() diag.Position { return s.Pos }
func (*MatchStmt) stmtNode()                 {}

type ReturnStmt struct {
	Value Expr // nil for bare `return`
	Pos   diag.Position
}

func (s *ReturnStmt) Position() diag.Position { return s.Pos }
func (*ReturnStmt) stmtNode()                 {}

type BreakStmt struct{ Pos diag.Position }

func (s *BreakStmt) Position() diag.Position { return s.Pos }
func (*BreakStmt) stmtNode()                 {}

type ContinueStmt struct{ Pos diag.Position }

func (s *ContinueStmt) Position() diag.Position { return s.Pos }
func (*ContinueStmt) stmtNode()                 {}

// ---- Score items (meta/tempo/meter/sound/track need the global phase;
// place/triplet/tuplet need the track phase) ----

type MetaStmt struct {
	Fields []KV
	Pos    diag.Position
}

func (s *MetaStmt) Position() diag.Position { return s.Pos }
func (*MetaStmt) stmtNode()                 {}

type KV struct {
	Key   string
	Value Expr
}

type TempoEntry struct {
	At    Expr
	BPM   Expr
	EndAt Expr   // non-nil for gradational form
	Ramp  string // "ramp" | "ease" | ""
}

type TempoStmt struct {
	Entries []TempoEntry
	Pos     diag.Position
}

func (s *TempoStmt) Position() diag.Position { return s.Pos }
func (*TempoStmt) stmtNode()                 {}

type MeterEntry struct {
	At            Expr
	Numerator     int
	Denominator   int
}

type MeterStmt struct {
	Entries []MeterEntry
	Pos     diag.Position
}

func (s *MeterStmt) Position() diag.Position { return s.Pos }
func (*MeterStmt) stmtNode()                 {}

type SoundStmt struct {
	ID     string
	Kind   string
	Fields []KV
	Pos    diag.Position
}

func (s *SoundStmt) Position() diag.Position { return s.Pos }
func (*SoundStmt) stmtNode()                 {}

type PlaceStmt struct {
	At   Expr
	Clip Expr
	Pos  diag.Position
}

func (s *PlaceStmt) Position() diag.Position { return s.Pos }
func (*PlaceStmt) stmtNode()                 {}

type TrackStmt struct {
	Name    string
	Role    string
	SoundID string
	Body    []Statement // PlaceStmt entries, typically
	Pos     diag.Position
}

func (s *TrackStmt) Position() diag.Position { return s.Pos }
func (*TrackStmt) stmtNode()                 {}

// TripletStmt / TupletStmt open a tuplet context over Body and pop it on
// exit.
type TripletStmt struct {
	N      int  // actual
	InTime Expr // optional normal count override; nil means N-1 is NOT assumed — default normal is 2 for triplet
	Body   []Statement
	Pos    diag.Position
}

func (s *TripletStmt) Position() diag.Position { return s.Pos }
func (*TripletStmt) stmtNode()                 {}

type TupletStmt struct {
	Actual int
	Normal Expr
	Body   []Statement
	Pos    diag.Position
}

func (s *TupletStmt) Position() diag.Position { return s.Pos }
func (*TupletStmt) stmtNode()                 {}

// ---- Expressions ----

type Expr interface {
	Node
	exprNode()
}

type IntLit struct {
	Value int64
	Pos   diag.Position
}

func (e *IntLit) Position() diag.Position { return e.Pos }
func (*IntLit) exprNode()                 {}

type FloatLit struct {
	Value float64
	Pos   diag.Position
}

func (e *FloatLit) Position() diag.Position { return e.Pos }
func (*FloatLit) exprNode()                 {}

type BoolLit struct {
	Value bool
	Pos   diag.Position
}

func (e *BoolLit) Position() diag.Position { return e.Pos }
func (*BoolLit) exprNode()                 {}

type NullLit struct{ Pos diag.Position }

func (e *NullLit) Position() diag.Position { return e.Pos }
func (*NullLit) exprNode()                 {}

type StringLit struct {
	Value string
	Pos   diag.Position
}

func (e *StringLit) Position() diag.Position { return e.Pos }
func (*StringLit) exprNode()                 {}

// PitchLit carries the already-resolved MIDI key number.
type PitchLit struct {
	Key int
	Pos diag.Position
}

func (e *PitchLit) Position() diag.Position { return e.Pos }
func (*PitchLit) exprNode()                 {}

type DurationLit struct {
	Numerator   int
	Denominator int
	Dots        int
	Pos         diag.Position
}

func (e *DurationLit) Position() diag.Position { return e.Pos }
func (*DurationLit) exprNode()                 {}

type PosRefLit struct {
	Bar  int
	Beat int
	Pos  diag.Position
}

func (e *PosRefLit) Position() diag.Position { return e.Pos }
func (*PosRefLit) exprNode()                 {}

// TemplateLit has len(Parts) == len(Exprs)+1: Parts[i] is the literal text
// before Exprs[i], and Parts[len(Exprs)] is the trailing literal text.
type TemplateLit struct {
	Parts []string
	Exprs []Expr
	Pos   diag.Position
}

func (e *TemplateLit) Position() diag.Position { return e.Pos }
func (*TemplateLit) exprNode()                 {}

type Ident struct {
	Name string
	Pos  diag.Position
}

func (e *Ident) Position() diag.Position { return e.Pos }
func (*Ident) exprNode()                 {}

type TupleLit struct {
	Elems []Expr
	Pos   diag.Position
}

func (e *TupleLit) Position() diag.Position { return e.Pos }
func (*TupleLit) exprNode()                 {}

type ArrayElem struct {
	Value  Expr
	Spread bool
}

type ArrayLit struct {
	Elems []ArrayElem
	Pos   diag.Position
}

func (e *ArrayLit) Position() diag.Position { return e.Pos }
func (*ArrayLit) exprNode()                 {}

type ObjectField struct {
	Key    string
	Value  Expr // nil when Spread is true
	Spread bool
}

type ObjectLit struct {
	Fields []ObjectField
	Pos    diag.Position
}

func (e *ObjectLit) Position() diag.Position { return e.Pos }
func (*ObjectLit) exprNode()                 {}

type ConditionalExpr struct {
	Cond, Then, Else Expr
	Pos              diag.Position
}

func (e *ConditionalExpr) Position() diag.Position { return e.Pos }
func (*ConditionalExpr) exprNode()                 {}

type ArrowFunc struct {
	Params    []Param
	Body      Expr        // non-nil for expression-bodied arrows
	BlockBody []Statement // non-nil for block-bodied arrows
	Pos       diag.Position
}

func (e *ArrowFunc) Position() diag.Position { return e.Pos }
func (*ArrowFunc) exprNode()                 {}

type MatchExprArm struct {
	IsElse  bool
	Pattern Expr
	Guard   Expr
	Value   Expr
}

type MatchExpr struct {
	Subject Expr
	Arms    []MatchExprArm
	Pos     diag.Position
}

func (e *MatchExpr) Position() diag.Position { return e.Pos }
func (*MatchExpr) exprNode()                 {}

type ScoreBlock struct {
	Body []Statement
	Pos  diag.Position
}

func (e *ScoreBlock) Position() diag.Position { return e.Pos }
func (*ScoreBlock) exprNode()                 {}

type ClipBlock struct {
	Body []Statement
	Pos  diag.Position
}

func (e *ClipBlock) Position() diag.Position { return e.Pos }
func (*ClipBlock) exprNode()                 {}

type UnaryExpr struct {
	Op string // "!" | "-"
	X  Expr
	Pos diag.Position
}

func (e *UnaryExpr) Position() diag.Position { return e.Pos }
func (*UnaryExpr) exprNode()                 {}

type BinaryExpr struct {
	Op   string
	L, R Expr
	Pos  diag.Position
}

func (e *BinaryExpr) Position() diag.Position { return e.Pos }
func (*BinaryExpr) exprNode()                 {}

type CallExpr struct {
	Callee Expr
	Args   []Expr
	Pos    diag.Position
}

func (e *CallExpr) Position() diag.Position { return e.Pos }
func (*CallExpr) exprNode()                 {}

// NamedArg wraps an Expr passed as `name: value` inside a CallExpr's Args
// list, used by score/clip builtins with keyword options (e.g.
// note(C4, quarter, velocity: 90)).
type NamedArg struct {
	Name  string
	Value Expr
	Pos   diag.Position
}

func (e *NamedArg) Position() diag.Position { return e.Pos }
func (*NamedArg) exprNode()                 {}

type SpreadExpr struct {
	X   Expr
	Pos diag.Position
}

func (e *SpreadExpr) Position() diag.Position { return e.Pos }
func (*SpreadExpr) exprNode()                 {}

type MemberExpr struct {
	X        Expr
	Name     string
	Optional bool
	Pos      diag.Position
}

func (e *MemberExpr) Position() diag.Position { return e.Pos }
func (*MemberExpr) exprNode()                 {}

type IndexExpr struct {
	X        Expr
	Index    Expr
	Optional bool
	Pos      diag.Position
}

func (e *IndexExpr) Position() diag.Position { return e.Pos }
func (*IndexExpr) exprNode()                 {}
