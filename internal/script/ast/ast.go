// Package ast defines the script tree executed by the engine: a closed set of
// statement and expression node types, statement lists that know whether they
// introduce variable bindings, subroutines grouped into class namespaces, and
// the Script that ties them together.
//
// Trees are built once (by the loader or in code through the constructors in
// builder.go) and are not modified afterwards, so one tree may be executed by
// several goroutines at the same time.
package ast

import (
	"strings"

	"github.com/JzHartmut/jzcmd/internal/script/scripterr"
	"github.com/JzHartmut/jzcmd/internal/script/token"
)

// ---------------------------------------------------------------------------
// Interfaces
// ---------------------------------------------------------------------------

// Node is the common interface for every tree node.
type Node interface {
	Pos() token.Position
}

// Statement is a node that represents one executable unit.
type Statement interface {
	Node
	stmtNode()
}

// Expression is a node that evaluates to a value.
type Expression interface {
	Node
	exprNode()
}

// ---------------------------------------------------------------------------
// Statement lists
// ---------------------------------------------------------------------------

// StatementList is an ordered body of statements. IntroducesBindings is set
// when any direct element defines a variable, in which case executing the
// list needs a scope of its own.
type StatementList struct {
	Statements         []Statement
	IntroducesBindings bool
	Position           token.Position
}

func (l *StatementList) Pos() token.Position { return l.Position }

// Len returns the number of statements, treating a nil list as empty.
func (l *StatementList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Statements)
}

// Add appends s and updates IntroducesBindings.
func (l *StatementList) Add(s Statement) *StatementList {
	l.Statements = append(l.Statements, s)
	switch st := s.(type) {
	case *VarDef:
		l.IntroducesBindings = true
	case *ThreadStmt:
		if st.Handle != "" {
			l.IntroducesBindings = true
		}
	}
	return l
}

// ---------------------------------------------------------------------------
// Variable kinds
// ---------------------------------------------------------------------------

// VarKind is the declared kind of a variable definition or formal argument.
type VarKind int

const (
	VarObject   VarKind = iota // any value
	VarString                  // value coerced to its text
	VarBuffer                  // mutable text buffer shared by reference
	VarPipe                    // buffer used as a command output sink
	VarList                    // container, initializer must be iterable
	VarOpenFile                // file opened for writing
	VarThread                  // thread handle
)

var varKindNames = map[VarKind]string{
	VarObject:   "Obj",
	VarString:   "String",
	VarBuffer:   "Stringjar",
	VarPipe:     "Pipe",
	VarList:     "List",
	VarOpenFile: "Openfile",
	VarThread:   "Thread",
}

func (k VarKind) String() string {
	if name, ok := varKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseVarKind maps a kind keyword (case-insensitive) to a VarKind.
func ParseVarKind(s string) (VarKind, bool) {
	switch strings.ToLower(s) {
	case "", "obj", "object":
		return VarObject, true
	case "string":
		return VarString, true
	case "stringjar", "buffer":
		return VarBuffer, true
	case "pipe":
		return VarPipe, true
	case "list":
		return VarList, true
	case "openfile":
		return VarOpenFile, true
	case "thread":
		return VarThread, true
	}
	return VarObject, false
}

// ---------------------------------------------------------------------------
// Text statements
// ---------------------------------------------------------------------------

// TextStmt emits constant text. Embedded line breaks are re-emitted with the
// configured newline sequence.
type TextStmt struct {
	Text     string
	Position token.Position
}

func (n *TextStmt) Pos() token.Position { return n.Position }
func (n *TextStmt) stmtNode()           {}

// NewlineStmt emits the configured newline sequence.
type NewlineStmt struct {
	Position token.Position
}

func (n *NewlineStmt) Pos() token.Position { return n.Position }
func (n *NewlineStmt) stmtNode()           {}

// TextOutputStmt renders Body into Target (<+name>...<.+>). A nil Target
// means the current output. With Replace the target buffer is cleared first.
type TextOutputStmt struct {
	Target   *DataAccess
	Replace  bool
	Body     *StatementList
	Position token.Position
}

func (n *TextOutputStmt) Pos() token.Position { return n.Position }
func (n *TextOutputStmt) stmtNode()           {}

// ValueStmt emits the text of Value, formatted with Format when set.
type ValueStmt struct {
	Value    Expression
	Format   string
	Position token.Position
}

func (n *ValueStmt) Pos() token.Position { return n.Position }
func (n *ValueStmt) stmtNode()           {}

// ---------------------------------------------------------------------------
// Variable statements
// ---------------------------------------------------------------------------

// VarDef defines a variable in the current scope.
type VarDef struct {
	Kind     VarKind
	Name     string
	Init     Expression // may be nil
	Const    bool
	Position token.Position
}

func (n *VarDef) Pos() token.Position { return n.Position }
func (n *VarDef) stmtNode()           {}

// AssignStmt evaluates Value once and stores it into every target. With
// Append the value is appended to buffer targets instead of replacing them.
type AssignStmt struct {
	Targets  []*DataAccess
	Value    Expression
	Append   bool
	Position token.Position
}

func (n *AssignStmt) Pos() token.Position { return n.Position }
func (n *AssignStmt) stmtNode()           {}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

// CondBlock is one condition and body of an if/elsif chain.
type CondBlock struct {
	Cond     Expression
	Body     *StatementList
	Position token.Position
}

func (n *CondBlock) Pos() token.Position { return n.Position }

// IfStmt evaluates its branches in order and runs the first true one, or
// Else when none matched.
type IfStmt struct {
	Branches []*CondBlock
	Else     *StatementList // may be nil
	Position token.Position
}

func (n *IfStmt) Pos() token.Position { return n.Position }
func (n *IfStmt) stmtNode()           {}

// ForStmt iterates Container, binding each element (or map value) to Var.
type ForStmt struct {
	Var       string
	Container Expression
	Body      *StatementList
	Position  token.Position
}

func (n *ForStmt) Pos() token.Position { return n.Position }
func (n *ForStmt) stmtNode()           {}

// WhileStmt is a pre-test loop.
type WhileStmt struct {
	Cond     Expression
	Body     *StatementList
	Position token.Position
}

func (n *WhileStmt) Pos() token.Position { return n.Position }
func (n *WhileStmt) stmtNode()           {}

// BlockStmt executes a nested list, in a scope of its own only when the list
// introduces bindings.
type BlockStmt struct {
	Body     *StatementList
	Position token.Position
}

func (n *BlockStmt) Pos() token.Position { return n.Position }
func (n *BlockStmt) stmtNode()           {}

// HasNextStmt executes Body only when the enclosing for-each iteration is
// not the last one. Used to render separators.
type HasNextStmt struct {
	Body     *StatementList
	Position token.Position
}

func (n *HasNextStmt) Pos() token.Position { return n.Position }
func (n *HasNextStmt) stmtNode()           {}

// BreakStmt ends the innermost loop.
type BreakStmt struct {
	Position token.Position
}

func (n *BreakStmt) Pos() token.Position { return n.Position }
func (n *BreakStmt) stmtNode()           {}

// ContinueStmt skips to the next iteration of the innermost loop.
type ContinueStmt struct {
	Position token.Position
}

func (n *ContinueStmt) Pos() token.Position { return n.Position }
func (n *ContinueStmt) stmtNode()           {}

// ReturnStmt leaves the current subroutine. Value, when set, is delivered to
// the call's result binding.
type ReturnStmt struct {
	Value    Expression // may be nil
	Position token.Position
}

func (n *ReturnStmt) Pos() token.Position { return n.Position }
func (n *ReturnStmt) stmtNode()           {}

// ExitStmt raises the Exit condition with Code as its level.
type ExitStmt struct {
	Code     int
	Position token.Position
}

func (n *ExitStmt) Pos() token.Position { return n.Position }
func (n *ExitStmt) stmtNode()           {}

// ThrowStmt raises an Internal error carrying the text of Message.
type ThrowStmt struct {
	Message  Expression
	Position token.Position
}

func (n *ThrowStmt) Pos() token.Position { return n.Position }
func (n *ThrowStmt) stmtNode()           {}

// OnErrorStmt is a recovery landing pad. It is skipped during normal
// execution and only runs when a preceding sibling statement raised an error
// it catches.
type OnErrorStmt struct {
	Kind     scripterr.Kind
	Level    int
	Body     *StatementList
	Position token.Position
}

func (n *OnErrorStmt) Pos() token.Position { return n.Position }
func (n *OnErrorStmt) stmtNode()           {}

// ---------------------------------------------------------------------------
// Subroutine calls
// ---------------------------------------------------------------------------

// ActualArg binds a value to a formal argument by name.
type ActualArg struct {
	Name     string
	Value    Expression
	Position token.Position
}

func (n *ActualArg) Pos() token.Position { return n.Position }

// CallStmt calls a subroutine. NameExpr, when set, is evaluated to obtain
// the subroutine name. Result, when set, receives the text the subroutine
// emits (or its return value) instead of the current output.
type CallStmt struct {
	Name     string
	NameExpr Expression
	Args     []*ActualArg
	Result   *DataAccess
	Position token.Position
}

func (n *CallStmt) Pos() token.Position { return n.Position }
func (n *CallStmt) stmtNode()           {}

// ---------------------------------------------------------------------------
// Threads
// ---------------------------------------------------------------------------

// ThreadStmt starts Body concurrently. Handle names the variable that holds
// the thread handle; an existing handle is cleared and reused.
type ThreadStmt struct {
	Handle   string
	Body     *StatementList
	Position token.Position
}

func (n *ThreadStmt) Pos() token.Position { return n.Position }
func (n *ThreadStmt) stmtNode()           {}

// ---------------------------------------------------------------------------
// Commands and files
// ---------------------------------------------------------------------------

// CmdStmt invokes an external command. Args[0] is the command; Out and Err
// name the sinks for the captured streams. NoWait starts the process in the
// background.
type CmdStmt struct {
	Args     []Expression
	Out      []*DataAccess
	Err      []*DataAccess
	NoWait   bool
	Position token.Position
}

func (n *CmdStmt) Pos() token.Position { return n.Position }
func (n *CmdStmt) stmtNode()           {}

// CdStmt changes the current directory.
type CdStmt struct {
	Path     Expression
	Position token.Position
}

func (n *CdStmt) Pos() token.Position { return n.Position }
func (n *CdStmt) stmtNode()           {}

// MoveStmt renames a file.
type MoveStmt struct {
	Src      Expression
	Dst      Expression
	Position token.Position
}

func (n *MoveStmt) Pos() token.Position { return n.Position }
func (n *MoveStmt) stmtNode()           {}

// CopyStmt copies a file.
type CopyStmt struct {
	Src      Expression
	Dst      Expression
	Position token.Position
}

func (n *CopyStmt) Pos() token.Position { return n.Position }
func (n *CopyStmt) stmtNode()           {}

// MkDirStmt creates a directory and its parents.
type MkDirStmt struct {
	Path     Expression
	Position token.Position
}

func (n *MkDirStmt) Pos() token.Position { return n.Position }
func (n *MkDirStmt) stmtNode()           {}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Text is constant text.
type Text struct {
	Value    string
	Position token.Position
}

func (n *Text) Pos() token.Position { return n.Position }
func (n *Text) exprNode()           {}

// NumberLit represents an integer or floating-point literal.
type NumberLit struct {
	Value    string // raw literal value, parsed at runtime
	IsFloat  bool
	Position token.Position
}

func (n *NumberLit) Pos() token.Position { return n.Position }
func (n *NumberLit) exprNode()           {}

// BoolLit represents true or false.
type BoolLit struct {
	Value    bool
	Position token.Position
}

func (n *BoolLit) Pos() token.Position { return n.Position }
func (n *BoolLit) exprNode()           {}

// NullLit represents null.
type NullLit struct {
	Position token.Position
}

func (n *NullLit) Pos() token.Position { return n.Position }
func (n *NullLit) exprNode()           {}

// Segment is one element of a data path: a variable, key, field or method
// name. Call marks a method call; Args are its arguments.
type Segment struct {
	Name string
	Call bool
	Args []Expression
}

// DataAccess addresses a value by a dotted path. The first segment names a
// variable of the current scope.
type DataAccess struct {
	Segments []*Segment
	Position token.Position
}

func (n *DataAccess) Pos() token.Position { return n.Position }
func (n *DataAccess) exprNode()           {}

// Name returns the first segment name.
func (n *DataAccess) Name() string {
	if len(n.Segments) == 0 {
		return ""
	}
	return n.Segments[0].Name
}

// IsBareName reports whether the path is a single name without a call.
func (n *DataAccess) IsBareName() bool {
	return len(n.Segments) == 1 && !n.Segments[0].Call
}

// String renders the path in dotted notation.
func (n *DataAccess) String() string {
	var sb strings.Builder
	for i, seg := range n.Segments {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(seg.Name)
		if seg.Call {
			sb.WriteString("()")
		}
	}
	return sb.String()
}

// SubText is a nested statement list whose emitted text is the value.
type SubText struct {
	Body     *StatementList
	Position token.Position
}

func (n *SubText) Pos() token.Position { return n.Position }
func (n *SubText) exprNode()           {}

// BinaryExpr represents left op right.
type BinaryExpr struct {
	Left     Expression
	Op       token.TokenType
	Right    Expression
	Position token.Position
}

func (n *BinaryExpr) Pos() token.Position { return n.Position }
func (n *BinaryExpr) exprNode()           {}

// UnaryExpr represents op operand (e.g. !x, -5).
type UnaryExpr struct {
	Op       token.TokenType
	Operand  Expression
	Position token.Position
}

func (n *UnaryExpr) Pos() token.Position { return n.Position }
func (n *UnaryExpr) exprNode()           {}

// ListLit represents [elem1, elem2, ...].
type ListLit struct {
	Elements []Expression
	Position token.Position
}

func (n *ListLit) Pos() token.Position { return n.Position }
func (n *ListLit) exprNode()           {}

// FilesetExpr lists the files matching Patterns below Base. Access, when
// set, is an additional directory prefix applied between the current
// directory and Base. With Expand the result holds one entry per matched
// file; without it the patterns are returned unresolved.
type FilesetExpr struct {
	Base     Expression // may be nil
	Access   Expression // may be nil
	Patterns []Expression
	Expand   bool
	Position token.Position
}

func (n *FilesetExpr) Pos() token.Position { return n.Position }
func (n *FilesetExpr) exprNode()           {}
