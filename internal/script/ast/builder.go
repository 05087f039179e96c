package ast

import (
	"fmt"
	"strings"

	"github.com/JzHartmut/jzcmd/internal/script/scripterr"
)

// Constructors for trees built in code. The loader and the tests use them;
// each returns exactly one node variant.

// List builds a statement list from stmts.
func List(stmts ...Statement) *StatementList {
	l := &StatementList{}
	for _, s := range stmts {
		l.Add(s)
	}
	return l
}

// Str returns a constant text expression.
func Str(s string) *Text { return &Text{Value: s} }

// Int returns an integer literal.
func Int(i int64) *NumberLit { return &NumberLit{Value: fmt.Sprint(i)} }

// Bool returns a boolean literal.
func Bool(b bool) *BoolLit { return &BoolLit{Value: b} }

// Sub returns a text-producing nested script.
func Sub(stmts ...Statement) *SubText { return &SubText{Body: List(stmts...)} }

// Path parses a dotted data path and panics on malformed input. Use
// ParsePath for untrusted input.
func Path(s string) *DataAccess {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// ParsePath parses "a.b.c" or "a.b().c" into a DataAccess. Segment names may
// not be empty; a trailing "()" marks a call without arguments.
func ParsePath(s string) (*DataAccess, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty data path")
	}
	da := &DataAccess{}
	for _, part := range strings.Split(s, ".") {
		part = strings.TrimSpace(part)
		seg := &Segment{Name: part}
		if strings.HasSuffix(part, "()") {
			seg.Name = strings.TrimSuffix(part, "()")
			seg.Call = true
		}
		if seg.Name == "" {
			return nil, fmt.Errorf("data path %q: empty segment", s)
		}
		da.Segments = append(da.Segments, seg)
	}
	return da, nil
}

// TextOf emits constant text.
func TextOf(s string) *TextStmt { return &TextStmt{Text: s} }

// Value emits the text of e.
func Value(e Expression) *ValueStmt { return &ValueStmt{Value: e} }

// Define defines a variable.
func Define(kind VarKind, name string, init Expression) *VarDef {
	return &VarDef{Kind: kind, Name: name, Init: init}
}

// Assign stores value into target.
func Assign(target string, value Expression) *AssignStmt {
	return &AssignStmt{Targets: []*DataAccess{Path(target)}, Value: value}
}

// AppendTo appends value to the buffer at target.
func AppendTo(target string, value Expression) *AssignStmt {
	return &AssignStmt{Targets: []*DataAccess{Path(target)}, Value: value, Append: true}
}

// Call calls name with the given named arguments.
func Call(name string, args ...*ActualArg) *CallStmt {
	return &CallStmt{Name: name, Args: args}
}

// Arg builds an actual argument.
func Arg(name string, value Expression) *ActualArg {
	return &ActualArg{Name: name, Value: value}
}

// Cmd invokes an external command with constant arguments.
func Cmd(argv ...string) *CmdStmt {
	c := &CmdStmt{}
	for _, a := range argv {
		c.Args = append(c.Args, Str(a))
	}
	return c
}

// OnError builds a handler of the given kind.
func OnError(kind string, level int, stmts ...Statement) *OnErrorStmt {
	k, err := scripterr.ParseKind(kind)
	if err != nil {
		panic(err)
	}
	return &OnErrorStmt{Kind: k, Level: level, Body: List(stmts...)}
}

// For iterates container binding name.
func For(name string, container Expression, stmts ...Statement) *ForStmt {
	return &ForStmt{Var: name, Container: container, Body: List(stmts...)}
}
