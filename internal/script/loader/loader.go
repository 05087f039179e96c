// Package loader builds a script tree from a YAML document.
//
// A document has up to four top-level keys:
//
//	vars:         # script variables, initialized in order (var statements)
//	subroutines:  # [{name, args, body}]
//	classes:      # [{name, subroutines, classes}]
//	main:         # statement list
//
// Every statement is a mapping with exactly one key naming the statement
// (text, value, var, assign, append, if, for, while, call, cmd, ...) or one of
// the bare words nl, break, continue and return.
//
// In expression positions YAML scalars are literals: strings are text,
// numbers, booleans and null keep their type. Mappings build the other
// expressions: {path: "a.b()", args: [...]}, {sub: [statements]},
// {list: [...]}, {op: [left, "+", right]}, {not: x}, {neg: x} and
// {fileset: {...}}. Where a value is usually a variable (value, cond, the
// container of for, sinks and targets) a plain string is read as a data path.
package loader

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/JzHartmut/jzcmd/internal/script/ast"
	"github.com/JzHartmut/jzcmd/internal/script/token"
	"gopkg.in/yaml.v3"
)

// Error is a problem found at a source position.
type Error struct {
	Line    int
	Column  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d:%d: %s", e.Line, e.Column, e.Message)
}

// ErrorList collects all problems of one document.
type ErrorList []*Error

func (l ErrorList) Error() string {
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

// Load reads and parses the script file at path.
func Load(path string) (*ast.Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse builds a Script from data. file is recorded in node positions. All
// problems are reported together as an ErrorList.
func Parse(data []byte, file string) (*ast.Script, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, ErrorList{yamlError(err)}
	}
	l := &loader{file: file}
	s := ast.NewScript(file)
	if len(doc.Content) > 0 {
		l.script(doc.Content[0], s)
	}
	if len(l.errs) > 0 {
		return nil, l.errs
	}
	return s, nil
}

// yamlError converts a syntax error of the YAML decoder. Its messages read
// "yaml: line N: ...".
func yamlError(err error) *Error {
	msg := err.Error()
	e := &Error{Message: msg}
	rest := strings.TrimPrefix(msg, "yaml: ")
	if strings.HasPrefix(rest, "line ") {
		if num, tail, ok := strings.Cut(strings.TrimPrefix(rest, "line "), ":"); ok {
			if n, convErr := strconv.Atoi(num); convErr == nil {
				e.Line = n
				e.Message = strings.TrimSpace(tail)
			}
		}
	}
	return e
}

type loader struct {
	file string
	errs ErrorList
}

func (l *loader) errorf(n *yaml.Node, format string, args ...interface{}) {
	e := &Error{Message: fmt.Sprintf(format, args...)}
	if n != nil {
		e.Line, e.Column = n.Line, n.Column
	}
	l.errs = append(l.errs, e)
}

func (l *loader) pos(n *yaml.Node) token.Position {
	if n == nil {
		return token.Position{File: l.file}
	}
	return token.Position{File: l.file, Line: n.Line, Column: n.Column}
}

// fields returns the values of mapping n by key and reports keys not in
// allowed.
func (l *loader) fields(n *yaml.Node, what string, allowed ...string) map[string]*yaml.Node {
	out := make(map[string]*yaml.Node)
	if n.Kind != yaml.MappingNode {
		l.errorf(n, "%s must be a mapping", what)
		return out
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if !contains(allowed, k.Value) {
			l.errorf(k, "%s: unknown key %q", what, k.Value)
			continue
		}
		out[k.Value] = v
	}
	return out
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func isNull(n *yaml.Node) bool {
	return n == nil || (n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null")
}

func (l *loader) str(n *yaml.Node, what string) string {
	if n == nil {
		return ""
	}
	if n.Kind != yaml.ScalarNode {
		l.errorf(n, "%s must be a scalar", what)
		return ""
	}
	return n.Value
}

func (l *loader) integer(n *yaml.Node, what string) int {
	if isNull(n) {
		return 0
	}
	var v int
	if err := n.Decode(&v); err != nil {
		l.errorf(n, "%s must be an integer", what)
	}
	return v
}

func (l *loader) boolean(n *yaml.Node, what string) bool {
	if isNull(n) {
		return false
	}
	var v bool
	if err := n.Decode(&v); err != nil {
		l.errorf(n, "%s must be true or false", what)
	}
	return v
}

// ---------------------------------------------------------------------------
// Script structure
// ---------------------------------------------------------------------------

func (l *loader) script(n *yaml.Node, s *ast.Script) {
	if isNull(n) {
		return
	}
	f := l.fields(n, "script", "vars", "subroutines", "classes", "main")
	if v := f["vars"]; v != nil {
		for _, st := range l.stmtList(v).Statements {
			def, ok := st.(*ast.VarDef)
			if !ok {
				p := st.Pos()
				l.errs = append(l.errs, &Error{Line: p.Line, Column: p.Column, Message: "vars: only var statements are allowed"})
				continue
			}
			s.AddVar(def)
		}
	}
	l.classBody(f["subroutines"], f["classes"], s.Root)
	if m := f["main"]; m != nil {
		s.Main = l.stmtList(m)
	}
}

func (l *loader) classBody(subs, classes *yaml.Node, c *ast.Class) {
	for _, sn := range l.seq(subs, "subroutines") {
		sub := l.subroutine(sn)
		if sub == nil {
			continue
		}
		if err := c.AddSubroutine(sub); err != nil {
			l.errorf(sn, "%v", err)
		}
	}
	for _, cn := range l.seq(classes, "classes") {
		f := l.fields(cn, "class", "name", "subroutines", "classes")
		name := l.str(f["name"], "class name")
		if name == "" {
			l.errorf(cn, "class without name")
			continue
		}
		nested := ast.NewClass(name)
		nested.Position = l.pos(cn)
		if err := c.AddClass(nested); err != nil {
			l.errorf(cn, "%v", err)
			continue
		}
		l.classBody(f["subroutines"], f["classes"], nested)
	}
}

func (l *loader) seq(n *yaml.Node, what string) []*yaml.Node {
	if isNull(n) {
		return nil
	}
	if n.Kind != yaml.SequenceNode {
		l.errorf(n, "%s must be a sequence", what)
		return nil
	}
	return n.Content
}

func (l *loader) subroutine(n *yaml.Node) *ast.Subroutine {
	f := l.fields(n, "subroutine", "name", "args", "body")
	name := l.str(f["name"], "subroutine name")
	if name == "" {
		l.errorf(n, "subroutine without name")
		return nil
	}
	sub := &ast.Subroutine{Name: name, Position: l.pos(n), Body: l.stmtList(f["body"])}
	for _, an := range l.seq(f["args"], "args") {
		if an.Kind == yaml.ScalarNode {
			sub.Args = append(sub.Args, &ast.FormalArg{Name: an.Value, Position: l.pos(an)})
			continue
		}
		af := l.fields(an, "argument", "name", "kind", "default")
		arg := &ast.FormalArg{Name: l.str(af["name"], "argument name"), Position: l.pos(an)}
		arg.Kind = l.varKind(af["kind"])
		if d, ok := af["default"]; ok {
			arg.Default = l.expr(d)
		}
		if arg.Name == "" {
			l.errorf(an, "argument without name")
			continue
		}
		if sub.Formal(arg.Name) != nil {
			l.errorf(an, "argument %q declared twice", arg.Name)
			continue
		}
		sub.Args = append(sub.Args, arg)
	}
	return sub
}

func (l *loader) varKind(n *yaml.Node) ast.VarKind {
	if n == nil {
		return ast.VarObject
	}
	k, ok := ast.ParseVarKind(l.str(n, "kind"))
	if !ok {
		l.errorf(n, "unknown variable kind %q", n.Value)
	}
	return k
}
