// Package validate checks a script without running it and reports problems
// in a structured, JSON-friendly form.
package validate

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/JzHartmut/jzcmd/internal/script/ast"
	"github.com/JzHartmut/jzcmd/internal/script/loader"
)

// Severities of a ValidationError.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ValidationError describes a single problem found during validation.
type ValidationError struct {
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Severity string `json:"severity"` // "error" or "warning"
	Message  string `json:"message"`
	Context  string `json:"context,omitempty"` // source line for reference
}

// ValidationResult is the outcome of validating a script source.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidateSource loads source and checks the resulting tree: calls must name
// existing subroutines with declared arguments, required arguments should be
// supplied, and hasNext, break, continue and onerror should appear where
// they can take effect.
func ValidateSource(source, file string) *ValidationResult {
	result := &ValidationResult{Valid: true}
	lines := strings.Split(source, "\n")

	script, err := loader.Parse([]byte(source), file)
	if err != nil {
		var list loader.ErrorList
		if !errors.As(err, &list) {
			list = loader.ErrorList{{Message: err.Error()}}
		}
		for _, le := range list {
			result.Errors = append(result.Errors, ValidationError{
				Line:     le.Line,
				Column:   le.Column,
				Severity: SeverityError,
				Message:  le.Message,
				Context:  contextLine(lines, le.Line),
			})
		}
		result.Valid = false
		return result
	}

	c := &checker{script: script}
	for _, v := range script.Vars {
		c.expr(v.Init, scope{})
	}
	script.Walk(func(sub *ast.Subroutine) {
		for _, a := range sub.Args {
			c.expr(a.Default, scope{})
		}
		c.list(sub.Body, scope{})
	})
	c.list(script.Main, scope{})

	sort.SliceStable(c.found, func(i, j int) bool {
		if c.found[i].Line != c.found[j].Line {
			return c.found[i].Line < c.found[j].Line
		}
		return c.found[i].Column < c.found[j].Column
	})
	for _, f := range c.found {
		f.Context = contextLine(lines, f.Line)
		if f.Severity == SeverityError {
			result.Valid = false
		}
		result.Errors = append(result.Errors, f)
	}
	return result
}

// ValidateFile reads the given file path and validates its contents.
func ValidateFile(path string) (*ValidationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ValidateSource(string(data), path), nil
}

// contextLine returns the source line at the given 1-based line number, or ""
// if out of range.
func contextLine(lines []string, line int) string {
	if line > 0 && line <= len(lines) {
		return lines[line-1]
	}
	return ""
}

type scope struct {
	inLoop bool
	inFor  bool
}

type checker struct {
	script *ast.Script
	found  []ValidationError
}

func (c *checker) report(n ast.Node, severity, format string, args ...interface{}) {
	p := n.Pos()
	c.found = append(c.found, ValidationError{
		Line:     p.Line,
		Column:   p.Column,
		Severity: severity,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (c *checker) list(l *ast.StatementList, sc scope) {
	if l == nil {
		return
	}
	for i, st := range l.Statements {
		if _, ok := st.(*ast.OnErrorStmt); ok && i == 0 {
			c.report(st, SeverityWarning, "onerror without a preceding statement never runs")
		}
		c.stmt(st, sc)
	}
}

func (c *checker) stmt(st ast.Statement, sc scope) {
	switch s := st.(type) {
	case *ast.ValueStmt:
		c.expr(s.Value, sc)
	case *ast.TextOutputStmt:
		c.list(s.Body, sc)
	case *ast.VarDef:
		c.expr(s.Init, sc)
	case *ast.AssignStmt:
		c.expr(s.Value, sc)
	case *ast.IfStmt:
		for _, b := range s.Branches {
			c.expr(b.Cond, sc)
			c.list(b.Body, sc)
		}
		c.list(s.Else, sc)
	case *ast.ForStmt:
		c.expr(s.Container, sc)
		c.list(s.Body, scope{inLoop: true, inFor: true})
	case *ast.WhileStmt:
		c.expr(s.Cond, sc)
		c.list(s.Body, scope{inLoop: true, inFor: sc.inFor})
	case *ast.BlockStmt:
		c.list(s.Body, sc)
	case *ast.HasNextStmt:
		if !sc.inFor {
			c.report(s, SeverityWarning, "hasNext outside of a for loop")
		}
		c.list(s.Body, sc)
	case *ast.BreakStmt:
		if !sc.inLoop {
			c.report(s, SeverityWarning, "break outside of a loop")
		}
	case *ast.ContinueStmt:
		if !sc.inLoop {
			c.report(s, SeverityWarning, "continue outside of a loop")
		}
	case *ast.ReturnStmt:
		c.expr(s.Value, sc)
	case *ast.ThrowStmt:
		c.expr(s.Message, sc)
	case *ast.OnErrorStmt:
		c.list(s.Body, sc)
	case *ast.CallStmt:
		c.call(s, sc)
	case *ast.ThreadStmt:
		c.list(s.Body, scope{})
	case *ast.CmdStmt:
		for _, a := range s.Args {
			c.expr(a, sc)
		}
	case *ast.CdStmt:
		c.expr(s.Path, sc)
	case *ast.MkDirStmt:
		c.expr(s.Path, sc)
	case *ast.MoveStmt:
		c.expr(s.Src, sc)
		c.expr(s.Dst, sc)
	case *ast.CopyStmt:
		c.expr(s.Src, sc)
		c.expr(s.Dst, sc)
	}
}

func (c *checker) call(s *ast.CallStmt, sc scope) {
	for _, a := range s.Args {
		c.expr(a.Value, sc)
	}
	if s.NameExpr != nil {
		c.expr(s.NameExpr, sc)
		return
	}
	sub, ok := c.script.Lookup(s.Name)
	if !ok {
		c.report(s, SeverityError, "undefined subroutine %q", s.Name)
		return
	}
	supplied := make(map[string]bool, len(s.Args))
	for _, a := range s.Args {
		supplied[a.Name] = true
		if sub.Formal(a.Name) == nil {
			c.report(a, SeverityError, "subroutine %q has no argument %q", s.Name, a.Name)
		}
	}
	for _, f := range sub.Args {
		if f.Default == nil && !supplied[f.Name] {
			c.report(s, SeverityWarning, "call of %q does not supply required argument %q", s.Name, f.Name)
		}
	}
}

// expr descends into nested text scripts and method arguments.
func (c *checker) expr(e ast.Expression, sc scope) {
	switch x := e.(type) {
	case *ast.SubText:
		c.list(x.Body, sc)
	case *ast.DataAccess:
		for _, seg := range x.Segments {
			for _, a := range seg.Args {
				c.expr(a, sc)
			}
		}
	case *ast.BinaryExpr:
		c.expr(x.Left, sc)
		c.expr(x.Right, sc)
	case *ast.UnaryExpr:
		c.expr(x.Operand, sc)
	case *ast.ListLit:
		for _, el := range x.Elements {
			c.expr(el, sc)
		}
	case *ast.FilesetExpr:
		c.expr(x.Base, sc)
		c.expr(x.Access, sc)
		for _, p := range x.Patterns {
			c.expr(p, sc)
		}
	}
}
