package executor

import (
	"fmt"
	"io"
	"strings"

	"github.com/JzHartmut/jzcmd/internal/script/ast"
	"github.com/JzHartmut/jzcmd/internal/script/scripterr"
	"github.com/JzHartmut/jzcmd/internal/script/variable"
)

// canonicalNewlines replaces every line break of s ("\r\n", "\n" or a lone
// "\r") with nl.
func canonicalNewlines(s, nl string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
			sb.WriteString(nl)
		case '\n':
			sb.WriteString(nl)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func (l *Level) writeText(out io.Writer, s string) error {
	return l.write(out, canonicalNewlines(s, l.exec.newline))
}

func (l *Level) write(out io.Writer, s string) error {
	if _, err := io.WriteString(out, s); err != nil {
		return scripterr.IO(err, "write output")
	}
	return nil
}

// execTextOutput renders the body into the target sink, or into the current
// output when the statement names none.
func (l *Level) execTextOutput(s *ast.TextOutputStmt, out io.Writer) error {
	if s.Target == nil {
		return l.execBlock(s.Body, out)
	}
	target, err := l.resolvePath(s.Target, false)
	if err != nil {
		return fmt.Errorf("<+%s>: %w", s.Target, err)
	}
	sink, ok := target.(io.Writer)
	if !ok {
		return scripterr.Internal("<+%s>: type %s not supported for text output", s.Target, variable.TypeName(target))
	}
	if s.Replace {
		buf, isBuf := sink.(*variable.Buffer)
		if !isBuf {
			return scripterr.Internal("<+%s>: only buffers can be replaced", s.Target)
		}
		buf.Clear()
	}
	return l.execBlock(s.Body, sink)
}

// execValue writes the text of a value, optionally through a format.
func (l *Level) execValue(s *ast.ValueStmt, out io.Writer) error {
	v, err := l.EvalObject(s.Value)
	if err != nil {
		return fmt.Errorf("<&%s>: %w", exprLabel(s.Value), err)
	}
	text := variable.ToString(v)
	if s.Format != "" {
		if buf, ok := v.(*variable.Buffer); ok {
			v = buf.String()
		}
		text = fmt.Sprintf(s.Format, v)
	}
	return l.write(out, text)
}

func exprLabel(x ast.Expression) string {
	if da, ok := x.(*ast.DataAccess); ok {
		return da.String()
	}
	return "..."
}
