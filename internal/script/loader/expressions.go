package loader

import (
	"strconv"

	"github.com/JzHartmut/jzcmd/internal/script/ast"
	"github.com/JzHartmut/jzcmd/internal/script/token"
	"gopkg.in/yaml.v3"
)

type tokenPos = token.Position

// expr reads an expression. Plain strings are text.
func (l *loader) expr(n *yaml.Node) ast.Expression {
	pos := l.pos(n)
	switch n.Kind {
	case yaml.AliasNode:
		return l.expr(n.Alias)
	case yaml.ScalarNode:
		return l.scalar(n)
	case yaml.SequenceNode:
		list := &ast.ListLit{Position: pos}
		for _, c := range n.Content {
			list.Elements = append(list.Elements, l.expr(c))
		}
		return list
	case yaml.MappingNode:
		return l.exprMap(n)
	}
	l.errorf(n, "unexpected expression")
	return &ast.NullLit{Position: pos}
}

// pathOrExpr reads plain strings as data paths and everything else as expr
// does.
func (l *loader) pathOrExpr(n *yaml.Node) ast.Expression {
	if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!str" {
		return l.path(n)
	}
	return l.expr(n)
}

func (l *loader) scalar(n *yaml.Node) ast.Expression {
	pos := l.pos(n)
	switch n.ShortTag() {
	case "!!null":
		return &ast.NullLit{Position: pos}
	case "!!bool":
		return &ast.BoolLit{Value: l.boolean(n, "boolean"), Position: pos}
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			l.errorf(n, "bad integer %q", n.Value)
		}
		return &ast.NumberLit{Value: strconv.FormatInt(i, 10), Position: pos}
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			l.errorf(n, "bad number %q", n.Value)
		}
		return &ast.NumberLit{Value: strconv.FormatFloat(f, 'g', -1, 64), IsFloat: true, Position: pos}
	}
	return &ast.Text{Value: n.Value, Position: pos}
}

func (l *loader) exprMap(n *yaml.Node) ast.Expression {
	pos := l.pos(n)
	if hasKey(n, "path") {
		f := l.fields(n, "path", "path", "args")
		da := l.path(f["path"])
		if a := f["args"]; a != nil {
			last := da.Segments[len(da.Segments)-1]
			last.Call = true
			for _, c := range l.seq(a, "args") {
				last.Args = append(last.Args, l.expr(c))
			}
		}
		return da
	}
	if len(n.Content) != 2 {
		l.errorf(n, "expression must be a mapping with exactly one key")
		return &ast.NullLit{Position: pos}
	}
	key, v := n.Content[0], n.Content[1]
	switch key.Value {
	case "text":
		return &ast.Text{Value: l.str(v, "text"), Position: pos}
	case "sub":
		return &ast.SubText{Body: l.stmtList(v), Position: pos}
	case "list":
		list := &ast.ListLit{Position: pos}
		for _, c := range l.seq(v, "list") {
			list.Elements = append(list.Elements, l.expr(c))
		}
		return list
	case "op":
		parts := l.seq(v, "op")
		if len(parts) != 3 {
			l.errorf(v, "op needs [left, operator, right]")
			return &ast.NullLit{Position: pos}
		}
		op := token.OperatorLookup(l.str(parts[1], "operator"))
		if op == token.TOKEN_ILLEGAL || op == token.TOKEN_NOT {
			l.errorf(parts[1], "unknown binary operator %q", parts[1].Value)
		}
		return &ast.BinaryExpr{Left: l.pathOrExpr(parts[0]), Op: op, Right: l.pathOrExpr(parts[2]), Position: pos}
	case "not":
		return &ast.UnaryExpr{Op: token.TOKEN_NOT, Operand: l.pathOrExpr(v), Position: pos}
	case "neg":
		return &ast.UnaryExpr{Op: token.TOKEN_MINUS, Operand: l.pathOrExpr(v), Position: pos}
	case "fileset":
		return l.fileset(v, pos)
	}
	l.errorf(key, "unknown expression %q", key.Value)
	return &ast.NullLit{Position: pos}
}

func (l *loader) fileset(v *yaml.Node, pos tokenPos) ast.Expression {
	f := l.fields(v, "fileset", "base", "access", "patterns", "expand")
	fs := &ast.FilesetExpr{Expand: l.boolean(f["expand"], "expand"), Position: pos}
	if b := f["base"]; b != nil {
		fs.Base = l.expr(b)
	}
	if a := f["access"]; a != nil {
		fs.Access = l.expr(a)
	}
	p := f["patterns"]
	switch {
	case p == nil:
		l.errorf(v, "fileset without patterns")
	case p.Kind == yaml.ScalarNode:
		fs.Patterns = append(fs.Patterns, l.expr(p))
	default:
		for _, c := range l.seq(p, "patterns") {
			fs.Patterns = append(fs.Patterns, l.expr(c))
		}
	}
	return fs
}

// path parses a data path. On error a placeholder path is returned so
// loading can go on and report further problems.
func (l *loader) path(n *yaml.Node) *ast.DataAccess {
	s := l.str(n, "data path")
	da, err := ast.ParsePath(s)
	if err != nil {
		l.errorf(n, "%v", err)
		da = &ast.DataAccess{Segments: []*ast.Segment{{Name: "_"}}}
	}
	da.Position = l.pos(n)
	return da
}

// paths reads one path or a sequence of them.
func (l *loader) paths(n *yaml.Node, what string) []*ast.DataAccess {
	if isNull(n) {
		return nil
	}
	if n.Kind == yaml.ScalarNode {
		return []*ast.DataAccess{l.path(n)}
	}
	var out []*ast.DataAccess
	for _, c := range l.seq(n, what) {
		out = append(out, l.path(c))
	}
	return out
}
