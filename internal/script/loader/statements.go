package loader

import (
	"github.com/JzHartmut/jzcmd/internal/script/ast"
	"github.com/JzHartmut/jzcmd/internal/script/scripterr"
	"gopkg.in/yaml.v3"
)

func (l *loader) stmtList(n *yaml.Node) *ast.StatementList {
	list := &ast.StatementList{Position: l.pos(n)}
	for _, c := range l.seq(n, "statement list") {
		if s := l.stmt(c); s != nil {
			list.Add(s)
		}
	}
	return list
}

// optList is stmtList for optional bodies: a missing node yields nil.
func (l *loader) optList(n *yaml.Node) *ast.StatementList {
	if n == nil {
		return nil
	}
	return l.stmtList(n)
}

func (l *loader) stmt(n *yaml.Node) ast.Statement {
	pos := l.pos(n)
	if n.Kind == yaml.ScalarNode {
		switch n.Value {
		case "nl":
			return &ast.NewlineStmt{Position: pos}
		case "break":
			return &ast.BreakStmt{Position: pos}
		case "continue":
			return &ast.ContinueStmt{Position: pos}
		case "return":
			return &ast.ReturnStmt{Position: pos}
		}
		l.errorf(n, "unknown statement %q", n.Value)
		return nil
	}
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		l.errorf(n, "statement must be a mapping with exactly one key")
		return nil
	}
	key, v := n.Content[0], n.Content[1]

	switch key.Value {
	case "text":
		return &ast.TextStmt{Text: l.str(v, "text"), Position: pos}
	case "nl":
		return &ast.NewlineStmt{Position: pos}
	case "value":
		return l.valueStmt(v, pos)
	case "out":
		f := l.fields(v, "out", "to", "replace", "body")
		st := &ast.TextOutputStmt{Replace: l.boolean(f["replace"], "replace"), Body: l.stmtList(f["body"]), Position: pos}
		if to := f["to"]; to != nil {
			st.Target = l.path(to)
		}
		return st
	case "var":
		return l.varDef(v, pos)
	case "assign", "append":
		f := l.fields(v, key.Value, "to", "value")
		st := &ast.AssignStmt{Targets: l.paths(f["to"], "to"), Append: key.Value == "append", Position: pos}
		if len(st.Targets) == 0 {
			l.errorf(v, "%s without target", key.Value)
		}
		st.Value = l.requiredExpr(v, f["value"], "value")
		return st
	case "if":
		return l.ifStmt(v, pos)
	case "for":
		f := l.fields(v, "for", "var", "in", "body")
		st := &ast.ForStmt{Var: l.str(f["var"], "var"), Body: l.stmtList(f["body"]), Position: pos}
		if st.Var == "" {
			l.errorf(v, "for without var")
		}
		if in := f["in"]; in != nil {
			st.Container = l.pathOrExpr(in)
		} else {
			l.errorf(v, "for without in")
		}
		return st
	case "while":
		f := l.fields(v, "while", "cond", "body")
		return &ast.WhileStmt{Cond: l.cond(v, f["cond"]), Body: l.stmtList(f["body"]), Position: pos}
	case "block":
		return &ast.BlockStmt{Body: l.stmtList(v), Position: pos}
	case "hasNext":
		return &ast.HasNextStmt{Body: l.stmtList(v), Position: pos}
	case "break":
		return &ast.BreakStmt{Position: pos}
	case "continue":
		return &ast.ContinueStmt{Position: pos}
	case "return":
		st := &ast.ReturnStmt{Position: pos}
		if !isNull(v) {
			st.Value = l.pathOrExpr(v)
		}
		return st
	case "exit":
		return &ast.ExitStmt{Code: l.integer(v, "exit code"), Position: pos}
	case "throw":
		return &ast.ThrowStmt{Message: l.expr(v), Position: pos}
	case "onerror":
		return l.onError(v, pos)
	case "call":
		return l.call(v, pos)
	case "thread":
		f := l.fields(v, "thread", "handle", "body")
		return &ast.ThreadStmt{Handle: l.str(f["handle"], "handle"), Body: l.stmtList(f["body"]), Position: pos}
	case "cmd":
		return l.cmd(v, pos)
	case "cd":
		return &ast.CdStmt{Path: l.expr(v), Position: pos}
	case "mkdir":
		return &ast.MkDirStmt{Path: l.expr(v), Position: pos}
	case "move", "copy":
		f := l.fields(v, key.Value, "from", "to")
		src := l.requiredExpr(v, f["from"], "from")
		dst := l.requiredExpr(v, f["to"], "to")
		if key.Value == "move" {
			return &ast.MoveStmt{Src: src, Dst: dst, Position: pos}
		}
		return &ast.CopyStmt{Src: src, Dst: dst, Position: pos}
	}
	l.errorf(key, "unknown statement %q", key.Value)
	return nil
}

func (l *loader) valueStmt(v *yaml.Node, pos tokenPos) ast.Statement {
	if v.Kind == yaml.MappingNode && hasKey(v, "expr") {
		f := l.fields(v, "value", "expr", "format")
		return &ast.ValueStmt{Value: l.pathOrExpr(f["expr"]), Format: l.str(f["format"], "format"), Position: pos}
	}
	return &ast.ValueStmt{Value: l.pathOrExpr(v), Position: pos}
}

func (l *loader) varDef(v *yaml.Node, pos tokenPos) ast.Statement {
	f := l.fields(v, "var", "name", "kind", "init", "const")
	def := &ast.VarDef{
		Name:     l.str(f["name"], "name"),
		Kind:     l.varKind(f["kind"]),
		Const:    l.boolean(f["const"], "const"),
		Position: pos,
	}
	if def.Name == "" {
		l.errorf(v, "var without name")
	}
	if init, ok := f["init"]; ok {
		def.Init = l.expr(init)
	}
	return def
}

func (l *loader) ifStmt(v *yaml.Node, pos tokenPos) ast.Statement {
	f := l.fields(v, "if", "cond", "then", "elsif", "else")
	st := &ast.IfStmt{Position: pos}
	st.Branches = append(st.Branches, &ast.CondBlock{Cond: l.cond(v, f["cond"]), Body: l.stmtList(f["then"]), Position: pos})
	for _, en := range l.seq(f["elsif"], "elsif") {
		ef := l.fields(en, "elsif", "cond", "then")
		st.Branches = append(st.Branches, &ast.CondBlock{Cond: l.cond(en, ef["cond"]), Body: l.stmtList(ef["then"]), Position: l.pos(en)})
	}
	st.Else = l.optList(f["else"])
	return st
}

func (l *loader) onError(v *yaml.Node, pos tokenPos) ast.Statement {
	f := l.fields(v, "onerror", "kind", "level", "body")
	kind, err := scripterr.ParseKind(l.str(f["kind"], "kind"))
	if err != nil {
		l.errorf(f["kind"], "%v", err)
	}
	return &ast.OnErrorStmt{Kind: kind, Level: l.integer(f["level"], "level"), Body: l.stmtList(f["body"]), Position: pos}
}

func (l *loader) call(v *yaml.Node, pos tokenPos) ast.Statement {
	st := &ast.CallStmt{Position: pos}
	if v.Kind == yaml.ScalarNode {
		st.Name = v.Value
		return st
	}
	f := l.fields(v, "call", "name", "nameExpr", "args", "result")
	st.Name = l.str(f["name"], "name")
	if ne := f["nameExpr"]; ne != nil {
		st.NameExpr = l.pathOrExpr(ne)
	}
	if (st.Name == "") == (st.NameExpr == nil) {
		l.errorf(v, "call needs exactly one of name and nameExpr")
	}
	if a := f["args"]; a != nil {
		if a.Kind != yaml.MappingNode {
			l.errorf(a, "args must be a mapping")
		} else {
			for i := 0; i+1 < len(a.Content); i += 2 {
				k, val := a.Content[i], a.Content[i+1]
				st.Args = append(st.Args, &ast.ActualArg{Name: k.Value, Value: l.expr(val), Position: l.pos(k)})
			}
		}
	}
	if r := f["result"]; r != nil {
		st.Result = l.path(r)
	}
	return st
}

func (l *loader) cmd(v *yaml.Node, pos tokenPos) ast.Statement {
	st := &ast.CmdStmt{Position: pos}
	args := v
	if v.Kind == yaml.MappingNode {
		f := l.fields(v, "cmd", "args", "out", "err", "nowait")
		args = f["args"]
		st.Out = l.paths(f["out"], "out")
		st.Err = l.paths(f["err"], "err")
		st.NoWait = l.boolean(f["nowait"], "nowait")
	}
	for _, a := range l.seq(args, "cmd args") {
		st.Args = append(st.Args, l.expr(a))
	}
	if len(st.Args) == 0 {
		l.errorf(v, "cmd without command")
	}
	return st
}

func (l *loader) cond(parent, n *yaml.Node) ast.Expression {
	if n == nil {
		l.errorf(parent, "missing cond")
		return &ast.BoolLit{Value: false, Position: l.pos(parent)}
	}
	return l.pathOrExpr(n)
}

func (l *loader) requiredExpr(parent, n *yaml.Node, what string) ast.Expression {
	if n == nil {
		l.errorf(parent, "missing %s", what)
		return &ast.NullLit{Position: l.pos(parent)}
	}
	return l.expr(n)
}

func hasKey(n *yaml.Node, key string) bool {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return true
		}
	}
	return false
}
