package executor

import (
	"fmt"
	"strconv"

	"github.com/JzHartmut/jzcmd/internal/script/ast"
	"github.com/JzHartmut/jzcmd/internal/script/datapath"
	"github.com/JzHartmut/jzcmd/internal/script/fileset"
	"github.com/JzHartmut/jzcmd/internal/script/scripterr"
	"github.com/JzHartmut/jzcmd/internal/script/token"
	"github.com/JzHartmut/jzcmd/internal/script/variable"
)

// ---------------------------------------------------------------------------
// Expression evaluation
// ---------------------------------------------------------------------------

// EvalObject evaluates x to its value. Constant text is returned as is, data
// paths are resolved against the level's environment, nested text scripts
// run in a child level into a fresh buffer which is returned, and operator
// trees are evaluated left to right. A nil expression yields nil.
func (l *Level) EvalObject(x ast.Expression) (interface{}, error) {
	switch ex := x.(type) {
	case nil:
		return nil, nil

	case *ast.Text:
		return ex.Value, nil

	case *ast.NumberLit:
		if ex.IsFloat {
			f, err := strconv.ParseFloat(ex.Value, 64)
			if err != nil {
				return nil, scripterr.Internal("invalid float literal %q", ex.Value)
			}
			return f, nil
		}
		i, err := strconv.ParseInt(ex.Value, 10, 64)
		if err != nil {
			return nil, scripterr.Internal("invalid int literal %q", ex.Value)
		}
		return i, nil

	case *ast.BoolLit:
		return ex.Value, nil

	case *ast.NullLit:
		return nil, nil

	case *ast.DataAccess:
		return l.resolvePath(ex, false)

	case *ast.SubText:
		buf := variable.NewBuffer("")
		c := l.child()
		defer c.close()
		if err := unexpectedControl(c.Execute(ex.Body, buf)); err != nil {
			return nil, err
		}
		return buf, nil

	case *ast.BinaryExpr:
		return l.evalBinary(ex)

	case *ast.UnaryExpr:
		return l.evalUnary(ex)

	case *ast.ListLit:
		elems := make([]interface{}, len(ex.Elements))
		for i, elem := range ex.Elements {
			v, err := l.EvalObject(elem)
			if err != nil {
				return nil, fmt.Errorf("list element %d: %w", i, err)
			}
			elems[i] = v
		}
		return elems, nil

	case *ast.FilesetExpr:
		return l.evalFileset(ex)

	default:
		return nil, scripterr.Internal("unknown expression type %T", x)
	}
}

// EvalString evaluates x and converts the result to its text.
func (l *Level) EvalString(x ast.Expression) (string, error) {
	if t, ok := x.(*ast.Text); ok {
		return t.Value, nil
	}
	v, err := l.EvalObject(x)
	if err != nil {
		return "", err
	}
	if x == nil {
		return "", nil
	}
	return variable.ToString(v), nil
}

// evalCond evaluates a condition. Numbers and booleans keep their type through
// EvalObject, so the truth value is taken from the typed result directly.
func (l *Level) evalCond(x ast.Expression) (bool, error) {
	v, err := l.EvalObject(x)
	if err != nil {
		return false, err
	}
	return variable.IsTruthy(v), nil
}

// evalContainer evaluates the container of a for statement. Data paths are
// resolved with the container check.
func (l *Level) evalContainer(x ast.Expression) (interface{}, error) {
	if da, ok := x.(*ast.DataAccess); ok {
		return l.resolvePath(da, true)
	}
	v, err := l.EvalObject(x)
	if err != nil {
		return nil, err
	}
	if !variable.IsContainer(v) {
		return nil, scripterr.Internal("%s is not a container", variable.TypeName(v))
	}
	return v, nil
}

// ---------------------------------------------------------------------------
// Data paths
// ---------------------------------------------------------------------------

// segments evaluates the call arguments of a path.
func (l *Level) segments(da *ast.DataAccess) ([]datapath.Segment, error) {
	segs := make([]datapath.Segment, len(da.Segments))
	for i, s := range da.Segments {
		segs[i] = datapath.Segment{Name: s.Name, Call: s.Call}
		if len(s.Args) == 0 {
			continue
		}
		segs[i].Args = make([]interface{}, len(s.Args))
		for j, a := range s.Args {
			v, err := l.EvalObject(a)
			if err != nil {
				return nil, fmt.Errorf("%s argument %d: %w", s.Name, j+1, err)
			}
			segs[i].Args[j] = v
		}
	}
	return segs, nil
}

func (l *Level) resolvePath(da *ast.DataAccess, wantContainer bool) (interface{}, error) {
	segs, err := l.segments(da)
	if err != nil {
		return nil, err
	}
	return datapath.Resolve(l.env, segs, l.exec.allowPrivate, wantContainer)
}

func (l *Level) store(da *ast.DataAccess, val interface{}) error {
	segs, err := l.segments(da)
	if err != nil {
		return err
	}
	return datapath.Store(l.env, segs, val, true)
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

func (l *Level) evalBinary(ex *ast.BinaryExpr) (interface{}, error) {
	// Short-circuit for AND/OR.
	if ex.Op == token.TOKEN_AND || ex.Op == token.TOKEN_OR {
		left, err := l.evalCond(ex.Left)
		if err != nil {
			return nil, err
		}
		if ex.Op == token.TOKEN_AND && !left {
			return false, nil
		}
		if ex.Op == token.TOKEN_OR && left {
			return true, nil
		}
		return l.evalCond(ex.Right)
	}

	left, err := l.EvalObject(ex.Left)
	if err != nil {
		return nil, err
	}
	right, err := l.EvalObject(ex.Right)
	if err != nil {
		return nil, err
	}

	var res interface{}
	switch ex.Op {
	case token.TOKEN_PLUS, token.TOKEN_MINUS, token.TOKEN_STAR, token.TOKEN_SLASH, token.TOKEN_PERCENT:
		res, err = variable.Arith(arithOps[ex.Op], left, right)
	case token.TOKEN_EQ:
		return variable.Equal(left, right), nil
	case token.TOKEN_NEQ:
		return !variable.Equal(left, right), nil
	case token.TOKEN_GT, token.TOKEN_LT, token.TOKEN_GTE, token.TOKEN_LTE:
		var cmp int
		cmp, err = variable.Compare(left, right)
		if err == nil {
			res = compareResult(ex.Op, cmp)
		}
	default:
		return nil, scripterr.Internal("unknown binary operator %s", ex.Op)
	}
	if err != nil {
		return nil, scripterr.Internal("%v", err)
	}
	return res, nil
}

var arithOps = map[token.TokenType]byte{
	token.TOKEN_PLUS:    '+',
	token.TOKEN_MINUS:   '-',
	token.TOKEN_STAR:    '*',
	token.TOKEN_SLASH:   '/',
	token.TOKEN_PERCENT: '%',
}

func compareResult(op token.TokenType, cmp int) bool {
	switch op {
	case token.TOKEN_GT:
		return cmp > 0
	case token.TOKEN_LT:
		return cmp < 0
	case token.TOKEN_GTE:
		return cmp >= 0
	default:
		return cmp <= 0
	}
}

func (l *Level) evalUnary(ex *ast.UnaryExpr) (interface{}, error) {
	val, err := l.EvalObject(ex.Operand)
	if err != nil {
		return nil, err
	}

	switch ex.Op {
	case token.TOKEN_NOT:
		return !variable.ToBool(val), nil
	case token.TOKEN_MINUS:
		v, err := variable.Negate(val)
		if err != nil {
			return nil, scripterr.Internal("%v", err)
		}
		return v, nil
	default:
		return nil, scripterr.Internal("unknown unary operator %s", ex.Op)
	}
}

// ---------------------------------------------------------------------------
// Filesets
// ---------------------------------------------------------------------------

func (l *Level) evalFileset(ex *ast.FilesetExpr) (interface{}, error) {
	base, err := l.EvalString(ex.Base)
	if err != nil {
		return nil, fmt.Errorf("fileset base: %w", err)
	}
	access, err := l.EvalString(ex.Access)
	if err != nil {
		return nil, fmt.Errorf("fileset access: %w", err)
	}
	dir := l.currDir().Path()
	var out []interface{}
	for _, p := range ex.Patterns {
		pattern, err := l.EvalString(p)
		if err != nil {
			return nil, fmt.Errorf("fileset pattern: %w", err)
		}
		files, err := fileset.List(pattern, base, access, dir, ex.Expand)
		if err != nil {
			return nil, scripterr.IO(err, "fileset %s", pattern)
		}
		for _, f := range files {
			out = append(out, f)
		}
	}
	if out == nil {
		out = []interface{}{}
	}
	return out, nil
}
