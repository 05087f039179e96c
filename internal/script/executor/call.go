package executor

import (
	"errors"
	"fmt"
	"io"

	"github.com/JzHartmut/jzcmd/internal/script/ast"
	"github.com/JzHartmut/jzcmd/internal/script/scripterr"
	"github.com/JzHartmut/jzcmd/internal/script/thread"
	"github.com/JzHartmut/jzcmd/internal/script/variable"
)

// execCall resolves the subroutine, evaluates the actual arguments in the
// caller's level and runs the body in a level that only sees the script
// globals. With a result binding the emitted text (or the returned value)
// is stored there instead of being written to out.
func (l *Level) execCall(s *ast.CallStmt, out io.Writer) error {
	name := s.Name
	if s.NameExpr != nil {
		n, err := l.EvalString(s.NameExpr)
		if err != nil {
			return fmt.Errorf("call: name: %w", err)
		}
		name = n
	}
	sub, ok := l.exec.script.Lookup(name)
	if !ok {
		return scripterr.NotFound("call: subroutine %q not found", name)
	}

	args := make(map[string]interface{}, len(s.Args))
	for _, a := range s.Args {
		if sub.Formal(a.Name) == nil {
			return scripterr.Internal("call %s: argument %q is not declared", sub.QualifiedName(), a.Name)
		}
		v, err := l.EvalObject(a.Value)
		if err != nil {
			return fmt.Errorf("call %s: argument %s: %w", sub.QualifiedName(), a.Name, err)
		}
		args[a.Name] = v
	}

	sink := out
	var captured *variable.Buffer
	if s.Result != nil {
		captured = variable.NewBuffer("")
		sink = captured
	}

	callee := newLevel(l.exec, variable.NewEnvironment(l.exec.globals))
	callee.thread = l.thread
	ret, err := callee.invoke(sub, args, sink)
	if err != nil {
		return err
	}
	if s.Result == nil {
		return nil
	}
	if ret == nil {
		ret = captured
	}
	if err := l.assign(s.Result, ret, false); err != nil {
		return fmt.Errorf("call %s: result %s: %w", sub.QualifiedName(), s.Result, err)
	}
	return nil
}

// invoke binds args to the formal arguments of sub in the receiver's
// environment and executes the body. It returns the value of a return
// statement, or nil.
func (l *Level) invoke(sub *ast.Subroutine, args map[string]interface{}, out io.Writer) (interface{}, error) {
	defer l.close()
	for name := range args {
		if sub.Formal(name) == nil {
			return nil, scripterr.Internal("call %s: argument %q is not declared", sub.QualifiedName(), name)
		}
	}
	for _, f := range sub.Args {
		val, supplied := args[f.Name]
		if !supplied {
			switch {
			case f.Default != nil:
				v, err := l.EvalObject(f.Default)
				if err != nil {
					return nil, fmt.Errorf("call %s: default of %s: %w", sub.QualifiedName(), f.Name, err)
				}
				val = v
			case l.exec.missingArg == MissingArgError:
				return nil, scripterr.Internal("argument %q missing on call of %s", f.Name, sub.QualifiedName())
			case l.exec.missingArg == MissingArgWarn:
				l.exec.logf("WARN", "argument %q missing on call of %s", f.Name, sub.QualifiedName())
			}
		}
		kind, v, err := bindArg(f, val)
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", sub.QualifiedName(), err)
		}
		if err := l.env.Define(f.Name, kind, v); err != nil {
			return nil, err
		}
	}

	err := l.Execute(sub.Body, out)
	var rv *ReturnValue
	switch {
	case err == nil:
		return nil, nil
	case errors.As(err, &rv):
		if rv.Set {
			return rv.Value, nil
		}
		return nil, nil
	case errors.Is(err, ErrBreak), errors.Is(err, ErrContinue):
		return nil, scripterr.Internal("%s: %v outside of a loop", sub.QualifiedName(), err)
	}
	return nil, err
}

// bindArg converts an argument value to the declared kind of the formal.
func bindArg(f *ast.FormalArg, val interface{}) (variable.Kind, interface{}, error) {
	switch f.Kind {
	case ast.VarString:
		if val == nil {
			return variable.KindString, nil, nil
		}
		return variable.KindString, variable.ToString(val), nil
	case ast.VarBuffer, ast.VarPipe:
		// A passed buffer is shared so the callee can append to it.
		if buf, ok := val.(*variable.Buffer); ok {
			return variable.KindBuffer, buf, nil
		}
		buf := variable.NewBuffer("")
		if val != nil {
			buf.WriteString(variable.ToString(val))
		}
		return variable.KindBuffer, buf, nil
	case ast.VarList:
		if val != nil && !variable.IsContainer(val) {
			return 0, nil, scripterr.Internal("argument %s is not a container but %s", f.Name, variable.TypeName(val))
		}
		return variable.KindList, val, nil
	case ast.VarThread:
		if _, ok := val.(*thread.Handle); val != nil && !ok {
			return 0, nil, scripterr.Internal("argument %s is not a thread but %s", f.Name, variable.TypeName(val))
		}
		return variable.KindThread, val, nil
	case ast.VarOpenFile:
		return variable.KindOpenFile, val, nil
	}
	return variable.KindObject, val, nil
}
