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

// Level is one activation frame: a variable environment plus the statement
// lists executed against it. Blocks that define variables, loop iterations,
// subroutine calls and threads get a Level of their own.
type Level struct {
	exec    *Executor
	parent  *Level
	env     *variable.Environment
	hasNext *bool          // iteration state of the innermost for loop
	thread  *thread.Handle // set inside thread bodies
	files   []*variable.OpenFile
}

func newLevel(e *Executor, env *variable.Environment) *Level {
	return &Level{exec: e, env: env}
}

// child creates a nested scope that sees the receiver's bindings.
func (l *Level) child() *Level {
	return &Level{
		exec:    l.exec,
		parent:  l,
		env:     variable.NewEnvironment(l.env),
		hasNext: l.hasNext,
		thread:  l.thread,
	}
}

// Env returns the level's variable environment.
func (l *Level) Env() *variable.Environment { return l.env }

// close releases the files opened by definitions in this level.
func (l *Level) close() {
	for _, f := range l.files {
		if err := f.Close(); err != nil {
			l.exec.logf("WARN", "close %s: %v", f, err)
		}
	}
	l.files = nil
}

// ---------------------------------------------------------------------------
// Statement list execution
// ---------------------------------------------------------------------------

// unhandledError is a failure no onerror of its own statement list caught.
// Enclosing lists pass it on without a handler scan. Exit conditions are
// never wrapped, so an enclosing exit handler still sees them.
type unhandledError struct {
	err *scripterr.Error
}

func (u *unhandledError) Error() string { return u.err.Error() }
func (u *unhandledError) Unwrap() error { return u.err }

// Execute runs list in order, writing text into out. When statement i fails,
// the statements after i are scanned for the first onerror statement that
// catches the error. If one is found, errorMsg is bound to the message, the
// handler body runs and execution continues after the handler. Otherwise the
// error is returned and the rest of the list is skipped.
// Control signals (break, continue, return) end the list without a scan.
func (l *Level) Execute(list *ast.StatementList, out io.Writer) error {
	if list == nil {
		return nil
	}
	stmts := list.Statements
	for i := 0; i < len(stmts); i++ {
		if err := l.exec.ctx.Err(); err != nil {
			return err
		}
		err := l.execStatement(stmts[i], out)
		if err == nil {
			continue
		}
		var ue *unhandledError
		if isControl(err) || errors.As(err, &ue) {
			return err
		}
		se := scripterr.Classify(err).At(stmts[i].Pos())
		j := findHandler(stmts, i+1, se)
		if j < 0 {
			if se.Kind == scripterr.KindExit {
				return se
			}
			return &unhandledError{err: se}
		}
		if err := l.recoverWith(stmts[j].(*ast.OnErrorStmt), se, out); err != nil {
			return err
		}
		i = j
	}
	return nil
}

// findHandler returns the index of the first onerror statement at or after
// from that catches se, or -1.
func findHandler(stmts []ast.Statement, from int, se *scripterr.Error) int {
	for j := from; j < len(stmts); j++ {
		if h, ok := stmts[j].(*ast.OnErrorStmt); ok && scripterr.Catches(h.Kind, h.Level, se) {
			return j
		}
	}
	return -1
}

func (l *Level) recoverWith(h *ast.OnErrorStmt, se *scripterr.Error, out io.Writer) error {
	msg := se.Error()
	if err := l.env.Define("errorMsg", variable.KindString, msg); err != nil {
		return err
	}
	if buf, ok := lookupBuffer(l.env, "error"); ok {
		buf.Replace(msg)
	}
	if l.exec.collector != nil {
		l.exec.collector.RecordRecovered(se.Kind.String(), msg)
	}
	return l.execBlock(h.Body, out)
}

// execBlock runs body in a child scope when it defines variables and in the
// receiver's scope otherwise.
func (l *Level) execBlock(body *ast.StatementList, out io.Writer) error {
	if body.Len() == 0 {
		return nil
	}
	if !body.IntroducesBindings {
		return l.Execute(body, out)
	}
	c := l.child()
	defer c.close()
	return c.Execute(body, out)
}

// ---------------------------------------------------------------------------
// Statement dispatch
// ---------------------------------------------------------------------------

func (l *Level) execStatement(stmt ast.Statement, out io.Writer) error {
	switch s := stmt.(type) {
	case *ast.TextStmt:
		return l.writeText(out, s.Text)
	case *ast.NewlineStmt:
		return l.write(out, l.exec.newline)
	case *ast.TextOutputStmt:
		return l.execTextOutput(s, out)
	case *ast.ValueStmt:
		return l.execValue(s, out)
	case *ast.VarDef:
		return l.defineVar(s)
	case *ast.AssignStmt:
		return l.execAssign(s)
	case *ast.IfStmt:
		return l.execIf(s, out)
	case *ast.ForStmt:
		return l.execFor(s, out)
	case *ast.WhileStmt:
		return l.execWhile(s, out)
	case *ast.BlockStmt:
		return l.execBlock(s.Body, out)
	case *ast.HasNextStmt:
		if l.hasNext == nil {
			return scripterr.Internal("hasNext outside of a for loop")
		}
		if *l.hasNext {
			return l.execBlock(s.Body, out)
		}
		return nil
	case *ast.BreakStmt:
		return ErrBreak
	case *ast.ContinueStmt:
		return ErrContinue
	case *ast.ReturnStmt:
		return l.execReturn(s)
	case *ast.ExitStmt:
		return scripterr.Exit(s.Code)
	case *ast.ThrowStmt:
		msg, err := l.EvalString(s.Message)
		if err != nil {
			return fmt.Errorf("throw: %w", err)
		}
		return scripterr.Internal("%s", msg)
	case *ast.OnErrorStmt:
		// Landing pad only; see Execute.
		return nil
	case *ast.CallStmt:
		return l.execCall(s, out)
	case *ast.ThreadStmt:
		return l.execThread(s)
	case *ast.CmdStmt:
		return l.execCmd(s)
	case *ast.CdStmt:
		return l.execCd(s)
	case *ast.MoveStmt:
		return l.execMove(s)
	case *ast.CopyStmt:
		return l.execCopy(s)
	case *ast.MkDirStmt:
		return l.execMkDir(s)
	default:
		return scripterr.Internal("unknown statement type %T", stmt)
	}
}

// ---------------------------------------------------------------------------
// Variable statements
// ---------------------------------------------------------------------------

// defineVar evaluates the initializer according to the declared kind and
// binds the result in the current scope.
func (l *Level) defineVar(s *ast.VarDef) error {
	var (
		kind  variable.Kind
		value interface{}
		err   error
	)
	switch s.Kind {
	case ast.VarObject:
		kind = variable.KindObject
		value, err = l.EvalObject(s.Init)
	case ast.VarString:
		kind = variable.KindString
		if s.Init != nil {
			value, err = l.EvalString(s.Init)
		} else {
			value = ""
		}
	case ast.VarBuffer, ast.VarPipe:
		kind = variable.KindBuffer
		if s.Kind == ast.VarPipe {
			kind = variable.KindPipe
		}
		buf := variable.NewBuffer("")
		if s.Init != nil {
			var text string
			text, err = l.EvalString(s.Init)
			buf.WriteString(text)
		}
		value = buf
	case ast.VarList:
		kind = variable.KindList
		if s.Init == nil {
			value = []interface{}{}
			break
		}
		value, err = l.EvalObject(s.Init)
		if err == nil && !variable.IsContainer(value) {
			return scripterr.Internal("List %s: initializer is not a container but %s", s.Name, variable.TypeName(value))
		}
	case ast.VarOpenFile:
		kind = variable.KindOpenFile
		var p string
		if p, err = l.EvalString(s.Init); err == nil {
			var f *variable.OpenFile
			f, err = variable.CreateFile(l.currDir().Resolve(p))
			if err != nil {
				return scripterr.IO(err, "Openfile %s", s.Name)
			}
			l.files = append(l.files, f)
			value = f
		}
	case ast.VarThread:
		kind = variable.KindThread
		value = thread.NewHandle(l.exec.queueSize)
	default:
		return scripterr.Internal("%s: unknown variable kind %v", s.Name, s.Kind)
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", s.Kind, s.Name, err)
	}
	if s.Const {
		return l.env.DefineConst(s.Name, kind, value)
	}
	return l.env.Define(s.Name, kind, value)
}

// execAssign evaluates the value once and stores it into every target.
func (l *Level) execAssign(s *ast.AssignStmt) error {
	val, err := l.EvalObject(s.Value)
	if err != nil {
		return fmt.Errorf("assign %s: %w", targetNames(s.Targets), err)
	}
	for _, t := range s.Targets {
		if err := l.assign(t, val, s.Append); err != nil {
			return fmt.Errorf("assign %s: %w", t, err)
		}
	}
	return nil
}

func targetNames(ts []*ast.DataAccess) string {
	if len(ts) == 1 {
		return ts[0].String()
	}
	s := ""
	for i, t := range ts {
		if i > 0 {
			s += ", "
		}
		s += t.String()
	}
	return s
}

// assign stores val at target. Text sinks (buffers, open files, writers) are
// written in place; other values are rebound, or appended to for lists and
// text when appendMode is set.
func (l *Level) assign(target *ast.DataAccess, val interface{}, appendMode bool) error {
	if target.IsBareName() {
		name := target.Name()
		if cur, ok := l.env.Get(name); ok {
			if w, isWriter := cur.(io.Writer); isWriter && !isBuffer(cur) {
				return l.write(w, variable.ToString(val))
			}
		}
		return l.env.SetOrAppendInPlace(name, val, appendMode)
	}

	cur, err := l.resolvePath(target, false)
	if err != nil {
		return err
	}
	switch sink := cur.(type) {
	case *variable.Buffer:
		sink.Put(variable.ToString(val), appendMode)
		return nil
	case io.Writer:
		return l.write(sink, variable.ToString(val))
	}
	if appendMode {
		switch c := cur.(type) {
		case []interface{}:
			val = append(c, val)
		case string:
			val = c + variable.ToString(val)
		default:
			return scripterr.Internal("type %s not supported for append", variable.TypeName(cur))
		}
	}
	return l.store(target, val)
}

func isBuffer(v interface{}) bool {
	_, ok := v.(*variable.Buffer)
	return ok
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

func (l *Level) execIf(s *ast.IfStmt, out io.Writer) error {
	for _, b := range s.Branches {
		ok, err := l.evalCond(b.Cond)
		if err != nil {
			return fmt.Errorf("if: %w", err)
		}
		if ok {
			return l.execBlock(b.Body, out)
		}
	}
	return l.execBlock(s.Else, out)
}

// execFor visits the container elements. The loop variable lives in a loop
// scope; bodies that define variables get a fresh scope per iteration.
func (l *Level) execFor(s *ast.ForStmt, out io.Writer) error {
	container, err := l.evalContainer(s.Container)
	if err != nil {
		return fmt.Errorf("for %s: %w", s.Var, err)
	}
	entries, err := variable.Iterate(container)
	if err != nil {
		return scripterr.Internal("for %s: %v", s.Var, err)
	}

	loop := l.child()
	defer loop.close()
	hasNext := false
	loop.hasNext = &hasNext

	for i, en := range entries {
		if err := loop.env.Define(s.Var, variable.KindObject, en.Value); err != nil {
			return err
		}
		if en.Key != "" {
			if err := loop.env.Define(s.Var+"_key", variable.KindString, en.Key); err != nil {
				return err
			}
		}
		if err := loop.env.Define(s.Var+"_index", variable.KindObject, int64(i)); err != nil {
			return err
		}
		hasNext = i < len(entries)-1
		if blockErr := loop.execBlock(s.Body, out); blockErr != nil {
			if errors.Is(blockErr, ErrBreak) {
				break
			}
			if errors.Is(blockErr, ErrContinue) {
				continue
			}
			return blockErr
		}
	}
	return nil
}

func (l *Level) execWhile(s *ast.WhileStmt, out io.Writer) error {
	for {
		ok, err := l.evalCond(s.Cond)
		if err != nil {
			return fmt.Errorf("while: %w", err)
		}
		if !ok {
			return nil
		}
		if blockErr := l.execBlock(s.Body, out); blockErr != nil {
			if errors.Is(blockErr, ErrBreak) {
				return nil
			}
			if errors.Is(blockErr, ErrContinue) {
				continue
			}
			return blockErr
		}
		if err := l.exec.ctx.Err(); err != nil {
			return err
		}
	}
}

func (l *Level) execReturn(s *ast.ReturnStmt) error {
	if s.Value == nil {
		return &ReturnValue{}
	}
	val, err := l.EvalObject(s.Value)
	if err != nil {
		return fmt.Errorf("return: %w", err)
	}
	return &ReturnValue{Value: val, Set: true}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// currDir returns the current directory object visible from this level.
func (l *Level) currDir() *variable.Dir {
	if v, ok := l.env.Get("currDir"); ok {
		if d, ok := v.(*variable.Dir); ok {
			return d
		}
	}
	if d, err := variable.NewDir("."); err == nil {
		return d
	}
	return &variable.Dir{}
}

func lookupBuffer(env *variable.Environment, name string) (*variable.Buffer, bool) {
	v, ok := env.Get(name)
	if !ok {
		return nil, false
	}
	buf, ok := v.(*variable.Buffer)
	return buf, ok
}
