package executor

import (
	"github.com/JzHartmut/jzcmd/internal/script/ast"
	"github.com/JzHartmut/jzcmd/internal/script/scripterr"
	"github.com/JzHartmut/jzcmd/internal/script/thread"
	"github.com/JzHartmut/jzcmd/internal/script/variable"
)

// execThread starts the body on a new goroutine. The thread level works on a
// snapshot of the visible variables with its own copy of the current
// directory; buffers in the snapshot stay shared. A named handle that already
// exists is cleared and reused.
func (l *Level) execThread(s *ast.ThreadStmt) error {
	h, err := l.threadHandle(s.Handle)
	if err != nil {
		return err
	}

	env := l.env.Snapshot()
	dir := l.currDir().Clone()
	if err := env.Define("currDir", variable.KindObject, dir); err != nil {
		return err
	}
	if err := env.Define("$CD", variable.KindString, dir.Text()); err != nil {
		return err
	}
	if err := env.Define("thread", variable.KindThread, h); err != nil {
		return err
	}
	tl := newLevel(l.exec, env)
	tl.thread = h

	name := s.Handle
	if name == "" {
		name = "thread-" + h.ID()[:8]
	}
	return l.exec.threads.Start(h, name, func(h *thread.Handle) error {
		defer tl.close()
		return unexpectedControl(tl.Execute(s.Body, h.Output()))
	})
}

func (l *Level) threadHandle(name string) (*thread.Handle, error) {
	if name == "" {
		return thread.NewHandle(l.exec.queueSize), nil
	}
	if v, ok := l.env.Get(name); ok {
		if h, isHandle := v.(*thread.Handle); isHandle {
			if err := h.Clear(); err != nil {
				return nil, scripterr.Internal("thread %s: %v", name, err)
			}
			return h, nil
		}
	}
	h := thread.NewHandle(l.exec.queueSize)
	return h, l.env.Define(name, variable.KindThread, h)
}
