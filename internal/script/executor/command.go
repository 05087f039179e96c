package executor

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/JzHartmut/jzcmd/internal/script/ast"
	"github.com/JzHartmut/jzcmd/internal/script/scripterr"
	"github.com/JzHartmut/jzcmd/internal/script/thread"
	"github.com/JzHartmut/jzcmd/internal/script/variable"
)

// ---------------------------------------------------------------------------
// External commands
// ---------------------------------------------------------------------------

// execCmd assembles argv, resolves the sinks and runs the command in the
// current directory. A launch failure raises an io error; a non-zero exit
// code raises a cmd error carrying the code as its level, unless exit codes
// are ignored.
func (l *Level) execCmd(s *ast.CmdStmt) error {
	argv, err := l.argv(s.Args)
	if err != nil {
		return fmt.Errorf("cmd: %w", err)
	}
	if len(argv) == 0 || argv[0] == "" {
		return scripterr.Internal("cmd: empty command")
	}
	stdout, err := l.sinks(s.Out, l.exec.out)
	if err != nil {
		return fmt.Errorf("cmd %s: output: %w", argv[0], err)
	}
	stderr, err := l.sinks(s.Err, l.exec.errOut)
	if err != nil {
		return fmt.Errorf("cmd %s: error output: %w", argv[0], err)
	}
	if l.exec.runner == nil {
		return scripterr.Internal("cmd %s: no command runner configured", argv[0])
	}
	dir := l.currDir().Native()

	if s.NoWait {
		h := thread.NewHandle(l.exec.queueSize)
		return l.exec.threads.Start(h, "cmd "+argv[0], func(*thread.Handle) error {
			_, err := l.runCommand(argv, dir, stdout, stderr, true)
			return err
		})
	}
	_, err = l.runCommand(argv, dir, stdout, stderr, false)
	return err
}

func (l *Level) runCommand(argv []string, dir string, stdout, stderr io.Writer, background bool) (int, error) {
	diag := variable.NewBuffer("")
	start := time.Now()
	code := l.exec.runner.Run(l.exec.ctx, argv, dir, stdout, io.MultiWriter(stderr, diag))
	if l.exec.collector != nil {
		l.exec.collector.RecordCommand(argv, dir, code, background, start, time.Since(start))
	}
	msg := strings.TrimSpace(diag.String())
	switch {
	case code == -1:
		return code, scripterr.IO(nil, "cmd %s: cannot start: %s", argv[0], msg)
	case code != 0 && !l.exec.ignoreExitCodes:
		text := fmt.Sprintf("cmd %s: exit code %d", argv[0], code)
		if msg != "" {
			text += ": " + msg
		}
		return code, scripterr.CommandFailed(code, text)
	}
	return code, nil
}

// argv evaluates the command arguments. Lists (such as filesets) contribute
// one argument per element.
func (l *Level) argv(args []ast.Expression) ([]string, error) {
	var out []string
	for _, a := range args {
		v, err := l.EvalObject(a)
		if err != nil {
			return nil, err
		}
		if list, ok := v.([]interface{}); ok {
			for _, el := range list {
				out = append(out, variable.ToString(el))
			}
			continue
		}
		out = append(out, variable.ToString(v))
	}
	return out, nil
}

// sinks resolves the writers named by paths. Without paths def is used.
func (l *Level) sinks(paths []*ast.DataAccess, def io.Writer) (io.Writer, error) {
	if len(paths) == 0 {
		return def, nil
	}
	ws := make([]io.Writer, 0, len(paths))
	for _, p := range paths {
		v, err := l.resolvePath(p, false)
		if err != nil {
			return nil, err
		}
		w, ok := v.(io.Writer)
		if !ok {
			return nil, scripterr.Internal("%s: type %s is not a text sink", p, variable.TypeName(v))
		}
		ws = append(ws, w)
	}
	if len(ws) == 1 {
		return ws[0], nil
	}
	return io.MultiWriter(ws...), nil
}

// ---------------------------------------------------------------------------
// Directories and files
// ---------------------------------------------------------------------------

// execCd rewrites the shared current directory object in place. $CD is a view
// of that object, so every scope sees the new directory.
func (l *Level) execCd(s *ast.CdStmt) error {
	p, err := l.EvalString(s.Path)
	if err != nil {
		return fmt.Errorf("cd: %w", err)
	}
	dir := l.currDir()
	target := dir.Resolve(p)
	fi, err := os.Stat(nativePath(target))
	if err != nil {
		return scripterr.IO(err, "cd %s", p)
	}
	if !fi.IsDir() {
		return scripterr.IO(nil, "cd %s: not a directory", p)
	}
	dir.Set(target)
	return nil
}

func (l *Level) execMkDir(s *ast.MkDirStmt) error {
	p, err := l.EvalString(s.Path)
	if err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := os.MkdirAll(nativePath(l.currDir().Resolve(p)), 0o755); err != nil {
		return scripterr.IO(err, "mkdir %s", p)
	}
	return nil
}

func (l *Level) execMove(s *ast.MoveStmt) error {
	src, dst, err := l.srcDst(s.Src, s.Dst)
	if err != nil {
		return fmt.Errorf("move: %w", err)
	}
	if err := os.Rename(nativePath(src), nativePath(dst)); err != nil {
		return scripterr.IO(err, "move %s %s", src, dst)
	}
	return nil
}

func (l *Level) execCopy(s *ast.CopyStmt) error {
	src, dst, err := l.srcDst(s.Src, s.Dst)
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	if err := copyFile(nativePath(src), nativePath(dst)); err != nil {
		return scripterr.IO(err, "copy %s %s", src, dst)
	}
	return nil
}

// srcDst resolves both paths against the current directory. A destination
// that is an existing directory receives the source file name.
func (l *Level) srcDst(srcX, dstX ast.Expression) (string, string, error) {
	dir := l.currDir()
	src, err := l.EvalString(srcX)
	if err != nil {
		return "", "", err
	}
	dst, err := l.EvalString(dstX)
	if err != nil {
		return "", "", err
	}
	src, dst = dir.Resolve(src), dir.Resolve(dst)
	if fi, err := os.Stat(nativePath(dst)); err == nil && fi.IsDir() {
		dst = path.Join(dst, path.Base(src))
	}
	return src, dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	fi, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fi.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func nativePath(p string) string { return filepath.FromSlash(p) }
