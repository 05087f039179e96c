// Package executor implements the tree walker for JZcmd scripts. It executes
// a Script (produced by the loader or built in code) against parent-linked
// variable environments, writes generated text into sinks, delegates external
// commands to a CommandRunner and records the run in a ResultCollector.
//
// Errors raised by a statement are recovered by an onerror statement that
// follows it in the same statement list; see Level.Execute.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/JzHartmut/jzcmd/internal/script/ast"
	"github.com/JzHartmut/jzcmd/internal/script/scripterr"
	"github.com/JzHartmut/jzcmd/internal/script/thread"
	"github.com/JzHartmut/jzcmd/internal/script/variable"
)

// ---------------------------------------------------------------------------
// Sentinel errors for control flow
// ---------------------------------------------------------------------------

// ErrBreak signals a break statement inside a loop.
var ErrBreak = errors.New("break")

// ErrContinue signals a continue statement inside a loop.
var ErrContinue = errors.New("continue")

// ReturnValue wraps the value of a return statement.
type ReturnValue struct {
	Value interface{}
	Set   bool
}

func (r *ReturnValue) Error() string { return "return" }

// isControl reports whether err is a control flow signal rather than a
// failure. Control signals are never offered to onerror handlers.
func isControl(err error) bool {
	var rv *ReturnValue
	return errors.Is(err, ErrBreak) || errors.Is(err, ErrContinue) || errors.As(err, &rv) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ---------------------------------------------------------------------------
// Interfaces
// ---------------------------------------------------------------------------

// CommandRunner starts external processes. Run blocks until the process has
// finished and returns its exit code. When the process cannot be started it
// writes a diagnostic to stderr and returns -1. stdout and stderr are never
// nil.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, dir string, stdout, stderr io.Writer) int
}

// ResultCollector records what happened during a run.
type ResultCollector interface {
	RecordCommand(argv []string, dir string, exitCode int, background bool, start time.Time, d time.Duration)
	RecordRecovered(kind, message string)
	RecordThread(name string, d time.Duration, err error)
	RecordError(message string)
}

// MissingArgPolicy decides what happens when a subroutine is called without
// a required argument.
type MissingArgPolicy int

const (
	MissingArgError  MissingArgPolicy = iota // fail the call
	MissingArgWarn                           // log and bind null
	MissingArgIgnore                         // bind null
)

// ParseMissingArgPolicy maps "error", "warn" or "ignore" to a policy.
func ParseMissingArgPolicy(s string) (MissingArgPolicy, error) {
	switch strings.ToLower(s) {
	case "", "error":
		return MissingArgError, nil
	case "warn", "warning":
		return MissingArgWarn, nil
	case "ignore":
		return MissingArgIgnore, nil
	}
	return MissingArgError, fmt.Errorf("unknown missing argument policy %q", s)
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Option configures the executor.
type Option func(*Executor)

// WithRunner sets the CommandRunner used for cmd statements.
func WithRunner(r CommandRunner) Option {
	return func(e *Executor) { e.runner = r }
}

// WithCollector sets the ResultCollector for recording the run.
func WithCollector(c ResultCollector) Option {
	return func(e *Executor) { e.collector = c }
}

// WithLogger sets the writer for diagnostics (thread failures, warnings).
func WithLogger(w io.Writer) Option {
	return func(e *Executor) { e.logger = w }
}

// WithOutput sets the main text output. It is also the stdout sink of
// commands that name none.
func WithOutput(w io.Writer) Option {
	return func(e *Executor) { e.out = w }
}

// WithErrOutput sets the stderr sink of commands that name none.
func WithErrOutput(w io.Writer) Option {
	return func(e *Executor) { e.errOut = w }
}

// WithNewline sets the line separator written for text line breaks.
func WithNewline(nl string) Option {
	return func(e *Executor) { e.newline = nl }
}

// WithErrorsInline writes an unrecovered error into the output instead of
// returning it from Run.
func WithErrorsInline(on bool) Option {
	return func(e *Executor) { e.errorsInline = on }
}

// WithMissingArg sets the severity of missing subroutine arguments.
func WithMissingArg(p MissingArgPolicy) Option {
	return func(e *Executor) { e.missingArg = p }
}

// WithIgnoreExitCodes stops non-zero command exit codes from raising errors.
func WithIgnoreExitCodes(on bool) Option {
	return func(e *Executor) { e.ignoreExitCodes = on }
}

// WithThreadPoll sets how often Run checks for running threads at the end.
func WithThreadPoll(d time.Duration) Option {
	return func(e *Executor) { e.threadPoll = d }
}

// WithThreadWait bounds how long Run waits for threads. Zero waits forever.
func WithThreadWait(d time.Duration) Option {
	return func(e *Executor) { e.threadWait = d }
}

// WithQueueSize sets the capacity of thread handle queues.
func WithQueueSize(n int) Option {
	return func(e *Executor) { e.queueSize = n }
}

// WithDir sets the initial current directory. Defaults to the process
// working directory.
func WithDir(dir string) Option {
	return func(e *Executor) { e.startDir = dir }
}

// WithPrivateAccess lets data paths read unexported struct fields.
func WithPrivateAccess(on bool) Option {
	return func(e *Executor) { e.allowPrivate = on }
}

// WithVar pre-defines a script-global variable before script variables are
// initialized.
func WithVar(name string, value interface{}) Option {
	return func(e *Executor) { e.extraVars = append(e.extraVars, variable.Variable{Name: name, Value: value}) }
}

// ---------------------------------------------------------------------------
// Executor
// ---------------------------------------------------------------------------

// Executor is the run context shared by every Level of one script run.
type Executor struct {
	ctx             context.Context
	script          *ast.Script
	runner          CommandRunner
	collector       ResultCollector
	logger          io.Writer
	out             io.Writer
	errOut          io.Writer
	newline         string
	errorsInline    bool
	missingArg      MissingArgPolicy
	ignoreExitCodes bool
	allowPrivate    bool
	threadPoll      time.Duration
	threadWait      time.Duration
	queueSize       int
	startDir        string
	extraVars       []variable.Variable

	globals *variable.Environment
	threads *thread.Registry
}

// New creates a new Executor with the given context and options.
func New(ctx context.Context, opts ...Option) *Executor {
	e := &Executor{
		ctx:        ctx,
		logger:     io.Discard,
		out:        io.Discard,
		errOut:     io.Discard,
		newline:    "\n",
		threadPoll: 100 * time.Millisecond,
		queueSize:  thread.DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.threads = thread.NewRegistry(e.logger)
	e.threads.OnDone(func(h *thread.Handle) {
		if e.collector != nil {
			e.collector.RecordThread(h.Name(), h.Duration(), h.Err())
		}
	})
	return e
}

// Globals returns the script-global environment of the last Run (useful for
// testing).
func (e *Executor) Globals() *variable.Environment {
	return e.globals
}

// Threads returns the registry of threads started by this executor.
func (e *Executor) Threads() *thread.Registry {
	return e.threads
}

// Run executes script: it seeds the well-known names, initializes the script
// variables in declaration order, executes the main statement list and waits
// until all threads have finished. An unrecovered error is returned, or
// written into the output when errors are inline.
func (e *Executor) Run(script *ast.Script) error {
	root, err := e.Init(script)
	if err == nil {
		err = root.Execute(script.Main, e.out)
		root.close()
		err = unexpectedControl(err)
	}
	if waitErr := e.Wait(); waitErr != nil && err == nil {
		err = waitErr
	}
	if err == nil {
		return nil
	}
	se := scripterr.Classify(err)
	if e.collector != nil {
		e.collector.RecordError(se.Error())
	}
	if e.errorsInline {
		fmt.Fprintf(e.out, "%s<?? %s ??>%s", e.newline, se.Error(), e.newline)
		return nil
	}
	return se
}

// Init prepares the globals for script and returns the level main executes
// in. Run calls it; it is exported for callers that want to call single
// subroutines of a script.
func (e *Executor) Init(script *ast.Script) (*Level, error) {
	e.script = script
	e.globals = variable.NewEnvironment(nil)
	if err := e.seed(e.globals); err != nil {
		return nil, err
	}
	varLevel := newLevel(e, e.globals)
	for _, v := range script.Vars {
		if err := varLevel.defineVar(v); err != nil {
			return nil, scripterr.Classify(err).At(v.Pos())
		}
	}
	return newLevel(e, variable.NewEnvironment(e.globals)), nil
}

// Wait blocks until no thread is running, bounded by the thread wait option.
func (e *Executor) Wait() error {
	ctx := e.ctx
	if e.threadWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.threadWait)
		defer cancel()
	}
	return e.threads.WaitIdle(ctx, e.threadPoll)
}

// Call runs the subroutine called name with named arguments and writes its
// text to out. Init must have been called.
func (e *Executor) Call(name string, args map[string]interface{}, out io.Writer) (interface{}, error) {
	if e.globals == nil {
		return nil, scripterr.Internal("executor not initialized")
	}
	sub, ok := e.script.Lookup(name)
	if !ok {
		return nil, scripterr.NotFound("subroutine %q not found", name)
	}
	return newLevel(e, variable.NewEnvironment(e.globals)).invoke(sub, args, out)
}

// seed binds the well-known names every script can use.
func (e *Executor) seed(env *variable.Environment) error {
	start := e.startDir
	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return scripterr.IO(err, "working directory")
		}
		start = wd
	}
	dir, err := variable.NewDir(start)
	if err != nil {
		return scripterr.IO(err, "current directory %s", start)
	}

	procEnv := variable.NewOrderedMap()
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			procEnv.Put(k, v)
		}
	}

	seeds := []struct {
		name  string
		kind  variable.Kind
		value interface{}
		cnst  bool
	}{
		{"null", variable.KindObject, nil, true},
		{"currDir", variable.KindObject, dir, false},
		{"$CD", variable.KindString, dir.Text(), false},
		{"error", variable.KindBuffer, variable.NewBuffer(""), false},
		{"out", variable.KindObject, e.out, false},
		{"err", variable.KindObject, e.errOut, false},
		{"nextNr", variable.KindObject, &variable.Counter{}, true},
		{"env", variable.KindObject, procEnv, false},
	}
	for _, s := range seeds {
		var err error
		if s.cnst {
			err = env.DefineConst(s.name, s.kind, s.value)
		} else {
			err = env.Define(s.name, s.kind, s.value)
		}
		if err != nil {
			return err
		}
	}
	for _, v := range e.extraVars {
		if err := env.Define(v.Name, variable.KindObject, v.Value); err != nil {
			return err
		}
	}
	return nil
}

// unexpectedControl turns a control signal that left its construct into an
// error.
func unexpectedControl(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrBreak):
		return scripterr.Internal("break outside of a loop")
	case errors.Is(err, ErrContinue):
		return scripterr.Internal("continue outside of a loop")
	}
	var rv *ReturnValue
	if errors.As(err, &rv) {
		return nil
	}
	return err
}

func (e *Executor) logf(level, format string, args ...interface{}) {
	fmt.Fprintf(e.logger, "[%s] %s\n", level, fmt.Sprintf(format, args...))
}
