// Package cmdexec runs external commands of a script on the local machine.
package cmdexec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"time"
)

// Runner starts processes with os/exec. The zero value inherits the process
// environment and has no timeout.
type Runner struct {
	env     []string
	timeout time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithEnv adds variables to the environment of every started process.
func WithEnv(env map[string]string) Option {
	return func(r *Runner) {
		keys := make([]string, 0, len(env))
		for k := range env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			r.env = append(r.env, k+"="+env[k])
		}
	}
}

// WithTimeout kills commands that run longer than d. Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes argv in dir and returns its exit code. When the process
// cannot be started, a diagnostic is written to stderr and -1 is returned. A
// process killed by a signal or by the timeout reports 128 plus the signal
// number where known, or 1.
func (r *Runner) Run(ctx context.Context, argv []string, dir string, stdout, stderr io.Writer) int {
	if len(argv) == 0 {
		fmt.Fprint(stderr, "empty command")
		return -1
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}

	err := cmd.Run()
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code
		}
		if ctx.Err() != nil {
			fmt.Fprintf(stderr, "%s: %v", argv[0], ctx.Err())
		}
		return signalCode(exitErr)
	}
	fmt.Fprintf(stderr, "%v", err)
	return -1
}
