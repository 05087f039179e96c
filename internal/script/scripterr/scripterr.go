// Package scripterr defines the error taxonomy of the script engine and the
// predicate that decides whether an onerror handler catches a raised error.
//
// Every failure raised while executing a statement is classified into one of
// NotFound, IO, Internal, Exit or Command. Handlers declare the kind they catch
// plus a minimum level; see Catches.
package scripterr

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"

	"github.com/JzHartmut/jzcmd/internal/script/token"
)

// Kind classifies a script error.
type Kind int

const (
	KindNone     Kind = iota
	KindNotFound      // failed name or path resolution
	KindIO            // file or process I/O failure
	KindInternal      // type mismatch, assertion, anything uncategorized
	KindExit          // explicit exit statement
	KindCommand       // external command finished with a non-zero exit code
	KindAny           // handler wildcard, never raised
)

var kindNames = map[Kind]string{
	KindNone:     "none",
	KindNotFound: "notfound",
	KindIO:       "io",
	KindInternal: "internal",
	KindExit:     "exit",
	KindCommand:  "cmd",
	KindAny:      "any",
}

// String returns the keyword used for the kind in onerror statements.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind maps an onerror keyword to its Kind. "file" is accepted as an
// alias for io and an empty string means any.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any":
		return KindAny, nil
	case "notfound":
		return KindNotFound, nil
	case "io", "file":
		return KindIO, nil
	case "internal":
		return KindInternal, nil
	case "exit":
		return KindExit, nil
	case "cmd":
		return KindCommand, nil
	default:
		return KindNone, fmt.Errorf("unknown error kind %q", s)
	}
}

// Error is a classified script failure.
type Error struct {
	Kind  Kind
	Msg   string
	Level int // exit level for KindExit, exit code for KindCommand
	Pos   token.Position
	Err   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Pos.IsValid() {
		return e.Pos.String() + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// At records pos on the error unless a position is already known. It returns
// the receiver for chaining.
func (e *Error) At(pos token.Position) *Error {
	if !e.Pos.IsValid() {
		e.Pos = pos
	}
	return e
}

// NotFound creates a KindNotFound error.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Internal creates a KindInternal error.
func Internal(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInternal, Msg: fmt.Sprintf(format, args...)}
}

// IO creates a KindIO error wrapping err.
func IO(err error, format string, args ...interface{}) *Error {
	msg := fmt.Sprintf(format, args...)
	if err != nil {
		msg += ": " + err.Error()
	}
	return &Error{Kind: KindIO, Msg: msg, Err: err}
}

// Exit creates the condition raised by an exit statement.
func Exit(level int) *Error {
	return &Error{Kind: KindExit, Msg: fmt.Sprintf("exit %d", level), Level: level}
}

// CommandFailed creates the error raised for a non-zero command exit code.
func CommandFailed(code int, msg string) *Error {
	return &Error{Kind: KindCommand, Msg: msg, Level: code}
}

// Classify converts any error into a *Error. Errors that already carry a
// classification are returned as-is; file system and process errors become
// KindIO; everything else is KindInternal.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		if err == error(se) {
			return se
		}
		// Keep the outer wrapping context in the message.
		return &Error{Kind: se.Kind, Msg: err.Error(), Level: se.Level, Pos: se.Pos, Err: err}
	}
	var (
		pathErr *fs.PathError
		linkErr *os.LinkError
		sysErr  *os.SyscallError
		execErr *exec.Error
		exitErr *exec.ExitError
	)
	switch {
	case errors.As(err, &pathErr), errors.As(err, &linkErr), errors.As(err, &sysErr),
		errors.As(err, &execErr), errors.As(err, &exitErr):
		return &Error{Kind: KindIO, Msg: err.Error(), Err: err}
	default:
		return &Error{Kind: KindInternal, Msg: err.Error(), Err: err}
	}
}

// Catches reports whether an onerror handler declared with kind handler and
// minimum level minLevel catches e.
//
// Exit is caught only by an exit handler whose level does not exceed the exit
// level. A command failure is caught by cmd, io and any handlers whose level
// does not exceed the exit code. Any catches every other kind.
func Catches(handler Kind, minLevel int, e *Error) bool {
	if e == nil {
		return false
	}
	if e.Kind == KindExit || handler == KindExit {
		return e.Kind == KindExit && handler == KindExit && e.Level >= minLevel
	}
	if e.Kind == KindCommand {
		switch handler {
		case KindCommand, KindIO, KindAny:
			return e.Level >= minLevel
		default:
			return false
		}
	}
	return handler == KindAny || handler == e.Kind
}
