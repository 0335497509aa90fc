// Package xerrors records where errors are created and wrapped. Wrap and
// Wrapf keep a single call-site PC. New, Newf and EnsureTrace keep a full
// stack. internal/log reads both when it renders error_links and stack.
package xerrors

import (
	"errors"
	"fmt"
	"runtime"
)

const maxStackDepth = 64

type withStack struct {
	err error
	pcs []uintptr
}

func (w *withStack) Error() string       { return w.err.Error() }
func (w *withStack) Unwrap() error       { return w.err }
func (w *withStack) StackPCs() []uintptr { return w.pcs }
func (w *withStack) IsXerrorsWrapper()   {}

type wrap struct {
	err error
	msg string
	pc  uintptr
}

func (w *wrap) Error() string     { return w.msg + ": " + w.err.Error() }
func (w *wrap) Unwrap() error     { return w.err }
func (w *wrap) PC() uintptr       { return w.pc }
func (w *wrap) IsXerrorsWrapper() {}

// skip counts frames above the exported function's caller.
func stackAt(err error, skip int) error {
	if err == nil {
		return nil
	}
	pcs := make([]uintptr, maxStackDepth)
	// runtime.Callers, stackAt, exported func
	n := runtime.Callers(3+skip, pcs)
	return &withStack{err: err, pcs: pcs[:n]}
}

func wrapAt(err error, msg string) error {
	var pcs [1]uintptr
	// runtime.Callers, wrapAt, Wrap/Wrapf
	runtime.Callers(3, pcs[:])
	return &wrap{err: err, msg: msg, pc: pcs[0]}
}

func New(msg string) error             { return stackAt(errors.New(msg), 0) }
func Newf(f string, args ...any) error { return stackAt(fmt.Errorf(f, args...), 0) }

// WithStack attaches the caller's stack to err.
func WithStack(err error) error { return stackAt(err, 0) }

// EnsureTrace attaches a stack unless err already carries one.
func EnsureTrace(err error) error {
	if err == nil {
		return nil
	}
	var hs interface{ StackPCs() []uintptr }
	if errors.As(err, &hs) && len(hs.StackPCs()) > 0 {
		return err
	}
	return stackAt(err, 0)
}

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return wrapAt(err, msg)
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return wrapAt(err, fmt.Sprintf(format, args...))
}
