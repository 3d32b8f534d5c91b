// Package onyoerr defines the typed error taxonomy shared by every Onyo
// component. Every error returned across a package boundary is, or wraps,
// one of the Kinds below, so callers can branch with errors.Is/As instead
// of matching on message text.
package onyoerr

import (
	"errors"
	"fmt"
)

// Kind is one of the closed set of domain error kinds from the
// specification's error handling design.
type Kind string

const (
	NotARepository      Kind = "NotARepository"
	AlreadyARepository   Kind = "AlreadyARepository"
	DirtyWorkingTree     Kind = "DirtyWorkingTree"
	InvalidAssetName     Kind = "InvalidAssetName"
	NameCollision        Kind = "NameCollision"
	NoSuchAsset          Kind = "NoSuchAsset"
	NoSuchDirectory      Kind = "NoSuchDirectory"
	NotEmpty             Kind = "NotEmpty"
	BoundKeyMutation     Kind = "BoundKeyMutation"
	MalformedDocument    Kind = "MalformedDocument"
	TemplateNotFound     Kind = "TemplateNotFound"
	FauxSerialExhausted  Kind = "FauxSerialExhausted"
	PluginFailure        Kind = "PluginFailure"
	UserAbort            Kind = "UserAbort"
)

// Error is a typed domain error. Path and Op are optional context used for
// reporting; either may be empty.
type Error struct {
	Kind Kind
	Path string
	Op   string
	Err  error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	switch {
	case e.Path != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Path)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so that
// errors.Is(err, onyoerr.New(onyoerr.NoSuchAsset, "")) style checks work
// without comparing Path/Op/Err.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs a bare *Error of the given kind and path.
func New(kind Kind, path string) *Error {
	return &Error{Kind: kind, Path: path}
}

// Wrap constructs an *Error of the given kind, path and operation, wrapping
// cause.
func Wrap(kind Kind, op, path string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: cause}
}

// Sentinel returns a zero-path, zero-op error of kind, suitable for use
// with errors.Is(err, onyoerr.Sentinel(onyoerr.UserAbort)).
func Sentinel(kind Kind) *Error { return &Error{Kind: kind} }

// Of extracts the Kind of err if err is or wraps an *Error; ok is false
// otherwise.
func Of(err error) (kind Kind, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// ExitCode maps a Kind to the process exit code defined in the
// specification's error handling design: typed domain errors exit 1,
// anything else (fatal I/O) exits 2.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if _, ok := Of(err); ok {
		return 1
	}
	return 2
}
