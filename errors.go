package fstroke

import (
	"errors"
	"fmt"
)

// ErrorKind discriminates the error kinds named in the error-handling design:
// configuration errors are caught before any emission; the rest are raised
// while lowering the tree.
type ErrorKind int

const (
	// ErrKindConfiguration covers an out-of-range address width.
	ErrKindConfiguration ErrorKind = iota
	// ErrKindMalformedTree covers wrong arity, a misplaced func/break, or a
	// return with no expression.
	ErrKindMalformedTree
	// ErrKindUnsupportedLiteral covers an integer literal too large for the
	// configured address width.
	ErrKindUnsupportedLiteral
	// ErrKindUnresolvableName covers a list head that names neither a
	// built-in nor a declared function (a call to an undeclared function).
	ErrKindUnresolvableName
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindConfiguration:
		return "configuration"
	case ErrKindMalformedTree:
		return "malformed tree"
	case ErrKindUnsupportedLiteral:
		return "unsupported literal"
	case ErrKindUnresolvableName:
		return "unresolvable name"
	default:
		return "unknown"
	}
}

// Sentinel errors callers can match on with errors.Is; CompileError.Unwrap
// returns one of these so errors.Is(err, ErrMalformedTree) works regardless
// of the message text wrapped around it.
var (
	ErrConfiguration      = errors.New("configuration error")
	ErrMalformedTree      = errors.New("malformed tree")
	ErrUnsupportedLiteral = errors.New("unsupported literal")
	ErrUnresolvableName   = errors.New("unresolvable name")
)

func kindSentinel(k ErrorKind) error {
	switch k {
	case ErrKindConfiguration:
		return ErrConfiguration
	case ErrKindUnsupportedLiteral:
		return ErrUnsupportedLiteral
	case ErrKindUnresolvableName:
		return ErrUnresolvableName
	default:
		return ErrMalformedTree
	}
}

// CompileError is returned by Generator when lowering or configuration
// fails. The first error wins: lowering aborts the whole compilation and any
// partially emitted buffer is discarded by the caller.
type CompileError struct {
	Kind ErrorKind
	Msg  string
}

func (e *CompileError) Error() string {
	return e.Kind.String() + ": " + e.Msg
}

func (e *CompileError) Unwrap() error {
	return kindSentinel(e.Kind)
}

func newError(kind ErrorKind, format string, args ...any) *CompileError {
	return &CompileError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
