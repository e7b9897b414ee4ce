// Package importerr defines the error taxonomy of the import pipeline.
//
// Every failure that leaves a pipeline step is an [*Error] carrying a [Kind],
// the operation that failed, the entity (target table or source file) it was
// working on, and the underlying cause. Kinds are themselves errors, so
// callers can branch with errors.Is:
//
//	if errors.Is(err, importerr.SourceUnavailable) {
//	    // abort before touching the store
//	}
package importerr

import (
	"errors"
	"fmt"
)

// Kind categorizes an import error.
type Kind string

const (
	// ConfigError is a missing or invalid configuration value.
	ConfigError Kind = "config_error"
	// SourceUnavailable is an input file that cannot be opened or parsed.
	SourceUnavailable Kind = "source_unavailable"
	// ConnectionFailure is a store that cannot be reached or cannot start a transaction.
	ConnectionFailure Kind = "connection_failure"
	// UnresolvedAlias is an event alias referenced before or without registration.
	UnresolvedAlias Kind = "unresolved_alias"
	// LoadFailure is a write rejected by the store.
	LoadFailure Kind = "load_failure"
	// SchemaMismatch is a catalog column set the source data cannot satisfy.
	SchemaMismatch Kind = "schema_mismatch"
	// Internal is an unexpected failure, such as a recovered panic.
	Internal Kind = "internal"
)

// Error implements error so that a Kind can be used as an errors.Is target.
func (k Kind) Error() string { return string(k) }

// Error is a categorized pipeline error.
type Error struct {
	Kind   Kind
	Op     string // operation, e.g. "copy", "resolve alias"
	Entity string // table or file the operation worked on
	Err    error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Entity != "" {
		msg += " " + e.Entity
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is this error's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// New creates an error of the given kind with a plain message as cause.
func New(kind Kind, op, entity, msg string) *Error {
	return &Error{Kind: kind, Op: op, Entity: entity, Err: errors.New(msg)}
}

// Errorf creates an error of the given kind with a formatted cause.
// The format supports %w.
func Errorf(kind Kind, op, entity, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Entity: entity, Err: fmt.Errorf(format, args...)}
}

// Wrap categorizes err. It returns nil if err is nil.
func Wrap(err error, kind Kind, op, entity string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Entity: entity, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain,
// or Internal if err carries no kind. It returns "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
