// Package apperr defines the error kinds surfaced by collections, services and handlers.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Kind classifies an error for callers and HTTP mapping.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindDatabase       Kind = "database"
	KindNetwork        Kind = "network"
	KindCanceled       Kind = "canceled"
)

// Error is the uniform error shape: a message plus the context it happened in.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Context map[string]string
	// Fields holds per-field messages for validation errors.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Err != nil && e.Err.Error() != e.Message {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// With returns a copy of e with an extra context entry.
func (e *Error) With(key, value string) *Error {
	cp := *e
	cp.Context = make(map[string]string, len(e.Context)+1)
	for k, v := range e.Context {
		cp.Context[k] = v
	}
	cp.Context[key] = value
	return &cp
}

// Validation builds a validation error. fields may be nil.
func Validation(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// Authentication is returned when an operation needs an identity and none is present.
func Authentication(op, msg string) *Error {
	return &Error{Kind: KindAuthentication, Op: op, Message: msg}
}

// Authorization is returned when the requester lacks rights for the operation.
func Authorization(op, msg string) *Error {
	return &Error{Kind: KindAuthorization, Op: op, Message: msg}
}

// NotFound is returned when a lookup by id or slug yields nothing.
func NotFound(op, msg string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: msg}
}

// Conflict is returned for stale versions and duplicate keys.
func Conflict(op, msg string) *Error {
	return &Error{Kind: KindConflict, Op: op, Message: msg}
}

// Classify converts a store or transport error into an *Error. Errors that are
// already *Error keep their kind and gain op if they had none.
func Classify(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		if ae.Op == "" {
			cp := *ae
			cp.Op = op
			return &cp
		}
		return ae
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindNetwork, Op: op, Message: "backend timed out", Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindCanceled, Op: op, Message: "operation canceled", Err: err}
	case errors.Is(err, pgx.ErrNoRows), errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Kind: KindNotFound, Op: op, Message: "not found", Err: err}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return &Error{Kind: KindConflict, Op: op, Message: "duplicate value: " + pgErr.ConstraintName, Err: err}
		case "23503":
			return &Error{Kind: KindNotFound, Op: op, Message: "referenced row not found", Err: err}
		}
		return &Error{Kind: KindDatabase, Op: op, Message: pgErr.Message, Err: err}
	}
	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) {
		return &Error{Kind: KindNetwork, Op: op, Message: "backend unreachable", Err: err}
	}
	return &Error{Kind: KindDatabase, Op: op, Message: err.Error(), Err: err}
}

// KindOf returns the kind of err, or KindDatabase for unclassified errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindDatabase
}

// Is reports whether err is an *Error of kind k.
func Is(err error, k Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == k
}

// Wrapf wraps err under op with a formatted message, keeping err's kind.
func Wrapf(op string, err error, format string, args ...any) *Error {
	c := Classify(op, err)
	cp := *c
	cp.Op = op
	cp.Message = fmt.Sprintf(format, args...)
	cp.Err = err
	return &cp
}
