package training

import "errors"

type Kind string

const (
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindCapacity   Kind = "capacity_exceeded"
	KindNotFound   Kind = "not_found"
	KindPolicy     Kind = "policy_violation"
	KindConflict   Kind = "conflict"
	KindInternal   Kind = "internal"
)

// Error is the error type returned across the package boundary. Anything
// that is not an *Error is treated as internal.
type Error struct {
	Kind   Kind
	Msg    string
	Fields map[string]string // validation only
	Err    error
}

func (e *Error) Error() string {
	var inner *Error
	if e.Err != nil && !errors.As(e.Err, &inner) {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

var (
	ErrNotFound      = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrDuplicate     = &Error{Kind: KindConflict, Msg: "already exists"}
	ErrInvalidLogin  = &Error{Kind: KindAuth, Msg: "invalid credentials"}
	ErrCodeNotFound  = &Error{Kind: KindAuth, Msg: "invalid access code"}
	ErrCodeExpired   = &Error{Kind: KindAuth, Msg: "access code expired"}
	ErrCodeInactive  = &Error{Kind: KindAuth, Msg: "access code inactive"}
	ErrCapacityFull  = &Error{Kind: KindCapacity, Msg: "access code has reached its participant limit"}
	ErrMaxAttempts   = &Error{Kind: KindPolicy, Msg: "maximum number of attempts reached"}
	ErrNoTest        = &Error{Kind: KindPolicy, Msg: "this course is completed without a test"}
	ErrTheoryPending = &Error{Kind: KindPolicy, Msg: "theory must be completed first"}
	ErrAlreadyPassed = &Error{Kind: KindPolicy, Msg: "test already passed"}
	ErrNoQuestions   = &Error{Kind: KindNotFound, Msg: "no questions available"}
	ErrNoCertificate = &Error{Kind: KindNotFound, Msg: "no certificate issued yet"}
)

func notFound(what string) error {
	return &Error{Kind: KindNotFound, Msg: what + " not found", Err: ErrNotFound}
}

func invalid(msg string, fields map[string]string) error {
	return &Error{Kind: KindValidation, Msg: msg, Fields: fields}
}

// KindOf classifies err; unknown errors are KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// FieldsOf returns validation field errors carried by err, if any.
func FieldsOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// Message is the client-facing message for err. Internal errors never leak.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Msg
	}
	return "internal server error"
}
