package domain

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeAlreadyProcessed    ErrorCode = "ALREADY_PROCESSED"
	CodeInsufficientFunds   ErrorCode = "INSUFFICIENT_FUNDS"
	CodeInsufficientHolding ErrorCode = "INSUFFICIENT_HOLDING"
	CodeInvalidArgument     ErrorCode = "INVALID_ARGUMENT"
	CodePermissionDenied    ErrorCode = "PERMISSION_DENIED"
	CodeWindowExpired       ErrorCode = "WINDOW_EXPIRED"
	CodeNotYetAllowed       ErrorCode = "NOT_YET_ALLOWED"
	CodeWalletMissing       ErrorCode = "WALLET_MISSING"
	CodeConflict            ErrorCode = "CONFLICT"
	CodeTransient           ErrorCode = "TRANSIENT"
)

// Error is the typed error returned by the ledger, the rental state machine and
// the payment flows. Two errors match under errors.Is when their codes match.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrNotFound            = &Error{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyProcessed    = &Error{Code: CodeAlreadyProcessed, Message: "already processed"}
	ErrInsufficientFunds   = &Error{Code: CodeInsufficientFunds, Message: "insufficient funds"}
	ErrInsufficientHolding = &Error{Code: CodeInsufficientHolding, Message: "insufficient holding balance"}
	ErrInvalidArgument     = &Error{Code: CodeInvalidArgument, Message: "invalid argument"}
	ErrPermissionDenied    = &Error{Code: CodePermissionDenied, Message: "permission denied"}
	ErrWindowExpired       = &Error{Code: CodeWindowExpired, Message: "window expired"}
	ErrNotYetAllowed       = &Error{Code: CodeNotYetAllowed, Message: "not yet allowed"}
	ErrWalletMissing       = &Error{Code: CodeWalletMissing, Message: "wallet missing"}
	ErrConflict            = &Error{Code: CodeConflict, Message: "conflict"}
	ErrTransient           = &Error{Code: CodeTransient, Message: "transient failure, retry"}
)

// Errorf builds a coded error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a code to an underlying error.
func WrapError(code ErrorCode, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code of the first *Error in the chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
