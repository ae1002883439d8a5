package solana

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure classes produced by the transaction
// pipeline and the RPC client.
type ErrorKind string

const (
	KindInvalidAddress      ErrorKind = "InvalidAddress"
	KindInvalidBlockhash    ErrorKind = "InvalidBlockhash"
	KindInvalidEncoding     ErrorKind = "InvalidEncoding"
	KindKeyMismatch         ErrorKind = "KeyMismatch"
	KindInsufficientFunds   ErrorKind = "InsufficientFunds"
	KindTooManyAccounts     ErrorKind = "TooManyAccounts"
	KindRPCTransport        ErrorKind = "RpcTransportError"
	KindRPCLogic            ErrorKind = "RpcLogicError"
	KindConfirmationTimeout ErrorKind = "ConfirmationTimeout"
)

// Sentinels for errors.Is matching against a kind.
var (
	ErrInvalidAddress      = &Error{Kind: KindInvalidAddress}
	ErrInvalidBlockhash    = &Error{Kind: KindInvalidBlockhash}
	ErrInvalidEncoding     = &Error{Kind: KindInvalidEncoding}
	ErrKeyMismatch         = &Error{Kind: KindKeyMismatch}
	ErrInsufficientFunds   = &Error{Kind: KindInsufficientFunds}
	ErrTooManyAccounts     = &Error{Kind: KindTooManyAccounts}
	ErrRPCTransport        = &Error{Kind: KindRPCTransport}
	ErrRPCLogic            = &Error{Kind: KindRPCLogic}
	ErrConfirmationTimeout = &Error{Kind: KindConfirmationTimeout}
)

// Error is the error type returned by this package.
type Error struct {
	Kind    ErrorKind
	Op      string // operation or RPC method that failed
	Message string
	Code    int // JSON-RPC error code or HTTP status, zero when not applicable
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the package sentinels work with
// errors.Is regardless of Op or Message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Retryable reports whether a caller may retry the whole operation with a
// fresh blockhash.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRPCTransport:
		return true
	case KindRPCLogic:
		return IsBlockhashExpired(e)
	default:
		return false
	}
}

// KindOf returns the kind of err, or "" if err does not carry one.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var ife *InsufficientFundsError
	if errors.As(err, &ife) {
		return KindInsufficientFunds
	}
	return ""
}

func newError(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// InsufficientFundsError carries the amounts behind a failed balance check.
type InsufficientFundsError struct {
	Address string
	Have    uint64
	Need    uint64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("%s: balance %d lamports, need %d lamports", KindInsufficientFunds, e.Have, e.Need)
}

func (e *InsufficientFundsError) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == KindInsufficientFunds
}
