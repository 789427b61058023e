package db

import (
	"encoding/hex"
	"fmt"
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Operation executed successfully.
	RetCInternalError                       // 1: The underlying facility reported an I/O failure.
	RetCUnsupportedOperation                // 2: Operation is not supported by the backend.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCCorruptData                         // 4: Persisted data could not be decoded.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCCorruptData:
		return "CorruptData"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is returned by all fallible store operations. It carries the operation
// and key so the transaction owner can log it and decide whether to retry.
type Error struct {
	Code RetCode // The return code
	Op   string  // The operation that failed (e.g. "insert", "commit")
	Key  []byte  // The key the operation worked on, nil if not key scoped
	Err  error   // The cause reported by the facility
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("wkv (code %s): %s", e.Code, e.Op)
	if e.Key != nil {
		msg += " " + hex.EncodeToString(e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error with the given code, operation, key and cause.
func NewError(code RetCode, op string, key []byte, err error) *Error {
	return &Error{
		Code: code,
		Op:   op,
		Key:  key,
		Err:  err,
	}
}

// IOError wraps a facility failure for op on key.
func IOError(op string, key []byte, err error) *Error {
	return NewError(RetCInternalError, op, key, err)
}
