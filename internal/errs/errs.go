// Package errs defines the error taxonomy shared by the synchronous mint path
// and the asynchronous reconciliation path.
//
// ValidationError and ConflictError are surfaced to API callers and never
// retried. LedgerError marks a failed RPC/chain call and triggers the mint
// compensation. TransientSyncError and PermanentSyncError classify failures
// inside queue handlers: transient errors are retried with backoff, permanent
// errors go straight to the dead-letter list.
package errs

import (
	"errors"
	"fmt"
)

type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validation(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

func Conflict(format string, args ...interface{}) error {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}

// LedgerError wraps a failed ledger write or read. Op names the ledger
// operation that failed.
type LedgerError struct {
	Op  string
	Err error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger %s failed: %v", e.Op, e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }

func Ledger(op string, err error) error {
	return &LedgerError{Op: op, Err: err}
}

// TransientSyncError marks a reconciliation failure worth retrying, such as
// store contention or a network blip.
type TransientSyncError struct {
	Err error
}

func (e *TransientSyncError) Error() string {
	return fmt.Sprintf("transient sync failure: %v", e.Err)
}

func (e *TransientSyncError) Unwrap() error { return e.Err }

func Transient(format string, args ...interface{}) error {
	return &TransientSyncError{Err: fmt.Errorf(format, args...)}
}

// PermanentSyncError marks a reconciliation failure that cannot succeed on
// retry given the current data, such as a missing referenced entity or a
// malformed payload.
type PermanentSyncError struct {
	Err error
}

func (e *PermanentSyncError) Error() string {
	return fmt.Sprintf("permanent sync failure: %v", e.Err)
}

func (e *PermanentSyncError) Unwrap() error { return e.Err }

func Permanent(format string, args ...interface{}) error {
	return &PermanentSyncError{Err: fmt.Errorf(format, args...)}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

func IsLedger(err error) bool {
	var l *LedgerError
	return errors.As(err, &l)
}

func IsPermanent(err error) bool {
	var p *PermanentSyncError
	return errors.As(err, &p)
}

func IsTransient(err error) bool {
	var t *TransientSyncError
	return errors.As(err, &t)
}
