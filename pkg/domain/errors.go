package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is matching across the taxonomy. Every typed
// error below unwraps to exactly one of these.
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNotFound         = errors.New("not found")
	ErrAlreadyCompleted = errors.New("already completed")
	ErrOutOfOrder       = errors.New("out of order")
	ErrInvalidState     = errors.New("invalid state")
	ErrStorage          = errors.New("storage failure")
	ErrCorruptData      = errors.New("corrupt document")

	// ErrRevisionConflict marks a conditional save that lost a concurrent
	// write race. Only surfaced when optimistic locking is enabled.
	ErrRevisionConflict = errors.New("revision conflict")
)

// InvalidArgumentError reports bad caller input, e.g. a count below one.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Field, e.Reason)
}

// Unwrap ties the error to ErrInvalidArgument.
func (e InvalidArgumentError) Unwrap() error { return ErrInvalidArgument }

// NotFoundError reports an absent unit, day, or slot.
type NotFoundError struct {
	Kind string // "unit", "day", or "slot"
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// Unwrap ties the error to ErrNotFound.
func (e NotFoundError) Unwrap() error { return ErrNotFound }

// AlreadyCompletedError reports a second completion attempt on a loaded slot.
type AlreadyCompletedError struct {
	Slot SlotID
}

func (e AlreadyCompletedError) Error() string {
	return fmt.Sprintf("slot %s already has its planned total registered", e.Slot)
}

// Unwrap ties the error to ErrAlreadyCompleted.
func (e AlreadyCompletedError) Unwrap() error { return ErrAlreadyCompleted }

// OutOfOrderError reports a day-gating violation: an earlier day still has
// pending slots.
type OutOfOrderError struct {
	FirstPending DayKey
}

func (e OutOfOrderError) Error() string {
	return fmt.Sprintf("must finish day %s first", e.FirstPending)
}

// Unwrap ties the error to ErrOutOfOrder.
func (e OutOfOrderError) Unwrap() error { return ErrOutOfOrder }

// InvalidStateError reports a structural conflict, e.g. removing a slot that
// already has registered completions.
type InvalidStateError struct {
	Reason string
}

func (e InvalidStateError) Error() string { return e.Reason }

// Unwrap ties the error to ErrInvalidState.
func (e InvalidStateError) Unwrap() error { return ErrInvalidState }

// StorageError wraps an I/O failure from the document store. The engine never
// retries; callers surface it to the user and abort the operation.
type StorageError struct {
	Op  string
	Err error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

// Unwrap exposes both ErrStorage and the underlying cause.
func (e StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

// CorruptDataError reports a persisted document that fails validated parsing.
// The store boundary handles it locally by substituting an empty document.
type CorruptDataError struct {
	Reason string
}

func (e CorruptDataError) Error() string {
	return fmt.Sprintf("corrupt document: %s", e.Reason)
}

// Unwrap ties the error to ErrCorruptData.
func (e CorruptDataError) Unwrap() error { return ErrCorruptData }
