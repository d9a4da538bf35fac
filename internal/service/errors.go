package service

import (
	"errors"
	"fmt"

	"venuebook/internal/database"
	"venuebook/internal/repository"
)

// Kind classifies a rejected booking request.
type Kind string

const (
	KindNotFound         Kind = "NotFound"
	KindInvalidDate      Kind = "InvalidDate"
	KindInvalidSlot      Kind = "InvalidSlot"
	KindInvalidRequest   Kind = "InvalidRequest"
	KindSlotConflict     Kind = "SlotConflict"
	KindCapacityExceeded Kind = "CapacityExceeded"
	KindLockedWindow     Kind = "LockedWindow"
	KindAlreadyCancelled Kind = "AlreadyCancelled"
	KindUnauthorized     Kind = "Unauthorized"
	KindInternal         Kind = "Internal"
)

// Error is the caller-visible outcome of a rejected operation.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind so errors.Is(err, ErrSlotConflict) works for any message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrInvalidDate      = &Error{Kind: KindInvalidDate}
	ErrInvalidSlot      = &Error{Kind: KindInvalidSlot}
	ErrInvalidRequest   = &Error{Kind: KindInvalidRequest}
	ErrSlotConflict     = &Error{Kind: KindSlotConflict}
	ErrCapacityExceeded = &Error{Kind: KindCapacityExceeded}
	ErrLockedWindow     = &Error{Kind: KindLockedWindow}
	ErrAlreadyCancelled = &Error{Kind: KindAlreadyCancelled}
	ErrUnauthorized     = &Error{Kind: KindUnauthorized}
	ErrInternal         = &Error{Kind: KindInternal}
)

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the kind of err; anything unclassified is Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// translate maps store and lock failures onto the booking error taxonomy.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}

	var taken *database.SlotTakenError
	switch {
	case errors.As(err, &taken):
		return &Error{Kind: KindSlotConflict, Message: fmt.Sprintf("slot %s on %s is already booked", taken.Slot, taken.Date), Err: err}
	case errors.Is(err, database.ErrSlotTaken):
		return &Error{Kind: KindSlotConflict, Message: err.Error(), Err: err}
	case errors.Is(err, database.ErrNotFound):
		return &Error{Kind: KindNotFound, Message: err.Error(), Err: err}
	case errors.Is(err, database.ErrCapacityExceeded):
		return &Error{Kind: KindCapacityExceeded, Message: "not enough participant slots available", Err: err}
	case errors.Is(err, database.ErrAlreadyCancelled):
		return &Error{Kind: KindAlreadyCancelled, Message: "booking is already cancelled", Err: err}
	case errors.Is(err, database.ErrConcurrentModification):
		return &Error{Kind: KindInternal, Message: "booking changed while the request was processed, retry", Err: err}
	case errors.Is(err, repository.ErrLockTimeout):
		return &Error{Kind: KindInternal, Message: "resource is busy, retry later", Err: err}
	default:
		return &Error{Kind: KindInternal, Message: "internal error", Err: err}
	}
}
