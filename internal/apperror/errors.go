// Package apperror defines the error taxonomy surfaced by the booking core.
// Every failure a caller must react to is an *Error carrying a Kind (the
// coarse class used for transport mapping) and a Code (the precise reason).
// Sentinel values let callers match with errors.Is.
package apperror

import (
	"errors"
	"fmt"
)

// Kind is the coarse error class.
type Kind string

const (
	KindInvalidInput         Kind = "INVALID_INPUT"
	KindNotFound             Kind = "NOT_FOUND"
	KindInvalidTransition    Kind = "INVALID_TRANSITION"
	KindForbiddenFieldChange Kind = "FORBIDDEN_FIELD_CHANGE"
	KindPolicyWindowClosed   Kind = "POLICY_WINDOW_CLOSED"
	KindHoldExpired          Kind = "HOLD_EXPIRED"
	KindHoldAlreadyConsumed  Kind = "HOLD_ALREADY_CONSUMED"
	KindHoldSlotMismatch     Kind = "HOLD_SLOT_MISMATCH"
	KindSlotConflict         Kind = "SLOT_CONFLICT"
)

// Error is the structured failure returned by the core.
type Error struct {
	Kind     Kind
	Code     string
	Message  string
	Fields   []string        // offending fields for ForbiddenFieldChange
	Conflict *ConflictDetail // populated for SlotConflict
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// Is matches any *Error with the same Code so wrapped, annotated copies
// still compare equal to the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy of e carrying a formatted message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	out := *e
	out.Message = fmt.Sprintf(format, args...)
	return &out
}

var (
	ErrInvalidInput         = &Error{Kind: KindInvalidInput, Code: "invalid_input"}
	ErrInvalidTimeFormat    = &Error{Kind: KindInvalidInput, Code: "invalid_time_format"}
	ErrInvalidPartySize     = &Error{Kind: KindInvalidInput, Code: "invalid_party_size"}
	ErrPartySizeNotServed   = &Error{Kind: KindInvalidInput, Code: "party_size_not_served"}
	ErrTableTooSmall        = &Error{Kind: KindInvalidInput, Code: "table_too_small"}
	ErrVenueNotFound        = &Error{Kind: KindNotFound, Code: "venue_not_found"}
	ErrTableNotFound        = &Error{Kind: KindNotFound, Code: "table_not_found"}
	ErrReservationNotFound  = &Error{Kind: KindNotFound, Code: "reservation_not_found"}
	ErrHoldNotFound         = &Error{Kind: KindNotFound, Code: "hold_not_found"}
	ErrInvalidTransition    = &Error{Kind: KindInvalidTransition, Code: "invalid_transition"}
	ErrForbiddenFieldChange = &Error{Kind: KindForbiddenFieldChange, Code: "forbidden_field_change"}
	ErrPolicyWindowClosed   = &Error{Kind: KindPolicyWindowClosed, Code: "policy_window_closed"}
	ErrHoldExpired          = &Error{Kind: KindHoldExpired, Code: "hold_expired"}
	ErrHoldAlreadyConsumed  = &Error{Kind: KindHoldAlreadyConsumed, Code: "hold_already_consumed"}
	ErrHoldSlotMismatch     = &Error{Kind: KindHoldSlotMismatch, Code: "hold_slot_mismatch"}
	ErrSlotConflict         = &Error{Kind: KindSlotConflict, Code: "slot_conflict"}
)

// SlotConflict builds the conflict error carrying its structured detail.
func SlotConflict(detail ConflictDetail) *Error {
	out := *ErrSlotConflict
	out.Message = fmt.Sprintf("%d overlapping booking(s) at %s %s", len(detail.Entries), detail.Date, detail.Time)
	out.Conflict = &detail
	return &out
}

// ForbiddenFields reports guest attempts to change non-contact fields.
func ForbiddenFields(fields ...string) *Error {
	out := *ErrForbiddenFieldChange
	out.Fields = fields
	out.Message = fmt.Sprintf("guests may not change %v", fields)
	return &out
}

// As extracts the *Error from err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or "" for errors outside the taxonomy.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// IsNotFound checks if the error is any not-found error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsInvalidInput checks if the error is any validation error.
func IsInvalidInput(err error) bool { return KindOf(err) == KindInvalidInput }

// IsSlotConflict checks if the error is a slot conflict.
func IsSlotConflict(err error) bool { return errors.Is(err, ErrSlotConflict) }
