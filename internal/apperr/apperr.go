// Package apperr defines the engine's error vocabulary. Services return these
// values (wrapped with %w for context); HTTP handlers map the Kind to a status
// code in one place. Authorization and state-conflict failures are final;
// infrastructure failures are safe to retry because every multi-entity
// mutation is transactional.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindAuthorization  Kind = "authorization"
	KindConflict       Kind = "conflict"
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindInfrastructure Kind = "infrastructure"
)

// Sentinel errors. Each carries the violated invariant in its message so the
// user-visible failure is never generic.
var (
	ErrNotParty     = &Error{Kind: KindAuthorization, Message: "caller is not a party to this transaction"}
	ErrWrongParty   = &Error{Kind: KindAuthorization, Message: "this action belongs to the other party"}
	ErrAdminOnly    = &Error{Kind: KindAuthorization, Message: "administrative access required"}
	ErrAgentOnly    = &Error{Kind: KindAuthorization, Message: "only the listing agent may perform this action"}
	ErrSeekerOnly   = &Error{Kind: KindAuthorization, Message: "only the seeker may perform this action"}

	ErrSelfAcceptance = &Error{Kind: KindAuthorization, Message: "the party who proposed the active schedule cannot accept it"}

	ErrDuplicateRequest  = &Error{Kind: KindConflict, Message: "an active viewing request for this property already exists"}
	ErrReschedulePending = &Error{Kind: KindConflict, Message: "a reschedule request is already pending on this booking"}
	ErrAlreadyFinalized  = &Error{Kind: KindConflict, Message: "payment already released or refunded"}
	ErrPropertyLocked    = &Error{Kind: KindConflict, Message: "property is locked by another booking"}
	ErrInvalidTransition = &Error{Kind: KindConflict, Message: "action not valid for the current status"}
	ErrOutcomeConflict   = &Error{Kind: KindConflict, Message: "outcome already submitted or meeting not yet confirmed"}
	ErrDisputePending    = &Error{Kind: KindConflict, Message: "an open dispute suspends this action"}

	ErrPaymentRequired     = &Error{Kind: KindValidation, Message: "payment must be held in escrow before acceptance"}
	ErrNoScheduleAvailable = &Error{Kind: KindValidation, Message: "no proposed or countered schedule to accept"}
	ErrPackageUnavailable  = &Error{Kind: KindValidation, Message: "selected package is not currently available for this property"}
	ErrInvalidPayload      = &Error{Kind: KindValidation, Message: "invalid request payload"}

	ErrNotFound = &Error{Kind: KindNotFound, Message: "not found"}
)

// Error is a kinded error; sentinels above are compared with errors.Is.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// New builds an ad-hoc kinded error for cases the sentinels do not cover.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Infra wraps a storage/transaction failure so callers know a retry is safe.
func Infra(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s", &Error{Kind: KindInfrastructure, Message: "storage failure"}, err)
}

// KindOf extracts the Kind from an error chain; unknown errors are treated as
// infrastructure so callers default to retry-safe handling.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInfrastructure
}
