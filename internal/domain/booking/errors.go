package booking

import "fmt"

// ErrorKind identifies a booking rule violation.
type ErrorKind string

const (
	KindInvalidTransition      ErrorKind = "INVALID_TRANSITION"
	KindBookingClosed          ErrorKind = "BOOKING_CLOSED"
	KindDuplicateRequest       ErrorKind = "DUPLICATE_REQUEST"
	KindNoPendingRequest       ErrorKind = "NO_PENDING_REQUEST"
	KindSelfApproval           ErrorKind = "SELF_APPROVAL"
	KindInvalidPrice           ErrorKind = "INVALID_PRICE"
	KindInvalidPaymentMethod   ErrorKind = "INVALID_PAYMENT_METHOD"
	KindNegotiationConflict    ErrorKind = "NEGOTIATION_CONFLICT"
	KindNotEligible            ErrorKind = "NOT_ELIGIBLE"
	KindAlreadyReviewed        ErrorKind = "ALREADY_REVIEWED"
	KindConcurrentModification ErrorKind = "CONCURRENT_MODIFICATION"
)

// Error is a booking rule violation. The record it was raised against is
// left unchanged.
type Error struct {
	Kind    ErrorKind
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidTransition      = &Error{Kind: KindInvalidTransition}
	ErrBookingClosed          = &Error{Kind: KindBookingClosed}
	ErrDuplicateRequest       = &Error{Kind: KindDuplicateRequest}
	ErrNoPendingRequest       = &Error{Kind: KindNoPendingRequest}
	ErrSelfApproval           = &Error{Kind: KindSelfApproval}
	ErrInvalidPrice           = &Error{Kind: KindInvalidPrice}
	ErrInvalidPaymentMethod   = &Error{Kind: KindInvalidPaymentMethod}
	ErrNegotiationConflict    = &Error{Kind: KindNegotiationConflict}
	ErrNotEligible            = &Error{Kind: KindNotEligible}
	ErrAlreadyReviewed        = &Error{Kind: KindAlreadyReviewed}
	ErrConcurrentModification = &Error{Kind: KindConcurrentModification}
)

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewConcurrentModificationError reports a lost optimistic-lock race.
func NewConcurrentModificationError(message string) *Error {
	return &Error{Kind: KindConcurrentModification, Message: message}
}
