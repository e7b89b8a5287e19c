package booking

import "time"

// RequestStatus is the state of a two-party request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Request is a proposal made by one party that only the other party may
// decide. A nil *Request is an empty slot.
type Request[P any] struct {
	Status      RequestStatus `json:"status"`
	RequestedBy Role          `json:"requested_by"`
	Details     P             `json:"details"`
	RequestedAt time.Time     `json:"requested_at"`
	ResolvedAt  *time.Time    `json:"resolved_at,omitempty"`
}

// IsPending reports whether the slot holds an undecided request.
func (r *Request[P]) IsPending() bool {
	return r != nil && r.Status == RequestPending
}

// CancellationDetails is the payload of a cancellation request.
type CancellationDetails struct {
	Reason string `json:"reason"`
}

// CompletionDetails is the payload of a completion request. PaymentMethod is
// set when the client files the request.
type CompletionDetails struct {
	Notes         string        `json:"notes"`
	PaymentMethod PaymentMethod `json:"payment_method,omitempty"`
}

// AdjustmentDetails is the payload of a mid-job price adjustment.
type AdjustmentDetails struct {
	NewPriceCents      int64  `json:"new_price_cents"`
	PreviousPriceCents int64  `json:"previous_price_cents"`
	Reason             string `json:"reason"`
}

type negotiation string

const (
	negotiationCompletion   negotiation = "completion"
	negotiationCancellation negotiation = "cancellation"
	negotiationAdjustment   negotiation = "price adjustment"
)

// propose opens a new request in an empty or decided slot.
func propose[P any](kind negotiation, slot *Request[P], by Role, details P, now time.Time) (*Request[P], error) {
	if slot.IsPending() {
		return nil, newError(KindDuplicateRequest, "a %s request is already pending", kind)
	}
	return &Request[P]{
		Status:      RequestPending,
		RequestedBy: by,
		Details:     details,
		RequestedAt: now,
	}, nil
}

// decide checks that by may approve or reject the request in slot.
func decide[P any](kind negotiation, slot *Request[P], by Role) error {
	if !slot.IsPending() {
		return newError(KindNoPendingRequest, "no pending %s request", kind)
	}
	if slot.RequestedBy == by {
		return newError(KindSelfApproval, "%s cannot decide its own %s request, the %s must", by, kind, by.Counterparty())
	}
	return nil
}

// resolved returns a copy of slot marked with the given decision.
func resolved[P any](slot *Request[P], status RequestStatus, now time.Time) *Request[P] {
	out := *slot
	out.Status = status
	out.ResolvedAt = &now
	return &out
}
