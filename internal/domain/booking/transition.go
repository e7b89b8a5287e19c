package booking

// Role is the part an actor plays in a booking.
type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
)

// Counterparty returns the other party of a booking.
func (r Role) Counterparty() Role {
	if r == RoleClient {
		return RoleProvider
	}
	return RoleClient
}

// Action is an operation an actor invokes against a booking.
type Action string

const (
	ActionAcceptWithQuote     Action = "accept_with_quote"
	ActionDecline             Action = "decline"
	ActionClientCancel        Action = "client_cancel"
	ActionClientEdit          Action = "client_edit"
	ActionStartJob            Action = "start_job"
	ActionCancel              Action = "cancel"
	ActionRequestCompletion   Action = "request_completion"
	ActionApproveCompletion   Action = "approve_completion"
	ActionRejectCompletion    Action = "reject_completion"
	ActionRequestCancellation Action = "request_cancellation"
	ActionApproveCancellation Action = "approve_cancellation"
	ActionRejectCancellation  Action = "reject_cancellation"
	ActionProposeAdjustment   Action = "propose_adjustment"
	ActionApproveAdjustment   Action = "approve_adjustment"
	ActionRejectAdjustment    Action = "reject_adjustment"
)

type transitionKey struct {
	from   BookingStatus
	action Action
}

type transitionRule struct {
	actors []Role
	to     BookingStatus
}

func (r transitionRule) allows(role Role) bool {
	for _, a := range r.actors {
		if a == role {
			return true
		}
	}
	return false
}

var (
	clientOnly   = []Role{RoleClient}
	providerOnly = []Role{RoleProvider}
	eitherParty  = []Role{RoleClient, RoleProvider}
)

// transitions is the complete action table. Approve and reject rows accept
// either party here; the request/approval protocol rejects the requester.
var transitions = map[transitionKey]transitionRule{
	{StatusPending, ActionAcceptWithQuote}: {providerOnly, StatusConfirmed},
	{StatusPending, ActionDecline}:         {providerOnly, StatusCancelled},
	{StatusPending, ActionClientCancel}:    {clientOnly, StatusCancelled},
	{StatusPending, ActionClientEdit}:      {clientOnly, StatusPending},

	{StatusConfirmed, ActionStartJob}: {providerOnly, StatusInProgress},
	{StatusConfirmed, ActionCancel}:   {eitherParty, StatusCancelled},

	{StatusInProgress, ActionRequestCompletion}:   {eitherParty, StatusInProgress},
	{StatusInProgress, ActionApproveCompletion}:   {eitherParty, StatusCompleted},
	{StatusInProgress, ActionRejectCompletion}:    {eitherParty, StatusInProgress},
	{StatusInProgress, ActionRequestCancellation}: {eitherParty, StatusInProgress},
	{StatusInProgress, ActionApproveCancellation}: {eitherParty, StatusCancelled},
	{StatusInProgress, ActionRejectCancellation}:  {eitherParty, StatusInProgress},
	{StatusInProgress, ActionProposeAdjustment}:   {eitherParty, StatusInProgress},
	{StatusInProgress, ActionApproveAdjustment}:   {eitherParty, StatusInProgress},
	{StatusInProgress, ActionRejectAdjustment}:    {eitherParty, StatusInProgress},
}

// Transition returns the status that results from role invoking action on a
// booking in status from. It fails with ErrBookingClosed for terminal
// statuses and ErrInvalidTransition for combinations outside the table.
func Transition(from BookingStatus, action Action, role Role) (BookingStatus, error) {
	if from.IsTerminal() {
		return "", newError(KindBookingClosed, "booking is %s", from)
	}
	rule, ok := transitions[transitionKey{from, action}]
	if !ok || !rule.allows(role) {
		return "", newError(KindInvalidTransition, "%s cannot %s a %s booking", role, action, from)
	}
	return rule.to, nil
}
