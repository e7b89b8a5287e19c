package booking

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/servicehub/service-booking/internal/common/domain"
)

const bookingNumberChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

var (
	timeOfDay    = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
	currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)
)

// Free-text limits, in characters. They match the sizes of the columns and
// request slots the text is stored in.
const (
	maxTitleLength       = 200
	maxDescriptionLength = 4000
	maxAddressLength     = 500
	maxReasonLength      = 500
	maxNotesLength       = 2000
)

func checkLength(field, value string, limit int) error {
	if utf8.RuneCountInString(value) > limit {
		return domain.NewValidationError(fmt.Sprintf("%s must be at most %d characters", field, limit))
	}
	return nil
}

func checkReason(reason string) error {
	return checkLength("reason", strings.TrimSpace(reason), maxReasonLength)
}

// Party identifies one side of a booking. Only ID takes part in any rule.
type Party struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
}

// Schedule is when the client wants the job done.
type Schedule struct {
	Date          time.Time  `json:"date"`
	Time          string     `json:"time"`
	AlternateDate *time.Time `json:"alternate_date,omitempty"`
	AlternateTime string     `json:"alternate_time,omitempty"`
}

func (s Schedule) validate() error {
	if s.Date.IsZero() {
		return domain.NewValidationError("scheduled date is required")
	}
	if !timeOfDay.MatchString(s.Time) {
		return domain.NewValidationError("scheduled time must be HH:MM")
	}
	if s.AlternateTime != "" && !timeOfDay.MatchString(s.AlternateTime) {
		return domain.NewValidationError("alternate time must be HH:MM")
	}
	if s.AlternateTime != "" && s.AlternateDate == nil {
		return domain.NewValidationError("alternate time requires an alternate date")
	}
	return nil
}

// Details is the client's description of the job at creation.
type Details struct {
	Title          string
	Description    string
	Address        string
	Schedule       Schedule
	BudgetMinCents int64
	BudgetMaxCents int64
	Currency       string
}

// Edit holds the fields a client may change while the booking is pending.
// Nil fields are left as they are.
type Edit struct {
	Title       *string
	Description *string
	Address     *string
	Schedule    *Schedule
}

// Booking is the aggregate root for the booking domain.
type Booking struct {
	id            uuid.UUID
	bookingNumber string
	status        BookingStatus
	client        Party
	provider      Party

	title       string
	description string
	address     string
	schedule    Schedule

	budgetMinCents   int64
	budgetMaxCents   int64
	currency         string
	priceCents       *int64
	agreedPriceCents *int64

	cancellationRequest *Request[CancellationDetails]
	completionRequest   *Request[CompletionDetails]
	priceAdjustment     *Request[AdjustmentDetails]
	payment             *Payment
	review              *Review

	confirmedAt *time.Time
	startedAt   *time.Time
	completedAt *time.Time
	cancelledAt *time.Time
	cancelledBy Role
	cancelNote  string

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// generateBookingNumber creates a booking number in the format "BK-XXXXXX".
func generateBookingNumber() (string, error) {
	result := make([]byte, 6)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(bookingNumberChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate booking number: %w", err)
		}
		result[i] = bookingNumberChars[n.Int64()]
	}
	return "BK-" + string(result), nil
}

// NewBooking creates a new Booking aggregate with status=pending.
func NewBooking(client, provider Party, details Details) (*Booking, error) {
	if client.ID == uuid.Nil {
		return nil, domain.NewValidationError("client ID is required")
	}
	if provider.ID == uuid.Nil {
		return nil, domain.NewValidationError("provider ID is required")
	}
	if client.ID == provider.ID {
		return nil, domain.NewValidationError("client and provider must be different users")
	}
	if strings.TrimSpace(details.Title) == "" {
		return nil, domain.NewValidationError("title is required")
	}
	if err := checkLength("title", strings.TrimSpace(details.Title), maxTitleLength); err != nil {
		return nil, err
	}
	if err := checkLength("description", details.Description, maxDescriptionLength); err != nil {
		return nil, err
	}
	if err := checkLength("address", details.Address, maxAddressLength); err != nil {
		return nil, err
	}
	if err := details.Schedule.validate(); err != nil {
		return nil, err
	}
	if details.BudgetMinCents < 0 || details.BudgetMaxCents < details.BudgetMinCents {
		return nil, domain.NewValidationError("budget range must satisfy 0 <= min <= max")
	}
	currency := strings.ToUpper(strings.TrimSpace(details.Currency))
	if currency == "" {
		currency = domain.CurrencyUSD
	}
	if !currencyCode.MatchString(currency) {
		return nil, domain.NewValidationError("currency must be a three-letter ISO code")
	}

	bookingNumber, err := generateBookingNumber()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Booking{
		id:             uuid.New(),
		bookingNumber:  bookingNumber,
		status:         StatusPending,
		client:         client,
		provider:       provider,
		title:          strings.TrimSpace(details.Title),
		description:    details.Description,
		address:        details.Address,
		schedule:       details.Schedule,
		budgetMinCents: details.BudgetMinCents,
		budgetMaxCents: details.BudgetMaxCents,
		currency:       currency,
		version:        1,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// Snapshot is the full persisted state of a booking.
type Snapshot struct {
	ID                  uuid.UUID
	BookingNumber       string
	Status              BookingStatus
	Client              Party
	Provider            Party
	Title               string
	Description         string
	Address             string
	Schedule            Schedule
	BudgetMinCents      int64
	BudgetMaxCents      int64
	Currency            string
	PriceCents          *int64
	AgreedPriceCents    *int64
	CancellationRequest *Request[CancellationDetails]
	CompletionRequest   *Request[CompletionDetails]
	PriceAdjustment     *Request[AdjustmentDetails]
	Payment             *Payment
	Review              *Review
	ConfirmedAt         *time.Time
	StartedAt           *time.Time
	CompletedAt         *time.Time
	CancelledAt         *time.Time
	CancelledBy         Role
	CancelNote          string
	Version             int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(s Snapshot) *Booking {
	return &Booking{
		id:                  s.ID,
		bookingNumber:       s.BookingNumber,
		status:              s.Status,
		client:              s.Client,
		provider:            s.Provider,
		title:               s.Title,
		description:         s.Description,
		address:             s.Address,
		schedule:            s.Schedule,
		budgetMinCents:      s.BudgetMinCents,
		budgetMaxCents:      s.BudgetMaxCents,
		currency:            s.Currency,
		priceCents:          s.PriceCents,
		agreedPriceCents:    s.AgreedPriceCents,
		cancellationRequest: s.CancellationRequest,
		completionRequest:   s.CompletionRequest,
		priceAdjustment:     s.PriceAdjustment,
		payment:             s.Payment,
		review:              s.Review,
		confirmedAt:         s.ConfirmedAt,
		startedAt:           s.StartedAt,
		completedAt:         s.CompletedAt,
		cancelledAt:         s.CancelledAt,
		cancelledBy:         s.CancelledBy,
		cancelNote:          s.CancelNote,
		version:             s.Version,
		createdAt:           s.CreatedAt,
		updatedAt:           s.UpdatedAt,
	}
}

// Snapshot returns the booking's state for persistence.
func (b *Booking) Snapshot() Snapshot {
	return Snapshot{
		ID:                  b.id,
		BookingNumber:       b.bookingNumber,
		Status:              b.status,
		Client:              b.client,
		Provider:            b.provider,
		Title:               b.title,
		Description:         b.description,
		Address:             b.address,
		Schedule:            b.schedule,
		BudgetMinCents:      b.budgetMinCents,
		BudgetMaxCents:      b.budgetMaxCents,
		Currency:            b.currency,
		PriceCents:          b.priceCents,
		AgreedPriceCents:    b.agreedPriceCents,
		CancellationRequest: b.cancellationRequest,
		CompletionRequest:   b.completionRequest,
		PriceAdjustment:     b.priceAdjustment,
		Payment:             b.payment,
		Review:              b.review,
		ConfirmedAt:         b.confirmedAt,
		StartedAt:           b.startedAt,
		CompletedAt:         b.completedAt,
		CancelledAt:         b.cancelledAt,
		CancelledBy:         b.cancelledBy,
		CancelNote:          b.cancelNote,
		Version:             b.version,
		CreatedAt:           b.createdAt,
		UpdatedAt:           b.updatedAt,
	}
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// BookingNumber returns the human-readable booking number.
func (b *Booking) BookingNumber() string { return b.bookingNumber }

// Status returns the current booking status.
func (b *Booking) Status() BookingStatus { return b.status }

// Client returns the client party.
func (b *Booking) Client() Party { return b.client }

// Provider returns the provider party.
func (b *Booking) Provider() Party { return b.provider }

// Title returns the short job title.
func (b *Booking) Title() string { return b.title }

// Description returns the client's job description.
func (b *Booking) Description() string { return b.description }

// Address returns the service address.
func (b *Booking) Address() string { return b.address }

// Schedule returns the requested schedule.
func (b *Booking) Schedule() Schedule { return b.schedule }

// BudgetMinCents returns the lower bound of the client's budget.
func (b *Booking) BudgetMinCents() int64 { return b.budgetMinCents }

// BudgetMaxCents returns the upper bound of the client's budget.
func (b *Booking) BudgetMaxCents() int64 { return b.budgetMaxCents }

// Currency returns the currency code.
func (b *Booking) Currency() string { return b.currency }

// PriceCents returns the current working price, or nil before the quote.
func (b *Booking) PriceCents() *int64 { return b.priceCents }

// AgreedPriceCents returns the price used for settlement, or nil before the quote.
func (b *Booking) AgreedPriceCents() *int64 { return b.agreedPriceCents }

// CancellationRequest returns the cancellation slot, nil when empty.
func (b *Booking) CancellationRequest() *Request[CancellationDetails] { return b.cancellationRequest }

// CompletionRequest returns the completion slot, nil when empty.
func (b *Booking) CompletionRequest() *Request[CompletionDetails] { return b.completionRequest }

// PriceAdjustment returns the latest price adjustment, nil when none.
func (b *Booking) PriceAdjustment() *Request[AdjustmentDetails] { return b.priceAdjustment }

// Payment returns the settlement record, or nil until the booking is completed.
func (b *Booking) Payment() *Payment { return b.payment }

// Review returns the client's review, or nil.
func (b *Booking) Review() *Review { return b.review }

// ConfirmedAt returns when the provider accepted the booking.
func (b *Booking) ConfirmedAt() *time.Time { return b.confirmedAt }

// StartedAt returns when the job started.
func (b *Booking) StartedAt() *time.Time { return b.startedAt }

// CompletedAt returns when the booking was completed.
func (b *Booking) CompletedAt() *time.Time { return b.completedAt }

// CancelledAt returns when the booking was cancelled.
func (b *Booking) CancelledAt() *time.Time { return b.cancelledAt }

// CancelledBy returns the role that cancelled or whose request cancelled the booking.
func (b *Booking) CancelledBy() Role { return b.cancelledBy }

// CancelNote returns the cancellation reason.
func (b *Booking) CancelNote() string { return b.cancelNote }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// RoleOf returns the role actorID plays in the booking.
func (b *Booking) RoleOf(actorID uuid.UUID) (Role, error) {
	switch actorID {
	case uuid.Nil:
	case b.client.ID:
		return RoleClient, nil
	case b.provider.ID:
		return RoleProvider, nil
	}
	return "", domain.NewForbiddenError("user is not a party to this booking")
}

// authorize resolves the actor's role and validates the action against the
// transition table, returning the role and the target status.
func (b *Booking) authorize(action Action, actorID uuid.UUID) (Role, BookingStatus, error) {
	role, err := b.RoleOf(actorID)
	if err != nil {
		return "", "", err
	}
	to, err := Transition(b.status, action, role)
	if err != nil {
		return "", "", err
	}
	return role, to, nil
}

// --- Behavior ---

// Decline lets the provider turn down a pending booking.
func (b *Booking) Decline(actorID uuid.UUID, reason string) error {
	role, to, err := b.authorize(ActionDecline, actorID)
	if err != nil {
		return err
	}
	if err := checkReason(reason); err != nil {
		return err
	}
	b.cancel(to, role, reason)
	return nil
}

// ClientCancel lets the client withdraw a pending booking.
func (b *Booking) ClientCancel(actorID uuid.UUID, reason string) error {
	role, to, err := b.authorize(ActionClientCancel, actorID)
	if err != nil {
		return err
	}
	if err := checkReason(reason); err != nil {
		return err
	}
	b.cancel(to, role, reason)
	return nil
}

// EditDetails applies a client edit to a pending booking. The budget range is
// fixed at creation and cannot be edited.
func (b *Booking) EditDetails(actorID uuid.UUID, edit Edit) error {
	if _, _, err := b.authorize(ActionClientEdit, actorID); err != nil {
		return err
	}
	if edit.Title != nil {
		if strings.TrimSpace(*edit.Title) == "" {
			return domain.NewValidationError("title cannot be empty")
		}
		if err := checkLength("title", strings.TrimSpace(*edit.Title), maxTitleLength); err != nil {
			return err
		}
	}
	if edit.Description != nil {
		if err := checkLength("description", *edit.Description, maxDescriptionLength); err != nil {
			return err
		}
	}
	if edit.Address != nil {
		if err := checkLength("address", *edit.Address, maxAddressLength); err != nil {
			return err
		}
	}
	if edit.Schedule != nil {
		if err := edit.Schedule.validate(); err != nil {
			return err
		}
	}

	if edit.Title != nil {
		b.title = strings.TrimSpace(*edit.Title)
	}
	if edit.Description != nil {
		b.description = *edit.Description
	}
	if edit.Address != nil {
		b.address = *edit.Address
	}
	if edit.Schedule != nil {
		b.schedule = *edit.Schedule
	}
	b.updatedAt = time.Now().UTC()
	return nil
}

// StartJob transitions a confirmed booking to in_progress.
func (b *Booking) StartJob(actorID uuid.UUID) error {
	_, to, err := b.authorize(ActionStartJob, actorID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	b.status = to
	b.startedAt = &now
	b.updatedAt = now
	return nil
}

// CancelConfirmed cancels a confirmed booking. Either party may do so
// without the other's approval because no work has started.
func (b *Booking) CancelConfirmed(actorID uuid.UUID, reason string) error {
	role, to, err := b.authorize(ActionCancel, actorID)
	if err != nil {
		return err
	}
	if err := checkReason(reason); err != nil {
		return err
	}
	b.cancel(to, role, reason)
	return nil
}

// RequestCompletion files a completion request on an in_progress booking.
// When the client files it, method is the payment method used at settlement.
func (b *Booking) RequestCompletion(actorID uuid.UUID, notes string, method PaymentMethod) error {
	role, _, err := b.authorize(ActionRequestCompletion, actorID)
	if err != nil {
		return err
	}
	if b.cancellationRequest.IsPending() {
		return newError(KindDuplicateRequest, "a cancellation request is already pending")
	}
	if b.priceAdjustment.IsPending() {
		return newError(KindNegotiationConflict, "resolve the pending price adjustment before requesting completion")
	}
	details := CompletionDetails{Notes: strings.TrimSpace(notes)}
	if err := checkLength("notes", details.Notes, maxNotesLength); err != nil {
		return err
	}
	if role == RoleClient {
		if !method.IsValid() {
			return newError(KindInvalidPaymentMethod, "unsupported payment method %q", method)
		}
		details.PaymentMethod = method
	}

	now := time.Now().UTC()
	req, err := propose(negotiationCompletion, b.completionRequest, role, details, now)
	if err != nil {
		return err
	}
	b.completionRequest = req
	b.updatedAt = now
	return nil
}

// ApproveCompletion completes the booking on the counterparty's approval.
// Settlement runs against the agreed price before the status changes; if it
// fails the booking is left untouched. method is required when the client
// approves and ignored when the provider approves a client's request.
func (b *Booking) ApproveCompletion(actorID uuid.UUID, method PaymentMethod) error {
	role, to, err := b.authorize(ActionApproveCompletion, actorID)
	if err != nil {
		return err
	}
	if err := decide(negotiationCompletion, b.completionRequest, role); err != nil {
		return err
	}
	if b.priceAdjustment.IsPending() {
		return newError(KindNegotiationConflict, "resolve the pending price adjustment before completing")
	}
	if role == RoleProvider {
		method = b.completionRequest.Details.PaymentMethod
	}
	if b.agreedPriceCents == nil {
		return newError(KindInvalidPrice, "booking has no agreed price")
	}

	now := time.Now().UTC()
	payment, err := newPayment(b.bookingNumber, method, *b.agreedPriceCents, now)
	if err != nil {
		return err
	}

	b.payment = payment
	b.completionRequest = nil
	b.status = to
	b.completedAt = &now
	b.updatedAt = now
	return nil
}

// RejectCompletion clears a pending completion request.
func (b *Booking) RejectCompletion(actorID uuid.UUID) error {
	role, _, err := b.authorize(ActionRejectCompletion, actorID)
	if err != nil {
		return err
	}
	if err := decide(negotiationCompletion, b.completionRequest, role); err != nil {
		return err
	}
	b.completionRequest = nil
	b.updatedAt = time.Now().UTC()
	return nil
}

// RequestCancellation files a cancellation request on an in_progress booking.
func (b *Booking) RequestCancellation(actorID uuid.UUID, reason string) error {
	role, _, err := b.authorize(ActionRequestCancellation, actorID)
	if err != nil {
		return err
	}
	if b.completionRequest.IsPending() {
		return newError(KindDuplicateRequest, "a completion request is already pending")
	}
	if err := checkReason(reason); err != nil {
		return err
	}
	now := time.Now().UTC()
	req, err := propose(negotiationCancellation, b.cancellationRequest, role,
		CancellationDetails{Reason: strings.TrimSpace(reason)}, now)
	if err != nil {
		return err
	}
	b.cancellationRequest = req
	b.updatedAt = now
	return nil
}

// ApproveCancellation cancels the booking on the counterparty's approval.
// A pending price adjustment is rejected in the same step.
func (b *Booking) ApproveCancellation(actorID uuid.UUID) error {
	role, to, err := b.authorize(ActionApproveCancellation, actorID)
	if err != nil {
		return err
	}
	if err := decide(negotiationCancellation, b.cancellationRequest, role); err != nil {
		return err
	}
	req := b.cancellationRequest
	if b.priceAdjustment.IsPending() {
		b.priceAdjustment = resolved(b.priceAdjustment, RequestRejected, time.Now().UTC())
	}
	b.cancellationRequest = nil
	b.cancel(to, req.RequestedBy, req.Details.Reason)
	return nil
}

// RejectCancellation clears a pending cancellation request.
func (b *Booking) RejectCancellation(actorID uuid.UUID) error {
	role, _, err := b.authorize(ActionRejectCancellation, actorID)
	if err != nil {
		return err
	}
	if err := decide(negotiationCancellation, b.cancellationRequest, role); err != nil {
		return err
	}
	b.cancellationRequest = nil
	b.updatedAt = time.Now().UTC()
	return nil
}

func (b *Booking) cancel(to BookingStatus, by Role, reason string) {
	now := time.Now().UTC()
	b.status = to
	b.cancelledBy = by
	b.cancelNote = strings.TrimSpace(reason)
	b.cancelledAt = &now
	b.updatedAt = now
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
	b.updatedAt = time.Now().UTC()
}
