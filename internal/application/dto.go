package application

import (
	"time"

	"github.com/google/uuid"

	bookingDomain "github.com/servicehub/service-booking/internal/domain/booking"
)

const dateLayout = "2006-01-02"

// PartyInfo is the contact detail a caller supplies for one side of a booking.
type PartyInfo struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
}

// ScheduleInput is the wire form of a schedule. Dates are YYYY-MM-DD and
// times HH:MM.
type ScheduleInput struct {
	Date          string `json:"date" binding:"required"`
	Time          string `json:"time" binding:"required"`
	AlternateDate string `json:"alternate_date"`
	AlternateTime string `json:"alternate_time"`
}

// CreateBookingRequest holds the data needed to create a new booking.
type CreateBookingRequest struct {
	ProviderID     uuid.UUID     `json:"provider_id" binding:"required"`
	Provider       PartyInfo     `json:"provider"`
	Client         PartyInfo     `json:"client"`
	Title          string        `json:"title" binding:"required,max=200"`
	Description    string        `json:"description" binding:"max=4000"`
	Address        string        `json:"address" binding:"max=500"`
	Schedule       ScheduleInput `json:"schedule"`
	BudgetMinCents int64         `json:"budget_min_cents"`
	BudgetMaxCents int64         `json:"budget_max_cents"`
	Currency       string        `json:"currency" binding:"omitempty,len=3"`
}

// VersionGuard rejects the action when the booking moved past ExpectedVersion.
type VersionGuard struct {
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
}

// EditBookingRequest holds the fields a client may change on a pending booking.
type EditBookingRequest struct {
	VersionGuard
	Title       *string        `json:"title" binding:"omitempty,max=200"`
	Description *string        `json:"description" binding:"omitempty,max=4000"`
	Address     *string        `json:"address" binding:"omitempty,max=500"`
	Schedule    *ScheduleInput `json:"schedule"`
}

// QuoteRequest is a provider accepting a pending booking at a price.
type QuoteRequest struct {
	VersionGuard
	PriceCents int64 `json:"price_cents"`
}

// ReasonRequest carries an optional free-text reason.
type ReasonRequest struct {
	VersionGuard
	Reason string `json:"reason" binding:"max=500"`
}

// CompletionRequest files a completion request. PaymentMethod is required
// when the client files it.
type CompletionRequest struct {
	VersionGuard
	Notes         string `json:"notes" binding:"max=2000"`
	PaymentMethod string `json:"payment_method"`
}

// ApproveCompletionRequest approves a pending completion. PaymentMethod is
// required when the client approves.
type ApproveCompletionRequest struct {
	VersionGuard
	PaymentMethod string `json:"payment_method"`
}

// AdjustmentRequest proposes a new agreed price.
type AdjustmentRequest struct {
	VersionGuard
	NewPriceCents int64  `json:"new_price_cents"`
	Reason        string `json:"reason" binding:"max=500"`
}

// ReviewRequest is the client's rating of a completed booking.
type ReviewRequest struct {
	Rating int    `json:"rating" binding:"required"`
	Text   string `json:"text" binding:"max=2000"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID                  uuid.UUID                                                 `json:"id"`
	BookingNumber       string                                                    `json:"booking_number"`
	Status              string                                                    `json:"status"`
	Client              bookingDomain.Party                                       `json:"client"`
	Provider            bookingDomain.Party                                       `json:"provider"`
	Title               string                                                    `json:"title"`
	Description         string                                                    `json:"description,omitempty"`
	Address             string                                                    `json:"address,omitempty"`
	Schedule            bookingDomain.Schedule                                    `json:"schedule"`
	BudgetMinCents      int64                                                     `json:"budget_min_cents"`
	BudgetMaxCents      int64                                                     `json:"budget_max_cents"`
	Currency            string                                                    `json:"currency"`
	PriceCents          *int64                                                    `json:"price_cents,omitempty"`
	AgreedPriceCents    *int64                                                    `json:"agreed_price_cents,omitempty"`
	CancellationRequest *bookingDomain.Request[bookingDomain.CancellationDetails] `json:"cancellation_request,omitempty"`
	CompletionRequest   *bookingDomain.Request[bookingDomain.CompletionDetails]   `json:"completion_request,omitempty"`
	PriceAdjustment     *bookingDomain.Request[bookingDomain.AdjustmentDetails]   `json:"price_adjustment,omitempty"`
	Payment             *bookingDomain.Payment                                    `json:"payment,omitempty"`
	Review              *bookingDomain.Review                                     `json:"review,omitempty"`
	ConfirmedAt         *time.Time                                                `json:"confirmed_at,omitempty"`
	StartedAt           *time.Time                                                `json:"started_at,omitempty"`
	CompletedAt         *time.Time                                                `json:"completed_at,omitempty"`
	CancelledAt         *time.Time                                                `json:"cancelled_at,omitempty"`
	CancelledBy         string                                                    `json:"cancelled_by,omitempty"`
	CancelNote          string                                                    `json:"cancel_note,omitempty"`
	Version             int64                                                     `json:"version"`
	CreatedAt           time.Time                                                 `json:"created_at"`
	UpdatedAt           time.Time                                                 `json:"updated_at"`
}

// SettlementDTO previews how the agreed price of a booking would be split.
type SettlementDTO struct {
	BookingID             uuid.UUID `json:"booking_id"`
	PaymentMethod         string    `json:"payment_method"`
	Currency              string    `json:"currency"`
	AgreedPriceCents      int64     `json:"agreed_price_cents"`
	PlatformFeeCents      int64     `json:"platform_fee_cents"`
	ProviderReceivesCents int64     `json:"provider_receives_cents"`
	TotalPaidCents        int64     `json:"total_paid_cents"`
}

// BookingStatsDTO holds aggregate booking statistics.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	return BookingDTO{
		ID:                  bk.ID(),
		BookingNumber:       bk.BookingNumber(),
		Status:              string(bk.Status()),
		Client:              bk.Client(),
		Provider:            bk.Provider(),
		Title:               bk.Title(),
		Description:         bk.Description(),
		Address:             bk.Address(),
		Schedule:            bk.Schedule(),
		BudgetMinCents:      bk.BudgetMinCents(),
		BudgetMaxCents:      bk.BudgetMaxCents(),
		Currency:            bk.Currency(),
		PriceCents:          bk.PriceCents(),
		AgreedPriceCents:    bk.AgreedPriceCents(),
		CancellationRequest: bk.CancellationRequest(),
		CompletionRequest:   bk.CompletionRequest(),
		PriceAdjustment:     bk.PriceAdjustment(),
		Payment:             bk.Payment(),
		Review:              bk.Review(),
		ConfirmedAt:         bk.ConfirmedAt(),
		StartedAt:           bk.StartedAt(),
		CompletedAt:         bk.CompletedAt(),
		CancelledAt:         bk.CancelledAt(),
		CancelledBy:         string(bk.CancelledBy()),
		CancelNote:          bk.CancelNote(),
		Version:             bk.Version(),
		CreatedAt:           bk.CreatedAt(),
		UpdatedAt:           bk.UpdatedAt(),
	}
}

func toBookingDTOs(bookings []*bookingDomain.Booking) []BookingDTO {
	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}
	return dtos
}
