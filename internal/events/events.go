// Package events defines the booking lifecycle events published to Kafka.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/servicehub/service-booking/internal/common/kafka"
)

// TopicBookingEvents carries every booking lifecycle event, keyed by booking id.
const TopicBookingEvents = "booking.events"

// Source is the CloudEvent source of this service.
const Source = "service-booking"

// Event types.
const (
	BookingCreated               = "booking.created"
	BookingUpdated               = "booking.updated"
	BookingConfirmed             = "booking.confirmed"
	BookingDeclined              = "booking.declined"
	BookingStarted               = "booking.started"
	BookingCompletionRequested   = "booking.completion_requested"
	BookingCompleted             = "booking.completed"
	BookingCancellationRequested = "booking.cancellation_requested"
	BookingCancelled             = "booking.cancelled"
	BookingRequestRejected       = "booking.request_rejected"
	BookingAdjustmentProposed    = "booking.price_adjustment_proposed"
	BookingPriceAdjusted         = "booking.price_adjusted"
	BookingReviewed              = "booking.reviewed"
)

// Publisher sends a CloudEvent to a topic. *kafka.Producer implements it.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// NopPublisher drops every event. It is used when Kafka is disabled.
type NopPublisher struct{}

// PublishEvent implements Publisher.
func (NopPublisher) PublishEvent(context.Context, string, kafka.CloudEvent) error { return nil }

// BookingRef identifies the booking an event is about.
type BookingRef struct {
	BookingID     uuid.UUID `json:"booking_id"`
	BookingNumber string    `json:"booking_number"`
	ClientID      uuid.UUID `json:"client_id"`
	ProviderID    uuid.UUID `json:"provider_id"`
	Version       int64     `json:"version"`
}

// BookingCreatedEvent is published when a client requests a booking.
type BookingCreatedEvent struct {
	BookingRef
	Title          string    `json:"title"`
	ScheduledDate  time.Time `json:"scheduled_date"`
	ScheduledTime  string    `json:"scheduled_time"`
	BudgetMinCents int64     `json:"budget_min_cents"`
	BudgetMaxCents int64     `json:"budget_max_cents"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// StatusChangedEvent is published for confirmed, declined, started and
// cancelled bookings.
type StatusChangedEvent struct {
	BookingRef
	From       string    `json:"from"`
	To         string    `json:"to"`
	ActorID    uuid.UUID `json:"actor_id"`
	Reason     string    `json:"reason,omitempty"`
	PriceCents *int64    `json:"price_cents,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RequestEvent is published when a two-party request is proposed or rejected.
type RequestEvent struct {
	BookingRef
	Request       string    `json:"request"`
	RequestedBy   string    `json:"requested_by"`
	ActorID       uuid.UUID `json:"actor_id"`
	Reason        string    `json:"reason,omitempty"`
	NewPriceCents int64     `json:"new_price_cents,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// BookingCompletedEvent carries the settlement of a completed booking.
type BookingCompletedEvent struct {
	BookingRef
	AgreedPriceCents      int64     `json:"agreed_price_cents"`
	PlatformFeeCents      int64     `json:"platform_fee_cents"`
	ProviderReceivesCents int64     `json:"provider_receives_cents"`
	PaymentMethod         string    `json:"payment_method"`
	TransactionID         string    `json:"transaction_id"`
	ReceiptNumber         string    `json:"receipt_number"`
	OccurredAt            time.Time `json:"occurred_at"`
}

// PriceAdjustedEvent is published when an adjustment is approved.
type PriceAdjustedEvent struct {
	BookingRef
	PreviousPriceCents int64     `json:"previous_price_cents"`
	NewPriceCents      int64     `json:"new_price_cents"`
	OccurredAt         time.Time `json:"occurred_at"`
}

// BookingReviewedEvent is published when the client reviews a booking.
type BookingReviewedEvent struct {
	BookingRef
	Rating     int       `json:"rating"`
	OccurredAt time.Time `json:"occurred_at"`
}

// BookingUpdatedEvent is published when the client edits a pending booking.
type BookingUpdatedEvent struct {
	BookingRef
	Fields     []string  `json:"fields"`
	OccurredAt time.Time `json:"occurred_at"`
}
