package booking

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxPriceCents bounds quotes so fee arithmetic cannot overflow int64.
const maxPriceCents int64 = 100_000_000_000

func validatePrice(priceCents int64) error {
	if priceCents <= 0 {
		return newError(KindInvalidPrice, "price must be positive")
	}
	if priceCents > maxPriceCents {
		return newError(KindInvalidPrice, "price exceeds the allowed maximum")
	}
	return nil
}

// AcceptWithQuote lets the provider accept a pending booking at the quoted
// price. Quoting and accepting are one step: the booking is confirmed and its
// agreed price set together.
func (b *Booking) AcceptWithQuote(actorID uuid.UUID, priceCents int64) error {
	_, to, err := b.authorize(ActionAcceptWithQuote, actorID)
	if err != nil {
		return err
	}
	if err := validatePrice(priceCents); err != nil {
		return err
	}

	now := time.Now().UTC()
	price, agreed := priceCents, priceCents
	b.priceCents = &price
	b.agreedPriceCents = &agreed
	b.status = to
	b.confirmedAt = &now
	b.updatedAt = now
	return nil
}

// ProposeAdjustment opens a mid-job price change for the counterparty to decide.
func (b *Booking) ProposeAdjustment(actorID uuid.UUID, newPriceCents int64, reason string) error {
	role, _, err := b.authorize(ActionProposeAdjustment, actorID)
	if err != nil {
		return err
	}
	if b.completionRequest.IsPending() {
		return newError(KindNegotiationConflict, "price cannot change while completion is pending")
	}
	if err := validatePrice(newPriceCents); err != nil {
		return err
	}
	if err := checkReason(reason); err != nil {
		return err
	}
	var current int64
	if b.agreedPriceCents != nil {
		current = *b.agreedPriceCents
	}
	if newPriceCents == current {
		return newError(KindInvalidPrice, "proposed price equals the agreed price")
	}

	now := time.Now().UTC()
	req, err := propose(negotiationAdjustment, b.priceAdjustment, role, AdjustmentDetails{
		NewPriceCents:      newPriceCents,
		PreviousPriceCents: current,
		Reason:             strings.TrimSpace(reason),
	}, now)
	if err != nil {
		return err
	}
	b.priceAdjustment = req
	b.updatedAt = now
	return nil
}

// ApproveAdjustment applies the pending price to the agreed price.
func (b *Booking) ApproveAdjustment(actorID uuid.UUID) error {
	role, _, err := b.authorize(ActionApproveAdjustment, actorID)
	if err != nil {
		return err
	}
	if err := decide(negotiationAdjustment, b.priceAdjustment, role); err != nil {
		return err
	}

	now := time.Now().UTC()
	price, agreed := b.priceAdjustment.Details.NewPriceCents, b.priceAdjustment.Details.NewPriceCents
	b.priceCents = &price
	b.agreedPriceCents = &agreed
	b.priceAdjustment = resolved(b.priceAdjustment, RequestApproved, now)
	b.updatedAt = now
	return nil
}

// RejectAdjustment discards the pending adjustment; the price is unchanged.
func (b *Booking) RejectAdjustment(actorID uuid.UUID) error {
	role, _, err := b.authorize(ActionRejectAdjustment, actorID)
	if err != nil {
		return err
	}
	if err := decide(negotiationAdjustment, b.priceAdjustment, role); err != nil {
		return err
	}
	b.priceAdjustment = nil
	b.updatedAt = time.Now().UTC()
	return nil
}
