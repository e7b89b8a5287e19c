package booking

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/servicehub/service-booking/internal/common/domain"
)

const maxReviewLength = 2000

// Review is the client's one-shot rating of a completed booking.
type Review struct {
	Rating      int       `json:"rating"`
	Text        string    `json:"text"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// SubmitReview stores the client's review. It can be written once, and only
// after the booking is completed.
func (b *Booking) SubmitReview(actorID uuid.UUID, rating int, text string) error {
	role, err := b.RoleOf(actorID)
	if err != nil {
		return err
	}
	if role != RoleClient {
		return newError(KindNotEligible, "only the client can review a booking")
	}
	if b.status != StatusCompleted {
		return newError(KindNotEligible, "booking is %s, reviews open once it is completed", b.status)
	}
	if b.review != nil {
		return newError(KindAlreadyReviewed, "booking %s has already been reviewed", b.bookingNumber)
	}
	if rating < 1 || rating > 5 {
		return domain.NewValidationError("rating must be between 1 and 5")
	}
	text = strings.TrimSpace(text)
	if err := checkLength("review text", text, maxReviewLength); err != nil {
		return err
	}

	now := time.Now().UTC()
	b.review = &Review{Rating: rating, Text: text, SubmittedAt: now}
	b.updatedAt = now
	return nil
}
