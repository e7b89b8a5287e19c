package booking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servicehub/service-booking/internal/common/domain"
)

func completedBooking(t *testing.T) (*Booking, parties) {
	t.Helper()
	bk, p := inProgressBooking(t, 15000)
	require.NoError(t, bk.RequestCompletion(p.provider, "done", ""))
	require.NoError(t, bk.ApproveCompletion(p.client, PaymentCard))
	return bk, p
}

func TestSubmitReview(t *testing.T) {
	bk, p := completedBooking(t)

	require.NoError(t, bk.SubmitReview(p.client, 5, "  Spotless, on time.  "))
	require.NotNil(t, bk.Review())
	assert.Equal(t, 5, bk.Review().Rating)
	assert.Equal(t, "Spotless, on time.", bk.Review().Text)

	err := bk.SubmitReview(p.client, 1, "changed my mind")
	assert.ErrorIs(t, err, ErrAlreadyReviewed)
	assert.Equal(t, 5, bk.Review().Rating)
}

func TestSubmitReview_NotEligible(t *testing.T) {
	t.Run("before completion", func(t *testing.T) {
		bk, p := inProgressBooking(t, 15000)
		assert.ErrorIs(t, bk.SubmitReview(p.client, 4, "good so far"), ErrNotEligible)
		assert.Nil(t, bk.Review())
	})

	t.Run("cancelled booking", func(t *testing.T) {
		bk, p := newTestBooking(t)
		require.NoError(t, bk.Decline(p.provider, ""))
		assert.ErrorIs(t, bk.SubmitReview(p.client, 1, "never showed"), ErrNotEligible)
	})

	t.Run("provider cannot review", func(t *testing.T) {
		bk, p := completedBooking(t)
		assert.ErrorIs(t, bk.SubmitReview(p.provider, 5, "great client"), ErrNotEligible)
	})
}

func TestSubmitReview_Validation(t *testing.T) {
	bk, p := completedBooking(t)

	assert.ErrorIs(t, bk.SubmitReview(p.client, 0, ""), domain.ErrValidation)
	assert.ErrorIs(t, bk.SubmitReview(p.client, 6, ""), domain.ErrValidation)
	assert.ErrorIs(t, bk.SubmitReview(p.client, 3, strings.Repeat("x", maxReviewLength+1)), domain.ErrValidation)
	assert.Nil(t, bk.Review())

	require.NoError(t, bk.SubmitReview(p.client, 3, ""))
}
