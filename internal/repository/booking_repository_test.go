package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servicehub/service-booking/internal/common/domain"
	bookingDomain "github.com/servicehub/service-booking/internal/domain/booking"
)

func newBooking(t *testing.T, clientID, providerID uuid.UUID) *bookingDomain.Booking {
	t.Helper()
	bk, err := bookingDomain.NewBooking(
		bookingDomain.Party{ID: clientID, DisplayName: "Client"},
		bookingDomain.Party{ID: providerID, DisplayName: "Provider"},
		bookingDomain.Details{
			Title:          "Garden tidy-up",
			Schedule:       bookingDomain.Schedule{Date: time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), Time: "08:00"},
			BudgetMinCents: 5000,
			BudgetMaxCents: 9000,
		},
	)
	require.NoError(t, err)
	return bk
}

func TestModelConversion_RoundTrip(t *testing.T) {
	clientID, providerID := uuid.New(), uuid.New()
	bk := newBooking(t, clientID, providerID)
	require.NoError(t, bk.AcceptWithQuote(providerID, 8000))
	require.NoError(t, bk.StartJob(providerID))
	require.NoError(t, bk.ProposeAdjustment(clientID, 7500, "smaller lawn"))
	require.NoError(t, bk.RequestCancellation(providerID, "rain"))

	model, err := toBookingModel(bk)
	require.NoError(t, err)
	assert.Equal(t, clientID, model.ClientID)
	assert.Equal(t, providerID, model.ProviderID)
	assert.Nil(t, model.Payment)
	assert.Nil(t, model.CompletionRequest)

	got, err := toDomainBooking(model)
	require.NoError(t, err)
	assert.Equal(t, bk.Snapshot(), got.Snapshot())
	assert.True(t, got.CancellationRequest().IsPending())
	assert.Equal(t, "rain", got.CancellationRequest().Details.Reason)
	assert.Equal(t, int64(7500), got.PriceAdjustment().Details.NewPriceCents)
}

func TestModelConversion_InvalidStatus(t *testing.T) {
	bk := newBooking(t, uuid.New(), uuid.New())
	model, err := toBookingModel(bk)
	require.NoError(t, err)
	model.Status = "archived"

	_, err = toDomainBooking(model)
	assert.Error(t, err)
}

func TestMemoryBookingRepository_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBookingRepository()
	bk := newBooking(t, uuid.New(), uuid.New())
	require.NoError(t, repo.Save(ctx, bk))

	got, err := repo.FindByID(ctx, bk.ID())
	require.NoError(t, err)
	assert.Equal(t, bk.BookingNumber(), got.BookingNumber())

	got, err = repo.FindByNumber(ctx, bk.BookingNumber())
	require.NoError(t, err)
	assert.Equal(t, bk.ID(), got.ID())

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, repo.Save(ctx, bk), domain.ErrConflict)
}

func TestMemoryBookingRepository_UpdateIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBookingRepository()
	clientID, providerID := uuid.New(), uuid.New()
	bk := newBooking(t, clientID, providerID)
	require.NoError(t, repo.Save(ctx, bk))

	// Two writers load the same version.
	first, err := repo.FindByID(ctx, bk.ID())
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, bk.ID())
	require.NoError(t, err)

	require.NoError(t, first.AcceptWithQuote(providerID, 8000))
	first.IncrementVersion()
	require.NoError(t, repo.Update(ctx, first))

	require.NoError(t, second.ClientCancel(clientID, "too slow"))
	second.IncrementVersion()
	err = repo.Update(ctx, second)
	assert.ErrorIs(t, err, bookingDomain.ErrConcurrentModification)

	stored, err := repo.FindByID(ctx, bk.ID())
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.StatusConfirmed, stored.Status())
	assert.Equal(t, int64(2), stored.Version())
}

func TestMemoryBookingRepository_StoresCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBookingRepository()
	providerID := uuid.New()
	bk := newBooking(t, uuid.New(), providerID)
	require.NoError(t, repo.Save(ctx, bk))

	require.NoError(t, bk.AcceptWithQuote(providerID, 8000))

	stored, err := repo.FindByID(ctx, bk.ID())
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.StatusPending, stored.Status())
}

func TestMemoryBookingRepository_Listing(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBookingRepository()
	clientID, providerA, providerB := uuid.New(), uuid.New(), uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Save(ctx, newBooking(t, clientID, providerA)))
	}
	declined := newBooking(t, clientID, providerB)
	require.NoError(t, declined.Decline(providerB, "busy"))
	require.NoError(t, repo.Save(ctx, declined))

	all, total, err := repo.FindByClientID(ctx, clientID, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, all, 4)

	pending, total, err := repo.FindByClientID(ctx, clientID, bookingDomain.StatusPending, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, pending, 2)

	second, _, err := repo.FindByClientID(ctx, clientID, bookingDomain.StatusPending, 2, 2)
	require.NoError(t, err)
	assert.Len(t, second, 1)

	beyond, _, err := repo.FindByClientID(ctx, clientID, "", 5, 10)
	require.NoError(t, err)
	assert.Empty(t, beyond)

	forB, total, err := repo.FindByProviderID(ctx, providerB, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, declined.ID(), forB[0].ID())

	_, total, err = repo.ListAll(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"pending": 3, "cancelled": 1}, counts)
}
