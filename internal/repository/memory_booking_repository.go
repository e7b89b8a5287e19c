package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/servicehub/service-booking/internal/common/domain"
	bookingDomain "github.com/servicehub/service-booking/internal/domain/booking"
)

// MemoryBookingRepository keeps bookings in process memory. Records are
// stored in their persisted form, so callers never share state with the
// store. It backs tests and single-node development runs.
type MemoryBookingRepository struct {
	mu       sync.RWMutex
	bookings map[uuid.UUID]BookingModel
}

// NewMemoryBookingRepository creates an empty MemoryBookingRepository.
func NewMemoryBookingRepository() *MemoryBookingRepository {
	return &MemoryBookingRepository{bookings: make(map[uuid.UUID]BookingModel)}
}

// FindByID retrieves a booking by its unique identifier.
func (r *MemoryBookingRepository) FindByID(_ context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.bookings[id]
	if !ok {
		return nil, domain.NewNotFoundError("Booking", id.String())
	}
	return toDomainBooking(&m)
}

// FindByNumber retrieves a booking by its booking number.
func (r *MemoryBookingRepository) FindByNumber(_ context.Context, number string) (*bookingDomain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.bookings {
		if m.BookingNumber == number {
			return toDomainBooking(&m)
		}
	}
	return nil, domain.NewNotFoundError("Booking", number)
}

// FindByClientID retrieves bookings for a specific client with pagination.
func (r *MemoryBookingRepository) FindByClientID(_ context.Context, clientID uuid.UUID, status bookingDomain.BookingStatus, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.page(func(m BookingModel) bool {
		return m.ClientID == clientID && (status == "" || m.Status == string(status))
	}, page, limit)
}

// FindByProviderID retrieves bookings for a specific provider with pagination.
func (r *MemoryBookingRepository) FindByProviderID(_ context.Context, providerID uuid.UUID, status bookingDomain.BookingStatus, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.page(func(m BookingModel) bool {
		return m.ProviderID == providerID && (status == "" || m.Status == string(status))
	}, page, limit)
}

// ListAll retrieves all bookings with pagination (admin).
func (r *MemoryBookingRepository) ListAll(_ context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.page(func(BookingModel) bool { return true }, page, limit)
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *MemoryBookingRepository) CountByStatus(_ context.Context) (map[string]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]int64)
	for _, m := range r.bookings {
		counts[m.Status]++
	}
	return counts, nil
}

// Save persists a new booking.
func (r *MemoryBookingRepository) Save(_ context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.bookings[model.ID]; exists {
		return domain.NewConflictError("booking already exists")
	}
	for _, m := range r.bookings {
		if m.BookingNumber == model.BookingNumber {
			return domain.NewConflictError("booking number already in use")
		}
	}
	r.bookings[model.ID] = *model
	return nil
}

// Update persists changes with the same compare-and-swap on version as the
// database repository.
func (r *MemoryBookingRepository) Update(_ context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.bookings[model.ID]
	if !ok || current.Version != bk.Version()-1 {
		return bookingDomain.NewConcurrentModificationError("booking was modified by another transaction")
	}
	model.CreatedAt = current.CreatedAt
	r.bookings[model.ID] = *model
	return nil
}

func (r *MemoryBookingRepository) page(match func(BookingModel) bool, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	r.mu.RLock()
	var matched []BookingModel
	for _, m := range r.bookings {
		if match(m) {
			matched = append(matched, m)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].BookingNumber < matched[j].BookingNumber
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (page - 1) * limit
	if start < 0 || start >= len(matched) {
		return []*bookingDomain.Booking{}, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}

	bookings, err := toDomainBookings(matched[start:end])
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}
