package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/servicehub/service-booking/internal/common/domain"
	bookingDomain "github.com/servicehub/service-booking/internal/domain/booking"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BookingNumber       string          `gorm:"uniqueIndex;not null;size:20"`
	ClientID            uuid.UUID       `gorm:"type:uuid;index;not null"`
	ProviderID          uuid.UUID       `gorm:"type:uuid;index;not null"`
	Status              string          `gorm:"not null;size:30;index"`
	Client              json.RawMessage `gorm:"type:jsonb;not null"`
	Provider            json.RawMessage `gorm:"type:jsonb;not null"`
	Title               string          `gorm:"not null;size:200"`
	Description         string          `gorm:"size:4000"`
	Address             string          `gorm:"size:500"`
	Schedule            json.RawMessage `gorm:"type:jsonb;not null"`
	BudgetMinCents      int64           `gorm:"not null"`
	BudgetMaxCents      int64           `gorm:"not null"`
	Currency            string          `gorm:"not null;size:3;default:'USD'"`
	PriceCents          *int64          `gorm:""`
	AgreedPriceCents    *int64          `gorm:""`
	CancellationRequest json.RawMessage `gorm:"type:jsonb"`
	CompletionRequest   json.RawMessage `gorm:"type:jsonb"`
	PriceAdjustment     json.RawMessage `gorm:"type:jsonb"`
	Payment             json.RawMessage `gorm:"type:jsonb"`
	Review              json.RawMessage `gorm:"type:jsonb"`
	ConfirmedAt         *time.Time      `gorm:""`
	StartedAt           *time.Time      `gorm:""`
	CompletedAt         *time.Time      `gorm:""`
	CancelledAt         *time.Time      `gorm:""`
	CancelledBy         string          `gorm:"size:20"`
	CancelNote          string          `gorm:"size:500"`
	Version             int64           `gorm:"not null;default:1"`
	CreatedAt           time.Time       `gorm:"not null"`
	UpdatedAt           time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByNumber retrieves a booking by its booking number.
func (r *GormBookingRepository) FindByNumber(ctx context.Context, number string) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("booking_number = ?", number).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", number)
		}
		return nil, fmt.Errorf("failed to find booking by number: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByClientID retrieves bookings for a specific client with pagination.
func (r *GormBookingRepository) FindByClientID(ctx context.Context, clientID uuid.UUID, status bookingDomain.BookingStatus, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.findByParty(ctx, "client_id", clientID, status, page, limit)
}

// FindByProviderID retrieves bookings for a specific provider with pagination.
func (r *GormBookingRepository) FindByProviderID(ctx context.Context, providerID uuid.UUID, status bookingDomain.BookingStatus, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.findByParty(ctx, "provider_id", providerID, status, page, limit)
}

func (r *GormBookingRepository) findByParty(ctx context.Context, column string, partyID uuid.UUID, status bookingDomain.BookingStatus, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where(column+" = ?", partyID)
		if status != "" {
			db = db.Where("status = ?", string(status))
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings by %s: %w", column, err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Scopes(scope).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find bookings by %s: %w", column, err)
	}

	bookings, err := toDomainBookings(models)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// Save persists a new booking.
func (r *GormBookingRepository) Save(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

// Update persists changes to an existing booking with optimistic locking.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	// Only update if the stored version is the one this change was based on.
	expectedVersion := bk.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":               model.Status,
			"client":               model.Client,
			"provider":             model.Provider,
			"title":                model.Title,
			"description":          model.Description,
			"address":              model.Address,
			"schedule":             model.Schedule,
			"price_cents":          model.PriceCents,
			"agreed_price_cents":   model.AgreedPriceCents,
			"cancellation_request": model.CancellationRequest,
			"completion_request":   model.CompletionRequest,
			"price_adjustment":     model.PriceAdjustment,
			"payment":              model.Payment,
			"review":               model.Review,
			"confirmed_at":         model.ConfirmedAt,
			"started_at":           model.StartedAt,
			"completed_at":         model.CompletedAt,
			"cancelled_at":         model.CancelledAt,
			"cancelled_by":         model.CancelledBy,
			"cancel_note":          model.CancelNote,
			"version":              model.Version,
			"updated_at":           model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return bookingDomain.NewConcurrentModificationError("booking was modified by another transaction")
	}

	return nil
}

// ListAll retrieves all bookings with pagination (admin).
func (r *GormBookingRepository) ListAll(ctx context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings, err := toDomainBookings(models)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// --- Conversion Helpers ---

// marshalOptional encodes v, storing SQL NULL for nil pointers.
func marshalOptional[T any](v *T) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// unmarshalOptional decodes a nullable jsonb column.
func unmarshalOptional[T any](raw json.RawMessage) (*T, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func toBookingModel(bk *bookingDomain.Booking) (*BookingModel, error) {
	s := bk.Snapshot()

	clientJSON, err := json.Marshal(s.Client)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal client: %w", err)
	}
	providerJSON, err := json.Marshal(s.Provider)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal provider: %w", err)
	}
	scheduleJSON, err := json.Marshal(s.Schedule)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schedule: %w", err)
	}
	cancellationJSON, err := marshalOptional(s.CancellationRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cancellation request: %w", err)
	}
	completionJSON, err := marshalOptional(s.CompletionRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completion request: %w", err)
	}
	adjustmentJSON, err := marshalOptional(s.PriceAdjustment)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal price adjustment: %w", err)
	}
	paymentJSON, err := marshalOptional(s.Payment)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment: %w", err)
	}
	reviewJSON, err := marshalOptional(s.Review)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal review: %w", err)
	}

	return &BookingModel{
		ID:                  s.ID,
		BookingNumber:       s.BookingNumber,
		ClientID:            s.Client.ID,
		ProviderID:          s.Provider.ID,
		Status:              string(s.Status),
		Client:              clientJSON,
		Provider:            providerJSON,
		Title:               s.Title,
		Description:         s.Description,
		Address:             s.Address,
		Schedule:            scheduleJSON,
		BudgetMinCents:      s.BudgetMinCents,
		BudgetMaxCents:      s.BudgetMaxCents,
		Currency:            s.Currency,
		PriceCents:          s.PriceCents,
		AgreedPriceCents:    s.AgreedPriceCents,
		CancellationRequest: cancellationJSON,
		CompletionRequest:   completionJSON,
		PriceAdjustment:     adjustmentJSON,
		Payment:             paymentJSON,
		Review:              reviewJSON,
		ConfirmedAt:         s.ConfirmedAt,
		StartedAt:           s.StartedAt,
		CompletedAt:         s.CompletedAt,
		CancelledAt:         s.CancelledAt,
		CancelledBy:         string(s.CancelledBy),
		CancelNote:          s.CancelNote,
		Version:             s.Version,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}, nil
}

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	status, err := bookingDomain.ParseBookingStatus(m.Status)
	if err != nil {
		return nil, err
	}

	var client, provider bookingDomain.Party
	if err := json.Unmarshal(m.Client, &client); err != nil {
		return nil, fmt.Errorf("failed to unmarshal client: %w", err)
	}
	if err := json.Unmarshal(m.Provider, &provider); err != nil {
		return nil, fmt.Errorf("failed to unmarshal provider: %w", err)
	}
	var schedule bookingDomain.Schedule
	if err := json.Unmarshal(m.Schedule, &schedule); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schedule: %w", err)
	}
	cancellation, err := unmarshalOptional[bookingDomain.Request[bookingDomain.CancellationDetails]](m.CancellationRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal cancellation request: %w", err)
	}
	completion, err := unmarshalOptional[bookingDomain.Request[bookingDomain.CompletionDetails]](m.CompletionRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal completion request: %w", err)
	}
	adjustment, err := unmarshalOptional[bookingDomain.Request[bookingDomain.AdjustmentDetails]](m.PriceAdjustment)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal price adjustment: %w", err)
	}
	payment, err := unmarshalOptional[bookingDomain.Payment](m.Payment)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment: %w", err)
	}
	review, err := unmarshalOptional[bookingDomain.Review](m.Review)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal review: %w", err)
	}

	return bookingDomain.ReconstructBooking(bookingDomain.Snapshot{
		ID:                  m.ID,
		BookingNumber:       m.BookingNumber,
		Status:              status,
		Client:              client,
		Provider:            provider,
		Title:               m.Title,
		Description:         m.Description,
		Address:             m.Address,
		Schedule:            schedule,
		BudgetMinCents:      m.BudgetMinCents,
		BudgetMaxCents:      m.BudgetMaxCents,
		Currency:            m.Currency,
		PriceCents:          m.PriceCents,
		AgreedPriceCents:    m.AgreedPriceCents,
		CancellationRequest: cancellation,
		CompletionRequest:   completion,
		PriceAdjustment:     adjustment,
		Payment:             payment,
		Review:              review,
		ConfirmedAt:         m.ConfirmedAt,
		StartedAt:           m.StartedAt,
		CompletedAt:         m.CompletedAt,
		CancelledAt:         m.CancelledAt,
		CancelledBy:         bookingDomain.Role(m.CancelledBy),
		CancelNote:          m.CancelNote,
		Version:             m.Version,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}), nil
}

func toDomainBookings(models []BookingModel) ([]*bookingDomain.Booking, error) {
	bookings := make([]*bookingDomain.Booking, len(models))
	for i := range models {
		bk, err := toDomainBooking(&models[i])
		if err != nil {
			return nil, err
		}
		bookings[i] = bk
	}
	return bookings, nil
}
