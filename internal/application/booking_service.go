package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/servicehub/service-booking/internal/common/domain"
	"github.com/servicehub/service-booking/internal/common/kafka"
	bookingDomain "github.com/servicehub/service-booking/internal/domain/booking"
	"github.com/servicehub/service-booking/internal/events"
	"github.com/servicehub/service-booking/internal/lock"
)

// defaultPublishTimeout bounds a single event publish.
const defaultPublishTimeout = 5 * time.Second

// BookingService is the application service orchestrating booking use cases.
type BookingService struct {
	repo           bookingDomain.BookingRepository
	publisher      events.Publisher
	locker         lock.Locker
	lockWait       time.Duration
	publishTimeout time.Duration
	logger         *zap.Logger
}

// NewBookingService creates a new BookingService. lockWait bounds how long a
// mutating call waits for the per-booking lock.
func NewBookingService(
	repo bookingDomain.BookingRepository,
	publisher events.Publisher,
	locker lock.Locker,
	lockWait time.Duration,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		repo:           repo,
		publisher:      publisher,
		locker:         locker,
		lockWait:       lockWait,
		publishTimeout: defaultPublishTimeout,
		logger:         logger,
	}
}

// event is what a successful mutation announces.
type event struct {
	eventType string
	data      interface{}
}

// mutation applies one domain action to a loaded booking.
type mutation func(bk *bookingDomain.Booking) (event, error)

// mutate serializes writers on a booking: lock, load, check the expected
// version, bump the version, apply, save with compare-and-swap. The lock is
// released before the event is published. A failed action is never saved.
func (s *BookingService) mutate(ctx context.Context, bookingID uuid.UUID, guard VersionGuard, apply mutation) (*BookingDTO, error) {
	bk, evt, err := s.applyLocked(ctx, bookingID, guard, apply)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, bk, evt)

	result := toBookingDTO(bk)
	return &result, nil
}

func (s *BookingService) applyLocked(ctx context.Context, bookingID uuid.UUID, guard VersionGuard, apply mutation) (*bookingDomain.Booking, event, error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	unlock, err := s.locker.Lock(lockCtx, bookingID.String())
	cancel()
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, event{}, bookingDomain.NewConcurrentModificationError("booking is busy, retry")
		}
		return nil, event{}, fmt.Errorf("failed to lock booking: %w", err)
	}
	defer unlock()

	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, event{}, err
	}
	if guard.ExpectedVersion != nil && *guard.ExpectedVersion != bk.Version() {
		return nil, event{}, bookingDomain.NewConcurrentModificationError(
			fmt.Sprintf("booking is at version %d, expected %d", bk.Version(), *guard.ExpectedVersion))
	}

	// Bumped first so the event carries the version being saved. A failed
	// action discards bk.
	bk.IncrementVersion()
	evt, err := apply(bk)
	if err != nil {
		return nil, event{}, err
	}

	if err := s.repo.Update(ctx, bk); err != nil {
		return nil, event{}, err
	}
	return bk, evt, nil
}

// CreateBooking creates a pending booking from clientID to the chosen provider.
func (s *BookingService) CreateBooking(ctx context.Context, clientID uuid.UUID, req CreateBookingRequest) (*BookingDTO, error) {
	schedule, err := parseSchedule(req.Schedule)
	if err != nil {
		return nil, err
	}

	bk, err := bookingDomain.NewBooking(
		bookingDomain.Party{ID: clientID, DisplayName: req.Client.DisplayName, Email: req.Client.Email, Phone: req.Client.Phone},
		bookingDomain.Party{ID: req.ProviderID, DisplayName: req.Provider.DisplayName, Email: req.Provider.Email, Phone: req.Provider.Phone},
		bookingDomain.Details{
			Title:          req.Title,
			Description:    req.Description,
			Address:        req.Address,
			Schedule:       schedule,
			BudgetMinCents: req.BudgetMinCents,
			BudgetMaxCents: req.BudgetMaxCents,
			Currency:       req.Currency,
		},
	)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, bk); err != nil {
		return nil, fmt.Errorf("failed to save booking: %w", err)
	}

	s.publishEvent(ctx, bk, event{events.BookingCreated, events.BookingCreatedEvent{
		BookingRef:     ref(bk),
		Title:          bk.Title(),
		ScheduledDate:  bk.Schedule().Date,
		ScheduledTime:  bk.Schedule().Time,
		BudgetMinCents: bk.BudgetMinCents(),
		BudgetMaxCents: bk.BudgetMaxCents(),
		OccurredAt:     time.Now().UTC(),
	}})

	s.logger.Info("booking created",
		zap.String("booking_id", bk.ID().String()),
		zap.String("booking_number", bk.BookingNumber()),
	)

	result := toBookingDTO(bk)
	return &result, nil
}

// AcceptWithQuote confirms a pending booking at the provider's price.
func (s *BookingService) AcceptWithQuote(ctx context.Context, bookingID, actorID uuid.UUID, req QuoteRequest) (*BookingDTO, error) {
	return s.mutate(ctx, bookingID, req.VersionGuard, func(bk *bookingDomain.Booking) (event, error) {
		from := bk.Status()
		if err := bk.AcceptWithQuote(actorID, req.PriceCents); err != nil {
			return event{}, err
		}
		return statusChanged(events.BookingConfirmed, bk, from, actorID, ""), nil
	})
}

// Decline lets the provider turn down a pending booking.
func (s *BookingService) Decline(ctx context.Context, bookingID, actorID uuid.UUID, req ReasonRequest) (*BookingDTO, error) {
	return s.mutate(ctx, bookingID, req.VersionGuard, func(bk *bookingDomain.Booking) (event, error) {
		from := bk.Status()
		if err := bk.Decline(actorID, req.Reason); err != nil {
			return event{}, err
		}
		return statusChanged(events.BookingDeclined, bk, from, actorID, bk.CancelNote()), nil
	})
}

// ClientCancel lets the client withdraw a pending booking.
func (s *BookingService) ClientCancel(ctx context.Context, bookingID, actorID uuid.UUID, req ReasonRequest) (*BookingDTO, error) {
	return s.mutate(ctx, bookingID, req.VersionGuard, func(bk *bookingDomain.Booking) (event, error) {
		from := bk.Status()
		if err := bk.ClientCancel(actorID, req.Reason); err != nil {
			return event{}, err
		}
		return statusChanged(events.BookingCancelled, bk, from, actorID, bk.CancelNote()), nil
	})
}

// EditBooking applies a client edit to a pending booking.
func (s *BookingService) EditBooking(ctx context.Context, bookingID, actorID uuid.UUID, req EditBookingRequest) (*BookingDTO, error) {
	edit := bookingDomain.Edit{Title: req.Title, Description: req.Description, Address: req.Address}
	var fields []string
	if req.Title != nil {
		fields = append(fields, "title")
	}
	if req.Description != nil {
		fields = append(fields, "description")
	}
	if req.Address != nil {
		fields = append(fields, "address")
	}
	if req.Schedule != nil {
		schedule, err := parseSchedule(*req.Schedule)
		if err != nil {
			return nil, err
		}
		edit.Schedule = &schedule
		fields = append(fields, "schedule")
	}
	if len(fields) == 0 {
		return nil, domain.NewValidationError("nothing to update")
	}

	return s.mutate(ctx, bookingID, req.VersionGuard, func(bk *bookingDomain.Booking) (event, error) {
		if err := bk.EditDetails(actorID, edit); err != nil {
			return event{}, err
		}
		return event{events.BookingUpdated, events.BookingUpdatedEvent{
			BookingRef: ref(bk),
			Fields:     fields,
			OccurredAt: time.Now().UTC(),
		}}, nil
	})
}

// StartJob moves a confirmed booking to in_progress.
func (s *BookingService) StartJob(ctx context.Context, bookingID, actorID uuid.UUID, guard VersionGuard) (*BookingDTO, error) {
	return s.mutate(ctx, bookingID, guard, func(bk *bookingDomain.Booking) (event, error) {
		from := bk.Status()
		if err := bk.StartJob(actorID); err != nil {
			return event{}, err
		}
		return statusChanged(events.BookingStarted, bk, from, actorID, ""), nil
	})
}

// CancelConfirmed lets either party cancel a confirmed booking before work starts.
func (s *BookingService) CancelConfirmed(ctx context.Context, bookingID, actorID uuid.UUID, req ReasonRequest) (*BookingDTO, error) {
	return s.mutate(ctx, bookingID, req.VersionGuard, func(bk *bookingDomain.Booking) (event, error) {
		from := bk.Status()
		if err := bk.CancelConfirmed(actorID, req.Reason); err != nil {
			return event{}, err
		}
		return statusChanged(events.BookingCancelled, bk, from, actorID, bk.CancelNote()), nil
	})
}

// RequestCompletion files a completion request on an in_progress booking.
func (s *BookingService) RequestCompletion(ctx context.Context, bookingID, actorID uuid.UUID, req CompletionRequest) (*BookingDTO, error) {
	return s.mutate(ctx, bookingID, req.VersionGuard, func(bk *bookingDomain.Booking) (event, error) {
		if err := bk.RequestCompletion(actorID, req.Notes, bookingDomain.PaymentMethod(req.PaymentMethod)); err != nil {
			return event{}, err
		}
		cr := bk.CompletionRequest()
		return requestEvent(events.BookingCompletionRequested, bk, "completion", string(cr.RequestedBy), actorID, cr.Details.Notes, 0), nil
	})
}

// ApproveCompletion completes the booking and settles payment.
func (s *BookingService) ApproveCompletion(ctx context.Context, bookingID, actorID uuid.UUID, req ApproveCompletionRequest) (*BookingDTO, error) {
	return s.mutate(ctx, bookingID, req.VersionGuard, func(bk *bookingDomain.Booking) (event, error) {
		if err := bk.ApproveCompletion(actorID, bookingDomain.PaymentMethod(req.PaymentMethod)); err != nil {
			return event{}, err
		}
		p := bk.Payment()
		return event{events.BookingCompleted, events.BookingCompletedEvent{
			BookingRef:            ref(bk),
			AgreedPriceCents:      *bk.AgreedPriceCents(),
			PlatformFeeCents:      p.PlatformFeeCents,
			ProviderReceivesCents: p.ProviderReceivesCents,
			PaymentMethod:         string(p.Method),
			TransactionID:         p.TransactionID,
			ReceiptNumber:         p.ReceiptNumber,
			OccurredAt:            time.Now().UTC(),
		}}, nil
	})
}

// RejectCompletion clears a pending completion request.
func (s *BookingService) RejectCompletion(ctx context.Context, bookingID, actorID uuid.UUID, guard VersionGuard) (*BookingDTO, error) {
	return s.mutate(ctx, bookingID, guard, func(bk *bookingDomain.Booking) (event, error) {
		requestedBy := requester(bk.CompletionRequest())
		if err := bk.RejectCompletion(actorID); err != nil {
			return event{}, err
		}
		return requestEvent(events.BookingRequestRejected, bk, "completion", requestedBy, actorID, "", 0), nil
	})
}

// RequestCancellation files a cancellation request on an in_progress booking.
func (s *BookingService) RequestCancellation(ctx context.Context, bookingID, actorID uuid.UUID, req ReasonRequest) (*BookingDTO, error) {
	return s.mutate(ctx, bookingID, req.VersionGuard, func(bk *bookingDomain.Booking) (event, error) {
		if err := bk.RequestCancellation(actorID, req.Reason); err != nil {
			return event{}, err
		}
		cr := bk.CancellationRequest()
		return requestEvent(events.BookingCancellationRequested, bk, "cancellation", string(cr.RequestedBy), actorID, cr.Details.Reason, 0), nil
	})
}

// ApproveCancellation cancels an in_progress booking on the counterparty's approval.
func (s *BookingService) ApproveCancellation(ctx context.Context, bookingID, actorID uuid.UUID, guard VersionGuard) (*BookingDTO, error) {
	return s.mutate(ctx, bookingID, guard, func(bk *bookingDomain.Booking) (event, error) {
		from := bk.Status()
		if err := bk.ApproveCancellation(actorID); err != nil {
			return event{}, err
		}
		return statusChanged(events.BookingCancelled, bk, from, actorID, bk.CancelNote()), nil
	})
}

// RejectCancellation clears a pending cancellation request.
func (s *BookingService) RejectCancellation(ctx context.Context, bookingID, actorID uuid.UUID, guard VersionGuard) (*BookingDTO, error) {
	return s.mutate(ctx, bookingID, guard, func(bk *bookingDomain.Booking) (event, error) {
		requestedBy := requester(bk.CancellationRequest())
		if err := bk.RejectCancellation(actorID); err != nil {
			return event{}, err
		}
		return requestEvent(events.BookingRequestRejected, bk, "cancellation", requestedBy, actorID, "", 0), nil
	})
}

// ProposeAdjustment opens a price change on an in_progress booking.
func (s *BookingService) ProposeAdjustment(ctx context.Context, bookingID, actorID uuid.UUID, req AdjustmentRequest) (*BookingDTO, error) {
	return s.mutate(ctx, bookingID, req.VersionGuard, func(bk *bookingDomain.Booking) (event, error) {
		if err := bk.ProposeAdjustment(actorID, req.NewPriceCents, req.Reason); err != nil {
			return event{}, err
		}
		pa := bk.PriceAdjustment()
		return requestEvent(events.BookingAdjustmentProposed, bk, "price_adjustment", string(pa.RequestedBy), actorID, pa.Details.Reason, pa.Details.NewPriceCents), nil
	})
}

// ApproveAdjustment applies the pending price.
func (s *BookingService) ApproveAdjustment(ctx context.Context, bookingID, actorID uuid.UUID, guard VersionGuard) (*BookingDTO, error) {
	return s.mutate(ctx, bookingID, guard, func(bk *bookingDomain.Booking) (event, error) {
		if err := bk.ApproveAdjustment(actorID); err != nil {
			return event{}, err
		}
		d := bk.PriceAdjustment().Details
		return event{events.BookingPriceAdjusted, events.PriceAdjustedEvent{
			BookingRef:         ref(bk),
			PreviousPriceCents: d.PreviousPriceCents,
			NewPriceCents:      d.NewPriceCents,
			OccurredAt:         time.Now().UTC(),
		}}, nil
	})
}

// RejectAdjustment discards the pending price change.
func (s *BookingService) RejectAdjustment(ctx context.Context, bookingID, actorID uuid.UUID, guard VersionGuard) (*BookingDTO, error) {
	return s.mutate(ctx, bookingID, guard, func(bk *bookingDomain.Booking) (event, error) {
		requestedBy := requester(bk.PriceAdjustment())
		if err := bk.RejectAdjustment(actorID); err != nil {
			return event{}, err
		}
		return requestEvent(events.BookingRequestRejected, bk, "price_adjustment", requestedBy, actorID, "", 0), nil
	})
}

// SubmitReview stores the client's review of a completed booking.
func (s *BookingService) SubmitReview(ctx context.Context, bookingID, actorID uuid.UUID, req ReviewRequest) (*BookingDTO, error) {
	return s.mutate(ctx, bookingID, VersionGuard{}, func(bk *bookingDomain.Booking) (event, error) {
		if err := bk.SubmitReview(actorID, req.Rating, req.Text); err != nil {
			return event{}, err
		}
		return event{events.BookingReviewed, events.BookingReviewedEvent{
			BookingRef: ref(bk),
			Rating:     bk.Review().Rating,
			OccurredAt: time.Now().UTC(),
		}}, nil
	})
}

// SettlePayment previews the fee split of the booking's agreed price with
// method. Nothing is stored.
func (s *BookingService) SettlePayment(ctx context.Context, bookingID, actorID uuid.UUID, method string) (*SettlementDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if _, err := bk.RoleOf(actorID); err != nil {
		return nil, err
	}
	if !bookingDomain.PaymentMethod(method).IsValid() {
		return nil, &bookingDomain.Error{Kind: bookingDomain.KindInvalidPaymentMethod, Message: fmt.Sprintf("unsupported payment method %q", method)}
	}
	if bk.AgreedPriceCents() == nil {
		return nil, &bookingDomain.Error{Kind: bookingDomain.KindInvalidPrice, Message: "booking has no agreed price"}
	}

	settlement, err := bookingDomain.Settle(*bk.AgreedPriceCents())
	if err != nil {
		return nil, err
	}
	return &SettlementDTO{
		BookingID:             bk.ID(),
		PaymentMethod:         method,
		Currency:              bk.Currency(),
		AgreedPriceCents:      *bk.AgreedPriceCents(),
		PlatformFeeCents:      settlement.PlatformFeeCents,
		ProviderReceivesCents: settlement.ProviderReceivesCents,
		TotalPaidCents:        settlement.TotalPaidCents,
	}, nil
}

// GetBooking returns a booking visible to viewerID. Admins see every booking.
func (s *BookingService) GetBooking(ctx context.Context, bookingID, viewerID uuid.UUID, isAdmin bool) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return visibleTo(bk, viewerID, isAdmin)
}

// GetBookingByNumber looks a booking up by its BK- reference, with the same
// visibility as GetBooking.
func (s *BookingService) GetBookingByNumber(ctx context.Context, number string, viewerID uuid.UUID, isAdmin bool) (*BookingDTO, error) {
	bk, err := s.repo.FindByNumber(ctx, strings.ToUpper(strings.TrimSpace(number)))
	if err != nil {
		return nil, err
	}
	return visibleTo(bk, viewerID, isAdmin)
}

func visibleTo(bk *bookingDomain.Booking, viewerID uuid.UUID, isAdmin bool) (*BookingDTO, error) {
	if !isAdmin {
		if _, err := bk.RoleOf(viewerID); err != nil {
			return nil, err
		}
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// GetClientBookings returns a client's bookings, optionally filtered by status.
func (s *BookingService) GetClientBookings(ctx context.Context, clientID uuid.UUID, status string, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	st, err := parseStatusFilter(status)
	if err != nil {
		return nil, err
	}
	bookings, total, err := s.repo.FindByClientID(ctx, clientID, st, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toBookingDTOs(bookings), total, page, limit)
	return &result, nil
}

// GetProviderBookings returns a provider's bookings, optionally filtered by status.
func (s *BookingService) GetProviderBookings(ctx context.Context, providerID uuid.UUID, status string, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	st, err := parseStatusFilter(status)
	if err != nil {
		return nil, err
	}
	bookings, total, err := s.repo.FindByProviderID(ctx, providerID, st, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toBookingDTOs(bookings), total, page, limit)
	return &result, nil
}

// ListAllBookings returns all bookings with pagination (admin).
func (s *BookingService) ListAllBookings(ctx context.Context, page, limit int) ([]BookingDTO, int64, error) {
	bookings, total, err := s.repo.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	return toBookingDTOs(bookings), total, nil
}

// GetBookingStats returns aggregate booking statistics (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	return &BookingStatsDTO{
		TotalBookings: total,
		ByStatus:      counts,
	}, nil
}

// --- Helpers ---

func parseSchedule(in ScheduleInput) (bookingDomain.Schedule, error) {
	date, err := time.Parse(dateLayout, in.Date)
	if err != nil {
		return bookingDomain.Schedule{}, domain.NewValidationError("schedule date must be YYYY-MM-DD")
	}
	schedule := bookingDomain.Schedule{Date: date, Time: in.Time, AlternateTime: in.AlternateTime}
	if in.AlternateDate != "" {
		alt, err := time.Parse(dateLayout, in.AlternateDate)
		if err != nil {
			return bookingDomain.Schedule{}, domain.NewValidationError("alternate date must be YYYY-MM-DD")
		}
		schedule.AlternateDate = &alt
	}
	return schedule, nil
}

func parseStatusFilter(status string) (bookingDomain.BookingStatus, error) {
	if status == "" {
		return "", nil
	}
	st, err := bookingDomain.ParseBookingStatus(status)
	if err != nil {
		return "", domain.NewValidationError(fmt.Sprintf("unknown status %q", status))
	}
	return st, nil
}

func ref(bk *bookingDomain.Booking) events.BookingRef {
	return events.BookingRef{
		BookingID:     bk.ID(),
		BookingNumber: bk.BookingNumber(),
		ClientID:      bk.Client().ID,
		ProviderID:    bk.Provider().ID,
		Version:       bk.Version(),
	}
}

func statusChanged(eventType string, bk *bookingDomain.Booking, from bookingDomain.BookingStatus, actorID uuid.UUID, reason string) event {
	return event{eventType, events.StatusChangedEvent{
		BookingRef: ref(bk),
		From:       string(from),
		To:         string(bk.Status()),
		ActorID:    actorID,
		Reason:     reason,
		PriceCents: bk.AgreedPriceCents(),
		OccurredAt: time.Now().UTC(),
	}}
}

func requestEvent(eventType string, bk *bookingDomain.Booking, kind, requestedBy string, actorID uuid.UUID, reason string, newPrice int64) event {
	return event{eventType, events.RequestEvent{
		BookingRef:    ref(bk),
		Request:       kind,
		RequestedBy:   requestedBy,
		ActorID:       actorID,
		Reason:        reason,
		NewPriceCents: newPrice,
		OccurredAt:    time.Now().UTC(),
	}}
}

func requester[P any](r *bookingDomain.Request[P]) string {
	if r == nil {
		return ""
	}
	return string(r.RequestedBy)
}

// publishEvent is best effort: the booking is already saved, so a failure is
// logged and not returned.
func (s *BookingService) publishEvent(ctx context.Context, bk *bookingDomain.Booking, evt event) {
	cloudEvent, err := kafka.NewCloudEvent(events.Source, evt.eventType, evt.data)
	if err != nil {
		s.logger.Error("failed to create cloud event",
			zap.String("booking_id", bk.ID().String()),
			zap.String("event_type", evt.eventType),
			zap.Error(err),
		)
		return
	}

	publishCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	if err := s.publisher.PublishEvent(publishCtx, events.TopicBookingEvents, cloudEvent.WithSubject(bk.ID().String())); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("booking_id", bk.ID().String()),
			zap.String("topic", events.TopicBookingEvents),
			zap.String("event_type", evt.eventType),
			zap.Error(err),
		)
	}
}
