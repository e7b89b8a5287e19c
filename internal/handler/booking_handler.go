package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/servicehub/service-booking/internal/application"
	"github.com/servicehub/service-booking/internal/common/auth"
	"github.com/servicehub/service-booking/internal/common/middleware"
	"github.com/servicehub/service-booking/internal/common/response"
)

// BookingHandler handles HTTP requests for booking operations.
type BookingHandler struct {
	service *application.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service *application.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// RegisterRoutes registers all booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	clientOnly := middleware.RequireRole(auth.RoleClient)
	providerOnly := middleware.RequireRole(auth.RoleProvider)

	bookings := r.Group("/api/v1/bookings")
	bookings.Use(authMW)
	{
		bookings.POST("", clientOnly, h.CreateBooking)
		bookings.GET("", h.ListBookings)
		bookings.GET("/number/:number", h.GetBookingByNumber)
		bookings.GET("/:id", h.GetBooking)
		bookings.PATCH("/:id", clientOnly, h.EditBooking)

		bookings.POST("/:id/quote", providerOnly, h.AcceptWithQuote)
		bookings.POST("/:id/decline", providerOnly, h.Decline)
		bookings.POST("/:id/withdraw", clientOnly, h.Withdraw)
		bookings.POST("/:id/start", providerOnly, h.StartJob)
		bookings.POST("/:id/cancel", h.CancelConfirmed)

		bookings.POST("/:id/completion", h.RequestCompletion)
		bookings.POST("/:id/completion/approve", h.ApproveCompletion)
		bookings.POST("/:id/completion/reject", h.RejectCompletion)

		bookings.POST("/:id/cancellation", h.RequestCancellation)
		bookings.POST("/:id/cancellation/approve", h.ApproveCancellation)
		bookings.POST("/:id/cancellation/reject", h.RejectCancellation)

		bookings.POST("/:id/adjustment", h.ProposeAdjustment)
		bookings.POST("/:id/adjustment/approve", h.ApproveAdjustment)
		bookings.POST("/:id/adjustment/reject", h.RejectAdjustment)

		bookings.GET("/:id/settlement", h.SettlementPreview)
		bookings.POST("/:id/review", clientOnly, h.SubmitReview)
	}
}

// CreateBooking handles POST /api/v1/bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c)
		return
	}

	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateBooking(c.Request.Context(), userID, req)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Created(c, result)
}

// ListBookings handles GET /api/v1/bookings. Clients see the bookings they
// made, providers the bookings addressed to them.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c)
		return
	}
	role, _ := middleware.GetUserRole(c)
	page, limit := parsePagination(c)
	status := c.Query("status")

	list := h.service.GetClientBookings
	if role == auth.RoleProvider {
		list = h.service.GetProviderBookings
	}
	result, err := list(c.Request.Context(), userID, status, page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetBooking handles GET /api/v1/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID, userID, ok := actor(c)
	if !ok {
		return
	}
	role, _ := middleware.GetUserRole(c)

	result, err := h.service.GetBooking(c.Request.Context(), bookingID, userID, role == auth.RoleAdmin)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, result)
}

// GetBookingByNumber handles GET /api/v1/bookings/number/:number.
func (h *BookingHandler) GetBookingByNumber(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c)
		return
	}
	role, _ := middleware.GetUserRole(c)

	result, err := h.service.GetBookingByNumber(c.Request.Context(), c.Param("number"), userID, role == auth.RoleAdmin)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, result)
}

// EditBooking handles PATCH /api/v1/bookings/:id.
func (h *BookingHandler) EditBooking(c *gin.Context) {
	bookingID, userID, ok := actor(c)
	if !ok {
		return
	}
	var req application.EditBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	h.respond(c)(h.service.EditBooking(c.Request.Context(), bookingID, userID, req))
}

// AcceptWithQuote handles POST /api/v1/bookings/:id/quote.
func (h *BookingHandler) AcceptWithQuote(c *gin.Context) {
	bookingID, userID, ok := actor(c)
	if !ok {
		return
	}
	var req application.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	h.respond(c)(h.service.AcceptWithQuote(c.Request.Context(), bookingID, userID, req))
}

// Decline handles POST /api/v1/bookings/:id/decline.
func (h *BookingHandler) Decline(c *gin.Context) {
	h.withReason(c, h.service.Decline)
}

// Withdraw handles POST /api/v1/bookings/:id/withdraw.
func (h *BookingHandler) Withdraw(c *gin.Context) {
	h.withReason(c, h.service.ClientCancel)
}

// CancelConfirmed handles POST /api/v1/bookings/:id/cancel.
func (h *BookingHandler) CancelConfirmed(c *gin.Context) {
	h.withReason(c, h.service.CancelConfirmed)
}

// RequestCancellation handles POST /api/v1/bookings/:id/cancellation.
func (h *BookingHandler) RequestCancellation(c *gin.Context) {
	h.withReason(c, h.service.RequestCancellation)
}

// StartJob handles POST /api/v1/bookings/:id/start.
func (h *BookingHandler) StartJob(c *gin.Context) {
	h.withGuard(c, h.service.StartJob)
}

// RequestCompletion handles POST /api/v1/bookings/:id/completion.
func (h *BookingHandler) RequestCompletion(c *gin.Context) {
	bookingID, userID, ok := actor(c)
	if !ok {
		return
	}
	var req application.CompletionRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	h.respond(c)(h.service.RequestCompletion(c.Request.Context(), bookingID, userID, req))
}

// ApproveCompletion handles POST /api/v1/bookings/:id/completion/approve.
func (h *BookingHandler) ApproveCompletion(c *gin.Context) {
	bookingID, userID, ok := actor(c)
	if !ok {
		return
	}
	var req application.ApproveCompletionRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	h.respond(c)(h.service.ApproveCompletion(c.Request.Context(), bookingID, userID, req))
}

// RejectCompletion handles POST /api/v1/bookings/:id/completion/reject.
func (h *BookingHandler) RejectCompletion(c *gin.Context) {
	h.withGuard(c, h.service.RejectCompletion)
}

// ApproveCancellation handles POST /api/v1/bookings/:id/cancellation/approve.
func (h *BookingHandler) ApproveCancellation(c *gin.Context) {
	h.withGuard(c, h.service.ApproveCancellation)
}

// RejectCancellation handles POST /api/v1/bookings/:id/cancellation/reject.
func (h *BookingHandler) RejectCancellation(c *gin.Context) {
	h.withGuard(c, h.service.RejectCancellation)
}

// ProposeAdjustment handles POST /api/v1/bookings/:id/adjustment.
func (h *BookingHandler) ProposeAdjustment(c *gin.Context) {
	bookingID, userID, ok := actor(c)
	if !ok {
		return
	}
	var req application.AdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	h.respond(c)(h.service.ProposeAdjustment(c.Request.Context(), bookingID, userID, req))
}

// ApproveAdjustment handles POST /api/v1/bookings/:id/adjustment/approve.
func (h *BookingHandler) ApproveAdjustment(c *gin.Context) {
	h.withGuard(c, h.service.ApproveAdjustment)
}

// RejectAdjustment handles POST /api/v1/bookings/:id/adjustment/reject.
func (h *BookingHandler) RejectAdjustment(c *gin.Context) {
	h.withGuard(c, h.service.RejectAdjustment)
}

// SettlementPreview handles GET /api/v1/bookings/:id/settlement?method=.
func (h *BookingHandler) SettlementPreview(c *gin.Context) {
	bookingID, userID, ok := actor(c)
	if !ok {
		return
	}
	method := c.DefaultQuery("method", "card")

	result, err := h.service.SettlePayment(c.Request.Context(), bookingID, userID, method)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, result)
}

// SubmitReview handles POST /api/v1/bookings/:id/review.
func (h *BookingHandler) SubmitReview(c *gin.Context) {
	bookingID, userID, ok := actor(c)
	if !ok {
		return
	}
	var req application.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	h.respond(c)(h.service.SubmitReview(c.Request.Context(), bookingID, userID, req))
}

type reasonAction func(ctx context.Context, bookingID, actorID uuid.UUID, req application.ReasonRequest) (*application.BookingDTO, error)

type guardAction func(ctx context.Context, bookingID, actorID uuid.UUID, guard application.VersionGuard) (*application.BookingDTO, error)

func (h *BookingHandler) withReason(c *gin.Context, action reasonAction) {
	bookingID, userID, ok := actor(c)
	if !ok {
		return
	}
	var req application.ReasonRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	h.respond(c)(action(c.Request.Context(), bookingID, userID, req))
}

func (h *BookingHandler) withGuard(c *gin.Context, action guardAction) {
	bookingID, userID, ok := actor(c)
	if !ok {
		return
	}
	var guard application.VersionGuard
	if err := bindOptionalJSON(c, &guard); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	h.respond(c)(action(c.Request.Context(), bookingID, userID, guard))
}

// respond writes the outcome of a mutating call.
func (h *BookingHandler) respond(c *gin.Context) func(*application.BookingDTO, error) {
	return func(result *application.BookingDTO, err error) {
		if err != nil {
			writeError(c, err)
			return
		}
		response.Success(c, result)
	}
}
