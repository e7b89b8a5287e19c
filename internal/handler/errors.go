package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/servicehub/service-booking/internal/common/middleware"
	"github.com/servicehub/service-booking/internal/common/response"
	bookingDomain "github.com/servicehub/service-booking/internal/domain/booking"
)

var kindStatus = map[bookingDomain.ErrorKind]int{
	bookingDomain.KindInvalidTransition:      http.StatusConflict,
	bookingDomain.KindBookingClosed:          http.StatusConflict,
	bookingDomain.KindDuplicateRequest:       http.StatusConflict,
	bookingDomain.KindNoPendingRequest:       http.StatusConflict,
	bookingDomain.KindNegotiationConflict:    http.StatusConflict,
	bookingDomain.KindNotEligible:            http.StatusConflict,
	bookingDomain.KindAlreadyReviewed:        http.StatusConflict,
	bookingDomain.KindConcurrentModification: http.StatusConflict,
	bookingDomain.KindSelfApproval:           http.StatusForbidden,
	bookingDomain.KindInvalidPrice:           http.StatusUnprocessableEntity,
	bookingDomain.KindInvalidPaymentMethod:   http.StatusUnprocessableEntity,
}

// writeError renders booking rule violations with their kind as the code and
// defers everything else to response.Error.
func writeError(c *gin.Context, err error) {
	var be *bookingDomain.Error
	if errors.As(err, &be) {
		status, ok := kindStatus[be.Kind]
		if !ok {
			status = http.StatusConflict
		}
		msg := be.Message
		if msg == "" {
			msg = string(be.Kind)
		}
		response.Fail(c, status, string(be.Kind), msg)
		return
	}
	response.Error(c, err)
}

// bindOptionalJSON binds a body that the client may omit entirely.
func bindOptionalJSON(c *gin.Context, v interface{}) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// actor returns the booking id path parameter and the caller, writing the
// error response itself when either is missing.
func actor(c *gin.Context) (bookingID, userID uuid.UUID, ok bool) {
	userID, ok = middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c)
		return uuid.Nil, uuid.Nil, false
	}
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return uuid.Nil, uuid.Nil, false
	}
	return bookingID, userID, true
}

func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}
