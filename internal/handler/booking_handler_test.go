package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/servicehub/service-booking/internal/application"
	"github.com/servicehub/service-booking/internal/common/auth"
	"github.com/servicehub/service-booking/internal/events"
	"github.com/servicehub/service-booking/internal/lock"
	"github.com/servicehub/service-booking/internal/repository"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta *struct {
		Total int64 `json:"total"`
	} `json:"meta"`
}

type testAPI struct {
	t          *testing.T
	router     *gin.Engine
	providerID uuid.UUID
	client     string
	provider   string
	admin      string
	outsider   string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := application.NewBookingService(
		repository.NewMemoryBookingRepository(),
		events.NopPublisher{},
		lock.NewKeyedMutex(),
		time.Second,
		zap.NewNop(),
	)
	jwtManager := auth.NewJWTManager("handler-test", time.Hour)

	router := gin.New()
	NewBookingHandler(svc).RegisterRoutes(&router.RouterGroup, jwtManager)
	NewAdminBookingHandler(svc).RegisterRoutes(&router.RouterGroup, jwtManager)

	token := func(role auth.Role) (uuid.UUID, string) {
		id := uuid.New()
		tok, err := jwtManager.GenerateAccessToken(id, role)
		require.NoError(t, err)
		return id, tok
	}
	api := &testAPI{t: t, router: router}
	_, api.client = token(auth.RoleClient)
	api.providerID, api.provider = token(auth.RoleProvider)
	_, api.admin = token(auth.RoleAdmin)
	_, api.outsider = token(auth.RoleClient)
	return api
}

func (a *testAPI) do(method, path, token string, body interface{}) (int, apiResponse) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var resp apiResponse
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func (a *testAPI) createBooking() application.BookingDTO {
	a.t.Helper()
	code, resp := a.do(http.MethodPost, "/api/v1/bookings", a.client, gin.H{
		"provider_id": a.providerID,
		"title":       "Replace light fixture",
		"schedule":    gin.H{"date": "2026-11-20", "time": "14:00"},
	})
	require.Equal(a.t, http.StatusCreated, code)
	var bk application.BookingDTO
	require.NoError(a.t, json.Unmarshal(resp.Data, &bk))
	return bk
}

func errorCode(resp apiResponse) string {
	if resp.Error == nil {
		return ""
	}
	return resp.Error.Code
}

func TestBookingHandler_Lifecycle(t *testing.T) {
	api := newTestAPI(t)
	bk := api.createBooking()
	base := "/api/v1/bookings/" + bk.ID.String()

	code, _ := api.do(http.MethodPost, base+"/quote", api.client, gin.H{"price_cents": 9999})
	assert.Equal(t, http.StatusForbidden, code)

	code, resp := api.do(http.MethodPost, base+"/quote", api.provider, gin.H{"price_cents": -5})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "INVALID_PRICE", errorCode(resp))

	code, _ = api.do(http.MethodPost, base+"/quote", api.provider, gin.H{"price_cents": 9999, "expected_version": 1})
	require.Equal(t, http.StatusOK, code)

	code, resp = api.do(http.MethodPost, base+"/start", api.provider, gin.H{"expected_version": 1})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "CONCURRENT_MODIFICATION", errorCode(resp))

	code, _ = api.do(http.MethodPost, base+"/start", api.provider, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = api.do(http.MethodPost, base+"/completion", api.provider, gin.H{"notes": "wired and tested"})
	require.Equal(t, http.StatusOK, code)

	code, resp = api.do(http.MethodPost, base+"/completion", api.client, gin.H{"payment_method": "card"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "DUPLICATE_REQUEST", errorCode(resp))

	code, resp = api.do(http.MethodPost, base+"/completion/approve", api.provider, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "SELF_APPROVAL", errorCode(resp))

	code, resp = api.do(http.MethodPost, base+"/completion/approve", api.client, gin.H{"payment_method": "seashells"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "INVALID_PAYMENT_METHOD", errorCode(resp))

	code, resp = api.do(http.MethodPost, base+"/completion/approve", api.client, gin.H{"payment_method": "card"})
	require.Equal(t, http.StatusOK, code)
	var done application.BookingDTO
	require.NoError(t, json.Unmarshal(resp.Data, &done))
	assert.Equal(t, "completed", done.Status)
	require.NotNil(t, done.Payment)
	assert.Equal(t, int64(1800), done.Payment.PlatformFeeCents)
	assert.Equal(t, int64(8199), done.Payment.ProviderReceivesCents)

	code, resp = api.do(http.MethodPost, base+"/cancel", api.client, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "BOOKING_CLOSED", errorCode(resp))

	code, _ = api.do(http.MethodPost, base+"/review", api.provider, gin.H{"rating": 5})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = api.do(http.MethodPost, base+"/review", api.client, gin.H{"rating": 5, "text": "tidy work"})
	assert.Equal(t, http.StatusOK, code)

	code, resp = api.do(http.MethodPost, base+"/review", api.client, gin.H{"rating": 4})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "ALREADY_REVIEWED", errorCode(resp))
}

func TestBookingHandler_AccessAndLookup(t *testing.T) {
	api := newTestAPI(t)
	bk := api.createBooking()
	base := "/api/v1/bookings/" + bk.ID.String()

	code, _ := api.do(http.MethodGet, base, "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = api.do(http.MethodGet, base, api.provider, nil)
	assert.Equal(t, http.StatusOK, code)

	code, resp := api.do(http.MethodGet, base, api.outsider, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "FORBIDDEN", errorCode(resp))

	code, _ = api.do(http.MethodGet, base, api.admin, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = api.do(http.MethodGet, "/api/v1/bookings/"+uuid.NewString(), api.client, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = api.do(http.MethodGet, "/api/v1/bookings/not-a-uuid", api.client, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp = api.do(http.MethodPost, base+"/start", api.provider, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(resp))

	code, resp = api.do(http.MethodPost, base+"/completion/reject", api.client, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(resp))

	code, resp = api.do(http.MethodGet, base+"/settlement?method=card", api.client, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "INVALID_PRICE", errorCode(resp))
}

func TestBookingHandler_EditAndWithdraw(t *testing.T) {
	api := newTestAPI(t)
	bk := api.createBooking()
	base := "/api/v1/bookings/" + bk.ID.String()

	code, resp := api.do(http.MethodPatch, base, api.client, gin.H{"schedule": gin.H{"date": "2026-11-21", "time": "25:00"}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(resp))

	code, resp = api.do(http.MethodPatch, base, api.client, gin.H{"address": "7 Elm Rd"})
	require.Equal(t, http.StatusOK, code)
	var edited application.BookingDTO
	require.NoError(t, json.Unmarshal(resp.Data, &edited))
	assert.Equal(t, "7 Elm Rd", edited.Address)

	code, _ = api.do(http.MethodPost, base+"/withdraw", api.client, gin.H{"reason": "changed plans"})
	require.Equal(t, http.StatusOK, code)

	code, _ = api.do(http.MethodPost, base+"/decline", api.provider, nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestBookingHandler_Listing(t *testing.T) {
	api := newTestAPI(t)
	api.createBooking()
	api.createBooking()

	code, resp := api.do(http.MethodGet, "/api/v1/bookings?status=pending", api.client, nil)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(2), resp.Meta.Total)

	code, resp = api.do(http.MethodGet, "/api/v1/bookings", api.provider, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(2), resp.Meta.Total)

	code, resp = api.do(http.MethodGet, "/api/v1/bookings", api.outsider, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(0), resp.Meta.Total)

	code, _ = api.do(http.MethodGet, "/api/v1/bookings?status=lost", api.client, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(http.MethodGet, "/api/v1/admin/bookings", api.client, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, resp = api.do(http.MethodGet, "/api/v1/admin/bookings", api.admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(2), resp.Meta.Total)

	code, resp = api.do(http.MethodGet, "/api/v1/admin/stats/bookings", api.admin, nil)
	require.Equal(t, http.StatusOK, code)
	var stats application.BookingStatsDTO
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, int64(2), stats.ByStatus["pending"])
}

func TestBookingHandler_TextLimits(t *testing.T) {
	api := newTestAPI(t)

	code, resp := api.do(http.MethodPost, "/api/v1/bookings", api.client, gin.H{
		"provider_id": api.providerID,
		"title":       strings.Repeat("t", 201),
		"schedule":    gin.H{"date": "2026-11-20", "time": "14:00"},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(resp))

	bk := api.createBooking()
	base := "/api/v1/bookings/" + bk.ID.String()

	code, _ = api.do(http.MethodPatch, base, api.client, gin.H{"address": strings.Repeat("a", 501)})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(http.MethodPost, base+"/quote", api.provider, gin.H{"price_cents": 5000})
	require.Equal(t, http.StatusOK, code)
	code, _ = api.do(http.MethodPost, base+"/start", api.provider, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = api.do(http.MethodPost, base+"/cancellation", api.client, gin.H{"reason": strings.Repeat("r", 600)})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(http.MethodPost, base+"/cancellation", api.client, gin.H{"reason": strings.Repeat("r", 500)})
	require.Equal(t, http.StatusOK, code)
	code, resp = api.do(http.MethodPost, base+"/cancellation/approve", api.provider, nil)
	require.Equal(t, http.StatusOK, code)
	var cancelled application.BookingDTO
	require.NoError(t, json.Unmarshal(resp.Data, &cancelled))
	assert.Equal(t, "cancelled", cancelled.Status)
}

func TestBookingHandler_LookupByNumber(t *testing.T) {
	api := newTestAPI(t)
	bk := api.createBooking()

	code, resp := api.do(http.MethodGet, "/api/v1/bookings/number/"+bk.BookingNumber, api.provider, nil)
	require.Equal(t, http.StatusOK, code)
	var got application.BookingDTO
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	assert.Equal(t, bk.ID, got.ID)

	code, _ = api.do(http.MethodGet, "/api/v1/bookings/number/"+bk.BookingNumber, api.outsider, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = api.do(http.MethodGet, "/api/v1/bookings/number/BK-NOPE00", api.admin, nil)
	assert.Equal(t, http.StatusNotFound, code)
}
