package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servicehub/service-booking/internal/common/domain"
)

func render(t *testing.T, fn func(c *gin.Context)) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	fn(c)
	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestError_MapsDomainCodes(t *testing.T) {
	cases := map[error]int{
		domain.NewValidationError("bad"):        http.StatusBadRequest,
		domain.NewNotFoundError("Booking", "1"): http.StatusNotFound,
		domain.NewForbiddenError("no"):          http.StatusForbidden,
		domain.NewConflictError("dup"):          http.StatusConflict,
		errors.New("db exploded"):               http.StatusInternalServerError,
	}
	for err, status := range cases {
		w, env := render(t, func(c *gin.Context) { Error(c, err) })
		assert.Equal(t, status, w.Code, err.Error())
		assert.False(t, env.Success)
		require.NotNil(t, env.Error)
	}

	_, env := render(t, func(c *gin.Context) { Error(c, errors.New("secret detail")) })
	assert.Equal(t, "internal server error", env.Error.Message)
}

func TestPaginated(t *testing.T) {
	w, env := render(t, func(c *gin.Context) { Paginated(c, []int{1, 2}, 5, 1, 2) })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 3, env.Meta.TotalPages)
}
