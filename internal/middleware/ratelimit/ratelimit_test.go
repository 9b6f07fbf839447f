package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware_EnforcesBurst(t *testing.T) {
	t.Parallel()

	e := echo.New()
	lim := New(0.001, 3)
	e.POST("/login", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, lim.Middleware)

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do("192.0.2.1:1000"))
	}
	assert.Equal(t, http.StatusTooManyRequests, do("192.0.2.1:1000"))

	// Budgets are per client address.
	assert.Equal(t, http.StatusOK, do("192.0.2.2:1000"))
}
