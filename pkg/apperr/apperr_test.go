package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesByKindAndCode(t *testing.T) {
	err := fmt.Errorf("accept: %w", InvalidState("order_invalid_state", "order is %s", "confirmed"))

	assert.True(t, errors.Is(err, &Error{Kind: KindInvalidState}))
	assert.True(t, errors.Is(err, &Error{Kind: KindInvalidState, Code: "order_invalid_state"}))
	assert.False(t, errors.Is(err, &Error{Kind: KindInvalidState, Code: "other"}))
	assert.False(t, errors.Is(err, &Error{Kind: KindNotFound}))
	assert.Equal(t, KindInvalidState, KindOf(err))
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[*Error]int{
		NotFound("x", "x"):           http.StatusNotFound,
		AccessDenied("x", "x"):       http.StatusForbidden,
		InvalidState("x", "x"):       http.StatusBadRequest,
		InvalidTransition("x", "x"):  http.StatusBadRequest,
		Validation("x", "x"):         http.StatusBadRequest,
		PreconditionFailed("x", "x"): http.StatusPreconditionFailed,
		Duplicate("x", "x"):          http.StatusConflict,
		Unauthorized("x", "x"):       http.StatusUnauthorized,
		RateLimited("x", "x"):        http.StatusTooManyRequests,
		Internal(errors.New("boom")): http.StatusInternalServerError,
	}
	for e, want := range cases {
		assert.Equal(t, want, e.HTTPStatus(), e.Code)
	}
}

func TestInternalHidesCause(t *testing.T) {
	cause := errors.New("pq: relation does not exist")
	err := Internal(cause)

	assert.Equal(t, "internal server error", err.Message)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}
