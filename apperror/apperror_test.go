package apperror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{Unauthenticated, http.StatusUnauthorized},
		{Forbidden, http.StatusForbidden},
		{BadRequest, http.StatusBadRequest},
		{NotFound, http.StatusNotFound},
		{Conflict, http.StatusConflict},
		{StoreUnavailable, http.StatusInternalServerError},
		{OracleUnavailable, http.StatusInternalServerError},
		{Cancelled, 499},
		{Unknown, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.kind.Status())
	}
}

func TestErrorMessage(t *testing.T) {
	err := New(NotFound, "project x not found")
	assert.Equal(t, "not_found: project x not found", err.Error())

	wrapped := Wrap(StoreUnavailable, "insert row", errors.New("disk full"))
	assert.Contains(t, wrapped.Error(), "disk full")
	assert.Equal(t, "disk full", wrapped.Unwrap().Error())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, NotFound, KindOf(NotFoundf("missing")))
	assert.Equal(t, StoreUnavailable, KindOf(errors.New("plain error")))
}

func TestConstructors(t *testing.T) {
	assert.Equal(t, Unauthenticated, Unauthenticatedf("bad token %d", 1).Kind)
	assert.Equal(t, BadRequest, BadRequestf("missing field").Kind)
	assert.Equal(t, NotFound, NotFoundf("id %s", "abc").Kind)
}
