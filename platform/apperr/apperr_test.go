package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetKindFollowsWrappedChain(t *testing.T) {
	base := Conflict("request is locked").WithOp("sfr.ApplyMutation")
	wrapped := fmt.Errorf("apply: %w", base)

	assert.Equal(t, KindConflict, GetKind(wrapped))
	assert.True(t, IsRetryable(wrapped))
	assert.False(t, IsRetryable(Validation("bad")))
	assert.Equal(t, KindUnknown, GetKind(errors.New("plain")))
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindNotFound:     http.StatusNotFound,
		KindValidation:   http.StatusBadRequest,
		KindConflict:     http.StatusConflict,
		KindForbidden:    http.StatusForbidden,
		KindUnauthorized: http.StatusUnauthorized,
		KindInternal:     http.StatusInternalServerError,
		KindUnknown:      http.StatusBadRequest,
	}
	for kind, want := range cases {
		assert.Equal(t, want, New(kind, "x").HTTPStatus(), "kind %d", kind)
	}
}

func TestErrorMessageIncludesOp(t *testing.T) {
	err := Validation("departure must be after arrival").WithOp("sfr.Create")
	assert.Equal(t, "sfr.Create: departure must be after arrival", err.Error())
}
