package errx_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantak/gatehouse/pkg/errx"
)

func TestNewCarriesTypeAndStatus(t *testing.T) {
	err := errx.New("missing tenant header", errx.TypeValidation)

	assert.Equal(t, errx.TypeValidation, err.Type)
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus)
	assert.Equal(t, "[VALIDATION] missing tenant header", err.Error())
}

func TestWrapPreservesCodeAndDetails(t *testing.T) {
	reg := errx.NewRegistry("TEST")
	code := reg.Register("THING_MISSING", errx.TypeNotFound, http.StatusNotFound, "Thing missing")

	inner := reg.New(code).WithDetail("thing_id", "t-1")
	wrapped := errx.Wrap(inner, "lookup failed", errx.TypeNotFound)

	assert.Equal(t, "TEST_THING_MISSING", wrapped.Code)
	assert.Equal(t, "t-1", wrapped.Details["thing_id"])
	assert.True(t, errors.Is(wrapped, inner))
}

func TestWrapNilIsNil(t *testing.T) {
	assert.Nil(t, errx.Wrap(nil, "whatever", errx.TypeInternal))
}

func TestIsTypeSeesThroughWrapping(t *testing.T) {
	base := errx.New("gone", errx.TypeNotFound)
	wrapped := fmt.Errorf("outer: %w", base)

	assert.True(t, errx.IsType(wrapped, errx.TypeNotFound))
	assert.False(t, errx.IsType(wrapped, errx.TypeConflict))
	assert.False(t, errx.IsType(errors.New("plain"), errx.TypeNotFound))
}

func TestCodeOf(t *testing.T) {
	reg := errx.NewRegistry("TEST")
	code := reg.Register("BOOM", errx.TypeInternal, http.StatusInternalServerError, "Boom")

	assert.Equal(t, "TEST_BOOM", errx.CodeOf(reg.New(code)))
	assert.Equal(t, "", errx.CodeOf(errors.New("plain")))
}

func TestRegistryPrefixesCodes(t *testing.T) {
	reg := errx.NewRegistry("MOD")
	code := reg.Register("NOPE", errx.TypeAuthorization, http.StatusForbidden, "Nope")

	err := reg.New(code)
	assert.Equal(t, "MOD_NOPE", err.Code)
	assert.Equal(t, http.StatusForbidden, err.HTTPStatus)

	got, ok := reg.Get("NOPE")
	require.True(t, ok)
	assert.Same(t, code, got)
}

func TestNewWithCauseUnwraps(t *testing.T) {
	reg := errx.NewRegistry("MOD")
	code := reg.Register("DOWN", errx.TypeUnavailable, http.StatusServiceUnavailable, "Down")

	cause := errors.New("connection refused")
	err := reg.NewWithCause(code, cause)

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "connection refused")
}
