package common

import (
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExternalError_Categories(t *testing.T) {
	cases := map[int]goerrors.Category{
		http.StatusTooManyRequests:     goerrors.CategoryRateLimit,
		http.StatusBadGateway:          goerrors.CategoryExternal,
		http.StatusUnauthorized:        goerrors.CategoryAuth,
		http.StatusNotFound:            goerrors.CategoryNotFound,
		http.StatusUnprocessableEntity: goerrors.CategoryBadInput,
	}
	for status, want := range cases {
		err := ExternalError("graph", status, []byte("boom"))

		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr), status)
		assert.Equal(t, want, richErr.Category, status)
		assert.Equal(t, status, richErr.Code)
	}
}

func TestStatusCode_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("fetch: %w", ExternalError("graph", http.StatusServiceUnavailable, nil))
	assert.Equal(t, http.StatusServiceUnavailable, StatusCode(err))
	assert.Equal(t, 0, StatusCode(fmt.Errorf("plain")))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(ExternalError("erp", http.StatusNotFound, nil)))
	assert.True(t, IsNotFound(fmt.Errorf("x: %w", ErrNotFound)))
	assert.False(t, IsNotFound(ExternalError("erp", http.StatusInternalServerError, nil)))
}
