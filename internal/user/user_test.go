package user

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgpub/internal/config"
)

func TestNewOwnerService(t *testing.T) {
	service := NewOwnerService(config.NewConfig())
	assert.NotNil(t, service)
}

func TestGetOwnerIDFromCookie(t *testing.T) {
	service := NewOwnerService(config.NewConfig())
	res := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	ownerID := "V1StGXR8_Z5jdHi6B-myT"
	require.NoError(t, service.SetOwnerIDCookie(res, ownerID))

	req.Header.Set("Cookie", res.Header().Get("Set-Cookie"))

	got, err := service.GetOwnerIDFromCookie(req)
	require.NoError(t, err)
	assert.Equal(t, ownerID, got)
}

func TestSetOwnerIDCookie(t *testing.T) {
	service := NewOwnerService(config.NewConfig())
	res := httptest.NewRecorder()

	require.NoError(t, service.SetOwnerIDCookie(res, "owner-1"))

	cookie := res.Header().Get("Set-Cookie")
	assert.Contains(t, cookie, "OwnerToken")
	assert.Contains(t, cookie, "HttpOnly")
}

func TestGetOwnerIDFromCookieRejectsForeignKeys(t *testing.T) {
	issuer := NewOwnerService(config.NewConfig())
	res := httptest.NewRecorder()
	require.NoError(t, issuer.SetOwnerIDCookie(res, "owner-1"))

	other := config.NewConfig()
	other.CookieHashKey = "another-very-very-secret-key-32b"
	verifier := NewOwnerService(other)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Cookie", res.Header().Get("Set-Cookie"))

	_, err := verifier.GetOwnerIDFromCookie(req)
	assert.Error(t, err)
}

func TestGetOwnerIDWithoutCookie(t *testing.T) {
	service := NewOwnerService(config.NewConfig())
	_, err := service.GetOwnerIDFromCookie(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, http.ErrNoCookie)
}

func TestNewOwnerID(t *testing.T) {
	service := NewOwnerService(config.NewConfig())

	a, err := service.NewOwnerID()
	require.NoError(t, err)
	b, err := service.NewOwnerID()
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
