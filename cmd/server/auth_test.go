package main

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionValue(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	a := newAuthService(nil, "secret")
	a.now = func() time.Time { return now }

	value := a.createSessionValue("Admin@SDS.test")

	email, ok := a.verifySessionValue(value)
	require.True(t, ok)
	assert.Equal(t, "admin@sds.test", email)

	other := newAuthService(nil, "other-secret")
	other.now = a.now
	_, ok = other.verifySessionValue(value)
	assert.False(t, ok, "signature from another secret must be rejected")

	_, ok = a.verifySessionValue(value + "00")
	assert.False(t, ok, "tampered signature must be rejected")

	_, ok = a.verifySessionValue("not-a-session")
	assert.False(t, ok)

	a.now = func() time.Time { return now.Add(sessionTTL + time.Second) }
	_, ok = a.verifySessionValue(value)
	assert.False(t, ok, "expired session must be rejected")
}

func TestAuthFlow(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	h := s.routes()

	rr := doJSON(t, h, nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, h, nil, http.MethodGet, "/supplies", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSON(t, h, nil, http.MethodPost, "/login", loginRequest{Email: testAdminEmail, Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSON(t, h, nil, http.MethodPost, "/login", map[string]string{"email": "not-an-email", "password": "x"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeBody[errorResponse](t, rr)
	assert.Equal(t, "email", body.Fields["email"])

	cookie := login(t, h)
	rr = doJSON(t, h, cookie, http.MethodGet, "/supplies", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, h, cookie, http.MethodPost, "/logout", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}
