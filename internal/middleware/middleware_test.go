package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-booking/internal/config"
	"github.com/iliyamo/venue-booking/internal/utils"
)

const secret = "test-secret"

func token(t *testing.T, role string, venue, reservation uint64) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, utils.TokenRequest{Role: role, VenueID: venue, ReservationID: reservation, TTL: time.Minute})
	require.NoError(t, err)
	return tok.Token
}

func newScopedServer() *echo.Echo {
	e := echo.New()
	ok := func(c echo.Context) error { return c.JSON(http.StatusOK, echo.Map{"role": c.Get(CtxRole)}) }
	staff := e.Group("/v1/staff/venues/:venueId", JWTAuth(secret), RequireRole(utils.RoleStaff), VenueScope())
	staff.GET("/reservations", ok)
	guest := e.Group("/v1/guest/venues/:venueId/reservations/:id", JWTAuth(secret), RequireRole(utils.RoleGuest), VenueScope())
	guest.GET("", ok)
	return e
}

func do(e *echo.Echo, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAuthAndScope(t *testing.T) {
	e := newScopedServer()
	tests := []struct {
		name   string
		path   string
		bearer string
		want   int
	}{
		{"no token", "/v1/staff/venues/1/reservations", "", http.StatusUnauthorized},
		{"garbage token", "/v1/staff/venues/1/reservations", "abc", http.StatusUnauthorized},
		{"staff own venue", "/v1/staff/venues/1/reservations", token(t, utils.RoleStaff, 1, 0), http.StatusOK},
		{"staff other venue", "/v1/staff/venues/2/reservations", token(t, utils.RoleStaff, 1, 0), http.StatusForbidden},
		{"guest on staff route", "/v1/staff/venues/1/reservations", token(t, utils.RoleGuest, 1, 5), http.StatusForbidden},
		{"guest own reservation", "/v1/guest/venues/1/reservations/5", token(t, utils.RoleGuest, 1, 5), http.StatusOK},
		{"guest other reservation", "/v1/guest/venues/1/reservations/6", token(t, utils.RoleGuest, 1, 5), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, tt.path, tt.bearer)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestCacheKeyScopedToVenueAndDate(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "cache"}

	ctxFor := func(target string) echo.Context {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		c.SetPath("/v1/venues/:venueId/availability")
		c.SetParamNames("venueId")
		c.SetParamValues("3")
		return c
	}

	k1, ok := cacheKeyFrom(cfg, ctxFor("/v1/venues/3/availability?date=2024-07-04&time=19:00&party_size=2"))
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(k1, "cache:venue:3:date:2024-07-04:"))

	// query order does not matter
	k2, ok := cacheKeyFrom(cfg, ctxFor("/v1/venues/3/availability?party_size=2&time=19:00&date=2024-07-04"))
	require.True(t, ok)
	assert.Equal(t, k1, k2)

	_, ok = cacheKeyFrom(cfg, ctxFor("/v1/venues/3/availability?time=19:00"))
	assert.False(t, ok)
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"X-Policy-Hash": {"abc"}, "Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "abc", got.Get("X-Policy-Hash"))
	assert.JSONEq(t, `{"ok":true}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
}

func TestDisabledMiddlewaresPassThrough(t *testing.T) {
	e := echo.New()
	e.GET("/v1/venues/:venueId/availability", func(c echo.Context) error { return c.String(http.StatusOK, "ok") },
		NewRedisCache(config.CacheConfig{Enabled: true}, nil),
		NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, nil),
	)
	rec := do(e, "/v1/venues/1/availability?date=2024-07-04", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestRequestIDEchoed(t *testing.T) {
	e := echo.New()
	e.Use(RequestID())
	e.GET("/", func(c echo.Context) error { return c.String(http.StatusOK, GetRequestID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-1", rec.Body.String())

	rec = do(e, "/", "")
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/venues/2/holds", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("venueId")
	c.SetParamValues("2")
	assert.Equal(t, "rl:holds:ip:10.0.0.1:venue:2", buildRateKey(config.RateLimitConfig{Prefix: "rl:holds"}, c))
}
