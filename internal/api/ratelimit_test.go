package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"stationplan/internal/config"
)

func TestTenantLimiterPerKey(t *testing.T) {
	l := newTenantLimiter(1, 2)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	assert.True(t, l.allow("b"), "buckets are per tenant")

	now = now.Add(time.Second)
	assert.True(t, l.allow("a"), "refills at rps")
}

func TestTenantLimiterSweepsIdleBuckets(t *testing.T) {
	l := newTenantLimiter(1, 1)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }
	l.allow("a")
	now = now.Add(l.ttl + time.Second)
	l.allow("b")
	assert.Len(t, l.buckets, 1)
}

func TestTenantLimiterDisabled(t *testing.T) {
	assert.Nil(t, newTenantLimiter(0, 5))
}

func TestRateLimitMiddleware(t *testing.T) {
	h := newTestServer(t, func(c *config.Config) {
		c.Server.RateRPS = 0.001
		c.Server.RateBurst = 1
	}).Routes()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/schedule", "", exampleSchedule).Code)
	rr := do(t, h, http.MethodPost, "/v1/schedule", "", exampleSchedule)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
	// ops endpoints are not limited
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "", "").Code)
}
