package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stationplan/internal/opt"
)

func TestObserveSchedule(t *testing.T) {
	before := testutil.ToFloat64(ScheduleRuns.WithLabelValues("fallback"))
	ObserveSchedule(opt.Stats{Tasks: 3, Stations: 4, Fallback: true, Duration: 2 * time.Millisecond})
	assert.Equal(t, before+1, testutil.ToFloat64(ScheduleRuns.WithLabelValues("fallback")))

	before = testutil.ToFloat64(ScheduleRuns.WithLabelValues("empty"))
	ObserveSchedule(opt.Stats{})
	assert.Equal(t, before+1, testutil.ToFloat64(ScheduleRuns.WithLabelValues("empty")))
	assert.Positive(t, testutil.CollectAndCount(ScheduleDuration))
}

func TestHandlerServesRegistry(t *testing.T) {
	RegisterDefault()
	RegisterDefault()
	ScheduleRuns.WithLabelValues("chain").Inc()

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rr.Code)
	body, _ := io.ReadAll(rr.Body)
	assert.Contains(t, string(body), `schedule_runs_total{outcome="chain"}`)
	assert.Contains(t, string(body), "go_goroutines")
}
