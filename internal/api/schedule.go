package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"stationplan/internal/metrics"
	"stationplan/internal/model"
	"stationplan/internal/network"
	"stationplan/internal/opt"
	"stationplan/internal/store"
)

// ScheduleHandler handles POST /v1/schedule.
func (s *Server) ScheduleHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p, ok := s.require(w, r, Principal.CanPlan, "planner or admin")
	if !ok {
		return
	}
	var req model.ScheduleRequest
	if status, err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		writeProblem(w, status, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := ValidateSchedule(req, s.Limits); err != nil {
		s.writeValidation(w, r, err)
		return
	}

	conns := req.SubwayConnections
	if req.NetworkID != "" {
		nw, err := s.Store.GetNetwork(r.Context(), p.Tenant, req.NetworkID)
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Network not found", req.NetworkID, r.URL.Path)
			return
		}
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Load network failed", err.Error(), r.URL.Path)
			return
		}
		conns = nw.Connections
	}

	began := time.Now()
	idx := network.Build(ToConnections(conns))
	res := opt.Optimize(ToTasks(req.Tasks), network.Location(req.StartingLocation), idx)
	res.Stats.Duration = time.Since(began)
	metrics.ObserveSchedule(res.Stats)

	runID := uuid.NewString()
	s.recordRun(r.Context(), runID, p.Tenant, req.NetworkID, res)

	w.Header().Set("X-Run-Id", runID)
	writeJSON(w, http.StatusOK, model.ScheduleResponse{
		MaxScore: res.MaxScore,
		MinFee:   model.Fee(res.MinFee),
		Schedule: res.Schedule,
	})
}

// recordRun stores the run summary and announces it. Failures are logged and
// never fail the request.
func (s *Server) recordRun(ctx context.Context, runID, tenant, networkID string, res opt.Result) {
	now := time.Now().UTC()
	durMs := float64(res.Stats.Duration.Microseconds()) / 1000
	rec := model.RunRecord{
		ID:         runID,
		TenantID:   tenant,
		NetworkID:  networkID,
		Tasks:      res.Stats.Tasks,
		Stations:   res.Stats.Stations,
		Scheduled:  len(res.Schedule),
		Outcome:    res.Stats.Outcome(),
		MaxScore:   res.MaxScore,
		DurationMs: durMs,
		CreatedAt:  now,
	}
	if err := s.Store.RecordRun(ctx, rec); err != nil {
		s.Log.Errorf("schedule: record run %s: %v", runID, err)
	}

	payload := model.ScheduleComputed{
		RunID:      runID,
		TenantID:   tenant,
		Tasks:      rec.Tasks,
		Stations:   rec.Stations,
		Scheduled:  rec.Scheduled,
		MaxScore:   rec.MaxScore,
		Fallback:   res.Stats.Fallback,
		DurationMs: durMs,
		TS:         now.Format(time.RFC3339),
	}
	if evt, err := newEvent(model.EventScheduleComputed, payload); err == nil {
		s.Broker.Publish(tenant, evt)
	}
	queued := s.Pub.Emit(ctx, tenant, model.EventScheduleComputed, payload)
	s.Log.Debugw("schedule computed", map[string]any{
		"runId":    runID,
		"tenant":   tenant,
		"outcome":  rec.Outcome,
		"tasks":    rec.Tasks,
		"stations": rec.Stations,
		"webhooks": queued,
	})
}

func (s *Server) writeValidation(w http.ResponseWriter, r *http.Request, err error) {
	var lim *LimitError
	if errors.As(err, &lim) {
		writeProblem(w, http.StatusRequestEntityTooLarge, "Request too large", err.Error(), r.URL.Path)
		return
	}
	writeProblem(w, http.StatusBadRequest, "Validation failed", err.Error(), r.URL.Path)
}
