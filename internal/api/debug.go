package api

import (
	"net/http"
	"time"

	"stationplan/internal/buildinfo"
)

// DebugInfoHandler reports build metadata and a secret-free config summary.
func (s *Server) DebugInfoHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, Principal.IsAdmin, "admin"); !ok {
		return
	}
	cfg := s.cfg
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"addr":               cfg.Server.Addr,
			"authMode":           cfg.Auth.Mode,
			"rateRPS":            cfg.Server.RateRPS,
			"rateBurst":          cfg.Server.RateBurst,
			"maxStations":        cfg.Limits.MaxStations,
			"maxTasks":           cfg.Limits.MaxTasks,
			"maxConnections":     cfg.Limits.MaxConnections,
			"webhookMaxAttempts": cfg.Webhooks.MaxAttempts,
			"hasDatabaseURL":     cfg.Store.DatabaseURL != "",
			"hasRedisURL":        cfg.Redis.URL != "",
			"logLevel":           cfg.Logging.Level,
		},
	})
}
