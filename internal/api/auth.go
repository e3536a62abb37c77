// Package api implements the HTTP surface of the station planner.
package api

import (
	"net/http"
	"strings"

	"stationplan/internal/auth"
)

type Principal struct {
	Tenant string
	Role   string // admin, planner, viewer
}

// getPrincipal extracts tenant and role.
//   - A Bearer token is checked with the configured verifier; a bad token
//     yields ok=false.
//   - Without a token, only dev mode accepts X-Tenant-Id/X-Role headers.
func (s *Server) getPrincipal(r *http.Request) (Principal, bool) {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		pr, err := s.Auth.Verify(tok)
		if err != nil {
			s.Log.Debugf("auth: rejected token: %v", err)
			return Principal{}, false
		}
		return Principal{Tenant: pr.Tenant, Role: pr.Role}, true
	}
	if s.Auth != nil && s.Auth.Mode != "dev" {
		return Principal{}, false
	}
	tenant := r.Header.Get("X-Tenant-Id")
	if tenant == "" {
		tenant = "t_demo"
	}
	role := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Role")))
	switch role {
	case "":
		role = auth.RoleAdmin
	case auth.RoleAdmin, auth.RolePlanner, auth.RoleViewer:
	default:
		role = auth.RoleViewer
	}
	return Principal{Tenant: tenant, Role: role}, true
}

func (p Principal) IsAdmin() bool { return p.Role == auth.RoleAdmin }

// CanPlan reports whether the principal may run the optimizer or edit networks.
func (p Principal) CanPlan() bool { return p.Role == auth.RoleAdmin || p.Role == auth.RolePlanner }

// CanRead reports whether the principal may read tenant data.
func (p Principal) CanRead() bool { return p.CanPlan() || p.Role == auth.RoleViewer }

// require resolves the principal and writes 401/403 when it lacks allow.
func (s *Server) require(w http.ResponseWriter, r *http.Request, allow func(Principal) bool, need string) (Principal, bool) {
	p, ok := s.getPrincipal(r)
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "valid bearer token required", r.URL.Path)
		return Principal{}, false
	}
	if !allow(p) {
		writeProblem(w, http.StatusForbidden, "Forbidden", need+" required", r.URL.Path)
		return Principal{}, false
	}
	return p, true
}
