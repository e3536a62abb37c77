package api

import (
	"errors"
	"net/http"
	"strings"

	"stationplan/internal/model"
	"stationplan/internal/network"
	"stationplan/internal/store"
)

// NetworksHandler handles POST/GET /v1/networks.
func (s *Server) NetworksHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		p, ok := s.require(w, r, Principal.CanPlan, "planner or admin")
		if !ok {
			return
		}
		var in model.NetworkInput
		if status, err := decodeJSON(w, r, maxBodyBytes, &in); err != nil {
			writeProblem(w, status, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		in.Name = strings.TrimSpace(in.Name)
		if len(in.Connections) == 0 {
			writeProblem(w, http.StatusBadRequest, "Validation failed", "connections required", r.URL.Path)
			return
		}
		if err := ValidateConnections("connections", in.Connections, s.Limits); err != nil {
			s.writeValidation(w, r, err)
			return
		}
		nw, err := s.Store.CreateNetwork(r.Context(), p.Tenant, in, countStations(in.Connections))
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create network failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, nw)
	case http.MethodGet:
		p, ok := s.require(w, r, Principal.CanRead, "viewer")
		if !ok {
			return
		}
		items, next, err := s.Store.ListNetworks(r.Context(), p.Tenant, r.URL.Query().Get("cursor"), queryLimit(r))
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List networks failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// NetworkByIDHandler handles GET/DELETE /v1/networks/{id}.
func (s *Server) NetworkByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		p, ok := s.require(w, r, Principal.CanRead, "viewer")
		if !ok {
			return
		}
		nw, err := s.Store.GetNetwork(r.Context(), p.Tenant, id)
		if err != nil {
			s.writeStoreErr(w, r, "Get network failed", err)
			return
		}
		writeJSON(w, http.StatusOK, nw)
	case http.MethodDelete:
		p, ok := s.require(w, r, Principal.CanPlan, "planner or admin")
		if !ok {
			return
		}
		if err := s.Store.DeleteNetwork(r.Context(), p.Tenant, id); err != nil {
			s.writeStoreErr(w, r, "Delete network failed", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// NetworkCostHandler handles GET /v1/networks/{id}/cost?from=&to=.
func (s *Server) NetworkCostHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p, ok := s.require(w, r, Principal.CanRead, "viewer")
	if !ok {
		return
	}
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		writeProblem(w, http.StatusBadRequest, "Validation failed", "from and to required", r.URL.Path)
		return
	}
	nw, err := s.Store.GetNetwork(r.Context(), p.Tenant, r.PathValue("id"))
	if err != nil {
		s.writeStoreErr(w, r, "Get network failed", err)
		return
	}
	idx := network.Build(ToConnections(nw.Connections))
	cost := idx.Lookup(network.Location(from), network.Location(to))
	writeJSON(w, http.StatusOK, model.CostLookup{
		NetworkID: nw.ID,
		From:      model.LocationID(from),
		To:        model.LocationID(to),
		Cost:      model.Fee(cost),
		Reachable: idx.Reachable(network.Location(from), network.Location(to)),
	})
}

func (s *Server) writeStoreErr(w http.ResponseWriter, r *http.Request, title string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	writeProblem(w, http.StatusInternalServerError, title, err.Error(), r.URL.Path)
}
