package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/dreamware/zonectl/internal/cluster"
	"github.com/dreamware/zonectl/internal/coordinator"
	"github.com/dreamware/zonectl/internal/topology"
)

type server struct {
	catalog *coordinator.Catalog
	monitor *coordinator.HealthMonitor // nil when shard probing is disabled
	logger  *zap.Logger
}

func newServer(catalog *coordinator.Catalog, monitor *coordinator.HealthMonitor, logger *zap.Logger) *server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &server{catalog: catalog, monitor: monitor, logger: logger}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Route("/admin", func(r chi.Router) {
		r.Get("/topology", s.handleTopology)
		r.Get("/shards", s.handleListShards)
		r.Post("/shards", s.handleAddShard)
		r.Post("/shards/{id}/zones", s.handleAddShardToZone)
		r.Post("/databases", s.handleEnableSharding)
		r.Post("/collections", s.handleShardCollection)
		r.Post("/ranges", s.handleUpdateZoneKeyRange)
	})
	r.Post("/route", s.handleRoute)
	return r
}

func (s *server) handleAddShard(w http.ResponseWriter, r *http.Request) {
	var req cluster.AddShardRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r, s.catalog.AddShard(r.Context(), req.Shard))
}

func (s *server) handleAddShardToZone(w http.ResponseWriter, r *http.Request) {
	var req cluster.AddShardToZoneRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r, s.catalog.AddShardToZone(r.Context(), chi.URLParam(r, "id"), req.Zone))
}

func (s *server) handleEnableSharding(w http.ResponseWriter, r *http.Request) {
	var req cluster.EnableShardingRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r, s.catalog.EnableSharding(r.Context(), req.Database))
}

func (s *server) handleShardCollection(w http.ResponseWriter, r *http.Request) {
	var req cluster.ShardCollectionRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r, s.catalog.ShardCollection(r.Context(), req.Namespace, req.Key))
}

func (s *server) handleUpdateZoneKeyRange(w http.ResponseWriter, r *http.Request) {
	var req cluster.UpdateZoneKeyRangeRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r, s.catalog.UpdateZoneKeyRange(r.Context(), req.Namespace, req.Range))
}

func (s *server) handleTopology(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.catalog.Snapshot())
}

type shardStatus struct {
	coordinator.ShardState
	Health *coordinator.ShardHealth `json:"health,omitempty"`
}

// handleListShards returns registered shards with their zones and, when
// probing is enabled, their last known health.
func (s *server) handleListShards(w http.ResponseWriter, r *http.Request) {
	snap := s.catalog.Snapshot()
	out := make([]shardStatus, 0, len(snap.Shards))
	for _, sh := range snap.Shards {
		st := shardStatus{ShardState: sh}
		if s.monitor != nil {
			st.Health = s.monitor.ShardHealth(sh.ID)
		}
		out = append(out, st)
	}
	s.writeJSON(w, http.StatusOK, struct {
		Shards []shardStatus `json:"shards"`
	}{Shards: out})
}

func (s *server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req cluster.RouteRequest
	if !s.decode(w, r, &req) {
		return
	}
	route, err := s.catalog.Route(req.Namespace, req.Document)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, route)
}

func (s *server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, cluster.ErrorResponse{Code: topology.CodeInvalid, Error: "bad json: " + err.Error()})
		return false
	}
	return true
}

func (s *server) respond(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := topology.Code(err)
	status := statusFor(code)
	s.logger.Warn("admin request rejected",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("code", code),
		zap.Error(err))
	s.writeJSON(w, status, cluster.ErrorResponse{Code: code, Error: err.Error()})
}

func statusFor(code string) int {
	switch code {
	case topology.CodeInvalid:
		return http.StatusBadRequest
	case topology.CodeAlreadyExists, topology.CodeRangeOverlap:
		return http.StatusConflict
	case topology.CodeOrderDependency:
		return http.StatusPreconditionFailed
	case topology.CodeConnection:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response", zap.Error(err))
	}
}
