package web

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/airwarehouse/internal/core"
)

// healthTimeout bounds the store ping behind /health.
const healthTimeout = 2 * time.Second

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string                   `json:"status"`
	Store     string                   `json:"store"`
	Streaming bool                     `json:"streaming"`
	Uploads   core.UploadLimiterStatus `json:"uploads"`
}

// handleHealth reports liveness and store reachability. It answers 503 when
// the store ping fails so load balancers stop routing uploads here.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Store:     "unchecked",
		Streaming: s.service.StreamingEnabled(),
		Uploads:   s.service.Limiter().Status(),
	}
	status := http.StatusOK

	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Store = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			resp.Store = "ok"
		}
	}
	writeJSONStatus(w, status, resp)
}

// EntityInfo describes one ingestible entity for clients building uploads.
type EntityInfo struct {
	Name    string               `json:"name"`
	Table   string               `json:"table"`
	Fields  []string             `json:"fields"`
	Columns []core.ColumnMapping `json:"columns"`
}

// handleListEntities returns the entities in detection priority order.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	out := make([]EntityInfo, 0, len(core.EntityKinds))
	for _, k := range core.EntityKinds {
		e := core.EntityFor(k)
		out = append(out, EntityInfo{
			Name:    k.String(),
			Table:   e.Table(),
			Fields:  e.Fields(),
			Columns: e.Columns(),
		})
	}
	writeJSON(w, out)
}

// handleUploadStatus returns the upload limiter state.
func (s *Server) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.Limiter().Status())
}
