package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/airwarehouse/internal/core"
)

// previewLimit is how many clean and quarantined rows a preview returns by
// default.
const previewLimit = 100

// handleUpload cleans and commits a CSV upload. The entity path segment is a
// table name or "auto".
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	res, err := s.readCSVUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	sum, err := s.service.CleanAndCommit(r.Context(), chi.URLParam(r, "entity"), res.Headers, res.Rows)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, sum)
}

// handleIngest is handleUpload for a JSON list of row objects.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	rows, err := s.readJSONRows(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	sum, err := s.service.CleanAndCommit(r.Context(), chi.URLParam(r, "entity"), nil, rows)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, sum)
}

// PreviewResponse shows how an upload would be split without writing it.
type PreviewResponse struct {
	Entity      string                 `json:"entity"`
	Table       string                 `json:"table"`
	TotalRows   int                    `json:"total_rows"`
	CleanRows   int                    `json:"clean_rows"`
	Quarantined int                    `json:"quarantined_rows"`
	Clean       []core.Record          `json:"clean"`
	Rejected    []core.QuarantineEntry `json:"rejected"`
	Truncated   bool                   `json:"truncated"`
}

// handlePreview cleans a CSV upload and returns the first rows of each
// partition. Nothing is committed or quarantined.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	res, err := s.readCSVUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	kind, p, err := s.service.Preview(chi.URLParam(r, "entity"), res.Headers, res.Rows)
	if err != nil {
		respondError(w, r, err)
		return
	}

	limit := parseIntParam(r, "limit", previewLimit)
	clean := p.Records()
	rejected := p.Quarantined
	resp := PreviewResponse{
		Entity:      kind.String(),
		Table:       kind.Table(),
		TotalRows:   len(res.Rows),
		CleanRows:   len(clean),
		Quarantined: len(rejected),
	}
	if len(clean) > limit {
		clean = clean[:limit]
		resp.Truncated = true
	}
	if len(rejected) > limit {
		rejected = rejected[:limit]
		resp.Truncated = true
	}
	resp.Clean = clean
	resp.Rejected = rejected
	writeJSON(w, resp)
}

// StreamResponse acknowledges a batch handed to the raw topic.
type StreamResponse struct {
	Table string `json:"table"`
	Rows  int    `json:"rows"`
}

// handleStream publishes a CSV upload to the raw topic instead of committing
// it directly. The streaming loop cleans it, publishes the clean rows to the
// clean topic and quarantines the rest.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	res, err := s.readCSVUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	kind, err := s.service.PublishRaw(r.Context(), chi.URLParam(r, "entity"), res.Headers, res.Rows)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, StreamResponse{Table: kind.Table(), Rows: len(res.Rows)})
}
