package main

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"trend-scout/internal/domain"
	"trend-scout/internal/observability"
	"trend-scout/internal/session"
)

// snapshotter is the read side of a session.
type snapshotter interface {
	Snapshot(search string) session.Snapshot
}

type officialResponse struct {
	Official *domain.OfficialTarget `json:"official"`
	Status   domain.TargetStatus    `json:"status"`
}

// newRouter serves metrics, health and read-only JSON views of the session.
func newRouter(s snapshotter, logger zerolog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		conn := s.Snapshot("").Connection
		code := http.StatusOK
		if !conn.Connected() {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, logger, code, conn)
	}).Methods(http.MethodGet)

	r.HandleFunc("/api/snapshot", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, logger, http.StatusOK, s.Snapshot(req.URL.Query().Get("q")))
	}).Methods(http.MethodGet)
	r.HandleFunc("/api/groups", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, logger, http.StatusOK, s.Snapshot(req.URL.Query().Get("q")).Groups)
	}).Methods(http.MethodGet)
	r.HandleFunc("/api/official", func(w http.ResponseWriter, _ *http.Request) {
		snap := s.Snapshot("")
		writeJSON(w, logger, http.StatusOK, officialResponse{Official: snap.Official, Status: snap.TargetStatus})
	}).Methods(http.MethodGet)

	return r
}

func writeJSON(w http.ResponseWriter, logger zerolog.Logger, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug().Err(err).Msg("write response")
	}
}
