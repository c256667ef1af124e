package api

import (
	"context"
	"net/http"
	"time"
)

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		jsonResponse(w, http.StatusOK, healthResponse{Status: "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.Ping(ctx); err != nil {
		jsonResponse(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Database: err.Error()})
		return
	}
	jsonResponse(w, http.StatusOK, healthResponse{Status: "ok", Database: "ok"})
}
