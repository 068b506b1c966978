// File path: internal/api/chat_handler.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nicodishanthj/laptop-insights/internal/common"
	"github.com/nicodishanthj/laptop-insights/internal/pipeline"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	if !s.pipeline.Ready() {
		writeError(w, http.StatusServiceUnavailable,
			fmt.Errorf("failed to load necessary models or data files on startup: %w", s.pipeline.Err()))
		return
	}
	var req pipeline.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("api: chat decode failed", "error", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid chat request: %w", err))
		return
	}
	logger.Info("api: chat request received", "query_length", len(req.Query), "history", len(req.History))

	result := s.pipeline.Run(r.Context(), req)
	if result.Outcome == pipeline.OutcomeNotReady {
		writeError(w, http.StatusServiceUnavailable, result.Err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Answer:   result.Answer,
		Passages: result.Passages,
	})
}
