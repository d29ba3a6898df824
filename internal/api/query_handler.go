// File path: internal/api/query_handler.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/crosstabs/surveychat/internal/common"
)

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("api: query decode failed", "error", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		logger.Warn("api: query text missing")
		writeError(w, http.StatusBadRequest, fmt.Errorf("query required"))
		return
	}
	session := strings.TrimSpace(req.SessionID)
	if session == "" {
		session = strings.TrimSpace(r.Header.Get("X-Session-ID"))
	}
	if session == "" {
		session = uuid.NewString()
	}
	logger.Info("api: query received", "session", session, "query_length", len(req.Query))
	response := s.conv.Respond(r.Context(), session, req.Query)
	writeJSON(w, http.StatusOK, queryResponse{Response: response, SessionID: session})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("api: validate decode failed", "error", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.QuestionID) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("question_id required"))
		return
	}
	isValid, message, suggestions := s.ident.Validate(r.Context(), req.QuestionID)
	writeJSON(w, http.StatusOK, validateResponse{
		IsValid:          isValid,
		Message:          message,
		SimilarQuestions: suggestions,
	})
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	questionID := strings.TrimSpace(chi.URLParam(r, "questionID"))
	if questionID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("question id required"))
		return
	}
	counts := s.engine.CountsFor(r.Context(), questionID)
	writeJSON(w, http.StatusOK, countsResponse{Counts: counts})
}
